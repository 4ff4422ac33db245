package http

import (
	"errors"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/providers/filesystem"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	store    *workspace.Store
	agg      *preview.Aggregator
	renderer *preview.Renderer
	log      *logging.Logger
	metrics  *HandlerMetrics
	names    *bluemonday.Policy
	timeout  time.Duration
	started  time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(store *workspace.Store, agg *preview.Aggregator, renderer *preview.Renderer, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.Nop()
	}
	return &Handlers{
		store:    store,
		agg:      agg,
		renderer: renderer,
		log:      log.Named("http"),
		metrics:  NewHandlerMetrics(nil),
		names:    bluemonday.StrictPolicy(),
		timeout:  5 * time.Second,
		started:  time.Now(),
	}
}

// WithMetrics adds metrics tracking to the handlers
func (h *Handlers) WithMetrics(metrics *monitoring.Metrics) *Handlers {
	h.metrics = NewHandlerMetrics(metrics)
	return h
}

type createRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type contentRequest struct {
	Content *string `json:"content" binding:"required"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	ws := h.store.Snapshot()
	frame, live := h.renderer.Current()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "livepen",
		"uptime_seconds": time.Since(h.started).Seconds(),
		"buffers":        len(ws.Buffers),
		"preview": gin.H{
			"live":    live,
			"seq":     frame.Seq,
			"pending": h.agg.Pending(),
		},
	})
}

// ListBuffers returns the file list read model
func (h *Handlers) ListBuffers(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

// GetBuffer returns one buffer
func (h *Handlers) GetBuffer(c *gin.Context) {
	bufID, ok := h.bufferID(c)
	if !ok {
		return
	}
	buf, found := h.store.Get(bufID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "buffer not found"})
		return
	}
	c.JSON(http.StatusOK, buf)
}

// CreateBuffer appends a buffer of the requested kind
func (h *Handlers) CreateBuffer(c *gin.Context) {
	defer h.metrics.Track(c, "workspace", "create")()

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	name, err := h.cleanName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := types.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buf, err := h.store.Create(c.Request.Context(), name, kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, buf)
}

// ImportBuffers creates one buffer per uploaded file
func (h *Handlers) ImportBuffers(c *gin.Context) {
	defer h.metrics.Track(c, "workspace", "import")()

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	created := make([]types.Buffer, 0, len(files))
	skipped := make([]gin.H, 0)
	for _, fh := range files {
		name, err := h.cleanName(fh.Filename)
		if err != nil {
			skipped = append(skipped, gin.H{"name": fh.Filename, "error": err.Error()})
			continue
		}
		candidate, err := readUpload(name, fh.Open)
		if err != nil {
			skipped = append(skipped, gin.H{"name": name, "error": err.Error()})
			continue
		}
		buf, err := h.store.Import(c.Request.Context(), candidate.Name, candidate.Kind, candidate.Content)
		if err != nil {
			skipped = append(skipped, gin.H{"name": name, "error": err.Error()})
			continue
		}
		h.log.Debug("buffer imported",
			logging.Buffer(buf.ID.String()),
			zap.String("charset", candidate.Charset))
		created = append(created, buf)
	}

	c.JSON(http.StatusOK, gin.H{"created": created, "skipped": skipped})
}

// UpdateContent writes content through a buffer id. Writes to a buffer that
// is not active are reported as not applied.
func (h *Handlers) UpdateContent(c *gin.Context) {
	defer h.metrics.Track(c, "workspace", "update")()

	bufID, ok := h.bufferID(c)
	if !ok {
		return
	}
	content, ok := h.content(c)
	if !ok {
		return
	}
	applied := h.store.UpdateContent(c.Request.Context(), bufID, content)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "id": bufID})
}

// UpdateActive writes content through the active slot of a kind
func (h *Handlers) UpdateActive(c *gin.Context) {
	defer h.metrics.Track(c, "workspace", "update_active")()

	kind, err := types.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content, ok := h.content(c)
	if !ok {
		return
	}
	applied := h.store.UpdateActive(c.Request.Context(), kind, content)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "kind": kind})
}

// SelectBuffer makes a buffer the active one of its kind
func (h *Handlers) SelectBuffer(c *gin.Context) {
	defer h.metrics.Track(c, "workspace", "select")()

	bufID, ok := h.bufferID(c)
	if !ok {
		return
	}
	applied := h.store.Select(c.Request.Context(), bufID)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "id": bufID})
}

// RenameBuffer changes a buffer's display name
func (h *Handlers) RenameBuffer(c *gin.Context) {
	defer h.metrics.Track(c, "workspace", "rename")()

	bufID, ok := h.bufferID(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	name, err := h.cleanName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	applied := h.store.Rename(c.Request.Context(), bufID, name)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "id": bufID, "name": name})
}

// DeleteBuffer removes a buffer. Confirmation is the client's job.
func (h *Handlers) DeleteBuffer(c *gin.Context) {
	defer h.metrics.Track(c, "workspace", "delete")()

	bufID, ok := h.bufferID(c)
	if !ok {
		return
	}
	applied := h.store.Delete(c.Request.Context(), bufID)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "id": bufID})
}

func (h *Handlers) bufferID(c *gin.Context) (types.BufferID, bool) {
	raw := c.Param("id")
	if err := utils.ValidateID(raw, "buffer_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return types.BufferID(raw), true
}

func (h *Handlers) content(c *gin.Context) (string, bool) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return "", false
	}
	if err := utils.ValidateContent(*req.Content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return *req.Content, true
}

// cleanName strips markup from a display name and validates the rest
func (h *Handlers) cleanName(name string) (string, error) {
	clean := strings.TrimSpace(html.UnescapeString(h.names.Sanitize(name)))
	if err := utils.ValidateName(clean, "name"); err != nil {
		return "", err
	}
	return clean, nil
}

func readUpload(name string, open func() (multipart.File, error)) (filesystem.Candidate, error) {
	f, err := open()
	if err != nil {
		return filesystem.Candidate{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, utils.MaxUploadSize+1))
	if err != nil {
		return filesystem.Candidate{}, err
	}
	if len(data) > utils.MaxUploadSize {
		return filesystem.Candidate{}, errors.New("file exceeds upload limit")
	}
	return filesystem.NewCandidate(name, data)
}
