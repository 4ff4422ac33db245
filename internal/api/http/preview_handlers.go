package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/providers/browser"
	"github.com/GriffinCanCode/livepen/internal/providers/filesystem"
)

// IframeSandbox is the sandbox token list of the preview iframe
const IframeSandbox = "allow-scripts"

// PreviewCSP applies the same sandbox when the document is opened directly
const PreviewCSP = "sandbox " + IframeSandbox

type viewportRequest struct {
	Mode       *string `json:"mode"`
	FullScreen *bool   `json:"full_screen"`
}

type dispatchRequest struct {
	Selector string `json:"selector"`
	Event    string `json:"event"`
}

// PreviewDocument serves the assembled document for the sandboxed iframe
func (h *Handlers) PreviewDocument(c *gin.Context) {
	c.Header("Content-Security-Policy", PreviewCSP)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.document()))
}

// PreviewSnapshot returns the visual output of the live context. With
// ?xpath= only the matching nodes are returned.
func (h *Handlers) PreviewSnapshot(c *gin.Context) {
	defer h.metrics.Track(c, "preview", "snapshot")()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.renderer.Snapshot(ctx)
	if err != nil {
		h.previewError(c, err)
		return
	}

	expr := c.Query("xpath")
	if expr == "" {
		c.Header("Content-Security-Policy", PreviewCSP)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
		return
	}

	doc, err := htmlquery.Parse(strings.NewReader(out))
	if err != nil {
		h.previewError(c, err)
		return
	}
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid xpath: " + err.Error()})
		return
	}

	matches := make([]gin.H, 0, len(nodes))
	for _, n := range nodes {
		matches = append(matches, gin.H{
			"html": htmlquery.OutputHTML(n, true),
			"text": htmlquery.InnerText(n),
		})
	}
	c.JSON(http.StatusOK, gin.H{"xpath": expr, "count": len(matches), "nodes": matches})
}

// Dispatch fires an event at an element of the live context
func (h *Handlers) Dispatch(c *gin.Context) {
	defer h.metrics.Track(c, "preview", "dispatch")()

	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Selector == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selector is required"})
		return
	}
	if req.Event == "" {
		req.Event = "click"
	}

	handle, ok := h.renderer.Handle()
	if !ok {
		h.previewError(c, preview.ErrBoundaryClosed)
		return
	}
	target, ok := handle.(browser.Interactive)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "preview engine does not accept input"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := target.Dispatch(ctx, req.Selector, req.Event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := target.Settle(ctx); err != nil {
		h.log.Debug("preview did not settle", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"dispatched": true, "selector": req.Selector, "event": req.Event})
}

// GetViewport returns the presentation state
func (h *Handlers) GetViewport(c *gin.Context) {
	c.JSON(http.StatusOK, h.renderer.Viewport())
}

// SetViewport changes mode and/or full-screen without re-executing
func (h *Handlers) SetViewport(c *gin.Context) {
	var req viewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Mode != nil {
		mode, err := preview.ParseViewMode(*req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := h.renderer.SetViewMode(mode); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.FullScreen != nil {
		h.renderer.SetFullScreen(*req.FullScreen)
	}
	c.JSON(http.StatusOK, h.renderer.Viewport())
}

// PreviewStats returns render counters and latency
func (h *Handlers) PreviewStats(c *gin.Context) {
	frame, live := h.renderer.Current()
	c.JSON(http.StatusOK, gin.H{
		"render":  h.renderer.Stats(),
		"frame":   frame,
		"live":    live,
		"pending": h.agg.Pending(),
	})
}

// Export streams the workspace and assembled document as a ZIP archive
func (h *Handlers) Export(c *gin.Context) {
	defer h.metrics.Track(c, "workspace", "export")()

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="livepen.zip"`)
	c.Status(http.StatusOK)
	if err := filesystem.ExportZip(c.Writer, h.store.Snapshot(), h.document()); err != nil {
		h.log.Error("export failed", zap.Error(err))
		c.Error(err)
	}
}

// document returns the displayed document, or the settled composite when
// nothing has rendered yet
func (h *Handlers) document() string {
	if doc := h.renderer.Document(); doc != "" {
		return doc
	}
	return preview.Assemble(h.agg.Settled())
}

func (h *Handlers) previewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, preview.ErrBoundaryClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no live preview"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "preview did not respond"})
	default:
		h.log.Warn("preview request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
