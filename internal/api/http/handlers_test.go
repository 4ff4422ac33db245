package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/storage"
	"github.com/GriffinCanCode/livepen/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

type testEnv struct {
	store    *workspace.Store
	agg      *preview.Aggregator
	renderer *preview.Renderer
	router   *gin.Engine
}

// newTestEnv wires a starter workspace to a sandbox renderer. The debounce
// window is an hour so tests flush explicitly.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := workspace.NewStore(id.NewSequence(), storage.NewMemoryKV(), nil)
	require.NoError(t, store.Open(ctx))

	boundary, err := sandbox.NewBoundary(sandbox.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	renderer := preview.NewRenderer(boundary, nil)
	agg := preview.NewAggregator(store, time.Hour, func(c types.Composite) {
		_, _ = renderer.Render(ctx, c)
	}, nil)

	router := gin.New()
	NewHandlers(store, agg, renderer, nil).WithMetrics(monitoring.NewMetrics()).Register(router)

	t.Cleanup(func() {
		agg.Stop()
		renderer.Close()
		boundary.Close()
	})
	return &testEnv{store: store, agg: agg, renderer: renderer, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// settle waits for the live sandbox to finish pending work
func (e *testEnv) settle(t *testing.T) {
	t.Helper()
	h, ok := e.renderer.Handle()
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.(*sandbox.Runtime).Settle(ctx))
}

func TestListAndGetBuffers(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/buffers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ws types.Workspace
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ws))
	require.Len(t, ws.Buffers, 3)

	first := ws.Buffers[0]
	w = e.do(t, http.MethodGet, "/buffers/"+first.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.Name, decodeBody(t, w)["name"])

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/buffers/buf_99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/buffers/a.b", nil).Code)
}

func TestCreateBuffer(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/buffers", gin.H{"name": "<b>extra</b>.css", "kind": "css"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "extra.css", body["name"])
	assert.Equal(t, "css", body["type"])

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/buffers", gin.H{"name": "x.scss", "kind": "scss"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/buffers", gin.H{"name": "  ", "kind": "css"}).Code)
}

func TestUpdateContentIgnoresInactiveBuffer(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.agg.Start()

	extra, err := e.store.Create(ctx, "extra.css", types.KindCSS)
	require.NoError(t, err)
	active, ok := e.store.Active(types.KindCSS)
	require.True(t, ok)
	require.NotEqual(t, extra.ID, active.ID)

	w := e.do(t, http.MethodPut, "/buffers/"+extra.ID.String()+"/content", gin.H{"content": "p{}"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["applied"])

	w = e.do(t, http.MethodPut, "/buffers/"+active.ID.String()+"/content", gin.H{"content": "p{}"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["applied"])
	assert.True(t, e.agg.Pending())

	got, _ := e.store.Get(active.ID)
	assert.Equal(t, "p{}", got.Content)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/active/css/content", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/active/less/content", gin.H{"content": ""}).Code)
}

func TestSelectRenameDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	extra, err := e.store.Create(ctx, "extra.js", types.KindJS)
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/buffers/"+extra.ID.String()+"/select", nil)
	assert.Equal(t, true, decodeBody(t, w)["applied"])
	active, _ := e.store.Active(types.KindJS)
	assert.Equal(t, extra.ID, active.ID)

	w = e.do(t, http.MethodPatch, "/buffers/"+extra.ID.String(), gin.H{"name": "main.js"})
	assert.Equal(t, true, decodeBody(t, w)["applied"])
	got, _ := e.store.Get(extra.ID)
	assert.Equal(t, "main.js", got.Name)

	w = e.do(t, http.MethodDelete, "/buffers/"+extra.ID.String(), nil)
	assert.Equal(t, true, decodeBody(t, w)["applied"])
	_, found := e.store.Get(extra.ID)
	assert.False(t, found)

	w = e.do(t, http.MethodDelete, "/buffers/"+extra.ID.String(), nil)
	assert.Equal(t, false, decodeBody(t, w)["applied"])
}

func TestImportBuffers(t *testing.T) {
	e := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	files := map[string][]byte{
		"page.html": []byte("<p>imported</p>"),
		"app.js":    []byte("console.log(1)"),
		"logo.png":  {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0},
	}
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/buffers/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decodeBody(t, w)
	assert.Len(t, out["created"], 2)
	assert.Len(t, out["skipped"], 1)
	assert.Len(t, e.store.Snapshot().Buffers, 5)

	req = httptest.NewRequest(http.MethodPost, "/buffers/import", nil)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewDocumentIsSandboxed(t *testing.T) {
	e := newTestEnv(t)

	// nothing rendered yet, so the settled composite is assembled
	w := e.do(t, http.MethodGet, "/preview/document", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, PreviewCSP, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	e.agg.Start()
	w = e.do(t, http.MethodGet, "/preview/document", nil)
	assert.Contains(t, w.Body.String(), "Hello, Coder!")
	assert.Contains(t, w.Body.String(), "<!DOCTYPE html>")
}

func TestSnapshot(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/preview/snapshot", nil).Code)

	e.agg.Start()
	e.settle(t)

	w := e.do(t, http.MethodGet, "/preview/snapshot?xpath=//h1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["count"])
	nodes := body["nodes"].([]interface{})
	assert.Equal(t, "Hello, Coder!", nodes[0].(map[string]interface{})["text"])

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/preview/snapshot?xpath=//[", nil).Code)

	w = e.do(t, http.MethodGet, "/preview/snapshot", nil)
	assert.Contains(t, w.Body.String(), "<h1>Hello, Coder!</h1>")
}

func TestDispatchUpdatesSnapshot(t *testing.T) {
	e := newTestEnv(t)
	e.agg.Start()
	e.settle(t)

	w := e.do(t, http.MethodPost, "/preview/dispatch", gin.H{"selector": "#myButton"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "click", decodeBody(t, w)["event"])

	w = e.do(t, http.MethodGet, "/preview/snapshot?xpath=//h1", nil)
	nodes := decodeBody(t, w)["nodes"].([]interface{})
	assert.Equal(t, "¡Hola!", nodes[0].(map[string]interface{})["text"])

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/preview/dispatch", gin.H{"selector": "#missing"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/preview/dispatch", gin.H{}).Code)
}

func TestConsole(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.agg.Start()

	require.True(t, e.store.UpdateActive(ctx, types.KindJS, "console.log('hi'); console.warn('careful');"))
	e.agg.Flush()
	e.settle(t)

	w := e.do(t, http.MethodGet, "/preview/console", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["entries"], 2)

	w = e.do(t, http.MethodGet, "/preview/console?level=warn", nil)
	entries := decodeBody(t, w)["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "careful", entries[0].(map[string]interface{})["message"])
}

func TestViewport(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPut, "/preview/viewport", gin.H{"mode": "tablet", "full_screen": true})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "tablet", body["mode"])
	assert.Equal(t, "768px", body["width"])
	assert.Equal(t, true, body["full_screen"])

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/preview/viewport", gin.H{"mode": "tv"}).Code)

	w = e.do(t, http.MethodGet, "/preview/viewport", nil)
	assert.Equal(t, "tablet", decodeBody(t, w)["mode"])
}

func TestExportZip(t *testing.T) {
	e := newTestEnv(t)
	e.agg.Start()

	w := e.do(t, http.MethodGet, "/export.zip", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"index.html", "style.css", "script.js", "preview.html"}, names)
}

func TestHealthAndRoot(t *testing.T) {
	e := newTestEnv(t)
	e.agg.Start()

	w := e.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(3), body["buffers"])

	w = e.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `sandbox="allow-scripts"`)
	assert.NotContains(t, w.Body.String(), "allow-modals")
	assert.Contains(t, w.Body.String(), "index.html")

	// every file can be renamed and deleted, every slot can grow
	html, ok := e.store.Active(types.KindHTML)
	require.True(t, ok)
	assert.Contains(t, w.Body.String(), `data-delete="`+html.ID.String()+`"`)
	assert.Contains(t, w.Body.String(), `data-rename="`+html.ID.String()+`"`)
	assert.Contains(t, w.Body.String(), `data-create="css"`)
	assert.Contains(t, w.Body.String(), "Are you sure you want to delete")

	w = e.do(t, http.MethodGet, "/metrics/json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w), "render")
}

func TestOperationOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(http.StatusOK))
	assert.Equal(t, "success", outcome(http.StatusCreated))
	assert.Equal(t, "rejected", outcome(http.StatusBadRequest))
	assert.Equal(t, "rejected", outcome(http.StatusNotFound))
	assert.Equal(t, "error", outcome(http.StatusServiceUnavailable))
}
