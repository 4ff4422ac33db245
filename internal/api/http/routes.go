package http

import "github.com/gin-gonic/gin"

// Register mounts every workspace and preview route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/buffers", h.ListBuffers)
	r.POST("/buffers", h.CreateBuffer)
	r.POST("/buffers/import", h.ImportBuffers)
	r.GET("/buffers/:id", h.GetBuffer)
	r.PUT("/buffers/:id/content", h.UpdateContent)
	r.POST("/buffers/:id/select", h.SelectBuffer)
	r.PATCH("/buffers/:id", h.RenameBuffer)
	r.DELETE("/buffers/:id", h.DeleteBuffer)
	r.PUT("/active/:kind/content", h.UpdateActive)

	r.GET("/preview/document", h.PreviewDocument)
	r.GET("/preview/snapshot", h.PreviewSnapshot)
	r.GET("/preview/console", h.PreviewConsole)
	r.POST("/preview/dispatch", h.Dispatch)
	r.GET("/preview/viewport", h.GetViewport)
	r.PUT("/preview/viewport", h.SetViewport)
	r.GET("/preview/stats", h.PreviewStats)

	r.GET("/export.zip", h.Export)
	r.GET("/metrics/json", h.MetricsJSON)
}
