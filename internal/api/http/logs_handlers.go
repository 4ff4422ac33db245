package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/providers/browser/sandbox"
)

// consoleSource is implemented by handles that capture console output
type consoleSource interface {
	Console() []sandbox.LogEntry
	Faults() []sandbox.Fault
}

// PreviewConsole returns console output and uncaught faults of the live
// context. Only the latest fault is shown in the overlay; all are listed
// here.
func (h *Handlers) PreviewConsole(c *gin.Context) {
	handle, ok := h.renderer.Handle()
	if !ok {
		h.previewError(c, preview.ErrBoundaryClosed)
		return
	}
	src, ok := handle.(consoleSource)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "preview engine does not capture console output"})
		return
	}

	entries := src.Console()
	faults := src.Faults()
	if level := c.Query("level"); level != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"handle_id": handle.ID(),
		"entries":   entries,
		"faults":    faults,
	})
}
