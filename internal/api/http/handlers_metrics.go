package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

// HandlerMetrics times API operations by outcome
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil collector records nothing.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track starts timing op. The returned func reads the response status:
// 4xx records "rejected", 5xx "error", anything else "success".
func (hm *HandlerMetrics) Track(c *gin.Context, component, op string) func() {
	timer := monitoring.NewTimer(hm.metrics, component, op)
	return func() {
		timer.Stop(outcome(c.Writer.Status()))
	}
}

func outcome(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "error"
	case status >= http.StatusBadRequest:
		return "rejected"
	default:
		return "success"
	}
}

// MetricsJSON returns the current metric values with render statistics
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"backend": h.metrics.metrics.Snapshot(),
		"render":  h.renderer.Stats(),
	})
}
