package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig lists who may call the API from another origin.
type CORSConfig struct {
	// AllowOrigins empty or containing "*" allows every origin
	AllowOrigins  []string
	ExposeHeaders []string
	MaxAge        time.Duration
}

var corsMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// W3C trace context travels with editor requests
var corsHeaders = []string{
	"Content-Type",
	"Accept",
	"Origin",
	"Cache-Control",
	"X-Requested-With",
	"traceparent",
	"tracestate",
}

// DefaultCORSConfig allows any origin; the playground holds no credentials.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		ExposeHeaders: []string{"X-Trace-ID", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  corsMethods,
		AllowHeaders:  corsHeaders,
		ExposeHeaders: cfg.ExposeHeaders,
		MaxAge:        cfg.MaxAge,
	}
	if len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(c)
}
