/*
Package monitoring provides Prometheus metrics for the LivePen server.

Each Metrics value owns a private registry, so tests and embedded servers
can create as many collectors as they like.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordStoreOp("update", true)
	metrics.RecordRender("built", elapsed)

	timer := monitoring.NewTimer(metrics, "workspace", "persist")
	// ... perform operation ...
	timer.Stop("success")

A nil *Metrics is valid and records nothing.
*/
package monitoring
