/*
Package monitoring provides Prometheus metrics for the extraction service.

# Overview

Tracks HTTP traffic, extraction outcomes (method and confidence), retry
mutations, run statuses, selector cache effectiveness, and failure artifact
captures.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Wire into the extraction engine as an observer
	engine := extract.NewEngine(extract.WithObserver(metrics))

	// Time runs
	timer := monitoring.NewTimer(metrics)
	// ... run the steps ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
