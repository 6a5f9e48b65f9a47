// Package main is the entry point for the PageSentry extraction server.
//
// The server exposes a REST API over the extraction pipeline: typed value
// extraction from volatile page markup, multi-step runs with retry
// orchestration, a per-domain selector cache, and failure artifact capture.
//
// The server provides:
//   - POST /extract for one-off extractions
//   - POST /run and GET /runs for multi-step runs and their history
//   - GET and DELETE /selectors for the learned selector cache
//   - Prometheus metrics on /metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Static fetching only
//	./server -port 8090
//
//	# With headless browser sessions
//	./server -browser
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
