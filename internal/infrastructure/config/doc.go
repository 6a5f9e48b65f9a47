// Package config provides 12-factor configuration management for the
// extraction service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Fetch: static page fetcher (timeout, retries, user agent, rate)
//   - Browser: headless browser sessions
//   - Store: selector cache and run history database
//   - Artifacts: failure capture directory and timeout
//   - Run: run-level extraction defaults
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - FETCH_TIMEOUT, FETCH_MAX_RETRIES, FETCH_USER_AGENT, FETCH_RPS
//   - BROWSER_ENABLED, BROWSER_USER_AGENT, BROWSER_PAGE_LOAD_WAIT
//   - STORE_PATH, ARTIFACTS_DIR, ARTIFACTS_TIMEOUT
//   - RUN_DEGRADED_IS_SUCCESS, RUN_MAX_ATTEMPTS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
