/*
Package tracing correlates the work done for one extraction request.

The HTTP middleware opens a request-level span named after the route; the
extract and run handlers nest pipeline stage spans under it (page
acquisition, extraction, run execution). Finished spans are exported
through zap, one log line per span, so a single trace id pulls every
stage of a request out of the logs.

# Usage

	tracer := tracing.New("pagesentry", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(c.Request.Context(), tracing.StageExtract)
	res, attempts := engine.ExtractWithRetry(ctx, compiled, ev, policy)
	span.SetTag("extract.method", string(res.Method))
	tracer.End(span)

# Propagation

Incoming X-Trace-ID and X-Span-ID headers join a request to the caller's
trace; the middleware echoes both back on the response.
*/
package tracing
