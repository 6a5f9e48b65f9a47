package tracing

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware opens the request-level span. Incoming X-Trace-ID and
// X-Span-ID headers join the request to a caller's trace; the ids are
// echoed back so the caller can correlate.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if tid := c.GetHeader("X-Trace-ID"); tid != "" {
			ctx = context.WithValue(ctx, traceIDKey, TraceID(tid))
		}
		if sid := c.GetHeader("X-Span-ID"); sid != "" {
			ctx = context.WithValue(ctx, spanIDKey, SpanID(sid))
		}

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.url", c.Request.URL.String())

		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", string(span.TraceID))
		c.Header("X-Span-ID", string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		tracer.End(span)
	}
}
