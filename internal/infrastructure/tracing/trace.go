package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagesentry/pagesentry/internal/shared/id"
)

// Stage names for the pipeline phases handlers time with nested spans.
const (
	StageAcquire = "page.acquire"
	StageExtract = "pipeline.extract"
	StageRun     = "pipeline.run"
)

// TraceID ties every span of one request together.
type TraceID string

// SpanID identifies a single span within a trace.
type SpanID string

// Span times one operation: the request itself, or one pipeline stage
// nested under it.
type Span struct {
	TraceID   TraceID
	SpanID    SpanID
	ParentID  SpanID
	Name      string
	Service   string
	StartTime time.Time
	Duration  time.Duration
	Tags      map[string]string
	Status    int
	Err       error
}

// SetTag annotates the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetStatus records the HTTP status the operation resolved to.
func (s *Span) SetStatus(code int) {
	s.Status = code
}

// SetError marks the span failed.
func (s *Span) SetError(err error) {
	s.Err = err
}

// Tracer correlates the work done for one extraction request and exports
// finished spans through zap, one log line per span. Export is buffered so
// a slow logger never stalls the request path; a full buffer drops spans.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
}

// New creates a tracer and starts its exporter.
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
	}
	go t.export()
	return t
}

// StartSpan opens a span under whatever trace the context already carries,
// starting a fresh trace when it carries none. The returned context makes
// the new span the parent of any span started from it.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}
	parentID, _ := ctx.Value(spanIDKey).(SpanID)

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.NewRequestID()),
		ParentID:  parentID,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// End closes the span and hands it to the exporter.
func (t *Tracer) End(span *Span) {
	if span.Duration == 0 {
		span.Duration = time.Since(span.StartTime)
	}
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span", span.Name))
	}
}

func (t *Tracer) export() {
	for span := range t.spans {
		fields := []zap.Field{
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
			zap.String("span", span.Name),
			zap.Duration("duration", span.Duration),
		}
		if span.ParentID != "" {
			fields = append(fields, zap.String("parent_id", string(span.ParentID)))
		}
		for k, v := range span.Tags {
			fields = append(fields, zap.String(k, v))
		}
		if span.Err != nil {
			fields = append(fields, zap.Error(span.Err))
			t.logger.Warn("span failed", fields...)
			continue
		}
		t.logger.Debug("span completed", fields...)
	}
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID returns the trace id the context carries, if any.
func GetTraceID(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}
