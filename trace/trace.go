// Package trace provides tracing instrumentation tailored for page object
// runs.
package trace

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/grafana/pagekit/log"
)

const tracerName = "pagekit"

// liveSpan is the navigation span currently open for a page. Steps on the
// page become its children until the page navigates again.
type liveSpan struct {
	ctx  context.Context
	span trace.Span
}

// Tracer generates spans for navigations and steps, keyed by page ID.
type Tracer struct {
	logger *log.Logger

	trace.Tracer

	metadata []attribute.KeyValue

	liveSpansMu sync.RWMutex
	liveSpans   map[string]*liveSpan
}

// NewTracer creates a new Tracer from the given TracerProvider.
func NewTracer(
	logger *log.Logger, tp trace.TracerProvider, metadata map[string]string, options ...trace.TracerOption,
) *Tracer {
	return &Tracer{
		logger:    logger,
		Tracer:    tp.Tracer(tracerName, options...),
		metadata:  buildMetadataAttributes(metadata),
		liveSpans: make(map[string]*liveSpan),
	}
}

// Start overrides the underlying OTEL tracer method to include the tracer metadata.
func (t *Tracer) Start(
	ctx context.Context, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(t.metadata...))
	return t.Tracer.Start(ctx, spanName, opts...)
}

// GetTraceID returns the trace ID of spanCtx, or an empty string.
func GetTraceID(spanCtx trace.SpanContext) string {
	if spanCtx.HasTraceID() {
		traceID := spanCtx.TraceID()
		return traceID.String()
	}
	return ""
}

// TraceStep starts a span for a step on the page with pageID. It becomes a
// child of the page's live navigation span if there is one, otherwise of
// whatever span ctx carries. The caller ends the span.
func (t *Tracer) TraceStep(
	ctx context.Context, pageID string, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	t.liveSpansMu.RLock()
	ls := t.liveSpans[pageID]
	t.liveSpansMu.RUnlock()

	if ls != nil {
		// parent under the navigation, keep the caller's deadline
		ctx = trace.ContextWithSpan(ctx, trace.SpanFromContext(ls.ctx))
	}
	sCtx, span := t.Start(ctx, spanName, opts...)
	t.logger.Tracef("Tracer:TraceStep", "span:%q traceID:%q pageID:%q", spanName, GetTraceID(span.SpanContext()), pageID)

	return sCtx, &SpanLogger{Span: span, logger: t.logger, spanName: spanName}
}

// TraceNavigation records a new live span for pageID, ending the previous
// one. The span stays open until the next navigation or EndPage.
func (t *Tracer) TraceNavigation(
	ctx context.Context, pageID string, url string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	t.liveSpansMu.Lock()
	defer t.liveSpansMu.Unlock()

	ls := t.liveSpans[pageID]
	if ls != nil {
		ls.span.End()
	} else {
		ls = &liveSpan{}
	}

	opts = append(opts, trace.WithAttributes(attribute.String("navigation.url", url)))
	ls.ctx, ls.span = t.Start(ctx, "navigation", opts...)
	t.liveSpans[pageID] = ls

	t.logger.Tracef("Tracer:TraceNavigation", "traceID:%q pageID:%q url:%q",
		GetTraceID(ls.span.SpanContext()), pageID, url)

	return ls.ctx, ls.span
}

// AddEvent adds an event to the live span of pageID. It reports whether
// there was a live span to add it to.
func (t *Tracer) AddEvent(pageID string, eventName string, options ...trace.EventOption) bool {
	t.liveSpansMu.RLock()
	defer t.liveSpansMu.RUnlock()

	ls := t.liveSpans[pageID]
	if ls == nil {
		t.logger.Debugf("Tracer:AddEvent", "no live span for pageID:%q, skipping event %q", pageID, eventName)
		return false
	}
	ls.span.AddEvent(eventName, options...)
	return true
}

// EndPage ends the live span of pageID, usually because the page closed.
func (t *Tracer) EndPage(pageID string) {
	t.liveSpansMu.Lock()
	defer t.liveSpansMu.Unlock()

	if ls := t.liveSpans[pageID]; ls != nil {
		ls.span.End()
		delete(t.liveSpans, pageID)
	}
}

// EndAll ends every live span.
func (t *Tracer) EndAll() {
	t.liveSpansMu.Lock()
	defer t.liveSpansMu.Unlock()

	for id, ls := range t.liveSpans {
		ls.span.End()
		delete(t.liveSpans, id)
	}
}

func buildMetadataAttributes(metadata map[string]string) []attribute.KeyValue {
	meta := make([]attribute.KeyValue, 0, len(metadata))
	for mk, mv := range metadata {
		meta = append(meta, attribute.String(mk, mv))
	}

	return meta
}

// SpanLogger is a Span that will log the method calls.
type SpanLogger struct {
	trace.Span
	logger   *log.Logger
	spanName string
}

// SetStatus will log some info before calling the underlying SetStatus.
func (i *SpanLogger) SetStatus(code codes.Code, description string) {
	traceID := GetTraceID(i.SpanContext())
	i.logger.Tracef("Span:SetStatus", "span:%q traceID:%q code:%q description:%q", i.spanName, traceID, code, description)

	i.Span.SetStatus(code, description)
}

// End will log some info before calling the underlying End.
func (i *SpanLogger) End(options ...trace.SpanEndOption) {
	traceID := GetTraceID(i.SpanContext())
	i.logger.Tracef("Span:End", "span:%q traceID:%q", i.spanName, traceID)

	i.Span.End(options...)
}

// RecordError will log some info before calling the underlying RecordError.
func (i *SpanLogger) RecordError(err error, options ...trace.EventOption) {
	traceID := GetTraceID(i.SpanContext())
	i.logger.Tracef("Span:RecordError", "span:%q traceID:%q err:%q", i.spanName, traceID, err)

	i.Span.RecordError(err, options...)
}
