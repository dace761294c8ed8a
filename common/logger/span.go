package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sigdesk"

// Span pairs an OTel span with the context that carries it.
type Span struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan starts a child of whatever span ctx carries.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *Span {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &Span{ctx: ctx, span: span}
}

// StartSpanFromTraceID continues the trace of the API request that queued a
// task. The stream only carries the trace id, so the parent is a synthetic
// remote span context. An empty or malformed id starts a fresh trace.
func StartSpanFromTraceID(ctx context.Context, traceID, name string, opts ...trace.SpanStartOption) *Span {
	tid, err := trace.TraceIDFromHex(traceID)
	if traceID == "" || err != nil {
		return StartSpan(ctx, name, opts...)
	}

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	opts = append(opts, trace.WithLinks(trace.Link{SpanContext: parent}))
	return StartSpan(trace.ContextWithRemoteSpanContext(ctx, parent), name, opts...)
}

func (s *Span) Context() context.Context {
	return s.ctx
}

func (s *Span) End() {
	s.span.End()
}

// RecordError records err and marks the span failed. nil is ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

