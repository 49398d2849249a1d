package server

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "kanban/internal/server"
	requestSpanName = "kanban.http.request"
	metricsMessage  = "http.request.metrics"
)

// requestMetrics records one request as a span and a structured log line.
type requestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time
	method string
	route  string
	tasks  int
	stage  string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
	return &requestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		method: method,
		route:  route,
		tasks:  -1,
	}, ctx
}

// SetTasks records how many tasks the response carried.
func (m *requestMetrics) SetTasks(n int) {
	if n < 0 {
		n = 0
	}
	m.tasks = n
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.stage = stage
}

// Log ends the span and writes the log line.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))

	m.span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Float64("kanban.http.total_ms", total),
	)
	if m.tasks >= 0 {
		m.span.SetAttributes(attribute.Int("kanban.tasks.count", m.tasks))
	}
	if m.stage != "" {
		m.span.SetAttributes(attribute.String("kanban.http.error_stage", m.stage))
	}
	if err != nil || status >= http.StatusInternalServerError {
		desc := http.StatusText(status)
		if err != nil {
			m.span.RecordError(err)
			desc = err.Error()
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"method":   m.method,
		"route":    m.route,
		"status":   status,
		"total_ms": total,
	}
	if m.tasks >= 0 {
		fields["tasks"] = m.tasks
	}
	if m.stage != "" {
		fields["error_stage"] = m.stage
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	entry := m.logger.WithFields(fields)
	switch {
	case status >= http.StatusInternalServerError:
		entry.Error(metricsMessage)
	case status >= http.StatusBadRequest:
		entry.Warn(metricsMessage)
	default:
		entry.Info(metricsMessage)
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
