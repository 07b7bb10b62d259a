package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "livescribe"

// Metrics holds the session controller counters.
type Metrics struct {
	sessionsStarted   metric.Int64Counter
	recognitionErrors metric.Int64Counter
	copies            metric.Int64Counter
	clipboardFallback metric.Int64Counter
	downloads         metric.Int64Counter
}

// NewMetrics registers counters on meter. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	sessionsStarted, err := meter.Int64Counter("livescribe.sessions.started",
		metric.WithDescription("Recognition sessions confirmed by the service"),
	)
	if err != nil {
		return nil, err
	}
	recognitionErrors, err := meter.Int64Counter("livescribe.recognition.errors",
		metric.WithDescription("Recognition errors by code"),
	)
	if err != nil {
		return nil, err
	}
	copies, err := meter.Int64Counter("livescribe.transcript.copies",
		metric.WithDescription("Clipboard copies by outcome"),
	)
	if err != nil {
		return nil, err
	}
	clipboardFallback, err := meter.Int64Counter("livescribe.clipboard.fallbacks",
		metric.WithDescription("Copies that needed the fallback clipboard"),
	)
	if err != nil {
		return nil, err
	}
	downloads, err := meter.Int64Counter("livescribe.transcript.downloads",
		metric.WithDescription("Transcript downloads by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sessionsStarted:   sessionsStarted,
		recognitionErrors: recognitionErrors,
		copies:            copies,
		clipboardFallback: clipboardFallback,
		downloads:         downloads,
	}, nil
}

// Nil-receiver safe so callers can run without metrics.

func (m *Metrics) SessionStarted(ctx context.Context, language string) {
	if m == nil {
		return
	}
	m.sessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("language", language)))
}

func (m *Metrics) RecognitionError(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.recognitionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

func (m *Metrics) Copy(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.copies.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(ok))))
}

func (m *Metrics) ClipboardFallback(ctx context.Context) {
	if m == nil {
		return
	}
	m.clipboardFallback.Add(ctx, 1)
}

func (m *Metrics) Download(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.downloads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(ok))))
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
