package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/studiodesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

var _ http.RoundTripper = (*Transport)(nil)

// Transport logs every outgoing API request and records request metrics.
// Header values are never logged.
type Transport struct {
	base    http.RoundTripper
	metrics *telemetry.Metrics
}

func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, metrics: telemetry.GetMetrics()}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()
	ctx := req.Context()

	resp, err := t.base.RoundTrip(req)

	elapsed := time.Since(started)
	t.metrics.RequestDuration.Record(ctx, float64(elapsed.Milliseconds()))

	if err != nil {
		t.metrics.RequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))

		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("duration", elapsed).
			Msg("api call")

		return nil, err
	}

	t.metrics.RequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", resp.StatusCode)))

	zerolog.Ctx(ctx).Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Dur("duration", elapsed).
		Msg("api call")

	return resp, nil
}
