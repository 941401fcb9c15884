package groq

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-tota/core/llms/groq"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	firstTokenLatency, _ = meter.Float64Histogram("llm.first_token_latency",
		metric.WithDescription("Seconds from request to the first streamed chunk"),
		metric.WithUnit("s"))
)

func metricAttributes(model string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("provider", "groq"),
		attribute.String("model", model),
	)
}
