package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-tota/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	turnCounter, _ = meter.Int64Counter("dialogue.turns",
		metric.WithDescription("Closed turns by owner and outcome"))
	interruptionCounter, _ = meter.Int64Counter("dialogue.interruptions",
		metric.WithDescription("Agent turns cut short by the user"))
	faultCounter, _ = meter.Int64Counter("dialogue.faults",
		metric.WithDescription("Stream failures by stage"))
	endpointDelayHistogram, _ = meter.Float64Histogram("dialogue.endpoint_delay",
		metric.WithDescription("Seconds between the last final transcript and the endpoint"),
		metric.WithUnit("s"))
)
