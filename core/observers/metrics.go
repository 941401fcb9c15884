package observers

import (
	"net/http"
	"sync"
	"time"

	"github.com/koscakluka/ema-tota/core/events"
	"github.com/koscakluka/ema-tota/core/turns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "tota"

// Metrics records turn-taking metrics in its own Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal         *prometheus.CounterVec
	interruptionsTotal prometheus.Counter
	faultsTotal        *prometheus.CounterVec
	endpointDelay      prometheus.Histogram
	responseLatency    prometheus.Histogram
	conversationItems  *prometheus.CounterVec

	mu         sync.Mutex
	endpointAt time.Time
}

type MetricsOption func(*metricsOptions)

type metricsOptions struct {
	namespace   string
	constLabels prometheus.Labels
}

// WithNamespace prefixes every metric name. Defaults to "tota".
func WithNamespace(namespace string) MetricsOption {
	return func(o *metricsOptions) { o.namespace = namespace }
}

// WithConstLabels attaches labels to every metric.
func WithConstLabels(labels map[string]string) MetricsOption {
	return func(o *metricsOptions) { o.constLabels = labels }
}

func NewMetrics(opts ...MetricsOption) *Metrics {
	options := metricsOptions{namespace: defaultNamespace}
	for _, opt := range opts {
		opt(&options)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   options.namespace,
			Name:        "turns_total",
			Help:        "Closed turns by owner and outcome",
			ConstLabels: options.constLabels,
		}, []string{"owner", "outcome"}),
		interruptionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   options.namespace,
			Name:        "interruptions_total",
			Help:        "Agent turns cut short by the user",
			ConstLabels: options.constLabels,
		}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   options.namespace,
			Name:        "stage_faults_total",
			Help:        "Failed streaming stages",
			ConstLabels: options.constLabels,
		}, []string{"stage"}),
		endpointDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   options.namespace,
			Name:        "endpoint_silence_seconds",
			Help:        "Silence waited after the last final transcript before the agent took the floor",
			ConstLabels: options.constLabels,
			Buckets:     []float64{0.05, 0.07, 0.1, 0.2, 0.5, 1, 2, 5},
		}),
		responseLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   options.namespace,
			Name:        "response_latency_seconds",
			Help:        "Time from the end of the user's turn to the first synthesized audio",
			ConstLabels: options.constLabels,
			Buckets:     []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5, 10},
		}),
		conversationItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   options.namespace,
			Name:        "conversation_items_total",
			Help:        "Committed conversation items by role",
			ConstLabels: options.constLabels,
		}, []string{"role"}),
	}

	m.registry.MustRegister(
		m.turnsTotal,
		m.interruptionsTotal,
		m.faultsTotal,
		m.endpointDelay,
		m.responseLatency,
		m.conversationItems,
	)
	return m
}

// Registry exposes the registry the metrics are recorded in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) OnEvent(event events.Event) error {
	switch e := event.(type) {
	case events.TurnEnded:
		m.turnsTotal.WithLabelValues(string(e.Turn.Owner), string(e.Turn.Outcome)).Inc()
	case events.TurnStateChanged:
		if e.To == turns.StateInterrupted {
			m.interruptionsTotal.Inc()
		}
	case events.StageFault:
		m.faultsTotal.WithLabelValues(string(e.Stage)).Inc()
	case events.EndpointReached:
		m.endpointDelay.Observe(e.Silence.Seconds())
		m.mu.Lock()
		m.endpointAt = e.Timestamp()
		m.mu.Unlock()
	case events.AssistantSpeechFrame:
		m.mu.Lock()
		endpointAt := m.endpointAt
		m.endpointAt = time.Time{}
		m.mu.Unlock()
		if !endpointAt.IsZero() {
			m.responseLatency.Observe(e.Timestamp().Sub(endpointAt).Seconds())
		}
	case events.ConversationItemAdded:
		m.conversationItems.WithLabelValues(string(e.Item.Role)).Inc()
	case events.SessionEnded:
		m.mu.Lock()
		m.endpointAt = time.Time{}
		m.mu.Unlock()
	}
	return nil
}
