package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/yanun0323/polyarb/internal/schema"
)

// PromExporter mirrors a Metrics snapshot onto Prometheus collectors so
// the engine can be scraped alongside the rest of the deployment's
// infrastructure. It is not the source of truth for internal
// decision-making; Metrics and its atomic counters remain that.
type PromExporter struct {
	metrics *Metrics

	eventTotal      *prometheus.GaugeVec
	riskReasonTotal *prometheus.GaugeVec
	queueDrops      prometheus.Gauge
	queueClosed     prometheus.Gauge
	eventLatencyMs  prometheus.Gauge
	orderLatencyMs  prometheus.Gauge
	riskLatencyMs   prometheus.Gauge
	safetyMode      prometheus.Gauge
}

// NewPromExporter registers a family of collectors against reg (pass
// prometheus.NewRegistry() for isolation in tests, or
// prometheus.DefaultRegisterer in production).
func NewPromExporter(metrics *Metrics, reg prometheus.Registerer) *PromExporter {
	factory := promauto.With(reg)
	return &PromExporter{
		metrics: metrics,
		eventTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "polyarb",
			Name:      "events_total",
			Help:      "Cumulative count of core events observed, by event type.",
		}, []string{"event_type"}),
		riskReasonTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "polyarb",
			Name:      "risk_denials_total",
			Help:      "Cumulative count of order intents denied by the risk engine, by reason.",
		}, []string{"reason"}),
		queueDrops: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "polyarb",
			Name:      "queue_drops_total",
			Help:      "Cumulative count of droppable-lane events discarded under backpressure.",
		}),
		queueClosed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "polyarb",
			Name:      "queue_closed_publishes_total",
			Help:      "Cumulative count of publish attempts against a closed event queue.",
		}),
		eventLatencyMs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "polyarb",
			Name:      "event_latency_ms_avg",
			Help:      "Average recv-minus-event latency across all events.",
		}),
		orderLatencyMs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "polyarb",
			Name:      "order_flow_latency_ms_avg",
			Help:      "Average decision-to-ack latency.",
		}),
		riskLatencyMs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "polyarb",
			Name:      "risk_eval_latency_ms_avg",
			Help:      "Average risk engine evaluation latency.",
		}),
		safetyMode: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "polyarb",
			Name:      "safety_mode",
			Help:      "Current safety mode as an enum ordinal (0=unknown,1=running,2=paused,3=flattening,4=safe).",
		}),
	}
}

// Collect reads the underlying Metrics snapshot and pushes the values
// onto the registered collectors. Call on a periodic tick from the
// engine's telemetry loop.
func (p *PromExporter) Collect(mode schema.SafetyMode) {
	snap := p.metrics.Snapshot()
	for t, count := range snap.EventCounts {
		p.eventTotal.WithLabelValues(t.String()).Set(float64(count))
	}
	for r, count := range snap.RiskReasonCounts {
		p.riskReasonTotal.WithLabelValues(r.String()).Set(float64(count))
	}
	p.queueDrops.Set(float64(snap.QueueDrops))
	p.queueClosed.Set(float64(snap.QueueClosed))
	p.eventLatencyMs.Set(float64(snap.EventLatency.Avg.Milliseconds()))
	p.orderLatencyMs.Set(float64(snap.OrderFlowLatency.Avg.Milliseconds()))
	p.riskLatencyMs.Set(float64(snap.RiskEvalLatency.Avg.Milliseconds()))
	p.safetyMode.Set(float64(mode))
}
