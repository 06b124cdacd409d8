package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics counts automation outcomes across the scoring engine, scans and notification delivery.
type EngineMetrics struct {
	decisions  *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	scans      *prometheus.CounterVec
}

// NewEngineMetrics registers the engine counters on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "timesheet_decisions_total",
		Help:      "Timesheet validation decisions by outcome.",
	}, []string{"decision"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_deliveries_total",
		Help:      "Notification delivery attempts by channel and resulting status.",
	}, []string{"channel", "status"})
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scan_actions_total",
		Help:      "Actions taken by scheduled scans.",
	}, []string{"scan", "action"})
	reg.MustRegister(decisions, deliveries, scans)
	return &EngineMetrics{
		decisions:  decisions,
		deliveries: deliveries,
		scans:      scans,
	}
}

// IncDecision records one timesheet decision.
func (m *EngineMetrics) IncDecision(decision string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(decision)).Inc()
}

// IncDelivery records one delivery attempt outcome.
func (m *EngineMetrics) IncDelivery(channel, status string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(channel), normalizeLabel(status)).Inc()
}

// AddScanActions records count actions of the given kind for a scan.
func (m *EngineMetrics) AddScanActions(scan, action string, count int) {
	if m == nil || m.scans == nil || count <= 0 {
		return
	}
	m.scans.WithLabelValues(normalizeLabel(scan), normalizeLabel(action)).Add(float64(count))
}
