package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCalibrationsTotal       = "calibrations_total"
	MetricCalibrationRulesApplied = "calibration_rules_applied_total"
	MetricModeDowngradesTotal     = "analysis_mode_downgrades_total"
	MetricStaleEnvelopesTotal     = "analysis_stale_envelopes_total"
)

// Metrics contains Prometheus metrics for calibration activity.
// All operations are thread-safe.
type Metrics struct {
	calibrationsTotal prometheus.Counter
	rulesApplied      *prometheus.CounterVec
	modeDowngrades    prometheus.Counter
	staleEnvelopes    prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all
// collectors initialized. The metrics are not registered; call Register
// to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		calibrationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCalibrationsTotal,
			Help: "Total number of analysis calibrations performed",
		}),
		rulesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCalibrationRulesApplied,
				Help: "Total number of calibration rule firings by rule",
			},
			[]string{"rule"},
		),
		modeDowngrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricModeDowngradesTotal,
			Help: "Total number of moderate-mode requests downgraded to low-cost",
		}),
		staleEnvelopes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStaleEnvelopesTotal,
			Help: "Total number of stored analysis envelopes rejected as stale or corrupt",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.calibrationsTotal,
		m.rulesApplied,
		m.modeDowngrades,
		m.staleEnvelopes,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncModeDowngrade increments the mode downgrade counter. Safe on a nil
// receiver so callers without metrics skip recording.
func (m *Metrics) IncModeDowngrade() {
	if m == nil {
		return
	}
	m.modeDowngrades.Inc()
}

// IncStaleEnvelope increments the stale envelope counter. Safe on a nil
// receiver.
func (m *Metrics) IncStaleEnvelope() {
	if m == nil {
		return
	}
	m.staleEnvelopes.Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.calibrationsTotal,
		m.rulesApplied,
		m.modeDowngrades,
		m.staleEnvelopes,
	}
}

// Engine wraps Calibrate with metrics reporting. A nil Engine or an
// Engine without metrics behaves exactly like the bare function.
type Engine struct {
	metrics *Metrics
}

// NewEngine creates a calibration engine. metrics may be nil.
func NewEngine(metrics *Metrics) *Engine {
	return &Engine{metrics: metrics}
}

// Calibrate runs the calibration rules and records which fired.
func (e *Engine) Calibrate(raw RawAnalysis, text string, length int, mode Mode) CalibratedAnalysis {
	out, applied := calibrate(raw, text, length, mode)
	if e != nil && e.metrics != nil {
		e.metrics.calibrationsTotal.Inc()
		for _, rule := range applied {
			e.metrics.rulesApplied.WithLabelValues(rule).Inc()
		}
	}
	return out
}
