package jobs

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}

	collectors := m.Collectors()
	if len(collectors) != 3 {
		t.Errorf("expected 3 collectors, got %d", len(collectors))
	}
}

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()

		if err := m.Register(reg); err != nil {
			t.Errorf("Register() returned error: %v", err)
		}

		m.IncJobsTotal(JobTypeBatchAnalysis, StatusSuccess)
		m.ObserveJobDuration(JobTypeBatchAnalysis, 1.0)
		m.IncJobErrors(JobTypeBatchAnalysis, "test_error")

		families, err := reg.Gather()
		if err != nil {
			t.Errorf("Gather() returned error: %v", err)
		}

		expectedNames := map[string]bool{
			MetricBackgroundJobsTotal:      false,
			MetricBackgroundJobsDuration:   false,
			MetricBackgroundJobErrorsTotal: false,
		}

		for _, family := range families {
			if _, ok := expectedNames[family.GetName()]; ok {
				expectedNames[family.GetName()] = true
			}
		}

		for name, found := range expectedNames {
			if !found {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		m1 := NewMetrics()
		m2 := NewMetrics()
		reg := prometheus.NewRegistry()

		if err := m1.Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}

		if err := m2.Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func getCounterVecValue(vec *prometheus.CounterVec, labels ...string) float64 {
	metric, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return -1
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func getHistogramVecSampleCount(vec *prometheus.HistogramVec, labels ...string) uint64 {
	metric, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	observer, ok := metric.(prometheus.Metric)
	if !ok {
		return 0
	}
	var m dto.Metric
	if err := observer.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_IncJobsTotal(t *testing.T) {
	m := NewMetrics()

	m.IncJobsTotal(JobTypeBatchAnalysis, StatusSuccess)
	m.IncJobsTotal(JobTypeBatchAnalysis, StatusSuccess)
	m.IncJobsTotal(JobTypeBatchAnalysis, StatusFailure)
	m.IncJobsTotal(JobTypeStatsRefresh, StatusSuccess)

	if got := getCounterVecValue(m.jobsTotal, JobTypeBatchAnalysis, StatusSuccess); got != 2 {
		t.Errorf("batch success count = %v, want 2", got)
	}
	if got := getCounterVecValue(m.jobsTotal, JobTypeBatchAnalysis, StatusFailure); got != 1 {
		t.Errorf("batch failure count = %v, want 1", got)
	}
	if got := getCounterVecValue(m.jobsTotal, JobTypeStatsRefresh, StatusSuccess); got != 1 {
		t.Errorf("stats refresh count = %v, want 1", got)
	}
}

func TestMetrics_ObserveJobDuration(t *testing.T) {
	m := NewMetrics()

	m.ObserveJobDuration(JobTypeBatchAnalysis, 0.5)
	m.ObserveJobDuration(JobTypeBatchAnalysis, 2.5)

	if got := getHistogramVecSampleCount(m.jobsDuration, JobTypeBatchAnalysis); got != 2 {
		t.Errorf("duration sample count = %v, want 2", got)
	}
}

func TestMetrics_IncJobErrors(t *testing.T) {
	m := NewMetrics()

	m.IncJobErrors(JobTypeBatchAnalysis, "database_error")
	m.IncJobErrors(JobTypeBatchAnalysis, "database_error")
	m.IncJobErrors(JobTypeBatchAnalysis, "timeout")

	if got := getCounterVecValue(m.jobErrors, JobTypeBatchAnalysis, "database_error"); got != 2 {
		t.Errorf("database_error count = %v, want 2", got)
	}
	if got := getCounterVecValue(m.jobErrors, JobTypeBatchAnalysis, "timeout"); got != 1 {
		t.Errorf("timeout count = %v, want 1", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	// None of these may panic when metrics are not configured.
	m.IncJobsTotal(JobTypeBatchAnalysis, StatusSuccess)
	m.ObserveJobDuration(JobTypeBatchAnalysis, 1.0)
	m.IncJobErrors(JobTypeBatchAnalysis, "test")
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.IncJobsTotal(JobTypeBatchAnalysis, StatusSuccess)
				m.ObserveJobDuration(JobTypeBatchAnalysis, 0.1)
			}
		}()
	}
	wg.Wait()

	if got := getCounterVecValue(m.jobsTotal, JobTypeBatchAnalysis, StatusSuccess); got != 1000 {
		t.Errorf("concurrent count = %v, want 1000", got)
	}
}
