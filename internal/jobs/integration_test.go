package jobs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestJobMetricsEndToEnd drives the collectors the way the server's
// background loops do and checks the gathered series.
func TestJobMetricsEndToEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	jobTypes := []string{
		JobTypeViewFlush,
		JobTypeCatalogHydrate,
		JobTypePaymentProcess,
	}

	// One successful and one failed run per job type, timed the same way
	// the flush loop times itself.
	for _, jobType := range jobTypes {
		start := time.Now()
		m.IncJobsTotal(jobType, StatusSuccess)
		m.ObserveJobDuration(jobType, time.Since(start).Seconds())

		start = time.Now()
		m.IncJobsTotal(jobType, StatusFailure)
		m.ObserveJobDuration(jobType, time.Since(start).Seconds())
		m.IncJobErrors(jobType, "flush_error")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	for _, family := range families {
		metrics := family.GetMetric()
		switch family.GetName() {
		case MetricBackgroundJobsTotal:
			// success and failure per job type
			if want := len(jobTypes) * 2; len(metrics) != want {
				t.Errorf("%s: %d label combinations, want %d", family.GetName(), len(metrics), want)
			}
		case MetricBackgroundJobsDuration:
			if len(metrics) != len(jobTypes) {
				t.Errorf("%s: %d histograms, want %d", family.GetName(), len(metrics), len(jobTypes))
			}
		case MetricBackgroundJobErrorsTotal:
			if len(metrics) != len(jobTypes) {
				t.Errorf("%s: %d label combinations, want %d", family.GetName(), len(metrics), len(jobTypes))
			}
		}
	}
}

// TestJobMetricsFlushCycle records a single view-flush run with a known
// duration and verifies every collector saw it.
func TestJobMetricsFlushCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	const duration = 0.123
	m.IncJobsTotal(JobTypeViewFlush, StatusSuccess)
	m.ObserveJobDuration(JobTypeViewFlush, duration)

	if got := counterValue(t, m.jobsTotal, JobTypeViewFlush, StatusSuccess); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}

	count, sum := histogramSamples(t, m.jobsDuration, JobTypeViewFlush)
	if count != 1 {
		t.Errorf("duration sample count = %d, want 1", count)
	}
	if sum != duration {
		t.Errorf("duration sample sum = %v, want %v", sum, duration)
	}
}
