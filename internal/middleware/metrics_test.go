package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if m.rateLimitRequests == nil {
		t.Error("rateLimitRequests is nil")
	}
	if m.rateLimitBlocked == nil {
		t.Error("rateLimitBlocked is nil")
	}
}

func TestMetricsRegister(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.IncRateLimitRequests("/narrate", "user")
	m.IncRateLimitBlocked("/narrate", "ip")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	if findMetricFamily(metrics, MetricRateLimitRequests) == nil {
		t.Errorf("metric %s not found in registry", MetricRateLimitRequests)
	}
	if findMetricFamily(metrics, MetricRateLimitBlocked) == nil {
		t.Errorf("metric %s not found in registry", MetricRateLimitBlocked)
	}
}

func TestMetricsIncRateLimitRequests(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.IncRateLimitRequests("/narrate", "user")
	m.IncRateLimitRequests("/narrate", "user")
	m.IncRateLimitRequests("/wallet/topup", "ip")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	requestsMetric := findMetricFamily(metrics, MetricRateLimitRequests)
	if requestsMetric == nil {
		t.Fatal("rate_limit_requests_total metric not found")
	}
	// /narrate+user and /wallet/topup+ip are two distinct label sets.
	if len(requestsMetric.GetMetric()) != 2 {
		t.Errorf("expected 2 metric entries, got %d", len(requestsMetric.GetMetric()))
	}
}

func TestMetricsIncRateLimitBlocked(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.IncRateLimitBlocked("/narrate", "user")
	m.IncRateLimitBlocked("/auth/login", "user")
	m.IncRateLimitBlocked("/auth/login", "user")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	blockedMetric := findMetricFamily(metrics, MetricRateLimitBlocked)
	if blockedMetric == nil {
		t.Fatal("rate_limit_blocked_total metric not found")
	}
	if len(blockedMetric.GetMetric()) != 2 {
		t.Errorf("expected 2 metric entries, got %d", len(blockedMetric.GetMetric()))
	}
}

func TestMetricsCollectors(t *testing.T) {
	m := NewMetrics()
	if got := len(m.Collectors()); got != 10 {
		t.Errorf("expected 10 collectors, got %d", got)
	}
}

func TestMetricsObserveCanaryRequest(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.ObserveCanaryRequest("canary", "v2", 0.05, false)
	m.ObserveCanaryRequest("canary", "v2", 0.30, true)
	m.ObserveCanaryRequest("stable", "stable", 0.02, false)
	m.SetCanaryActive(true)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	requests := findMetricFamily(families, MetricCanaryRequests)
	if requests == nil {
		t.Fatal("canary_requests_total not gathered")
	}
	if got := len(requests.GetMetric()); got != 3 {
		t.Errorf("canary_requests_total series = %d, want 3", got)
	}

	active := findMetricFamily(families, MetricCanaryActive)
	if active == nil {
		t.Fatal("canary_active not gathered")
	}
	if got := active.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("canary_active = %v, want 1", got)
	}

	m.SetCanaryActive(false)
	families, err = reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	active = findMetricFamily(families, MetricCanaryActive)
	if got := active.GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("canary_active after rollback = %v, want 0", got)
	}
}

// Exercise duplicate registration to make sure Register surfaces the error
// instead of panicking.
func TestMetricsRegisterTwice(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("second Register() on the same registry should fail")
	}
}
