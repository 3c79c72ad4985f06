package middleware

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Cohort names used in headers and metric labels.
const (
	CohortStable = "stable"
	CohortCanary = "canary"
)

// canaryMinSample is how many canary requests must be observed before
// rollback thresholds are evaluated.
const canaryMinSample = 100

// CanaryConfig controls the canary traffic split and rollback thresholds.
type CanaryConfig struct {
	Enabled          bool
	TrafficPercent   float64 // share of traffic sent to the canary, 0-100
	ErrorThreshold   float64 // 5xx rate in percent that triggers rollback
	LatencyThreshold float64 // average latency in seconds that triggers rollback
	AutoRollback     bool
	MonitoringWindow int // seconds; informational, reported in snapshots
	Version          string
}

// cohortStats accumulates request outcomes for one cohort.
type cohortStats struct {
	requests     int64
	errors       int64
	latencySum   float64
	latencyCount int64
}

func (s *cohortStats) record(duration float64, isError bool) {
	s.requests++
	s.latencySum += duration
	s.latencyCount++
	if isError {
		s.errors++
	}
}

func (s *cohortStats) errorRate() float64 {
	if s.requests == 0 {
		return 0
	}
	return float64(s.errors) / float64(s.requests) * 100
}

func (s *cohortStats) avgLatency() float64 {
	if s.latencyCount == 0 {
		return 0
	}
	return s.latencySum / float64(s.latencyCount)
}

// CanaryRouter splits traffic between the stable build and a canary build
// by deterministic hash, compares the two cohorts, and can pull the canary
// out of rotation when it misbehaves.
type CanaryRouter struct {
	config      CanaryConfig
	promMetrics *Metrics
	logger      *slog.Logger

	mu          sync.RWMutex
	active      bool
	canary      cohortStats
	stable      cohortStats
	windowStart time.Time
}

// NewCanaryRouter creates a canary router. The router starts active when
// the config enables it.
func NewCanaryRouter(config CanaryConfig, logger *slog.Logger) *CanaryRouter {
	return &CanaryRouter{
		config:      config,
		logger:      logger,
		active:      config.Enabled,
		windowStart: time.Now(),
	}
}

// SetPrometheusMetrics attaches the shared metrics collectors so cohort
// outcomes also land in Prometheus.
func (cr *CanaryRouter) SetPrometheusMetrics(metrics *Metrics) {
	cr.promMetrics = metrics
	if metrics != nil {
		cr.mu.RLock()
		metrics.SetCanaryActive(cr.active && cr.config.Enabled)
		cr.mu.RUnlock()
	}
}

// Middleware tags each request with a deployment cohort and tracks its
// outcome. Cohort assignment is sticky per user (or per IP for anonymous
// traffic), so one client sees one build consistently.
func (cr *CanaryRouter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cr.mu.RLock()
		enabled := cr.active && cr.config.Enabled
		cr.mu.RUnlock()

		cohort := CohortStable
		if enabled {
			cohort = cr.assignCohort(r)
		}
		version := CohortStable
		if cohort == CohortCanary {
			version = cr.config.Version
		}

		r.Header.Set("X-Deployment-Cohort", cohort)
		r.Header.Set("X-Deployment-Version", version)
		w.Header().Set("X-Deployment-Cohort", cohort)
		w.Header().Set("X-Deployment-Version", version)

		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &canaryResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		isError := wrapped.statusCode >= 500
		cr.recordRequest(cohort, version, duration, isError)

		if cr.config.AutoRollback && cohort == CohortCanary {
			cr.checkRollback()
		}
	})
}

// assignCohort hashes the client identity into a stable 0-100 position and
// compares it against the configured traffic share.
func (cr *CanaryRouter) assignCohort(r *http.Request) string {
	identity := GetUserID(r.Context())
	if identity == "" {
		identity = IPKeyFunc()(r)
	}

	sum := sha256.Sum256([]byte(identity))
	position := float64(binary.BigEndian.Uint64(sum[:8])%10000) / 100.0

	if position < cr.config.TrafficPercent {
		return CohortCanary
	}
	return CohortStable
}

func (cr *CanaryRouter) recordRequest(cohort, version string, duration float64, isError bool) {
	cr.mu.Lock()
	if cohort == CohortCanary {
		cr.canary.record(duration, isError)
	} else {
		cr.stable.record(duration, isError)
	}
	cr.mu.Unlock()

	if cr.promMetrics != nil {
		cr.promMetrics.ObserveCanaryRequest(cohort, version, duration, isError)
	}
}

// checkRollback pulls the canary when its error rate or latency breaches a
// threshold, or when it errors at more than twice the stable rate.
func (cr *CanaryRouter) checkRollback() {
	cr.mu.RLock()
	canaryRequests := cr.canary.requests
	canaryErrorRate := cr.canary.errorRate()
	canaryLatency := cr.canary.avgLatency()
	stableErrorRate := cr.stable.errorRate()
	stableLatency := cr.stable.avgLatency()
	cr.mu.RUnlock()

	if canaryRequests < canaryMinSample {
		return
	}

	switch {
	case canaryErrorRate > cr.config.ErrorThreshold:
		cr.logger.Error("canary error rate over threshold",
			"canary_error_rate", fmt.Sprintf("%.2f%%", canaryErrorRate),
			"stable_error_rate", fmt.Sprintf("%.2f%%", stableErrorRate),
			"threshold", fmt.Sprintf("%.2f%%", cr.config.ErrorThreshold),
		)
		cr.Rollback("error_rate_exceeded")
	case canaryLatency > cr.config.LatencyThreshold:
		cr.logger.Error("canary latency over threshold",
			"canary_avg_latency", fmt.Sprintf("%.3fs", canaryLatency),
			"stable_avg_latency", fmt.Sprintf("%.3fs", stableLatency),
			"threshold", fmt.Sprintf("%.3fs", cr.config.LatencyThreshold),
		)
		cr.Rollback("latency_exceeded")
	case stableErrorRate > 0 && canaryErrorRate > stableErrorRate*2:
		cr.logger.Error("canary erroring at twice the stable rate",
			"canary_error_rate", fmt.Sprintf("%.2f%%", canaryErrorRate),
			"stable_error_rate", fmt.Sprintf("%.2f%%", stableErrorRate),
		)
		cr.Rollback("relative_error_rate_high")
	}
}

// Rollback takes the canary out of rotation; all traffic goes stable.
func (cr *CanaryRouter) Rollback(reason string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if !cr.active {
		return
	}
	cr.active = false

	cr.logger.Warn("canary rolled back",
		"reason", reason,
		"canary_version", cr.config.Version,
	)
	if cr.promMetrics != nil {
		cr.promMetrics.SetCanaryActive(false)
	}
}

// CanarySnapshot is a point-in-time view of both cohorts.
type CanarySnapshot struct {
	CanaryRequests   int64         `json:"canary_requests"`
	CanaryErrors     int64         `json:"canary_errors"`
	CanaryErrorRate  float64       `json:"canary_error_rate"`
	CanaryAvgLatency float64       `json:"canary_avg_latency"`
	StableRequests   int64         `json:"stable_requests"`
	StableErrors     int64         `json:"stable_errors"`
	StableErrorRate  float64       `json:"stable_error_rate"`
	StableAvgLatency float64       `json:"stable_avg_latency"`
	WindowStart      time.Time     `json:"window_start"`
	WindowDuration   time.Duration `json:"window_duration"`
	CanaryActive     bool          `json:"canary_active"`
	CanaryVersion    string        `json:"canary_version"`
}

// GetMetrics snapshots the current window.
func (cr *CanaryRouter) GetMetrics() CanarySnapshot {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	return CanarySnapshot{
		CanaryRequests:   cr.canary.requests,
		CanaryErrors:     cr.canary.errors,
		CanaryErrorRate:  cr.canary.errorRate(),
		CanaryAvgLatency: cr.canary.avgLatency(),
		StableRequests:   cr.stable.requests,
		StableErrors:     cr.stable.errors,
		StableErrorRate:  cr.stable.errorRate(),
		StableAvgLatency: cr.stable.avgLatency(),
		WindowStart:      cr.windowStart,
		WindowDuration:   time.Since(cr.windowStart),
		CanaryActive:     cr.active,
		CanaryVersion:    cr.config.Version,
	}
}

// ResetMetrics starts a fresh comparison window.
func (cr *CanaryRouter) ResetMetrics() {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	cr.canary = cohortStats{}
	cr.stable = cohortStats{}
	cr.windowStart = time.Now()
}

type canaryResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *canaryResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
