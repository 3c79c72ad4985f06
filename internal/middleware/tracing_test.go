package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingTracerProvider(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder
}

func TestTracingCreatesSpan(t *testing.T) {
	recorder := recordingTracerProvider(t)

	handler := Tracing("poemap-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/locations", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "GET /locations" {
		t.Errorf("span name = %q, want %q", got, "GET /locations")
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestTracingPropagatesContext(t *testing.T) {
	recorder := recordingTracerProvider(t)

	var capturedTraceID, capturedSpanID string
	handler := Tracing("poemap-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedTraceID = GetTraceID(r)
		capturedSpanID = GetSpanID(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/submissions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if capturedTraceID == "" {
		t.Error("expected non-empty trace ID")
	}
	if capturedSpanID == "" {
		t.Error("expected non-empty span ID")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	sc := spans[0].SpanContext()
	if sc.TraceID().String() != capturedTraceID {
		t.Errorf("trace ID mismatch: span has %s, handler saw %s", sc.TraceID(), capturedTraceID)
	}
	if sc.SpanID().String() != capturedSpanID {
		t.Errorf("span ID mismatch: span has %s, handler saw %s", sc.SpanID(), capturedSpanID)
	}
}

func TestTracingSpanNames(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/locations", "GET /locations"},
		{http.MethodPost, "/submissions", "POST /submissions"},
		{http.MethodPut, "/submissions/draft-1/details", "PUT /submissions/draft-1/details"},
		{http.MethodDelete, "/archive/loc-5", "DELETE /archive/loc-5"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			recorder := recordingTracerProvider(t)

			handler := Tracing("poemap-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			if got := spans[0].Name(); got != tt.want {
				t.Errorf("span name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetTraceIDNoActiveSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/locations", nil)
	if id := GetTraceID(req); id != "" {
		t.Errorf("trace ID without a span = %q, want empty", id)
	}
}

func TestGetSpanIDNoActiveSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/locations", nil)
	if id := GetSpanID(req); id != "" {
		t.Errorf("span ID without a span = %q, want empty", id)
	}
}
