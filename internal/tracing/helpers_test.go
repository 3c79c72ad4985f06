package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
	}{
		{"query with table", "locations", DBOperationQuery},
		{"insert with table", "locations", DBOperationInsert},
		{"update with table", "profiles", DBOperationUpdate},
		{"delete with table", "drafts", DBOperationDelete},
		{"exec with table", "migrations", DBOperationExec},
		{"query without table", "", DBOperationQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := installRecorder(t)

			_, endSpan := StartDBSpan(context.Background(), tt.table, tt.operation)
			endSpan(nil)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]

			wantName := string(tt.operation)
			if tt.table != "" {
				wantName += " " + tt.table
			}
			if span.Name() != wantName {
				t.Errorf("span name = %q, want %q", span.Name(), wantName)
			}

			got := make(map[attribute.Key]string)
			for _, attr := range span.Attributes() {
				got[attr.Key] = attr.Value.AsString()
			}

			if got["db.system"] != "postgresql" {
				t.Errorf("db.system = %q, want postgresql", got["db.system"])
			}
			if got["db.operation"] != string(tt.operation) {
				t.Errorf("db.operation = %q, want %q", got["db.operation"], tt.operation)
			}
			table, hasTable := got["db.sql.table"]
			if tt.table != "" && table != tt.table {
				t.Errorf("db.sql.table = %q, want %q", table, tt.table)
			}
			if tt.table == "" && hasTable {
				t.Error("unexpected db.sql.table attribute")
			}
		})
	}
}

func TestStartDBSpanWithError(t *testing.T) {
	recorder := installRecorder(t)
	dbErr := errors.New("database error")

	_, endSpan := StartDBSpan(context.Background(), "locations", DBOperationQuery)
	endSpan(dbErr)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	status := spans[0].Status()
	if status.Code.String() != "Error" {
		t.Errorf("status = %s, want Error", status.Code)
	}
	if status.Description != dbErr.Error() {
		t.Errorf("status description = %q, want %q", status.Description, dbErr.Error())
	}
}

func TestStartSpan(t *testing.T) {
	recorder := installRecorder(t)

	_, endSpan := StartSpan(context.Background(), "synthesize_poem")
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "synthesize_poem" {
		t.Errorf("span name = %q, want synthesize_poem", got)
	}
	if code := spans[0].Status().Code.String(); code != "Unset" && code != "Ok" {
		t.Errorf("status = %s, want Unset or Ok", code)
	}
}

func TestStartSpanWithError(t *testing.T) {
	recorder := installRecorder(t)

	_, endSpan := StartSpan(context.Background(), "synthesize_mural")
	endSpan(errors.New("synthesis failed"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if code := spans[0].Status().Code.String(); code != "Error" {
		t.Errorf("status = %s, want Error", code)
	}
}

func TestAddEvent(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "unlock")
	AddEvent(ctx, "balance_debited",
		attribute.String("location_id", "loc-1"),
		attribute.Int("price", 25),
	)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	events := spans[0].Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "balance_debited" {
		t.Errorf("event name = %q, want balance_debited", events[0].Name)
	}
	if len(events[0].Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(events[0].Attributes))
	}
}

func TestSetAttributes(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "topup")
	SetAttributes(ctx,
		attribute.String("user_id", "user-123"),
		attribute.String("pack", "starter"),
	)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	got := make(map[attribute.Key]string)
	for _, attr := range spans[0].Attributes() {
		got[attr.Key] = attr.Value.AsString()
	}
	if got["user_id"] != "user-123" {
		t.Errorf("user_id = %q, want user-123", got["user_id"])
	}
	if got["pack"] != "starter" {
		t.Errorf("pack = %q, want starter", got["pack"])
	}
}
