package payment

import (
	"errors"
	"testing"
)

// TestInsertAssignsIDAndTimestamps tests record creation defaults.
func TestInsertAssignsIDAndTimestamps(t *testing.T) {
	repo := NewInMemoryTopUpRepository()

	record := &TopUpRecord{
		SessionID: "cs_test_1",
		Status:    StatusPending,
		PackID:    "starter",
		Coins:     100,
		Amount:    300,
		UserID:    "user-1",
	}
	if err := repo.Insert(record); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if record.ID == "" {
		t.Error("Insert should assign an ID")
	}
	if record.CreatedAt == nil || record.UpdatedAt == nil {
		t.Error("Insert should set timestamps")
	}
}

// TestGetBySessionID tests lookup by Checkout Session.
func TestGetBySessionID(t *testing.T) {
	repo := NewInMemoryTopUpRepository()
	if err := repo.Insert(&TopUpRecord{SessionID: "cs_test_1", Status: StatusPending, UserID: "user-1"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.GetBySessionID("cs_test_1")
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("user = %q, want user-1", got.UserID)
	}

	if _, err := repo.GetBySessionID("cs_missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

// TestUpdate tests status changes round-trip.
func TestUpdate(t *testing.T) {
	repo := NewInMemoryTopUpRepository()
	record := &TopUpRecord{SessionID: "cs_test_1", Status: StatusPending}
	if err := repo.Insert(record); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	record.Status = StatusSucceeded
	if err := repo.Update(record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.GetByID(record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != StatusSucceeded {
		t.Errorf("status = %q, want %q", got.Status, StatusSucceeded)
	}

	if err := repo.Update(&TopUpRecord{ID: "ghost"}); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

// TestDeepCopy tests that stored records are isolated from caller mutation.
func TestDeepCopy(t *testing.T) {
	repo := NewInMemoryTopUpRepository()
	record := &TopUpRecord{SessionID: "cs_test_1", Status: StatusPending}
	if err := repo.Insert(record); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	record.Status = StatusFailed
	got, err := repo.GetByID(record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("external mutation leaked into store: %q", got.Status)
	}
}
