package workflow

import (
	"errors"
	"testing"

	"github.com/photoproos/studio_backend/internal/testdb"
	"github.com/photoproos/studio_backend/models"
)

func TestIdempotency_Lifecycle(t *testing.T) {
	db := testdb.Open(t)
	const org, handler, key = "org-1", "recurring_runner", "7:2025-01-15"

	skip, err := BeginIdempotency(db, org, handler, key)
	if err != nil || skip {
		t.Fatalf("first begin = (%v, %v), want (false, nil)", skip, err)
	}
	if _, err := BeginIdempotency(db, org, handler, key); !errors.Is(err, ErrIdempotencyInProgress) {
		t.Fatalf("concurrent begin err = %v, want ErrIdempotencyInProgress", err)
	}

	if err := MarkIdempotencyFailed(db, org, handler, key, errors.New("boom")); err != nil {
		t.Fatalf("MarkIdempotencyFailed: %v", err)
	}
	skip, err = BeginIdempotency(db, org, handler, key)
	if err != nil || skip {
		t.Fatalf("begin after failure = (%v, %v), want (false, nil)", skip, err)
	}

	if err := MarkIdempotencySucceeded(db, org, handler, key); err != nil {
		t.Fatalf("MarkIdempotencySucceeded: %v", err)
	}
	skip, err = BeginIdempotency(db, org, handler, key)
	if err != nil || !skip {
		t.Fatalf("begin after success = (%v, %v), want (true, nil)", skip, err)
	}

	var row models.IdempotencyKey
	if err := db.Where("idem_key = ?", key).First(&row).Error; err != nil {
		t.Fatalf("load key: %v", err)
	}
	if row.Status != models.IdempotencyStatusSucceeded || row.LastError != nil {
		t.Fatalf("row = %s / %v, want SUCCEEDED without error", row.Status, row.LastError)
	}

	// same key under another organization is independent
	skip, err = BeginIdempotency(db, "org-2", handler, key)
	if err != nil || skip {
		t.Fatalf("other organization begin = (%v, %v), want (false, nil)", skip, err)
	}
}
