package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/internal/testdb"
	"github.com/photoproos/studio_backend/models"
)

func newRetainer(t *testing.T, tn testdb.Tenant, anchor string) *models.RecurringInvoice {
	t.Helper()
	ri, err := models.CreateRecurringInvoice(tn.Ctx, tn.Organization.ID, &models.NewRecurringInvoice{
		ClientId:   tn.Client.ID,
		Frequency:  models.RecurringFrequencyMonthly,
		AnchorDate: anchor,
		DueDays:    7,
		LineItems:  []models.NewLineItem{{Description: "Retainer", Quantity: 1, UnitCents: 20000}},
	})
	if err != nil {
		t.Fatalf("CreateRecurringInvoice: %v", err)
	}
	return ri
}

func countCycleInvoices(t *testing.T, recurringInvoiceId int) int64 {
	t.Helper()
	var n int64
	err := config.GetDB().Model(&models.Invoice{}).Where("recurring_invoice_id = ?", recurringInvoiceId).Count(&n).Error
	if err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	return n
}

func testRunner() *RecurringInvoiceRunner {
	return &RecurringInvoiceRunner{
		Logger:      config.GetLogger(),
		Concurrency: 2,
		MaxCatchUp:  12,
		LockTTL:     time.Minute,
	}
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRecurringRunner_CatchesUpAcrossOrganizations(t *testing.T) {
	testdb.Open(t)
	a := testdb.NewTenant(t, "Runner A")
	b := testdb.NewTenant(t, "Runner B")

	endOfMonth := newRetainer(t, a, "2025-01-31")
	mid := newRetainer(t, b, "2025-04-15")
	paused := newRetainer(t, b, "2025-01-01")
	if _, err := models.PauseRecurringInvoice(b.Ctx, b.Organization.ID, paused.ID); err != nil {
		t.Fatalf("PauseRecurringInvoice: %v", err)
	}

	runner := testRunner()
	summary, err := runner.Run(context.Background(), day("2025-04-30"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Due != 2 || summary.Created != 5 || summary.Failed != 0 {
		t.Fatalf("summary = due %d created %d skipped %d failed %d, want due 2 created 5 failed 0",
			summary.Due, summary.Created, summary.Skipped, summary.Failed)
	}
	if n := countCycleInvoices(t, endOfMonth.ID); n != 4 {
		t.Fatalf("end-of-month invoices = %d, want 4", n)
	}
	if n := countCycleInvoices(t, mid.ID); n != 1 {
		t.Fatalf("mid-month invoices = %d, want 1", n)
	}
	if n := countCycleInvoices(t, paused.ID); n != 0 {
		t.Fatalf("paused agreement produced %d invoices", n)
	}

	got, err := models.GetRecurringInvoice(a.Ctx, a.Organization.ID, endOfMonth.ID)
	if err != nil {
		t.Fatalf("GetRecurringInvoice: %v", err)
	}
	if !got.NextRunDate.Equal(day("2025-05-31")) {
		t.Fatalf("next run = %s, want 2025-05-31", got.NextRunDate.Format("2006-01-02"))
	}
	if got.InvoicesCreated != 4 {
		t.Fatalf("invoices created = %d, want 4", got.InvoicesCreated)
	}

	again, err := runner.Run(context.Background(), day("2025-04-30"))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Due != 0 || again.Created != 0 {
		t.Fatalf("second run created %d invoices from %d due agreements", again.Created, again.Due)
	}

	var keys []models.IdempotencyKey
	if err := config.GetDB().Where("handler_name = ?", recurringRunnerHandler).Order("id").Find(&keys).Error; err != nil {
		t.Fatalf("load idempotency keys: %v", err)
	}
	if len(keys) != 5 {
		t.Fatalf("idempotency keys = %d, want 5", len(keys))
	}
	for _, k := range keys {
		if k.Status != models.IdempotencyStatusSucceeded {
			t.Fatalf("key %s is %s", k.Key, k.Status)
		}
	}
}

func TestRecurringRunner_CatchUpIsBounded(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Bounded")
	ri := newRetainer(t, tn, "2025-01-10")

	runner := testRunner()
	runner.MaxCatchUp = 2
	summary, err := runner.Run(context.Background(), day("2025-06-30"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Created != 2 {
		t.Fatalf("created = %d, want 2", summary.Created)
	}
	got, err := models.GetRecurringInvoice(tn.Ctx, tn.Organization.ID, ri.ID)
	if err != nil {
		t.Fatalf("GetRecurringInvoice: %v", err)
	}
	if !got.NextRunDate.Equal(day("2025-03-10")) {
		t.Fatalf("next run = %s, want 2025-03-10", got.NextRunDate.Format("2006-01-02"))
	}

	// the next tick picks up where the last one stopped
	if _, err := runner.Run(context.Background(), day("2025-06-30")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := countCycleInvoices(t, ri.ID); n != 4 {
		t.Fatalf("invoices = %d, want 4", n)
	}
}

func TestRecurringRunner_SkipsCycleWithSucceededKey(t *testing.T) {
	db := testdb.Open(t)
	tn := testdb.NewTenant(t, "Replayed")
	ri := newRetainer(t, tn, "2025-01-15")

	key := fmt.Sprintf("%d:2025-01-15", ri.ID)
	if _, err := BeginIdempotency(db, tn.Organization.ID, recurringRunnerHandler, key); err != nil {
		t.Fatalf("BeginIdempotency: %v", err)
	}
	if err := MarkIdempotencySucceeded(db, tn.Organization.ID, recurringRunnerHandler, key); err != nil {
		t.Fatalf("MarkIdempotencySucceeded: %v", err)
	}

	summary, err := testRunner().Run(context.Background(), day("2025-01-15"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Due != 1 || summary.Created != 0 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("summary = due %d created %d skipped %d failed %d, want due 1 created 0 skipped 1 failed 0",
			summary.Due, summary.Created, summary.Skipped, summary.Failed)
	}
	if n := countCycleInvoices(t, ri.ID); n != 0 {
		t.Fatalf("invoices = %d, want 0", n)
	}
	got, err := models.GetRecurringInvoice(tn.Ctx, tn.Organization.ID, ri.ID)
	if err != nil {
		t.Fatalf("GetRecurringInvoice: %v", err)
	}
	if !got.NextRunDate.Equal(day("2025-01-15")) {
		t.Fatalf("next run = %s, want 2025-01-15", got.NextRunDate.Format("2006-01-02"))
	}
}

func TestRecurringRunner_RejectsOverlappingRuns(t *testing.T) {
	runner := testRunner()
	runner.running.Lock()
	defer runner.running.Unlock()

	if _, err := runner.Run(context.Background(), day("2025-01-01")); err != ErrRunnerLockNotAcquired {
		t.Fatalf("overlapping run err = %v, want ErrRunnerLockNotAcquired", err)
	}
}
