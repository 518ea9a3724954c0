package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/internal/testdb"
	"github.com/photoproos/studio_backend/models"
	"github.com/photoproos/studio_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveCreditNote_StaleVersionConflicts(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Versioned Credit")
	orgId := tn.Organization.ID
	db := config.GetDB().WithContext(tn.Ctx)

	cn := issuedCreditNote(t, tn, 5000)
	stale := *cn

	fresh := *cn
	fresh.AppliedAmountCents = 1000
	require.NoError(t, models.SaveCreditNote(db, &fresh))
	assert.Equal(t, cn.Version+1, fresh.Version)

	stale.AppliedAmountCents = 5000
	err := models.SaveCreditNote(db, &stale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConcurrencyConflict), "err = %v", err)
	assert.Equal(t, cn.Version, stale.Version, "a rejected save leaves the in-memory version alone")

	got, err := models.GetCreditNote(tn.Ctx, orgId, cn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.AppliedAmountCents)
	assert.Equal(t, fresh.Version, got.Version)
}

func TestSaveInvoiceBalance_StaleVersionConflicts(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Versioned Invoice")
	orgId := tn.Organization.ID
	db := config.GetDB().WithContext(tn.Ctx)

	inv := tn.OpenInvoice(t, 8000)
	stale := *inv

	fresh := *inv
	fresh.PaidAmountCents = 3000
	require.NoError(t, models.SaveInvoiceBalance(db, &fresh))

	stale.PaidAmountCents = 8000
	stale.Status = models.InvoiceStatusPaid
	err := models.SaveInvoiceBalance(db, &stale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConcurrencyConflict), "err = %v", err)

	got, err := models.GetInvoice(tn.Ctx, orgId, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.PaidAmountCents)
	assert.Equal(t, models.InvoiceStatusOpen, got.Status)
	assert.Equal(t, fresh.Version, got.Version)
}

func TestAdvanceRecurringSchedule_StaleNextRunConflicts(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Versioned Retainer")
	orgId := tn.Organization.ID
	db := config.GetDB().WithContext(tn.Ctx)

	created, err := models.CreateRecurringInvoice(tn.Ctx, orgId, monthlyRetainer(tn, "2025-01-15", nil))
	require.NoError(t, err)
	ri, err := models.GetRecurringInvoice(tn.Ctx, orgId, created.ID)
	require.NoError(t, err)
	stale := *ri

	cycle := utils.ToDate(ri.NextRunDate)
	feb := time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, models.AdvanceRecurringSchedule(db, ri, cycle, feb, nil))
	assertDate(t, feb, ri.NextRunDate)

	now := time.Now().UTC()
	err = models.AdvanceRecurringSchedule(db, &stale, cycle, feb, &now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConcurrencyConflict), "err = %v", err)
	assert.Equal(t, 0, stale.InvoicesCreated)

	got, err := models.GetRecurringInvoice(tn.Ctx, orgId, created.ID)
	require.NoError(t, err)
	assertDate(t, feb, got.NextRunDate)
	assert.Equal(t, 0, got.InvoicesCreated)
	assert.Nil(t, got.LastInvoiceAt)
}
