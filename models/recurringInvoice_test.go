package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/photoproos/studio_backend/internal/testdb"
	"github.com/photoproos/studio_backend/models"
	"github.com/photoproos/studio_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDate(t *testing.T, want time.Time, got time.Time, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want.Format(utils.DateLayout), got.UTC().Format(utils.DateLayout), msgAndArgs...)
}

func monthlyRetainer(tn testdb.Tenant, anchor string, day *int) *models.NewRecurringInvoice {
	return &models.NewRecurringInvoice{
		ClientId:   tn.Client.ID,
		Frequency:  models.RecurringFrequencyMonthly,
		DayOfMonth: day,
		AnchorDate: anchor,
		DueDays:    14,
		Notes:      "Monthly content retainer",
		LineItems: []models.NewLineItem{
			{ItemType: models.LineItemTypeService, Description: "Brand shoot", Quantity: 1, UnitCents: 45000},
			{ItemType: models.LineItemTypeProduct, Description: "Retouched images", Quantity: 10, UnitCents: 500},
		},
	}
}

func TestRecurringInvoice_MonthlyMaterialization(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Northlight")
	orgId := tn.Organization.ID

	ri, err := models.CreateRecurringInvoice(tn.Ctx, orgId, monthlyRetainer(tn, "2025-01-15", intPtr(15)))
	require.NoError(t, err)
	assert.Equal(t, int64(50000), ri.TotalCents)
	assert.Equal(t, models.RecurringInvoiceStateActive, ri.State)
	assertDate(t, date(2025, 1, 15), ri.NextRunDate)

	res, err := models.MaterializeRecurringInvoice(tn.Ctx, orgId, ri.ID, date(2025, 1, 15))
	require.NoError(t, err)
	require.True(t, res.Created)

	inv := res.Invoice
	assert.Equal(t, "INV-00001", inv.InvoiceNumber)
	assert.Equal(t, models.InvoiceStatusOpen, inv.Status)
	assert.Equal(t, int64(50000), inv.TotalCents)
	assertDate(t, date(2025, 1, 15), inv.IssueDate)
	assertDate(t, date(2025, 1, 29), inv.DueDate)
	require.NotNil(t, inv.RecurringInvoiceId)
	assert.Equal(t, ri.ID, *inv.RecurringInvoiceId)

	stored, err := models.GetInvoice(tn.Ctx, orgId, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Details, 2)
	assert.Equal(t, "Brand shoot", stored.Details[0].Description)
	assert.Equal(t, int64(5000), stored.Details[1].AmountCents)

	ri, err = models.GetRecurringInvoice(tn.Ctx, orgId, ri.ID)
	require.NoError(t, err)
	assertDate(t, date(2025, 2, 15), ri.NextRunDate)
	assert.Equal(t, 1, ri.InvoicesCreated)
	assert.NotNil(t, ri.LastInvoiceAt)

	events, err := models.ListAggregateEvents(tn.Ctx, orgId, models.AggregateRecurringInvoice, ri.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventRecurringInvoiceMaterialized, events[0].EventType)
}

func TestRecurringInvoice_MaterializeIsIdempotentPerCycle(t *testing.T) {
	db := testdb.Open(t)
	tn := testdb.NewTenant(t, "Idempotent")
	orgId := tn.Organization.ID

	ri, err := models.CreateRecurringInvoice(tn.Ctx, orgId, monthlyRetainer(tn, "2025-01-15", nil))
	require.NoError(t, err)

	first, err := models.MaterializeRecurringInvoice(tn.Ctx, orgId, ri.ID, date(2025, 1, 20))
	require.NoError(t, err)
	require.True(t, first.Created)

	_, err = models.MaterializeRecurringInvoice(tn.Ctx, orgId, ri.ID, date(2025, 1, 20))
	assert.True(t, errors.Is(err, models.ErrRecurringInvoiceNotDue), "got %v", err)
	assert.True(t, errors.Is(err, utils.ErrInvalidState))

	// an invoice exists for the cycle but the schedule was not advanced
	require.NoError(t, db.Model(&models.RecurringInvoice{}).Where("id = ?", ri.ID).
		Update("next_run_date", date(2025, 1, 15)).Error)

	again, err := models.MaterializeRecurringInvoice(tn.Ctx, orgId, ri.ID, date(2025, 1, 20))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Invoice.ID, again.Invoice.ID)

	ri, err = models.GetRecurringInvoice(tn.Ctx, orgId, ri.ID)
	require.NoError(t, err)
	assertDate(t, date(2025, 2, 15), ri.NextRunDate)
	assert.Equal(t, 1, ri.InvoicesCreated)

	page, err := models.PaginateInvoices(tn.Ctx, orgId, 10, nil, models.InvoiceFilter{RecurringInvoiceId: ri.ID})
	require.NoError(t, err)
	assert.Len(t, page.Edges, 1)
}

func TestRecurringInvoice_CatchUpKeepsAnchorDay(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Month End")
	orgId := tn.Organization.ID

	ri, err := models.CreateRecurringInvoice(tn.Ctx, orgId, monthlyRetainer(tn, "2025-01-31", nil))
	require.NoError(t, err)

	asOf := date(2025, 4, 30)
	var cycles []string
	for {
		res, err := models.MaterializeRecurringInvoice(tn.Ctx, orgId, ri.ID, asOf)
		if errors.Is(err, models.ErrRecurringInvoiceNotDue) {
			break
		}
		require.NoError(t, err)
		cycles = append(cycles, res.CycleDate.Format(utils.DateLayout))
		require.Less(t, len(cycles), 10)
	}
	assert.Equal(t, []string{"2025-01-31", "2025-02-28", "2025-03-31", "2025-04-30"}, cycles)

	ri, err = models.GetRecurringInvoice(tn.Ctx, orgId, ri.ID)
	require.NoError(t, err)
	assertDate(t, date(2025, 5, 31), ri.NextRunDate)
	assert.Equal(t, 4, ri.InvoicesCreated)
}

func TestRecurringInvoice_PauseResumeDelete(t *testing.T) {
	db := testdb.Open(t)
	tn := testdb.NewTenant(t, "Pausing")
	orgId := tn.Organization.ID

	ri, err := models.CreateRecurringInvoice(tn.Ctx, orgId, monthlyRetainer(tn, "2025-03-10", nil))
	require.NoError(t, err)

	paused, err := models.PauseRecurringInvoice(tn.Ctx, orgId, ri.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecurringInvoiceStatePaused, paused.State)

	_, err = models.MaterializeRecurringInvoice(tn.Ctx, orgId, ri.ID, date(2025, 6, 1))
	assert.True(t, errors.Is(err, utils.ErrInvalidState), "paused: %v", err)
	_, err = models.PauseRecurringInvoice(tn.Ctx, orgId, ri.ID)
	assert.True(t, errors.Is(err, utils.ErrInvalidState), "pause twice: %v", err)

	due, err := models.ListDueRecurringInvoices(tn.Ctx, date(2025, 6, 1), 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	resumed, err := models.ResumeRecurringInvoice(tn.Ctx, orgId, ri.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecurringInvoiceStateActive, resumed.State)
	assertDate(t, date(2025, 3, 10), resumed.NextRunDate, "resume keeps the scheduled date")

	require.NoError(t, models.DeleteRecurringInvoice(tn.Ctx, orgId, ri.ID, false))
	soft, err := models.GetRecurringInvoice(tn.Ctx, orgId, ri.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecurringInvoiceStateInactive, soft.State)

	_, err = models.MaterializeRecurringInvoice(tn.Ctx, orgId, ri.ID, date(2025, 6, 1))
	assert.True(t, errors.Is(err, utils.ErrInvalidState), "inactive: %v", err)
	_, err = models.ResumeRecurringInvoice(tn.Ctx, orgId, ri.ID)
	assert.True(t, errors.Is(err, utils.ErrInvalidState), "resume inactive: %v", err)

	require.NoError(t, models.DeleteRecurringInvoice(tn.Ctx, orgId, ri.ID, true))
	_, err = models.GetRecurringInvoice(tn.Ctx, orgId, ri.ID)
	assert.True(t, errors.Is(err, utils.ErrNotFound))

	var lines int64
	require.NoError(t, db.Model(&models.RecurringInvoiceLineItem{}).Where("recurring_invoice_id = ?", ri.ID).Count(&lines).Error)
	assert.Zero(t, lines)
}

func TestRecurringInvoice_HardDeleteKeepsInvoices(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Keep Invoices")
	orgId := tn.Organization.ID

	ri, err := models.CreateRecurringInvoice(tn.Ctx, orgId, monthlyRetainer(tn, "2025-01-05", nil))
	require.NoError(t, err)
	res, err := models.MaterializeRecurringInvoice(tn.Ctx, orgId, ri.ID, date(2025, 1, 5))
	require.NoError(t, err)

	require.NoError(t, models.DeleteRecurringInvoice(tn.Ctx, orgId, ri.ID, true))
	inv, err := models.GetInvoice(tn.Ctx, orgId, res.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), inv.TotalCents)
}

func TestRecurringInvoice_Update(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Updating")
	orgId := tn.Organization.ID

	ri, err := models.CreateRecurringInvoice(tn.Ctx, orgId, monthlyRetainer(tn, "2025-01-15", nil))
	require.NoError(t, err)

	updated, err := models.UpdateRecurringInvoice(tn.Ctx, orgId, ri.ID, &models.UpdateRecurringInvoiceInput{
		DueDays:   30,
		Notes:     "Reduced scope",
		LineItems: []models.NewLineItem{{Description: "Half day", Quantity: 1, UnitCents: 20000}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20000), updated.TotalCents)
	assert.Equal(t, 30, updated.DueDays)
	require.Len(t, updated.Details, 1)
	assert.Equal(t, models.LineItemTypeService, updated.Details[0].ItemType)
	assertDate(t, date(2025, 1, 15), updated.NextRunDate)

	require.NoError(t, models.DeleteRecurringInvoice(tn.Ctx, orgId, ri.ID, false))
	_, err = models.UpdateRecurringInvoice(tn.Ctx, orgId, ri.ID, &models.UpdateRecurringInvoiceInput{
		LineItems: []models.NewLineItem{{Description: "Half day", Quantity: 1, UnitCents: 20000}},
	})
	assert.True(t, errors.Is(err, utils.ErrInvalidState), "got %v", err)
}

func TestRecurringInvoice_CreateValidation(t *testing.T) {
	testdb.Open(t)
	tn := testdb.NewTenant(t, "Checks")
	orgId := tn.Organization.ID

	cases := []struct {
		name   string
		mutate func(*models.NewRecurringInvoice)
		want   error
	}{
		{"no line items", func(in *models.NewRecurringInvoice) { in.LineItems = nil }, utils.ErrValidation},
		{"negative quantity", func(in *models.NewRecurringInvoice) { in.LineItems[0].Quantity = -1 }, utils.ErrValidation},
		{"negative price", func(in *models.NewRecurringInvoice) { in.LineItems[0].UnitCents = -100 }, utils.ErrValidation},
		{"unknown item type", func(in *models.NewRecurringInvoice) { in.LineItems[0].ItemType = "mystery" }, utils.ErrValidation},
		{"unknown frequency", func(in *models.NewRecurringInvoice) { in.Frequency = "daily" }, utils.ErrValidation},
		{"day of month on weekly", func(in *models.NewRecurringInvoice) {
			in.Frequency = models.RecurringFrequencyWeekly
			in.DayOfMonth = intPtr(3)
		}, utils.ErrValidation},
		{"day of month out of range", func(in *models.NewRecurringInvoice) { in.DayOfMonth = intPtr(32) }, utils.ErrValidation},
		{"due days out of range", func(in *models.NewRecurringInvoice) { in.DueDays = 400 }, utils.ErrValidation},
		{"bad anchor date", func(in *models.NewRecurringInvoice) { in.AnchorDate = "15/01/2025" }, utils.ErrValidation},
		{"missing client", func(in *models.NewRecurringInvoice) { in.ClientId = 777 }, utils.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := monthlyRetainer(tn, "2025-01-15", nil)
			tc.mutate(input)
			_, err := models.CreateRecurringInvoice(tn.Ctx, orgId, input)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestListDueRecurringInvoices_AcrossOrganizations(t *testing.T) {
	testdb.Open(t)
	a := testdb.NewTenant(t, "Alpha")
	b := testdb.NewTenant(t, "Bravo")

	dueA, err := models.CreateRecurringInvoice(a.Ctx, a.Organization.ID, monthlyRetainer(a, "2025-05-01", nil))
	require.NoError(t, err)
	dueB, err := models.CreateRecurringInvoice(b.Ctx, b.Organization.ID, monthlyRetainer(b, "2025-05-02", nil))
	require.NoError(t, err)
	_, err = models.CreateRecurringInvoice(b.Ctx, b.Organization.ID, monthlyRetainer(b, "2025-06-01", nil))
	require.NoError(t, err)

	due, err := models.ListDueRecurringInvoices(a.Ctx, date(2025, 5, 2), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, dueA.ID, due[0].ID)
	assert.Equal(t, a.Organization.ID, due[0].OrganizationId)
	assert.Equal(t, dueB.ID, due[1].ID)
	assert.Equal(t, b.Organization.ID, due[1].OrganizationId)

	page, err := models.PaginateRecurringInvoices(b.Ctx, b.Organization.ID, 10, nil, models.RecurringInvoiceFilter{State: models.RecurringInvoiceStateActive})
	require.NoError(t, err)
	assert.Len(t, page.Edges, 2)

	_, err = models.GetRecurringInvoice(a.Ctx, a.Organization.ID, dueB.ID)
	assert.True(t, errors.Is(err, utils.ErrNotFound), "cross-tenant read: %v", err)
}
