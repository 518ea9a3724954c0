package models_test

import (
	"testing"

	"github.com/photoproos/studio_backend/internal/testdb"
	"github.com/photoproos/studio_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyRecurringCents(t *testing.T) {
	cases := []struct {
		frequency models.RecurringFrequency
		total     int64
		want      int64
	}{
		{models.RecurringFrequencyWeekly, 1200, 5200},
		{models.RecurringFrequencyWeekly, 1000, 4333},
		{models.RecurringFrequencyBiweekly, 1000, 2167},
		{models.RecurringFrequencyMonthly, 4999, 4999},
		{models.RecurringFrequencyQuarterly, 1000, 333},
		{models.RecurringFrequencyQuarterly, 500, 167},
		{models.RecurringFrequencyYearly, 120000, 10000},
		{models.RecurringFrequencyYearly, 6, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, models.MonthlyRecurringCents(tc.frequency, tc.total), "%s %d", tc.frequency, tc.total)
	}
}

func TestGetRevenueDashboard(t *testing.T) {
	testdb.Open(t)
	a := testdb.NewTenant(t, "Dash A")
	b := testdb.NewTenant(t, "Dash B")

	inv := a.OpenInvoice(t, 10000)
	_, err := models.RecordInvoicePayment(a.Ctx, a.Organization.ID, inv.ID, 2500)
	require.NoError(t, err)
	cn := issuedCreditNote(t, a, 3000)
	_, err = models.ApplyCreditNoteToInvoice(a.Ctx, a.Organization.ID, cn.ID, inv.ID, nil)
	require.NoError(t, err)

	weekly := monthlyRetainer(b, "2025-01-06", nil)
	weekly.Frequency = models.RecurringFrequencyWeekly
	weekly.LineItems = []models.NewLineItem{{Description: "Weekly social set", Quantity: 1, UnitCents: 1200}}
	_, err = models.CreateRecurringInvoice(b.Ctx, b.Organization.ID, weekly)
	require.NoError(t, err)

	monthly, err := models.CreateRecurringInvoice(b.Ctx, b.Organization.ID, monthlyRetainer(b, "2025-01-15", nil))
	require.NoError(t, err)
	paused, err := models.CreateRecurringInvoice(b.Ctx, b.Organization.ID, monthlyRetainer(b, "2025-01-20", nil))
	require.NoError(t, err)
	_, err = models.PauseRecurringInvoice(b.Ctx, b.Organization.ID, paused.ID)
	require.NoError(t, err)

	dashboard, err := models.GetRevenueDashboard(a.Ctx, date(2030, 1, 1))
	require.NoError(t, err)

	totals := dashboard.Totals
	assert.Equal(t, int64(10000), totals.InvoicedCents)
	assert.Equal(t, int64(2500), totals.CollectedCents)
	assert.Equal(t, int64(4500), totals.OutstandingCents)
	assert.Equal(t, int64(3000), totals.CreditIssuedCents)
	assert.Equal(t, int64(3000), totals.CreditAppliedCents)
	assert.Equal(t, int64(2), totals.ActiveRecurringInvoices)
	assert.Equal(t, int64(5200)+monthly.TotalCents, totals.MrrCents)

	require.Len(t, dashboard.Organizations, 2)
	assert.Equal(t, b.Organization.ID, dashboard.Organizations[0].OrganizationId, "ordered by MRR")
	assert.Equal(t, "Dash B", dashboard.Organizations[0].Name)
	assert.Equal(t, int64(10000), dashboard.Organizations[1].InvoicedCents)
}
