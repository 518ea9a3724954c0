package models

import (
	"context"
	"sort"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"github.com/shopspring/decimal"
)

type RevenueTotals struct {
	InvoicedCents           int64 `json:"invoiced_cents"`
	CollectedCents          int64 `json:"collected_cents"`
	OutstandingCents        int64 `json:"outstanding_cents"`
	CreditIssuedCents       int64 `json:"credit_issued_cents"`
	CreditAppliedCents      int64 `json:"credit_applied_cents"`
	CreditRefundedCents     int64 `json:"credit_refunded_cents"`
	ActiveRecurringInvoices int64 `json:"active_recurring_invoices"`
	MrrCents                int64 `json:"mrr_cents"`
}

type OrganizationRevenue struct {
	OrganizationId string `json:"organization_id"`
	Name           string `json:"name"`
	RevenueTotals
}

type RevenueDashboard struct {
	AsOf          time.Time             `json:"as_of"`
	Totals        RevenueTotals         `json:"totals"`
	Organizations []OrganizationRevenue `json:"organizations"`
}

// monthlyRatio converts one cycle's amount into its monthly equivalent as cycles-per-year over 12.
func monthlyRatio(frequency RecurringFrequency) (int64, int64) {
	switch frequency {
	case RecurringFrequencyWeekly:
		return 52, 12
	case RecurringFrequencyBiweekly:
		return 26, 12
	case RecurringFrequencyQuarterly:
		return 4, 12
	case RecurringFrequencyYearly:
		return 1, 12
	default:
		return 12, 12
	}
}

// monthlyAmount multiplies before dividing so exact halves round up.
func monthlyAmount(frequency RecurringFrequency, totalCents int64) decimal.Decimal {
	num, den := monthlyRatio(frequency)
	return decimal.NewFromInt(totalCents).Mul(decimal.NewFromInt(num)).Div(decimal.NewFromInt(den))
}

// MonthlyRecurringCents normalizes a cycle amount to a month, rounded half-up to cents.
func MonthlyRecurringCents(frequency RecurringFrequency, totalCents int64) int64 {
	return monthlyAmount(frequency, totalCents).Round(0).IntPart()
}

// GetRevenueDashboard aggregates billing figures across every organization for super admins.
func GetRevenueDashboard(ctx context.Context, asOf time.Time) (*RevenueDashboard, error) {
	db := config.GetDB().WithContext(utils.WithoutTenantScope(ctx))
	asOfDate := utils.ToDate(asOf)

	byOrg := make(map[string]*OrganizationRevenue)
	entry := func(orgId string) *OrganizationRevenue {
		if e, ok := byOrg[orgId]; ok {
			return e
		}
		e := &OrganizationRevenue{OrganizationId: orgId}
		byOrg[orgId] = e
		return e
	}

	var organizations []Organization
	if err := db.Select("id, name").Find(&organizations).Error; err != nil {
		return nil, err
	}
	for _, org := range organizations {
		entry(org.ID).Name = org.Name
	}

	type invoiceRow struct {
		OrganizationId string
		Invoiced       int64
		Collected      int64
		Outstanding    int64
	}
	var invoiceRows []invoiceRow
	err := db.Model(&Invoice{}).
		Select(`organization_id,
			COALESCE(SUM(total_cents), 0) AS invoiced,
			COALESCE(SUM(paid_amount_cents), 0) AS collected,
			COALESCE(SUM(CASE WHEN status IN ('open', 'partial') THEN total_cents - paid_amount_cents - credit_applied_cents ELSE 0 END), 0) AS outstanding`).
		Where("status NOT IN ? AND issue_date <= ?", []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusVoid}, asOfDate).
		Group("organization_id").
		Scan(&invoiceRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range invoiceRows {
		e := entry(row.OrganizationId)
		e.InvoicedCents = row.Invoiced
		e.CollectedCents = row.Collected
		e.OutstandingCents = row.Outstanding
	}

	type creditRow struct {
		OrganizationId string
		Issued         int64
		Applied        int64
		Refunded       int64
	}
	var creditRows []creditRow
	err = db.Model(&CreditNote{}).
		Select(`organization_id,
			COALESCE(SUM(amount_cents), 0) AS issued,
			COALESCE(SUM(applied_amount_cents), 0) AS applied,
			COALESCE(SUM(refunded_amount_cents), 0) AS refunded`).
		Where("status IN ?", []CreditNoteStatus{CreditNoteStatusIssued, CreditNoteStatusApplied, CreditNoteStatusRefunded}).
		Group("organization_id").
		Scan(&creditRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range creditRows {
		e := entry(row.OrganizationId)
		e.CreditIssuedCents = row.Issued
		e.CreditAppliedCents = row.Applied
		e.CreditRefundedCents = row.Refunded
	}

	type recurringRow struct {
		OrganizationId string
		Frequency      RecurringFrequency
		TotalCents     int64
	}
	var recurringRows []recurringRow
	err = db.Model(&RecurringInvoice{}).
		Select("organization_id, frequency, total_cents").
		Where("is_active = ? AND is_paused = ?", true, false).
		Scan(&recurringRows).Error
	if err != nil {
		return nil, err
	}
	mrr := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, row := range recurringRows {
		monthly := monthlyAmount(row.Frequency, row.TotalCents)
		mrr[row.OrganizationId] = mrr[row.OrganizationId].Add(monthly)
		total = total.Add(monthly)
		entry(row.OrganizationId).ActiveRecurringInvoices++
	}

	dashboard := RevenueDashboard{AsOf: asOfDate, Organizations: make([]OrganizationRevenue, 0, len(byOrg))}
	for orgId, e := range byOrg {
		e.MrrCents = mrr[orgId].Round(0).IntPart()

		t := &dashboard.Totals
		t.InvoicedCents += e.InvoicedCents
		t.CollectedCents += e.CollectedCents
		t.OutstandingCents += e.OutstandingCents
		t.CreditIssuedCents += e.CreditIssuedCents
		t.CreditAppliedCents += e.CreditAppliedCents
		t.CreditRefundedCents += e.CreditRefundedCents
		t.ActiveRecurringInvoices += e.ActiveRecurringInvoices
		dashboard.Organizations = append(dashboard.Organizations, *e)
	}
	dashboard.Totals.MrrCents = total.Round(0).IntPart()

	sort.Slice(dashboard.Organizations, func(i, j int) bool {
		a, b := dashboard.Organizations[i], dashboard.Organizations[j]
		if a.MrrCents != b.MrrCents {
			return a.MrrCents > b.MrrCents
		}
		return a.OrganizationId < b.OrganizationId
	})
	return &dashboard, nil
}
