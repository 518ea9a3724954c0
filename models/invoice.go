package models

import (
	"context"
	"strings"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
)

type Invoice struct {
	ID                 int               `gorm:"primary_key" json:"id"`
	OrganizationId     string            `gorm:"size:36;not null;index:idx_invoice_org_status,priority:1;index:uniq_invoice_number,unique,priority:1" json:"organization_id"`
	ClientId           int               `gorm:"not null;index" json:"client_id"`
	InvoiceNumber      string            `gorm:"size:32;not null;index:uniq_invoice_number,unique,priority:2" json:"invoice_number"`
	Status             InvoiceStatus     `gorm:"size:16;not null;index:idx_invoice_org_status,priority:2" json:"status"`
	Currency           string            `gorm:"size:3;not null" json:"currency"`
	IssueDate          time.Time         `gorm:"not null" json:"issue_date"`
	DueDate            time.Time         `gorm:"not null" json:"due_date"`
	TotalCents         int64             `gorm:"not null" json:"total_cents"`
	PaidAmountCents    int64             `gorm:"not null;default:0" json:"paid_amount_cents"`
	CreditAppliedCents int64             `gorm:"not null;default:0" json:"credit_applied_cents"`
	Notes              string            `gorm:"type:text" json:"notes"`
	RecurringInvoiceId *int              `gorm:"index:uniq_invoice_cycle,unique,priority:1" json:"recurring_invoice_id"`
	CycleDate          *time.Time        `gorm:"index:uniq_invoice_cycle,unique,priority:2" json:"cycle_date"`
	IssuedAt           *time.Time        `json:"issued_at"`
	PaidAt             *time.Time        `json:"paid_at"`
	VoidedAt           *time.Time        `json:"voided_at"`
	Version            int               `gorm:"not null;default:0" json:"version"`
	Details            []InvoiceLineItem `gorm:"foreignKey:InvoiceId" json:"details"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceLineItem struct {
	ID          int          `gorm:"primary_key" json:"id"`
	InvoiceId   int          `gorm:"not null;index" json:"invoice_id"`
	ItemType    LineItemType `gorm:"size:16;not null" json:"item_type"`
	Description string       `gorm:"size:500;not null" json:"description"`
	Quantity    int          `gorm:"not null" json:"quantity"`
	UnitCents   int64        `gorm:"not null" json:"unit_cents"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	SortOrder   int          `gorm:"not null;default:0" json:"sort_order"`
}

type NewInvoice struct {
	ClientId  int           `json:"client_id" validate:"required,gt=0"`
	IssueDate string        `json:"issue_date"`
	DueDate   string        `json:"due_date"`
	Notes     string        `json:"notes" validate:"max=5000"`
	LineItems []NewLineItem `json:"line_items"`
}

type InvoiceAction string

const (
	InvoiceActionIssue         InvoiceAction = "issue"
	InvoiceActionRecordPayment InvoiceAction = "record_payment"
	InvoiceActionApplyCredit   InvoiceAction = "apply_credit"
	InvoiceActionVoid          InvoiceAction = "void"
)

// Payments and credits land in partial; settle() moves the invoice to paid once nothing is outstanding.
var invoiceTransitions = newTransitionTable("invoice", []Transition[InvoiceStatus, InvoiceAction]{
	{Action: InvoiceActionIssue, From: []InvoiceStatus{InvoiceStatusDraft}, To: InvoiceStatusOpen},
	{Action: InvoiceActionRecordPayment, From: []InvoiceStatus{InvoiceStatusOpen, InvoiceStatusPartial}, To: InvoiceStatusPartial},
	{Action: InvoiceActionApplyCredit, From: []InvoiceStatus{InvoiceStatusOpen, InvoiceStatusPartial}, To: InvoiceStatusPartial},
	{Action: InvoiceActionVoid, From: []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusOpen}, To: InvoiceStatusVoid},
})

func (inv Invoice) GetId() int {
	return inv.ID
}

// OutstandingCents is what the client still owes after payments and applied credit.
func (inv *Invoice) OutstandingCents() int64 {
	outstanding := inv.TotalCents - inv.PaidAmountCents - inv.CreditAppliedCents
	if outstanding < 0 {
		return 0
	}
	return outstanding
}

func (inv *Invoice) settle(now time.Time) {
	if inv.OutstandingCents() == 0 {
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
	}
}

// saveInvoiceBalance writes amounts and status only if nobody changed the row since it was read.
func saveInvoiceBalance(tx *gorm.DB, inv *Invoice) error {
	res := tx.Model(&Invoice{}).
		Where("id = ? AND version = ?", inv.ID, inv.Version).
		Updates(map[string]interface{}{
			"paid_amount_cents":    inv.PaidAmountCents,
			"credit_applied_cents": inv.CreditAppliedCents,
			"status":               inv.Status,
			"paid_at":              inv.PaidAt,
			"version":              inv.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewConcurrencyConflictError("invoice")
	}
	inv.Version++
	return nil
}

// createInvoiceTx stores header and line items; the invoice number is drawn from the same transaction.
func createInvoiceTx(tx *gorm.DB, inv *Invoice, items []NewLineItem) error {
	number, err := nextDocumentNumber(tx, inv.OrganizationId, InvoiceNumberPrefix)
	if err != nil {
		return err
	}
	inv.InvoiceNumber = number

	details := make([]InvoiceLineItem, 0, len(items))
	var total int64
	for i, item := range items {
		amount, err := lineAmount(item.Quantity, item.UnitCents)
		if err != nil {
			return err
		}
		total += amount
		details = append(details, InvoiceLineItem{
			ItemType:    item.ItemType,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitCents:   item.UnitCents,
			AmountCents: amount,
			SortOrder:   i,
		})
	}
	inv.TotalCents = total
	inv.Details = details
	return tx.Create(inv).Error
}

func (input *NewInvoice) validate(ctx context.Context, organizationId string) (time.Time, time.Time, error) {
	if err := utils.ValidateInput(input); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if err := validateLineItems(input.LineItems); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if err := utils.ValidateResourceId[Client](ctx, organizationId, input.ClientId); err != nil {
		return time.Time{}, time.Time{}, err
	}

	issueDate := utils.ToDate(time.Now())
	if input.IssueDate != "" {
		d, err := utils.ParseDate(input.IssueDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		issueDate = d
	}
	dueDate := issueDate
	if input.DueDate != "" {
		d, err := utils.ParseDate(input.DueDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		dueDate = d
	}
	if dueDate.Before(issueDate) {
		return time.Time{}, time.Time{}, utils.NewValidationError("due date cannot be before issue date")
	}
	return issueDate, dueDate, nil
}

func CreateInvoice(ctx context.Context, organizationId string, input *NewInvoice) (*Invoice, error) {
	org, err := requireActiveOrganization(ctx, organizationId)
	if err != nil {
		return nil, err
	}
	issueDate, dueDate, err := input.validate(ctx, organizationId)
	if err != nil {
		return nil, err
	}

	inv := Invoice{
		OrganizationId: organizationId,
		ClientId:       input.ClientId,
		Status:         InvoiceStatusDraft,
		Currency:       org.Currency,
		IssueDate:      issueDate,
		DueDate:        dueDate,
		Notes:          input.Notes,
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createInvoiceTx(tx, &inv, input.LineItems)
	})
	if err != nil {
		config.LogError(config.GetLogger(), "Invoice", "CreateInvoice", "create", input, err)
		return nil, err
	}
	return &inv, nil
}

func IssueInvoice(ctx context.Context, organizationId string, id int) (*Invoice, error) {
	var result *Invoice
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := utils.FetchModelTx[Invoice](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		next, err := invoiceTransitions.Next(inv.Status, InvoiceActionIssue)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(inv).Updates(map[string]interface{}{
			"status":    next,
			"issued_at": &now,
			"version":   inv.Version + 1,
		}).Error; err != nil {
			return err
		}
		inv.Status = next
		inv.IssuedAt = &now
		inv.Version++
		result = inv
		return publishEvent(ctx, tx, organizationId, EventInvoiceIssued, AggregateInvoice, inv.ID, inv)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func RecordInvoicePayment(ctx context.Context, organizationId string, id int, amountCents int64) (*Invoice, error) {
	if amountCents <= 0 {
		return nil, utils.NewValidationError("payment amount must be positive")
	}
	var result *Invoice
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := utils.FetchModelTx[Invoice](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		next, err := invoiceTransitions.Next(inv.Status, InvoiceActionRecordPayment)
		if err != nil {
			return err
		}
		if amountCents > inv.OutstandingCents() {
			return utils.NewValidationError("payment of %d exceeds outstanding balance %d", amountCents, inv.OutstandingCents())
		}
		inv.PaidAmountCents += amountCents
		inv.Status = next
		inv.settle(time.Now().UTC())
		if err := saveInvoiceBalance(tx, inv); err != nil {
			return err
		}
		result = inv
		return publishEvent(ctx, tx, organizationId, EventInvoicePaymentRecorded, AggregateInvoice, inv.ID, inv)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VoidInvoice only voids invoices nothing has been paid or credited against.
func VoidInvoice(ctx context.Context, organizationId string, id int) (*Invoice, error) {
	var result *Invoice
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := utils.FetchModelTx[Invoice](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		next, err := invoiceTransitions.Next(inv.Status, InvoiceActionVoid)
		if err != nil {
			return err
		}
		if inv.PaidAmountCents > 0 || inv.CreditAppliedCents > 0 {
			return utils.NewInvalidStateError("invoice %s has payments or credits applied", inv.InvoiceNumber)
		}
		now := time.Now().UTC()
		if err := tx.Model(inv).Updates(map[string]interface{}{
			"status":    next,
			"voided_at": &now,
			"version":   inv.Version + 1,
		}).Error; err != nil {
			return err
		}
		inv.Status = next
		inv.VoidedAt = &now
		inv.Version++
		result = inv
		return publishEvent(ctx, tx, organizationId, EventInvoiceVoided, AggregateInvoice, inv.ID, inv)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func GetInvoice(ctx context.Context, organizationId string, id int) (*Invoice, error) {
	return utils.FetchModel[Invoice](ctx, organizationId, id, "Details")
}

type InvoiceFilter struct {
	ClientId           int           `form:"client_id"`
	Status             InvoiceStatus `form:"status"`
	RecurringInvoiceId int           `form:"recurring_invoice_id"`
}

func PaginateInvoices(ctx context.Context, organizationId string, limit int, after *string, filter InvoiceFilter) (*Connection[Invoice], error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("organization_id = ?", organizationId)
	if filter.ClientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", filter.ClientId)
	}
	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, utils.NewValidationError("invalid invoice status %q", filter.Status)
		}
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.RecurringInvoiceId > 0 {
		dbCtx = dbCtx.Where("recurring_invoice_id = ?", filter.RecurringInvoiceId)
	}
	return FetchPageById[Invoice](dbCtx, limit, after)
}
