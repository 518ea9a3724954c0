package models

import (
	"context"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
)

type CreditNote struct {
	ID                  int              `gorm:"primary_key" json:"id"`
	OrganizationId      string           `gorm:"size:36;not null;index:idx_credit_note_org_status,priority:1;index:uniq_credit_note_number,unique,priority:1" json:"organization_id"`
	ClientId            int              `gorm:"not null;index" json:"client_id"`
	CreditNoteNumber    string           `gorm:"size:32;not null;index:uniq_credit_note_number,unique,priority:2" json:"credit_note_number"`
	Status              CreditNoteStatus `gorm:"size:16;not null;index:idx_credit_note_org_status,priority:2" json:"status"`
	Currency            string           `gorm:"size:3;not null" json:"currency"`
	AmountCents         int64            `gorm:"not null" json:"amount_cents"`
	AppliedAmountCents  int64            `gorm:"not null;default:0" json:"applied_amount_cents"`
	RefundedAmountCents int64            `gorm:"not null;default:0" json:"refunded_amount_cents"`
	Reason              string           `gorm:"size:500" json:"reason"`
	SourceInvoiceId     *int             `gorm:"index" json:"source_invoice_id"`
	AppliedToInvoiceId  *int             `json:"applied_to_invoice_id"`
	IssuedAt            *time.Time       `json:"issued_at"`
	AppliedAt           *time.Time       `json:"applied_at"`
	RefundedAt          *time.Time       `json:"refunded_at"`
	VoidedAt            *time.Time       `json:"voided_at"`
	Version             int              `gorm:"not null;default:0" json:"version"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreditNoteApplication records one application of a credit note to an invoice.
type CreditNoteApplication struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:36;not null;index" json:"organization_id"`
	CreditNoteId   int       `gorm:"not null;index" json:"credit_note_id"`
	InvoiceId      int       `gorm:"not null;index" json:"invoice_id"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	AppliedAt      time.Time `gorm:"not null" json:"applied_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewCreditNote struct {
	ClientId        int    `json:"client_id" validate:"required,gt=0"`
	AmountCents     int64  `json:"amount_cents" validate:"required,gt=0"`
	Reason          string `json:"reason" validate:"max=500"`
	SourceInvoiceId *int   `json:"source_invoice_id"`
}

type CreditNoteAction string

const (
	CreditNoteActionIssue  CreditNoteAction = "issue"
	CreditNoteActionApply  CreditNoteAction = "apply"
	CreditNoteActionRefund CreditNoteAction = "refund"
	CreditNoteActionVoid   CreditNoteAction = "void"
	CreditNoteActionDelete CreditNoteAction = "delete"
)

// A partial application keeps the note issued; apply() moves it to applied once nothing is left.
var creditNoteTransitions = newTransitionTable("credit note", []Transition[CreditNoteStatus, CreditNoteAction]{
	{Action: CreditNoteActionIssue, From: []CreditNoteStatus{CreditNoteStatusDraft}, To: CreditNoteStatusIssued},
	{Action: CreditNoteActionApply, From: []CreditNoteStatus{CreditNoteStatusIssued}, To: CreditNoteStatusIssued},
	{Action: CreditNoteActionRefund, From: []CreditNoteStatus{CreditNoteStatusIssued}, To: CreditNoteStatusRefunded},
	{Action: CreditNoteActionVoid, From: []CreditNoteStatus{CreditNoteStatusDraft, CreditNoteStatusIssued}, To: CreditNoteStatusVoided},
	{Action: CreditNoteActionDelete, From: []CreditNoteStatus{CreditNoteStatusDraft}, To: CreditNoteStatusDraft},
}).reportingInvalidState()

func (cn CreditNote) GetId() int {
	return cn.ID
}

// AvailableCents is the credit not yet applied or refunded.
func (cn *CreditNote) AvailableCents() int64 {
	return cn.AmountCents - cn.AppliedAmountCents - cn.RefundedAmountCents
}

// ApplyCap is the most a single application may consume against an invoice with the given outstanding balance.
func (cn *CreditNote) ApplyCap(outstandingCents int64) int64 {
	available := cn.AvailableCents()
	if outstandingCents < available {
		return max(outstandingCents, 0)
	}
	return max(available, 0)
}

// apply consumes amountCents of the note. A nil amount takes the whole cap.
// Amounts above the cap are rejected, never clamped.
func (cn *CreditNote) apply(amountCents *int64, outstandingCents int64, now time.Time) (int64, error) {
	available := cn.AvailableCents()
	if available <= 0 {
		return 0, utils.NewInsufficientCreditError(available, 0)
	}
	if _, err := creditNoteTransitions.Next(cn.Status, CreditNoteActionApply); err != nil {
		return 0, err
	}
	applyCap := cn.ApplyCap(outstandingCents)

	amount := applyCap
	if amountCents != nil {
		amount = *amountCents
	}
	switch {
	case amount <= 0:
		return 0, utils.NewValidationError("amount must be positive")
	case amount > available:
		return 0, utils.NewInsufficientCreditError(available, amount)
	case amount > applyCap:
		return 0, utils.NewValidationError("amount %d exceeds invoice outstanding balance %d", amount, outstandingCents)
	}

	cn.AppliedAmountCents += amount
	cn.AppliedAt = &now
	if cn.AvailableCents() == 0 {
		cn.Status = CreditNoteStatusApplied
	}
	return amount, nil
}

// refundRemaining refunds whatever credit is left in one step.
func (cn *CreditNote) refundRemaining(now time.Time) (int64, error) {
	next, err := creditNoteTransitions.Next(cn.Status, CreditNoteActionRefund)
	if err != nil {
		return 0, err
	}
	available := cn.AvailableCents()
	if available <= 0 {
		return 0, utils.NewInsufficientCreditError(available, 0)
	}
	cn.RefundedAmountCents += available
	cn.RefundedAt = &now
	cn.Status = next
	return available, nil
}

// saveCreditNote persists amounts, status and timestamps with a version compare-and-set.
func saveCreditNote(tx *gorm.DB, cn *CreditNote) error {
	res := tx.Model(&CreditNote{}).
		Where("id = ? AND version = ?", cn.ID, cn.Version).
		Updates(map[string]interface{}{
			"status":                cn.Status,
			"applied_amount_cents":  cn.AppliedAmountCents,
			"refunded_amount_cents": cn.RefundedAmountCents,
			"applied_to_invoice_id": cn.AppliedToInvoiceId,
			"issued_at":             cn.IssuedAt,
			"applied_at":            cn.AppliedAt,
			"refunded_at":           cn.RefundedAt,
			"voided_at":             cn.VoidedAt,
			"version":               cn.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewConcurrencyConflictError("credit note")
	}
	cn.Version++
	return nil
}

func CreateCreditNote(ctx context.Context, organizationId string, input *NewCreditNote) (*CreditNote, error) {
	org, err := requireActiveOrganization(ctx, organizationId)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Client](ctx, organizationId, input.ClientId); err != nil {
		return nil, err
	}
	if input.SourceInvoiceId != nil {
		count, err := utils.ResourceCountWhere[Invoice](ctx, organizationId, "id = ? AND client_id = ?", *input.SourceInvoiceId, input.ClientId)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, utils.NewNotFoundError("invoice")
		}
	}

	cn := CreditNote{
		OrganizationId:  organizationId,
		ClientId:        input.ClientId,
		Status:          CreditNoteStatusDraft,
		Currency:        org.Currency,
		AmountCents:     input.AmountCents,
		Reason:          input.Reason,
		SourceInvoiceId: input.SourceInvoiceId,
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextDocumentNumber(tx, organizationId, CreditNoteNumberPrefix)
		if err != nil {
			return err
		}
		cn.CreditNoteNumber = number
		return tx.Create(&cn).Error
	})
	if err != nil {
		config.LogError(config.GetLogger(), "CreditNote", "CreateCreditNote", "create", input, err)
		return nil, err
	}
	return &cn, nil
}

func IssueCreditNote(ctx context.Context, organizationId string, id int) (*CreditNote, error) {
	return changeCreditNote(ctx, organizationId, id, EventCreditNoteIssued, func(cn *CreditNote, now time.Time) error {
		next, err := creditNoteTransitions.Next(cn.Status, CreditNoteActionIssue)
		if err != nil {
			return err
		}
		cn.Status = next
		cn.IssuedAt = &now
		return nil
	})
}

// MarkCreditNoteRefunded refunds the remaining credit; partial refunds are not supported.
func MarkCreditNoteRefunded(ctx context.Context, organizationId string, id int) (*CreditNote, error) {
	return changeCreditNote(ctx, organizationId, id, EventCreditNoteRefunded, func(cn *CreditNote, now time.Time) error {
		_, err := cn.refundRemaining(now)
		return err
	})
}

// VoidCreditNote is irreversible; amounts stay as they were at the time of voiding.
func VoidCreditNote(ctx context.Context, organizationId string, id int) (*CreditNote, error) {
	return changeCreditNote(ctx, organizationId, id, EventCreditNoteVoided, func(cn *CreditNote, now time.Time) error {
		next, err := creditNoteTransitions.Next(cn.Status, CreditNoteActionVoid)
		if err != nil {
			return err
		}
		cn.Status = next
		cn.VoidedAt = &now
		return nil
	})
}

func changeCreditNote(ctx context.Context, organizationId string, id int, eventType EventType, change func(*CreditNote, time.Time) error) (*CreditNote, error) {
	var result *CreditNote
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cn, err := utils.FetchModelTx[CreditNote](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		if err := change(cn, time.Now().UTC()); err != nil {
			return err
		}
		if err := saveCreditNote(tx, cn); err != nil {
			return err
		}
		result = cn
		return publishEvent(ctx, tx, organizationId, eventType, AggregateCreditNote, cn.ID, cn)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteCreditNote discards a note that was never issued.
func DeleteCreditNote(ctx context.Context, organizationId string, id int) error {
	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cn, err := utils.FetchModelTx[CreditNote](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		if _, err := creditNoteTransitions.Next(cn.Status, CreditNoteActionDelete); err != nil {
			return err
		}
		return tx.Delete(cn).Error
	})
}

type CreditNoteApplyResult struct {
	CreditNoteId       int              `json:"credit_note_id"`
	InvoiceId          int              `json:"invoice_id"`
	AppliedAmountCents int64            `json:"applied_amount_cents"`
	AvailableCents     int64            `json:"available_cents"`
	Status             CreditNoteStatus `json:"status"`
	InvoiceStatus      InvoiceStatus    `json:"invoice_status"`
	InvoiceOutstanding int64            `json:"invoice_outstanding_cents"`
}

// ApplyCreditNoteToInvoice consumes credit against an invoice of the same client.
//
// Both rows are locked and saved with a version check, so two concurrent applications
// can never spend the same credit. A nil amountCents applies min(available, outstanding).
func ApplyCreditNoteToInvoice(ctx context.Context, organizationId string, creditNoteId int, invoiceId int, amountCents *int64) (*CreditNoteApplyResult, error) {
	var result CreditNoteApplyResult

	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cn, err := utils.FetchModelTx[CreditNote](tx, organizationId, creditNoteId, true)
		if err != nil {
			return err
		}
		inv, err := utils.FetchModelTx[Invoice](tx, organizationId, invoiceId, true)
		if err != nil {
			return err
		}
		if inv.ClientId != cn.ClientId {
			return utils.NewNotFoundError("invoice")
		}
		invoiceNext, err := invoiceTransitions.Next(inv.Status, InvoiceActionApplyCredit)
		if err != nil {
			return utils.NewInvalidStateError("invoice %s is %s and cannot take credit", inv.InvoiceNumber, inv.Status)
		}

		now := time.Now().UTC()
		applied, err := cn.apply(amountCents, inv.OutstandingCents(), now)
		if err != nil {
			return err
		}
		cn.AppliedToInvoiceId = &inv.ID
		if err := saveCreditNote(tx, cn); err != nil {
			return err
		}

		inv.CreditAppliedCents += applied
		inv.Status = invoiceNext
		inv.settle(now)
		if err := saveInvoiceBalance(tx, inv); err != nil {
			return err
		}

		application := CreditNoteApplication{
			OrganizationId: organizationId,
			CreditNoteId:   cn.ID,
			InvoiceId:      inv.ID,
			AmountCents:    applied,
			AppliedAt:      now,
		}
		if err := tx.Create(&application).Error; err != nil {
			return err
		}

		result = CreditNoteApplyResult{
			CreditNoteId:       cn.ID,
			InvoiceId:          inv.ID,
			AppliedAmountCents: applied,
			AvailableCents:     cn.AvailableCents(),
			Status:             cn.Status,
			InvoiceStatus:      inv.Status,
			InvoiceOutstanding: inv.OutstandingCents(),
		}
		return publishEvent(ctx, tx, organizationId, EventCreditNoteApplied, AggregateCreditNote, cn.ID, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func GetCreditNote(ctx context.Context, organizationId string, id int) (*CreditNote, error) {
	return utils.FetchModel[CreditNote](ctx, organizationId, id)
}

type CreditNoteFilter struct {
	ClientId int              `form:"client_id"`
	Status   CreditNoteStatus `form:"status"`
}

func PaginateCreditNotes(ctx context.Context, organizationId string, limit int, after *string, filter CreditNoteFilter) (*Connection[CreditNote], error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("organization_id = ?", organizationId)
	if filter.ClientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", filter.ClientId)
	}
	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, utils.NewValidationError("invalid credit note status %q", filter.Status)
		}
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	return FetchPageById[CreditNote](dbCtx, limit, after)
}

func ListCreditNoteApplications(ctx context.Context, organizationId string, creditNoteId int) ([]*CreditNoteApplication, error) {
	if err := utils.ValidateResourceId[CreditNote](ctx, organizationId, creditNoteId); err != nil {
		return nil, err
	}
	var applications []*CreditNoteApplication
	err := config.GetDB().WithContext(ctx).
		Where("organization_id = ? AND credit_note_id = ?", organizationId, creditNoteId).
		Order("id").
		Find(&applications).Error
	return applications, err
}

// CreditNoteDiscrepancy describes a note whose stored amounts do not add up.
type CreditNoteDiscrepancy struct {
	CreditNoteId        int    `json:"credit_note_id"`
	OrganizationId      string `json:"organization_id"`
	CreditNoteNumber    string `json:"credit_note_number"`
	AmountCents         int64  `json:"amount_cents"`
	AppliedAmountCents  int64  `json:"applied_amount_cents"`
	RefundedAmountCents int64  `json:"refunded_amount_cents"`
	ApplicationsCents   int64  `json:"applications_cents"`
	Problem             string `json:"problem"`
}

// AuditCreditNotes checks every note (of one organization, or all when organizationId is empty)
// for overspending and for applied amounts that disagree with the application rows.
func AuditCreditNotes(ctx context.Context, organizationId string) ([]CreditNoteDiscrepancy, error) {
	db := config.GetDB().WithContext(utils.WithoutTenantScope(ctx))

	type applicationSum struct {
		CreditNoteId int
		Total        int64
	}
	sumQuery := db.Model(&CreditNoteApplication{}).Select("credit_note_id, SUM(amount_cents) AS total").Group("credit_note_id")
	noteQuery := db.Model(&CreditNote{}).Order("id")
	if organizationId != "" {
		sumQuery = sumQuery.Where("organization_id = ?", organizationId)
		noteQuery = noteQuery.Where("organization_id = ?", organizationId)
	}

	var sums []applicationSum
	if err := sumQuery.Scan(&sums).Error; err != nil {
		return nil, err
	}
	applied := make(map[int]int64, len(sums))
	for _, s := range sums {
		applied[s.CreditNoteId] = s.Total
	}

	discrepancies := make([]CreditNoteDiscrepancy, 0)
	var batch []*CreditNote
	err := noteQuery.FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
		for _, cn := range batch {
			problem := ""
			switch {
			case cn.AppliedAmountCents < 0 || cn.RefundedAmountCents < 0:
				problem = "negative consumed amount"
			case cn.AvailableCents() < 0:
				problem = "applied plus refunded exceeds amount"
			case applied[cn.ID] != cn.AppliedAmountCents:
				problem = "applications do not sum to applied amount"
			}
			if problem == "" {
				continue
			}
			discrepancies = append(discrepancies, CreditNoteDiscrepancy{
				CreditNoteId:        cn.ID,
				OrganizationId:      cn.OrganizationId,
				CreditNoteNumber:    cn.CreditNoteNumber,
				AmountCents:         cn.AmountCents,
				AppliedAmountCents:  cn.AppliedAmountCents,
				RefundedAmountCents: cn.RefundedAmountCents,
				ApplicationsCents:   applied[cn.ID],
				Problem:             problem,
			})
		}
		return nil
	}).Error
	if err != nil {
		return nil, err
	}
	return discrepancies, nil
}
