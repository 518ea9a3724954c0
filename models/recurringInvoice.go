package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
)

type RecurringInvoice struct {
	ID              int                        `gorm:"primary_key" json:"id"`
	OrganizationId  string                     `gorm:"size:36;not null;index" json:"organization_id"`
	ClientId        int                        `gorm:"not null;index" json:"client_id"`
	Frequency       RecurringFrequency         `gorm:"size:16;not null" json:"frequency"`
	AnchorDate      time.Time                  `gorm:"not null" json:"anchor_date"`
	DayOfMonth      *int                       `json:"day_of_month"`
	TotalCents      int64                      `gorm:"not null" json:"total_cents"`
	Currency        string                     `gorm:"size:3;not null" json:"currency"`
	NextRunDate     time.Time                  `gorm:"not null;index:idx_recurring_due,priority:3" json:"next_run_date"`
	IsActive        bool                       `gorm:"not null;index:idx_recurring_due,priority:1" json:"is_active"`
	IsPaused        bool                       `gorm:"not null;index:idx_recurring_due,priority:2" json:"is_paused"`
	InvoicesCreated int                        `gorm:"not null;default:0" json:"invoices_created"`
	LastInvoiceAt   *time.Time                 `json:"last_invoice_at"`
	DueDays         int                        `gorm:"not null;default:0" json:"due_days"`
	Notes           string                     `gorm:"type:text" json:"notes"`
	State           RecurringInvoiceState      `gorm:"-" json:"state"`
	Details         []RecurringInvoiceLineItem `gorm:"foreignKey:RecurringInvoiceId" json:"details"`
	CreatedAt       time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`
}

type RecurringInvoiceLineItem struct {
	ID                 int          `gorm:"primary_key" json:"id"`
	RecurringInvoiceId int          `gorm:"not null;index" json:"recurring_invoice_id"`
	ItemType           LineItemType `gorm:"size:16;not null" json:"item_type"`
	Description        string       `gorm:"size:500;not null" json:"description"`
	Quantity           int          `gorm:"not null" json:"quantity"`
	UnitCents          int64        `gorm:"not null" json:"unit_cents"`
	SortOrder          int          `gorm:"not null;default:0" json:"sort_order"`
}

type NewRecurringInvoice struct {
	ClientId   int                `json:"client_id" validate:"required,gt=0"`
	Frequency  RecurringFrequency `json:"frequency" validate:"required"`
	DayOfMonth *int               `json:"day_of_month" validate:"omitempty,min=1,max=31"`
	AnchorDate string             `json:"anchor_date" validate:"required"`
	DueDays    int                `json:"due_days" validate:"min=0,max=365"`
	Notes      string             `json:"notes" validate:"max=5000"`
	LineItems  []NewLineItem      `json:"line_items"`
}

type UpdateRecurringInvoiceInput struct {
	DueDays   int           `json:"due_days" validate:"min=0,max=365"`
	Notes     string        `json:"notes" validate:"max=5000"`
	LineItems []NewLineItem `json:"line_items"`
}

type RecurringInvoiceAction string

const (
	RecurringInvoiceActionPause       RecurringInvoiceAction = "pause"
	RecurringInvoiceActionResume      RecurringInvoiceAction = "resume"
	RecurringInvoiceActionMaterialize RecurringInvoiceAction = "materialize"
	RecurringInvoiceActionUpdate      RecurringInvoiceAction = "update"
	RecurringInvoiceActionDeactivate  RecurringInvoiceAction = "deactivate"
)

var recurringInvoiceTransitions = newTransitionTable("recurring invoice", []Transition[RecurringInvoiceState, RecurringInvoiceAction]{
	{Action: RecurringInvoiceActionPause, From: []RecurringInvoiceState{RecurringInvoiceStateActive}, To: RecurringInvoiceStatePaused},
	{Action: RecurringInvoiceActionResume, From: []RecurringInvoiceState{RecurringInvoiceStatePaused}, To: RecurringInvoiceStateActive},
	{Action: RecurringInvoiceActionMaterialize, From: []RecurringInvoiceState{RecurringInvoiceStateActive}, To: RecurringInvoiceStateActive},
	{Action: RecurringInvoiceActionUpdate, From: []RecurringInvoiceState{RecurringInvoiceStateActive}, To: RecurringInvoiceStateActive},
	{Action: RecurringInvoiceActionUpdate, From: []RecurringInvoiceState{RecurringInvoiceStatePaused}, To: RecurringInvoiceStatePaused},
	{Action: RecurringInvoiceActionDeactivate, From: []RecurringInvoiceState{RecurringInvoiceStateActive, RecurringInvoiceStatePaused}, To: RecurringInvoiceStateInactive},
}).reportingInvalidState()

// ErrRecurringInvoiceNotDue is returned when the next cycle lies after the requested date.
var ErrRecurringInvoiceNotDue = &utils.AppError{Code: utils.CodeInvalidState, Message: "recurring invoice is not due"}

func (ri RecurringInvoice) GetId() int {
	return ri.ID
}

func (ri *RecurringInvoice) currentState() RecurringInvoiceState {
	switch {
	case !ri.IsActive:
		return RecurringInvoiceStateInactive
	case ri.IsPaused:
		return RecurringInvoiceStatePaused
	default:
		return RecurringInvoiceStateActive
	}
}

func (ri *RecurringInvoice) AfterFind(tx *gorm.DB) error {
	ri.State = ri.currentState()
	return nil
}

// effectiveDayOfMonth keeps month-based schedules on the anchor day after a clamped short month.
func (ri *RecurringInvoice) effectiveDayOfMonth() *int {
	if ri.DayOfMonth != nil {
		return ri.DayOfMonth
	}
	day := ri.AnchorDate.Day()
	return &day
}

func (ri *RecurringInvoice) nextRunAfter(cycleDate time.Time) time.Time {
	return ComputeNextRunDate(ri.Frequency, cycleDate, ri.effectiveDayOfMonth())
}

// IsDue reports whether the next cycle falls on or before asOf.
func (ri *RecurringInvoice) IsDue(asOf time.Time) bool {
	return ri.currentState() == RecurringInvoiceStateActive && !utils.ToDate(ri.NextRunDate).After(utils.ToDate(asOf))
}

func toRecurringLineItems(items []NewLineItem) []RecurringInvoiceLineItem {
	details := make([]RecurringInvoiceLineItem, 0, len(items))
	for i, item := range items {
		details = append(details, RecurringInvoiceLineItem{
			ItemType:    item.ItemType,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitCents:   item.UnitCents,
			SortOrder:   i,
		})
	}
	return details
}

func (input *NewRecurringInvoice) validate(ctx context.Context, organizationId string) (time.Time, error) {
	if !input.Frequency.IsValid() {
		return time.Time{}, utils.NewValidationError("invalid frequency %q", input.Frequency)
	}
	if err := utils.ValidateInput(input); err != nil {
		return time.Time{}, err
	}
	if input.DayOfMonth != nil &&
		input.Frequency != RecurringFrequencyMonthly && input.Frequency != RecurringFrequencyQuarterly {
		return time.Time{}, utils.NewValidationError("day_of_month only applies to monthly and quarterly schedules")
	}
	anchor, err := utils.ParseDate(input.AnchorDate)
	if err != nil {
		return time.Time{}, err
	}
	if err := validateLineItems(input.LineItems); err != nil {
		return time.Time{}, err
	}
	if err := utils.ValidateResourceId[Client](ctx, organizationId, input.ClientId); err != nil {
		return time.Time{}, err
	}
	return anchor, nil
}

// CreateRecurringInvoice stores the template; the first cycle fires on the anchor date.
func CreateRecurringInvoice(ctx context.Context, organizationId string, input *NewRecurringInvoice) (*RecurringInvoice, error) {
	org, err := requireActiveOrganization(ctx, organizationId)
	if err != nil {
		return nil, err
	}
	anchor, err := input.validate(ctx, organizationId)
	if err != nil {
		return nil, err
	}
	total, err := lineItemsTotal(input.LineItems)
	if err != nil {
		return nil, err
	}

	ri := RecurringInvoice{
		OrganizationId: organizationId,
		ClientId:       input.ClientId,
		Frequency:      input.Frequency,
		AnchorDate:     anchor,
		DayOfMonth:     input.DayOfMonth,
		TotalCents:     total,
		Currency:       org.Currency,
		NextRunDate:    anchor,
		IsActive:       true,
		DueDays:        input.DueDays,
		Notes:          input.Notes,
		Details:        toRecurringLineItems(input.LineItems),
	}
	if err := config.GetDB().WithContext(ctx).Create(&ri).Error; err != nil {
		config.LogError(config.GetLogger(), "RecurringInvoice", "CreateRecurringInvoice", "create", input, err)
		return nil, err
	}
	ri.State = ri.currentState()
	return &ri, nil
}

// UpdateRecurringInvoice replaces the template lines; the schedule is left alone.
func UpdateRecurringInvoice(ctx context.Context, organizationId string, id int, input *UpdateRecurringInvoiceInput) (*RecurringInvoice, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := validateLineItems(input.LineItems); err != nil {
		return nil, err
	}
	total, err := lineItemsTotal(input.LineItems)
	if err != nil {
		return nil, err
	}

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ri, err := utils.FetchModelTx[RecurringInvoice](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		if _, err := recurringInvoiceTransitions.Next(ri.currentState(), RecurringInvoiceActionUpdate); err != nil {
			return err
		}
		if err := tx.Where("recurring_invoice_id = ?", ri.ID).Delete(&RecurringInvoiceLineItem{}).Error; err != nil {
			return err
		}
		details := toRecurringLineItems(input.LineItems)
		for i := range details {
			details[i].RecurringInvoiceId = ri.ID
		}
		if err := tx.Create(&details).Error; err != nil {
			return err
		}
		return tx.Model(ri).Updates(map[string]interface{}{
			"total_cents": total,
			"due_days":    input.DueDays,
			"notes":       input.Notes,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return GetRecurringInvoice(ctx, organizationId, id)
}

func PauseRecurringInvoice(ctx context.Context, organizationId string, id int) (*RecurringInvoice, error) {
	return changeRecurringInvoiceState(ctx, organizationId, id, RecurringInvoiceActionPause)
}

// ResumeRecurringInvoice keeps nextRunDate, so a paused cycle fires on its original date.
func ResumeRecurringInvoice(ctx context.Context, organizationId string, id int) (*RecurringInvoice, error) {
	return changeRecurringInvoiceState(ctx, organizationId, id, RecurringInvoiceActionResume)
}

// DeleteRecurringInvoice stops future materialization. A soft delete keeps the row inactive;
// a hard delete removes the template. Invoices already created are kept either way.
func DeleteRecurringInvoice(ctx context.Context, organizationId string, id int, hard bool) error {
	if !hard {
		_, err := changeRecurringInvoiceState(ctx, organizationId, id, RecurringInvoiceActionDeactivate)
		return err
	}
	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ri, err := utils.FetchModelTx[RecurringInvoice](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		if err := tx.Where("recurring_invoice_id = ?", ri.ID).Delete(&RecurringInvoiceLineItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(ri).Error
	})
}

func changeRecurringInvoiceState(ctx context.Context, organizationId string, id int, action RecurringInvoiceAction) (*RecurringInvoice, error) {
	var result *RecurringInvoice
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ri, err := utils.FetchModelTx[RecurringInvoice](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		next, err := recurringInvoiceTransitions.Next(ri.currentState(), action)
		if err != nil {
			return err
		}
		ri.IsActive = next != RecurringInvoiceStateInactive
		ri.IsPaused = next == RecurringInvoiceStatePaused
		if err := tx.Model(ri).Updates(map[string]interface{}{
			"is_active": ri.IsActive,
			"is_paused": ri.IsPaused,
		}).Error; err != nil {
			return err
		}
		ri.State = next
		result = ri
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type MaterializeResult struct {
	RecurringInvoice *RecurringInvoice `json:"recurring_invoice"`
	Invoice          *Invoice          `json:"invoice"`
	CycleDate        time.Time         `json:"cycle_date"`
	Created          bool              `json:"created"`
}

// MaterializeRecurringInvoice turns the cycle at nextRunDate into an open invoice, provided it is due on asOf.
//
// The agreement row is locked for the whole transaction. An invoice that already exists for the cycle is
// returned with Created=false instead of being duplicated, and nextRunDate advances with a compare-and-set.
func MaterializeRecurringInvoice(ctx context.Context, organizationId string, id int, asOf time.Time) (*MaterializeResult, error) {
	asOfDate := utils.ToDate(asOf)
	var result MaterializeResult

	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ri, err := utils.FetchModelTx[RecurringInvoice](tx, organizationId, id, true, "Details")
		if err != nil {
			return err
		}
		if _, err := recurringInvoiceTransitions.Next(ri.currentState(), RecurringInvoiceActionMaterialize); err != nil {
			return err
		}
		cycleDate := utils.ToDate(ri.NextRunDate)
		if !ri.IsDue(asOfDate) {
			return &utils.AppError{
				Code:    ErrRecurringInvoiceNotDue.Code,
				Message: ErrRecurringInvoiceNotDue.Message,
				Fields:  map[string]string{"next_run_date": cycleDate.Format(utils.DateLayout)},
			}
		}
		nextRun := ri.nextRunAfter(cycleDate)
		now := time.Now().UTC()
		result.CycleDate = cycleDate

		var existing Invoice
		err = tx.Preload("Details").
			Where("organization_id = ? AND recurring_invoice_id = ? AND cycle_date = ?", organizationId, ri.ID, cycleDate).
			First(&existing).Error
		if err == nil {
			// the cycle was invoiced but the schedule did not move; move it without counting twice
			if err := advanceRecurringSchedule(tx, ri, cycleDate, nextRun, nil); err != nil {
				return err
			}
			result.Invoice = &existing
			result.RecurringInvoice = ri
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		items := make([]NewLineItem, 0, len(ri.Details))
		for _, d := range ri.Details {
			items = append(items, NewLineItem{
				ItemType:    d.ItemType,
				Description: d.Description,
				Quantity:    d.Quantity,
				UnitCents:   d.UnitCents,
			})
		}
		recurringId := ri.ID
		inv := Invoice{
			OrganizationId:     organizationId,
			ClientId:           ri.ClientId,
			Status:             InvoiceStatusOpen,
			Currency:           ri.Currency,
			IssueDate:          cycleDate,
			DueDate:            cycleDate.AddDate(0, 0, ri.DueDays),
			Notes:              ri.Notes,
			RecurringInvoiceId: &recurringId,
			CycleDate:          &cycleDate,
			IssuedAt:           &now,
		}
		if err := createInvoiceTx(tx, &inv, items); err != nil {
			if utils.IsDuplicateKeyErr(err) {
				return utils.NewConcurrencyConflictError("recurring invoice")
			}
			return err
		}
		if err := advanceRecurringSchedule(tx, ri, cycleDate, nextRun, &now); err != nil {
			return err
		}

		result.Invoice = &inv
		result.RecurringInvoice = ri
		result.Created = true
		return publishEvent(ctx, tx, organizationId, EventRecurringInvoiceMaterialized, AggregateRecurringInvoice, ri.ID, result)
	})
	if err != nil {
		if !errors.Is(err, ErrRecurringInvoiceNotDue) {
			config.LogError(config.GetLogger(), "RecurringInvoice", "MaterializeRecurringInvoice", "materialize", id, err)
		}
		return nil, err
	}
	return &result, nil
}

// advanceRecurringSchedule moves nextRunDate from cycleDate to nextRun. invoicedAt is nil when no
// invoice was created in this call, in which case the counter and lastInvoiceAt stay as they are.
func advanceRecurringSchedule(tx *gorm.DB, ri *RecurringInvoice, cycleDate time.Time, nextRun time.Time, invoicedAt *time.Time) error {
	updates := map[string]interface{}{
		"next_run_date": nextRun,
	}
	if invoicedAt != nil {
		updates["invoices_created"] = gorm.Expr("invoices_created + 1")
		updates["last_invoice_at"] = invoicedAt
	}
	res := tx.Model(&RecurringInvoice{}).
		Where("id = ? AND next_run_date = ?", ri.ID, ri.NextRunDate).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewConcurrencyConflictError("recurring invoice")
	}
	ri.NextRunDate = nextRun
	if invoicedAt != nil {
		ri.InvoicesCreated++
		ri.LastInvoiceAt = invoicedAt
	}
	return nil
}

func GetRecurringInvoice(ctx context.Context, organizationId string, id int) (*RecurringInvoice, error) {
	return utils.FetchModel[RecurringInvoice](ctx, organizationId, id, "Details")
}

type RecurringInvoiceFilter struct {
	ClientId int                   `form:"client_id"`
	State    RecurringInvoiceState `form:"state"`
}

func PaginateRecurringInvoices(ctx context.Context, organizationId string, limit int, after *string, filter RecurringInvoiceFilter) (*Connection[RecurringInvoice], error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("organization_id = ?", organizationId)
	if filter.ClientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", filter.ClientId)
	}
	switch filter.State {
	case "":
	case RecurringInvoiceStateActive:
		dbCtx = dbCtx.Where("is_active = ? AND is_paused = ?", true, false)
	case RecurringInvoiceStatePaused:
		dbCtx = dbCtx.Where("is_active = ? AND is_paused = ?", true, true)
	case RecurringInvoiceStateInactive:
		dbCtx = dbCtx.Where("is_active = ?", false)
	default:
		return nil, utils.NewValidationError("invalid state %q", filter.State)
	}
	return FetchPageById[RecurringInvoice](dbCtx, limit, after)
}

// DueRecurringInvoice is the minimal row the runner needs to schedule work.
type DueRecurringInvoice struct {
	ID             int       `json:"id"`
	OrganizationId string    `json:"organization_id"`
	NextRunDate    time.Time `json:"next_run_date"`
}

// ListDueRecurringInvoices scans every organization for active agreements due on asOf.
func ListDueRecurringInvoices(ctx context.Context, asOf time.Time, limit int) ([]DueRecurringInvoice, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []DueRecurringInvoice
	err := config.GetDB().WithContext(utils.WithoutTenantScope(ctx)).
		Model(&RecurringInvoice{}).
		Select("id, organization_id, next_run_date").
		Where("is_active = ? AND is_paused = ? AND next_run_date <= ?", true, false, utils.ToDate(asOf)).
		Order("next_run_date, id").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
