package models

import (
	"context"
	"strings"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
)

type GalleryAddonRequest struct {
	ID               int                `gorm:"primary_key" json:"id"`
	OrganizationId   string             `gorm:"size:36;not null;index:idx_addon_request_org_status,priority:1" json:"organization_id"`
	GalleryId        int                `gorm:"not null;index" json:"gallery_id"`
	AddonId          int                `gorm:"not null;index" json:"addon_id"`
	ClientId         int                `gorm:"not null;index" json:"client_id"`
	PhotoIds         []string           `gorm:"serializer:json;type:text" json:"photo_ids"`
	Notes            string             `gorm:"type:text" json:"notes"`
	Status           AddonRequestStatus `gorm:"size:16;not null;index:idx_addon_request_org_status,priority:2" json:"status"`
	QuoteCents       *int64             `json:"quote_cents"`
	QuoteDescription string             `gorm:"size:1000" json:"quote_description"`
	QuotedAt         *time.Time         `json:"quoted_at"`
	ApprovedAt       *time.Time         `json:"approved_at"`
	DeclinedAt       *time.Time         `json:"declined_at"`
	CompletedAt      *time.Time         `json:"completed_at"`
	DeliveryNote     string             `gorm:"type:text" json:"delivery_note"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAddonRequest struct {
	GalleryId int      `json:"gallery_id" validate:"required,gt=0"`
	AddonId   int      `json:"addon_id" validate:"required,gt=0"`
	ClientId  int      `json:"client_id" validate:"required,gt=0"`
	PhotoIds  []string `json:"photo_ids" validate:"max=500,dive,required,max=64"`
	Notes     string   `json:"notes" validate:"max=5000"`
}

type AddonQuoteInput struct {
	QuoteCents       int64  `json:"quote_cents"`
	QuoteDescription string `json:"quote_description" validate:"max=1000"`
}

type AddonRequestAction string

const (
	AddonRequestActionSendQuote         AddonRequestAction = "send_quote"
	AddonRequestActionStartWithoutQuote AddonRequestAction = "start_without_quote"
	AddonRequestActionApprove           AddonRequestAction = "approve"
	AddonRequestActionDecline           AddonRequestAction = "decline"
	AddonRequestActionStartWork         AddonRequestAction = "start_work"
	AddonRequestActionComplete          AddonRequestAction = "complete"
	AddonRequestActionCancel            AddonRequestAction = "cancel"
)

var addonRequestTransitions = newTransitionTable("add-on request", []Transition[AddonRequestStatus, AddonRequestAction]{
	{Action: AddonRequestActionSendQuote, From: []AddonRequestStatus{AddonRequestStatusPending, AddonRequestStatusQuoted}, To: AddonRequestStatusQuoted},
	{Action: AddonRequestActionStartWithoutQuote, From: []AddonRequestStatus{AddonRequestStatusPending}, To: AddonRequestStatusInProgress},
	{Action: AddonRequestActionApprove, From: []AddonRequestStatus{AddonRequestStatusQuoted}, To: AddonRequestStatusApproved},
	{Action: AddonRequestActionDecline, From: []AddonRequestStatus{AddonRequestStatusQuoted}, To: AddonRequestStatusDeclined},
	{Action: AddonRequestActionStartWork, From: []AddonRequestStatus{AddonRequestStatusApproved}, To: AddonRequestStatusInProgress},
	{Action: AddonRequestActionComplete, From: []AddonRequestStatus{AddonRequestStatusInProgress}, To: AddonRequestStatusCompleted},
	{Action: AddonRequestActionCancel, From: []AddonRequestStatus{
		AddonRequestStatusPending, AddonRequestStatusQuoted, AddonRequestStatusApproved, AddonRequestStatusInProgress,
	}, To: AddonRequestStatusCancelled},
})

func (r GalleryAddonRequest) GetId() int {
	return r.ID
}

// AvailableAddonRequestActions lists what an operator or client may do next.
func AvailableAddonRequestActions(status AddonRequestStatus) []AddonRequestAction {
	return addonRequestTransitions.Actions(status)
}

func IsAddonRequestTerminal(status AddonRequestStatus) bool {
	return addonRequestTransitions.IsTerminal(status)
}

// CreateAddonRequest records a client's request on a delivered gallery of their own.
func CreateAddonRequest(ctx context.Context, organizationId string, input *NewAddonRequest) (*GalleryAddonRequest, error) {
	if _, err := requireActiveOrganization(ctx, organizationId); err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	gallery, err := utils.FetchModel[Gallery](ctx, organizationId, input.GalleryId)
	if err != nil {
		return nil, err
	}
	if gallery.ClientId != input.ClientId {
		return nil, utils.NewNotFoundError("gallery")
	}
	if gallery.DeliveredAt == nil {
		return nil, utils.NewInvalidStateError("gallery %d has not been delivered", gallery.ID)
	}
	addon, err := utils.FetchModel[GalleryAddon](ctx, organizationId, input.AddonId)
	if err != nil {
		return nil, err
	}
	if !addon.IsActive {
		return nil, utils.NewInvalidStateError("add-on %q is not available", addon.Name)
	}

	request := GalleryAddonRequest{
		OrganizationId: organizationId,
		GalleryId:      gallery.ID,
		AddonId:        addon.ID,
		ClientId:       input.ClientId,
		PhotoIds:       input.PhotoIds,
		Notes:          input.Notes,
		Status:         AddonRequestStatusPending,
	}
	if request.PhotoIds == nil {
		request.PhotoIds = []string{}
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&request).Error; err != nil {
			return err
		}
		return publishEvent(ctx, tx, organizationId, EventAddonRequestCreated, AggregateAddonRequest, request.ID, request)
	})
	if err != nil {
		config.LogError(config.GetLogger(), "GalleryAddonRequest", "CreateAddonRequest", "create", input, err)
		return nil, err
	}
	return &request, nil
}

// SendAddonQuote prices a pending request or re-quotes a quoted one.
// quotedAt keeps the time the request first entered quoted.
// The status is checked before the amount, so a closed request reports the illegal move.
func SendAddonQuote(ctx context.Context, organizationId string, id int, input *AddonQuoteInput) (*GalleryAddonRequest, error) {
	return transitionAddonRequest(ctx, organizationId, id, AddonRequestActionSendQuote, EventAddonRequestQuoted,
		func(r *GalleryAddonRequest, now time.Time) error {
			if input.QuoteCents <= 0 {
				return utils.NewValidationError("quote amount must be positive")
			}
			if err := utils.ValidateInput(input); err != nil {
				return err
			}
			quote := input.QuoteCents
			r.QuoteCents = &quote
			r.QuoteDescription = strings.TrimSpace(input.QuoteDescription)
			if r.QuotedAt == nil {
				r.QuotedAt = &now
			}
			return nil
		})
}

func StartAddonRequestWithoutQuote(ctx context.Context, organizationId string, id int) (*GalleryAddonRequest, error) {
	return transitionAddonRequest(ctx, organizationId, id, AddonRequestActionStartWithoutQuote, EventAddonRequestStarted, nil)
}

func ApproveAddonRequest(ctx context.Context, organizationId string, id int) (*GalleryAddonRequest, error) {
	return transitionAddonRequest(ctx, organizationId, id, AddonRequestActionApprove, EventAddonRequestApproved,
		func(r *GalleryAddonRequest, now time.Time) error {
			r.ApprovedAt = &now
			return nil
		})
}

func DeclineAddonRequest(ctx context.Context, organizationId string, id int) (*GalleryAddonRequest, error) {
	return transitionAddonRequest(ctx, organizationId, id, AddonRequestActionDecline, EventAddonRequestDeclined,
		func(r *GalleryAddonRequest, now time.Time) error {
			r.DeclinedAt = &now
			return nil
		})
}

func StartAddonRequestWork(ctx context.Context, organizationId string, id int) (*GalleryAddonRequest, error) {
	return transitionAddonRequest(ctx, organizationId, id, AddonRequestActionStartWork, EventAddonRequestStarted, nil)
}

func CompleteAddonRequest(ctx context.Context, organizationId string, id int, deliveryNote string) (*GalleryAddonRequest, error) {
	if len(deliveryNote) > 5000 {
		return nil, utils.NewValidationError("delivery note is too long")
	}
	return transitionAddonRequest(ctx, organizationId, id, AddonRequestActionComplete, EventAddonRequestCompleted,
		func(r *GalleryAddonRequest, now time.Time) error {
			r.CompletedAt = &now
			r.DeliveryNote = strings.TrimSpace(deliveryNote)
			return nil
		})
}

func CancelAddonRequest(ctx context.Context, organizationId string, id int) (*GalleryAddonRequest, error) {
	return transitionAddonRequest(ctx, organizationId, id, AddonRequestActionCancel, EventAddonRequestCancelled, nil)
}

func transitionAddonRequest(ctx context.Context, organizationId string, id int, action AddonRequestAction, eventType EventType, stamp func(*GalleryAddonRequest, time.Time) error) (*GalleryAddonRequest, error) {
	var result *GalleryAddonRequest
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := utils.FetchModelTx[GalleryAddonRequest](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		next, err := addonRequestTransitions.Next(request.Status, action)
		if err != nil {
			return err
		}
		request.Status = next
		if stamp != nil {
			if err := stamp(request, time.Now().UTC()); err != nil {
				return err
			}
		}
		if err := tx.Model(request).Select(
			"status", "quote_cents", "quote_description", "quoted_at", "approved_at",
			"declined_at", "completed_at", "delivery_note",
		).Updates(request).Error; err != nil {
			return err
		}
		result = request
		return publishEvent(ctx, tx, organizationId, eventType, AggregateAddonRequest, request.ID, request)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func GetAddonRequest(ctx context.Context, organizationId string, id int) (*GalleryAddonRequest, error) {
	return utils.FetchModel[GalleryAddonRequest](ctx, organizationId, id)
}

type AddonRequestFilter struct {
	GalleryId int                `form:"gallery_id"`
	ClientId  int                `form:"client_id"`
	Status    AddonRequestStatus `form:"status"`
}

func PaginateAddonRequests(ctx context.Context, organizationId string, limit int, after *string, filter AddonRequestFilter) (*Connection[GalleryAddonRequest], error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("organization_id = ?", organizationId)
	if filter.GalleryId > 0 {
		dbCtx = dbCtx.Where("gallery_id = ?", filter.GalleryId)
	}
	if filter.ClientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", filter.ClientId)
	}
	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, utils.NewValidationError("invalid add-on request status %q", filter.Status)
		}
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	return FetchPageById[GalleryAddonRequest](dbCtx, limit, after)
}
