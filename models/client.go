package models

import (
	"context"
	"strings"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
)

type Client struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:36;not null;index" json:"organization_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:255;index" json:"email"`
	Phone          string    `gorm:"size:32" json:"phone"`
	Notes          string    `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"omitempty,email,max=255"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
	Notes string `json:"notes" validate:"max=5000"`
}

func (c Client) GetId() int {
	return c.ID
}

func (input *NewClient) validate(ctx context.Context, organizationId string, exceptId int) (string, error) {
	if err := utils.ValidateInput(input); err != nil {
		return "", err
	}
	phone := ""
	if strings.TrimSpace(input.Phone) != "" {
		normalized, err := utils.NormalizePhoneNumber(input.Phone, utils.DefaultPhoneRegion())
		if err != nil {
			return "", utils.NewValidationError("invalid phone number: %v", err)
		}
		phone = normalized
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		if err := utils.ValidateUnique[Client](ctx, organizationId, "email", strings.ToLower(email), exceptId); err != nil {
			return "", err
		}
	}
	return phone, nil
}

func CreateClient(ctx context.Context, organizationId string, input *NewClient) (*Client, error) {
	if _, err := requireActiveOrganization(ctx, organizationId); err != nil {
		return nil, err
	}
	phone, err := input.validate(ctx, organizationId, 0)
	if err != nil {
		return nil, err
	}

	client := Client{
		OrganizationId: organizationId,
		Name:           strings.TrimSpace(input.Name),
		Email:          strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:          phone,
		Notes:          input.Notes,
	}
	if err := config.GetDB().WithContext(ctx).Create(&client).Error; err != nil {
		config.LogError(config.GetLogger(), "Client", "CreateClient", "create", input, err)
		return nil, err
	}
	return &client, nil
}

func UpdateClient(ctx context.Context, organizationId string, id int, input *NewClient) (*Client, error) {
	client, err := utils.FetchModel[Client](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}
	phone, err := input.validate(ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	err = config.GetDB().WithContext(ctx).Model(client).Updates(map[string]interface{}{
		"name":  strings.TrimSpace(input.Name),
		"email": strings.ToLower(strings.TrimSpace(input.Email)),
		"phone": phone,
		"notes": input.Notes,
	}).Error
	if err != nil {
		config.LogError(config.GetLogger(), "Client", "UpdateClient", "update", input, err)
		return nil, err
	}
	return utils.FetchModel[Client](ctx, organizationId, id)
}

func GetClient(ctx context.Context, organizationId string, id int) (*Client, error) {
	return utils.FetchModel[Client](ctx, organizationId, id)
}

// PaginateClients matches search against name and email.
func PaginateClients(ctx context.Context, organizationId string, limit int, after *string, search string) (*Connection[Client], error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("organization_id = ?", organizationId)
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		dbCtx = dbCtx.Where("LOWER(name) LIKE ? OR email LIKE ?", like, like)
	}
	return FetchPageById[Client](dbCtx, limit, after)
}
