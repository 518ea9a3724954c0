package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
)

// Organization is the tenant. Every other entity carries its id in organization_id.
type Organization struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Currency  string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Timezone  string    `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Name     string `json:"name" validate:"required,max=255"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
	Timezone string `json:"timezone" validate:"omitempty,max=64"`
}

const organizationCacheTTL = 10 * time.Minute

func organizationCacheKey(id string) string {
	return "Organization:" + id
}

func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	timezone := strings.TrimSpace(input.Timezone)
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, utils.NewValidationError("unknown timezone %q", timezone)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	org := Organization{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(input.Name),
		Currency: currency,
		Timezone: timezone,
		IsActive: true,
	}
	if err := config.GetDB().WithContext(ctx).Create(&org).Error; err != nil {
		config.LogError(config.GetLogger(), "Organization", "CreateOrganization", "create", input, err)
		return nil, err
	}
	return &org, nil
}

// GetOrganization reads through the Redis cache; a cache miss or a Redis outage falls back to the database.
func GetOrganization(ctx context.Context, id string) (*Organization, error) {
	var cached Organization
	if ok, err := config.GetRedisObject(organizationCacheKey(id), &cached); err == nil && ok {
		return &cached, nil
	}

	var org Organization
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("organization")
	} else if err != nil {
		return nil, err
	}

	if err := config.SetRedisObject(organizationCacheKey(id), &org, organizationCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "Organization", "GetOrganization", "cache store", id, err)
	}
	return &org, nil
}

// requireActiveOrganization is checked before any write on behalf of a tenant.
func requireActiveOrganization(ctx context.Context, organizationId string) (*Organization, error) {
	if organizationId == "" {
		return nil, utils.NewValidationError("organization id is required")
	}
	org, err := GetOrganization(ctx, organizationId)
	if err != nil {
		return nil, err
	}
	if !org.IsActive {
		return nil, utils.NewInvalidStateError("organization %s is inactive", organizationId)
	}
	return org, nil
}
