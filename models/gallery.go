package models

import (
	"context"
	"strings"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
)

type Gallery struct {
	ID             int        `gorm:"primary_key" json:"id"`
	OrganizationId string     `gorm:"size:36;not null;index" json:"organization_id"`
	ClientId       int        `gorm:"not null;index" json:"client_id"`
	Name           string     `gorm:"size:255;not null" json:"name"`
	DeliveredAt    *time.Time `json:"delivered_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GalleryAddon is a service clients can request on a delivered gallery.
// A nil PriceCents means the studio has to quote it.
type GalleryAddon struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"size:36;not null;index" json:"organization_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	PriceCents     *int64    `json:"price_cents"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGallery struct {
	ClientId int    `json:"client_id" validate:"required,gt=0"`
	Name     string `json:"name" validate:"required,max=255"`
}

type NewGalleryAddon struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
	PriceCents  *int64 `json:"price_cents" validate:"omitempty,gte=0"`
}

func (g Gallery) GetId() int {
	return g.ID
}

func (a GalleryAddon) GetId() int {
	return a.ID
}

func (a *GalleryAddon) RequiresQuote() bool {
	return a.PriceCents == nil
}

func CreateGallery(ctx context.Context, organizationId string, input *NewGallery) (*Gallery, error) {
	if _, err := requireActiveOrganization(ctx, organizationId); err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Client](ctx, organizationId, input.ClientId); err != nil {
		return nil, err
	}

	gallery := Gallery{
		OrganizationId: organizationId,
		ClientId:       input.ClientId,
		Name:           strings.TrimSpace(input.Name),
	}
	if err := config.GetDB().WithContext(ctx).Create(&gallery).Error; err != nil {
		config.LogError(config.GetLogger(), "Gallery", "CreateGallery", "create", input, err)
		return nil, err
	}
	return &gallery, nil
}

// MarkGalleryDelivered opens the gallery for add-on requests. Delivering twice is a no-op.
func MarkGalleryDelivered(ctx context.Context, organizationId string, id int) (*Gallery, error) {
	var result *Gallery
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gallery, err := utils.FetchModelTx[Gallery](tx, organizationId, id, true)
		if err != nil {
			return err
		}
		result = gallery
		if gallery.DeliveredAt != nil {
			return nil
		}
		now := time.Now().UTC()
		gallery.DeliveredAt = &now
		return tx.Model(gallery).Update("delivered_at", &now).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func GetGallery(ctx context.Context, organizationId string, id int) (*Gallery, error) {
	return utils.FetchModel[Gallery](ctx, organizationId, id)
}

func CreateGalleryAddon(ctx context.Context, organizationId string, input *NewGalleryAddon) (*GalleryAddon, error) {
	if _, err := requireActiveOrganization(ctx, organizationId); err != nil {
		return nil, err
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if err := utils.ValidateUnique[GalleryAddon](ctx, organizationId, "name", name, nil); err != nil {
		return nil, err
	}

	addon := GalleryAddon{
		OrganizationId: organizationId,
		Name:           name,
		Description:    input.Description,
		PriceCents:     input.PriceCents,
		IsActive:       true,
	}
	if err := config.GetDB().WithContext(ctx).Create(&addon).Error; err != nil {
		config.LogError(config.GetLogger(), "GalleryAddon", "CreateGalleryAddon", "create", input, err)
		return nil, err
	}
	return &addon, nil
}

// ListGalleryAddons returns the active catalog ordered by name.
func ListGalleryAddons(ctx context.Context, organizationId string) ([]*GalleryAddon, error) {
	var addons []*GalleryAddon
	err := config.GetDB().WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", organizationId, true).
		Order("name").
		Find(&addons).Error
	return addons, err
}
