package models

import (
	"math"
	"strings"

	"github.com/photoproos/studio_backend/utils"
)

// NewLineItem is the input shape shared by invoices and recurring invoice templates.
type NewLineItem struct {
	ItemType    LineItemType `json:"item_type"`
	Description string       `json:"description" validate:"required,max=500"`
	Quantity    int          `json:"quantity"`
	UnitCents   int64        `json:"unit_cents"`
}

// validateLineItems rejects empty lists, unknown types and negative quantity or price.
func validateLineItems(items []NewLineItem) error {
	if len(items) == 0 {
		return utils.NewValidationError("at least one line item is required")
	}
	for i, item := range items {
		if err := utils.ValidateInput(&item); err != nil {
			return err
		}
		if item.ItemType == "" {
			items[i].ItemType = LineItemTypeService
		} else if !item.ItemType.IsValid() {
			return utils.NewValidationError("line item %d: invalid item type %q", i+1, item.ItemType)
		}
		if item.Quantity <= 0 {
			return utils.NewValidationError("line item %d: quantity must be positive", i+1)
		}
		if item.UnitCents < 0 {
			return utils.NewValidationError("line item %d: unit price cannot be negative", i+1)
		}
		if strings.TrimSpace(item.Description) == "" {
			return utils.NewValidationError("line item %d: description is required", i+1)
		}
	}
	if _, err := lineItemsTotal(items); err != nil {
		return err
	}
	return nil
}

func lineAmount(quantity int, unitCents int64) (int64, error) {
	if unitCents != 0 && int64(quantity) > math.MaxInt64/unitCents {
		return 0, utils.NewValidationError("line amount is too large")
	}
	return int64(quantity) * unitCents, nil
}

func lineItemsTotal(items []NewLineItem) (int64, error) {
	var total int64
	for _, item := range items {
		amount, err := lineAmount(item.Quantity, item.UnitCents)
		if err != nil {
			return 0, err
		}
		if total > math.MaxInt64-amount {
			return 0, utils.NewValidationError("invoice total is too large")
		}
		total += amount
	}
	return total, nil
}
