package models

import (
	"errors"
	"fmt"

	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	InvoiceNumberPrefix    = "INV"
	CreditNoteNumberPrefix = "CN"
)

// NumberSequence hands out gap-free document numbers per organization and prefix.
type NumberSequence struct {
	ID             int    `gorm:"primary_key" json:"id"`
	OrganizationId string `gorm:"size:36;not null;index:uniq_number_sequence,unique" json:"organization_id"`
	Prefix         string `gorm:"size:16;not null;index:uniq_number_sequence,unique" json:"prefix"`
	NextValue      int    `gorm:"not null" json:"next_value"`
}

// nextDocumentNumber must run inside the transaction that stores the document,
// so a rollback gives the number back.
func nextDocumentNumber(tx *gorm.DB, organizationId string, prefix string) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var seq NumberSequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("organization_id = ? AND prefix = ?", organizationId, prefix).
			First(&seq).Error
		if err == nil {
			value := seq.NextValue
			if err := tx.Model(&seq).Update("next_value", value+1).Error; err != nil {
				return "", err
			}
			return formatDocumentNumber(prefix, value), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}

		seq = NumberSequence{OrganizationId: organizationId, Prefix: prefix, NextValue: 2}
		if err := tx.Create(&seq).Error; err != nil {
			if utils.IsDuplicateKeyErr(err) {
				// another transaction created the row first; lock it and retry
				continue
			}
			return "", err
		}
		return formatDocumentNumber(prefix, 1), nil
	}
	return "", utils.NewConcurrencyConflictError("number sequence")
}

func formatDocumentNumber(prefix string, value int) string {
	return fmt.Sprintf("%s-%05d", prefix, value)
}
