package models

import (
	"gorm.io/gorm"
)

// AllModels lists every table owned by the service, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&Organization{}, &NumberSequence{},
		&Client{},
		&Invoice{}, &InvoiceLineItem{},
		&RecurringInvoice{}, &RecurringInvoiceLineItem{},
		&CreditNote{}, &CreditNoteApplication{},
		&Gallery{}, &GalleryAddon{}, &GalleryAddonRequest{},
		&OutboxEvent{}, &IdempotencyKey{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
