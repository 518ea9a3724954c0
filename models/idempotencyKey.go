package models

import "time"

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyKey records the outcome of one unit of background work.
// Unique constraint: (organization_id, handler_name, key).
type IdempotencyKey struct {
	ID             int               `gorm:"primary_key" json:"id"`
	OrganizationId string            `gorm:"size:36;not null;index:uniq_idem,unique,priority:1" json:"organization_id"`
	HandlerName    string            `gorm:"size:100;not null;index:uniq_idem,unique,priority:2" json:"handler_name"`
	Key            string            `gorm:"column:idem_key;size:255;not null;index:uniq_idem,unique,priority:3" json:"key"`
	Status         IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	LastError      *string           `gorm:"type:text" json:"last_error"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
