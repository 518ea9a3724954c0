package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
)

// OutboxEvent is written in the same transaction as the change it describes.
// The dispatcher publishes it to Pub/Sub after commit.
type OutboxEvent struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	OrganizationId   string     `gorm:"size:36;not null;index" json:"organization_id"`
	EventType        EventType  `gorm:"size:64;not null;index" json:"event_type"`
	AggregateType    string     `gorm:"size:32;not null;index:idx_outbox_aggregate,priority:1" json:"aggregate_type"`
	AggregateId      int        `gorm:"not null;index:idx_outbox_aggregate,priority:2" json:"aggregate_id"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	OccurredAt       time.Time  `gorm:"not null" json:"occurred_at"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	PublishStatus    string     `gorm:"size:20;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e OutboxEvent) GetId() int {
	return e.ID
}

func (e OutboxEvent) ToMessage() config.DomainEventMessage {
	return config.DomainEventMessage{
		ID:             e.ID,
		OrganizationId: e.OrganizationId,
		EventType:      string(e.EventType),
		AggregateType:  e.AggregateType,
		AggregateId:    e.AggregateId,
		OccurredAt:     e.OccurredAt,
		Payload:        json.RawMessage(e.Payload),
		CorrelationId:  e.CorrelationId,
	}
}

// publishEvent implements the transactional outbox:
// it writes the event inside the caller's transaction but does NOT publish to Pub/Sub.
func publishEvent(ctx context.Context, tx *gorm.DB, organizationId string, eventType EventType, aggregateType string, aggregateId int, obj interface{}) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	record := OutboxEvent{
		OrganizationId: organizationId,
		EventType:      eventType,
		AggregateType:  aggregateType,
		AggregateId:    aggregateId,
		Payload:        payload,
		OccurredAt:     time.Now().UTC(),
		CorrelationId:  correlationIdFromContextOrNew(ctx),
		PublishStatus:  OutboxPublishStatusPending,
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ListAggregateEvents returns the events recorded for one aggregate, oldest first.
func ListAggregateEvents(ctx context.Context, organizationId string, aggregateType string, aggregateId int) ([]*OutboxEvent, error) {
	var events []*OutboxEvent
	err := config.GetDB().WithContext(ctx).
		Where("organization_id = ? AND aggregate_type = ? AND aggregate_id = ?", organizationId, aggregateType, aggregateId).
		Order("id").
		Find(&events).Error
	return events, err
}

// ReplayOutboxEvent puts a FAILED or DEAD event back in the dispatch queue.
func ReplayOutboxEvent(ctx context.Context, id int) (*OutboxEvent, error) {
	db := config.GetDB().WithContext(utils.WithoutTenantScope(ctx))

	res := db.Model(&OutboxEvent{}).
		Where("id = ? AND publish_status IN ?", id, []string{OutboxPublishStatusFailed, OutboxPublishStatusDead}).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusPending,
			"publish_attempts":   0,
			"next_attempt_at":    nil,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	var event OutboxEvent
	if err := db.First(&event, id).Error; err != nil {
		return nil, utils.NewNotFoundError("outbox event")
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewInvalidStateError("outbox event %d is %s, only FAILED or DEAD events can be replayed", id, event.PublishStatus)
	}
	return &event, nil
}
