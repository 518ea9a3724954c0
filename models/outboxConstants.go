package models

// Outbox publish statuses for OutboxEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type EventType string

const (
	EventRecurringInvoiceMaterialized EventType = "recurring_invoice.materialized"

	EventInvoiceIssued          EventType = "invoice.issued"
	EventInvoicePaymentRecorded EventType = "invoice.payment_recorded"
	EventInvoiceVoided          EventType = "invoice.voided"

	EventCreditNoteIssued   EventType = "credit_note.issued"
	EventCreditNoteApplied  EventType = "credit_note.applied"
	EventCreditNoteRefunded EventType = "credit_note.refunded"
	EventCreditNoteVoided   EventType = "credit_note.voided"

	EventAddonRequestCreated   EventType = "addon_request.created"
	EventAddonRequestQuoted    EventType = "addon_request.quoted"
	EventAddonRequestApproved  EventType = "addon_request.approved"
	EventAddonRequestDeclined  EventType = "addon_request.declined"
	EventAddonRequestStarted   EventType = "addon_request.started"
	EventAddonRequestCompleted EventType = "addon_request.completed"
	EventAddonRequestCancelled EventType = "addon_request.cancelled"
)

const (
	AggregateRecurringInvoice = "recurring_invoice"
	AggregateInvoice          = "invoice"
	AggregateCreditNote       = "credit_note"
	AggregateAddonRequest     = "addon_request"
)
