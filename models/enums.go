package models

import (
	"fmt"
)

type RecurringFrequency string

const (
	RecurringFrequencyWeekly    RecurringFrequency = "weekly"
	RecurringFrequencyBiweekly  RecurringFrequency = "biweekly"
	RecurringFrequencyMonthly   RecurringFrequency = "monthly"
	RecurringFrequencyQuarterly RecurringFrequency = "quarterly"
	RecurringFrequencyYearly    RecurringFrequency = "yearly"
)

func (f RecurringFrequency) IsValid() bool {
	switch f {
	case RecurringFrequencyWeekly, RecurringFrequencyBiweekly, RecurringFrequencyMonthly,
		RecurringFrequencyQuarterly, RecurringFrequencyYearly:
		return true
	}
	return false
}

// convert input to enum type
func (f *RecurringFrequency) UnmarshalText(b []byte) error {
	v := RecurringFrequency(b)
	if !v.IsValid() {
		return fmt.Errorf("invalid recurring frequency %q", string(b))
	}
	*f = v
	return nil
}

// RecurringInvoiceState is derived from the active/paused flags.
type RecurringInvoiceState string

const (
	RecurringInvoiceStateActive   RecurringInvoiceState = "active"
	RecurringInvoiceStatePaused   RecurringInvoiceState = "paused"
	RecurringInvoiceStateInactive RecurringInvoiceState = "inactive"
)

func (s RecurringInvoiceState) IsValid() bool {
	switch s {
	case RecurringInvoiceStateActive, RecurringInvoiceStatePaused, RecurringInvoiceStateInactive:
		return true
	}
	return false
}

type CreditNoteStatus string

const (
	CreditNoteStatusDraft    CreditNoteStatus = "draft"
	CreditNoteStatusIssued   CreditNoteStatus = "issued"
	CreditNoteStatusApplied  CreditNoteStatus = "applied"
	CreditNoteStatusRefunded CreditNoteStatus = "refunded"
	CreditNoteStatusVoided   CreditNoteStatus = "voided"
)

func (s CreditNoteStatus) IsValid() bool {
	switch s {
	case CreditNoteStatusDraft, CreditNoteStatusIssued, CreditNoteStatusApplied,
		CreditNoteStatusRefunded, CreditNoteStatusVoided:
		return true
	}
	return false
}

func (s *CreditNoteStatus) UnmarshalText(b []byte) error {
	v := CreditNoteStatus(b)
	if !v.IsValid() {
		return fmt.Errorf("invalid credit note status %q", string(b))
	}
	*s = v
	return nil
}

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusOpen    InvoiceStatus = "open"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusOpen, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid:
		return true
	}
	return false
}

func (s *InvoiceStatus) UnmarshalText(b []byte) error {
	v := InvoiceStatus(b)
	if !v.IsValid() {
		return fmt.Errorf("invalid invoice status %q", string(b))
	}
	*s = v
	return nil
}

type AddonRequestStatus string

const (
	AddonRequestStatusPending    AddonRequestStatus = "pending"
	AddonRequestStatusQuoted     AddonRequestStatus = "quoted"
	AddonRequestStatusApproved   AddonRequestStatus = "approved"
	AddonRequestStatusInProgress AddonRequestStatus = "in_progress"
	AddonRequestStatusCompleted  AddonRequestStatus = "completed"
	AddonRequestStatusDeclined   AddonRequestStatus = "declined"
	AddonRequestStatusCancelled  AddonRequestStatus = "cancelled"
)

func (s AddonRequestStatus) IsValid() bool {
	switch s {
	case AddonRequestStatusPending, AddonRequestStatusQuoted, AddonRequestStatusApproved,
		AddonRequestStatusInProgress, AddonRequestStatusCompleted, AddonRequestStatusDeclined,
		AddonRequestStatusCancelled:
		return true
	}
	return false
}

func (s *AddonRequestStatus) UnmarshalText(b []byte) error {
	v := AddonRequestStatus(b)
	if !v.IsValid() {
		return fmt.Errorf("invalid add-on request status %q", string(b))
	}
	*s = v
	return nil
}

type LineItemType string

const (
	LineItemTypeService LineItemType = "service"
	LineItemTypeProduct LineItemType = "product"
	LineItemTypePackage LineItemType = "package"
	LineItemTypeCustom  LineItemType = "custom"
)

func (t LineItemType) IsValid() bool {
	switch t {
	case LineItemTypeService, LineItemTypeProduct, LineItemTypePackage, LineItemTypeCustom:
		return true
	}
	return false
}

func (t *LineItemType) UnmarshalText(b []byte) error {
	v := LineItemType(b)
	if !v.IsValid() {
		return fmt.Errorf("invalid line item type %q", string(b))
	}
	*t = v
	return nil
}
