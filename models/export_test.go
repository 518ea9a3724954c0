package models

var (
	SaveCreditNote           = saveCreditNote
	SaveInvoiceBalance       = saveInvoiceBalance
	AdvanceRecurringSchedule = advanceRecurringSchedule
)
