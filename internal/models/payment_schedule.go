package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentState tracks an installment through invoicing and payment.
type InstallmentState string

const (
	InstallmentDraft    InstallmentState = "draft"
	InstallmentInvoiced InstallmentState = "invoiced"
	InstallmentPaid     InstallmentState = "paid"
	InstallmentOverdue  InstallmentState = "overdue"
)

// PaymentSchedule represents one persisted installment of a registration
type PaymentSchedule struct {
	ID             int64            `json:"id"`
	RegistrationID int64            `json:"registration_id"`
	InstallmentNo  int              `json:"installment_no"`
	Amount         decimal.Decimal  `json:"amount"`
	DueDate        time.Time        `json:"due_date"`
	PaymentMethod  PaymentMethod    `json:"payment_method"`
	State          InstallmentState `json:"state"`
	InvoiceRef     string           `json:"invoice_ref,omitempty"`
	Cheque         *Cheque          `json:"cheque,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsOverdue reports whether the installment is unpaid past its due date.
func (p *PaymentSchedule) IsOverdue(today time.Time) bool {
	return p.State != InstallmentPaid && p.DueDate.Before(today)
}

// Reminder is an installment that needs a notification, joined with the
// registration contact.
type Reminder struct {
	Installment PaymentSchedule
	ChildName   string
	Email       string
	Overdue     bool
}
