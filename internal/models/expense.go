package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseState is the posting state of an expense.
type ExpenseState string

const (
	ExpenseDraft     ExpenseState = "draft"
	ExpensePosted    ExpenseState = "posted"
	ExpenseCancelled ExpenseState = "cancelled"
)

// Expense is a marketplace charge to be spread over customer invoices
type Expense struct {
	ID          int64           `json:"id"`
	Reference   string          `json:"reference"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	PartnerID   int64           `json:"partner_id"`
	Amount      decimal.Decimal `json:"amount"` // without VAT
	Currency    string          `json:"currency"`
	Platform    string          `json:"platform"`
	ExpenseType string          `json:"expense_type"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
	State       ExpenseState    `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MoveType distinguishes invoices from credit notes.
type MoveType string

const (
	MoveInvoice MoveType = "out_invoice"
	MoveRefund  MoveType = "out_refund"
)

// Invoice is a posted customer invoice or credit note an expense can be
// distributed to. AlreadyDistributed sums distributions from posted expenses.
type Invoice struct {
	ID                 int64           `json:"id"`
	Number             string          `json:"number"`
	PartnerID          int64           `json:"partner_id"`
	MoveType           MoveType        `json:"move_type"`
	InvoiceDate        time.Time       `json:"invoice_date"`
	AmountUntaxed      decimal.Decimal `json:"amount_untaxed"`
	AmountTotal        decimal.Decimal `json:"amount_total"`
	AlreadyDistributed decimal.Decimal `json:"already_distributed"`
}

// ExpenseDistribution is the share of an expense assigned to one invoice
type ExpenseDistribution struct {
	ID        int64           `json:"id"`
	ExpenseID int64           `json:"expense_id"`
	InvoiceID int64           `json:"invoice_id"`
	Sequence  int             `json:"sequence"`
	Amount    decimal.Decimal `json:"amount"`
	MoveType  MoveType        `json:"move_type"`

	// InvoiceTotal is the full invoice total, used for bank settlement.
	InvoiceTotal decimal.Decimal `json:"invoice_total"`
}

// ExpenseTotals summarises an expense against its distributions.
type ExpenseTotals struct {
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	TotalWithTax         decimal.Decimal `json:"total_with_tax"`
	TotalDistributed     decimal.Decimal `json:"total_distributed"`
	TotalInvoices        decimal.Decimal `json:"total_invoices"`
	TotalCreditNotes     decimal.Decimal `json:"total_credit_notes"`
	CalculatedBankAmount decimal.Decimal `json:"calculated_bank_amount"`
}
