package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cheque holds post-dated cheque details for an installment.
// Number is stored encrypted; Fingerprint is an HMAC of the number and is
// unique across all cheques.
type Cheque struct {
	Number      string    `json:"number"`
	BankName    string    `json:"bank_name"`
	Date        time.Time `json:"date"`
	Fingerprint string    `json:"-"`
}

// ChequeLine is one row of the cheque entry form submitted on approval.
type ChequeLine struct {
	InstallmentNo int             `json:"installment_no"`
	Number        string          `json:"cheque_no"`
	BankName      string          `json:"bank_name"`
	Date          time.Time       `json:"cheque_date"`
	Amount        decimal.Decimal `json:"amount"`
}
