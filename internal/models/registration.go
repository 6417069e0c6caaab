package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a registration discount is expressed.
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
)

// PaymentType is either a single payment or installments.
type PaymentType string

const (
	PaymentFull         PaymentType = "full"
	PaymentInstallments PaymentType = "installments"
)

// PaymentMethod is how installments are settled.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodBank   PaymentMethod = "bank"
	MethodCheque PaymentMethod = "cheque"
	MethodMixed  PaymentMethod = "mixed"
)

// RegistrationState is the approval state of a registration.
type RegistrationState string

const (
	RegistrationDraft    RegistrationState = "draft"
	RegistrationApproved RegistrationState = "approved"
)

// Installment count bounds for the installments payment type.
const (
	MinInstallments = 2
	MaxInstallments = 12
)

// Registration represents a nursery child registration
type Registration struct {
	ID                 int64             `json:"id"`
	ChildName          string            `json:"child_name"`
	IdentityNumber     string            `json:"identity_number"`
	Email              string            `json:"email"`
	RegistrationPrice  decimal.Decimal   `json:"registration_price"`
	DiscountType       DiscountType      `json:"discount_type"`
	DiscountPercentage decimal.Decimal   `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal   `json:"discount_amount"`
	PaymentType        PaymentType       `json:"payment_type"`
	InstallmentsCount  int               `json:"installments_count"`
	PaymentMethod      PaymentMethod     `json:"payment_method"`
	JoinDate           time.Time         `json:"join_date"`
	State              RegistrationState `json:"state"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TotalDiscount returns the discount applied to the registration price.
func (r *Registration) TotalDiscount() decimal.Decimal {
	switch r.DiscountType {
	case DiscountPercentage:
		return r.RegistrationPrice.Mul(r.DiscountPercentage).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountAmount:
		return decimal.Min(r.DiscountAmount, r.RegistrationPrice)
	default:
		return decimal.Zero
	}
}

// FinalPrice is the price after discount.
func (r *Registration) FinalPrice() decimal.Decimal {
	return r.RegistrationPrice.Sub(r.TotalDiscount())
}

// ScheduleCount is the number of installments the schedule will have.
func (r *Registration) ScheduleCount() int {
	if r.PaymentType == PaymentFull {
		return 1
	}
	return r.InstallmentsCount
}

// Validate checks discount and installment rules.
func (r *Registration) Validate() error {
	if !r.RegistrationPrice.IsPositive() {
		return fmt.Errorf("%w: registration %d has no price", ErrValidation, r.ID)
	}
	switch r.DiscountType {
	case DiscountPercentage:
		if r.DiscountPercentage.IsNegative() || r.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: discount percentage must be between 0 and 100", ErrValidation)
		}
	case DiscountAmount:
		if r.DiscountAmount.IsNegative() {
			return fmt.Errorf("%w: discount amount must not be negative", ErrValidation)
		}
		if r.DiscountAmount.GreaterThan(r.RegistrationPrice) {
			return fmt.Errorf("%w: discount amount exceeds registration price", ErrValidation)
		}
	case DiscountNone, "":
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrValidation, r.DiscountType)
	}
	switch r.PaymentType {
	case PaymentFull:
	case PaymentInstallments:
		if r.InstallmentsCount < MinInstallments || r.InstallmentsCount > MaxInstallments {
			return fmt.Errorf("%w: installments count must be between %d and %d", ErrValidation, MinInstallments, MaxInstallments)
		}
	default:
		return fmt.Errorf("%w: unknown payment type %q", ErrValidation, r.PaymentType)
	}
	if !r.FinalPrice().IsPositive() {
		return fmt.Errorf("%w: final price must be greater than zero", ErrValidation)
	}
	return nil
}
