// Package installment splits monetary totals into dated installments and
// distributes expense amounts across capacity-bounded targets.
// Functions here never mutate their inputs.
package installment

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places money amounts are rounded to.
const Precision int32 = 2

var (
	// ErrInvalidInput is the parent of every validation error returned before
	// any allocation is attempted.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidAmount reports a non-positive total or expense amount.
	ErrInvalidAmount = fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	// ErrInvalidCount reports an installment count below one.
	ErrInvalidCount = fmt.Errorf("%w: count must be at least 1", ErrInvalidInput)
	// ErrInvalidDate reports a missing start date.
	ErrInvalidDate = fmt.Errorf("%w: start date is required", ErrInvalidInput)
	// ErrInvalidStep reports a negative month step.
	ErrInvalidStep = fmt.Errorf("%w: step must not be negative", ErrInvalidInput)
	// ErrInvalidCapacity reports a distribution target with negative capacity.
	ErrInvalidCapacity = fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)

	// ErrPartialAllocation is returned by DistributionResult.Err when the
	// targets could not absorb the whole expense.
	ErrPartialAllocation = errors.New("partial allocation")
)

// Installment is one scheduled partial payment.
type Installment struct {
	SequenceNo int             `json:"sequence_no"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    time.Time       `json:"due_date"`
}

// RemainderPolicy decides which installments absorb rounding cents.
type RemainderPolicy int

const (
	// RemainderLast rounds every installment but the last to cents and gives
	// the last one whatever is left.
	RemainderLast RemainderPolicy = iota
	// RemainderSpread truncates the base amount and hands the leftover cents
	// out one by one starting from the first installment.
	RemainderSpread
)

func (p RemainderPolicy) String() string {
	switch p {
	case RemainderLast:
		return "last"
	case RemainderSpread:
		return "spread"
	default:
		return fmt.Sprintf("RemainderPolicy(%d)", int(p))
	}
}

// ParseRemainderPolicy maps "last" / "spread" (or empty) to a policy.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch s {
	case "", "last":
		return RemainderLast, nil
	case "spread":
		return RemainderSpread, nil
	default:
		return RemainderLast, fmt.Errorf("%w: unknown remainder policy %q", ErrInvalidInput, s)
	}
}

// AllocationRequest describes an equal split.
type AllocationRequest struct {
	TotalAmount decimal.Decimal
	Count       int
	StartDate   time.Time
	// StepMonths is the distance between due dates. Zero means one month.
	StepMonths int
	Policy     RemainderPolicy
}

// DistributionTarget is something that can absorb part of an expense, such
// as an invoice with untouched room left on it.
type DistributionTarget struct {
	TargetID          string          `json:"target_id"`
	CapacityRemaining decimal.Decimal `json:"capacity_remaining"`
}

// Allocation is the amount assigned to one target.
type Allocation struct {
	TargetID string          `json:"target_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// DistributionResult is the outcome of DistributeProportional.
type DistributionResult struct {
	Allocations []Allocation    `json:"allocations"`
	Allocated   decimal.Decimal `json:"allocated"`
	Remainder   decimal.Decimal `json:"remainder"`
	Partial     bool            `json:"partial"`
}

// Err returns ErrPartialAllocation when part of the expense was left over.
func (r DistributionResult) Err() error {
	if r.Partial {
		return fmt.Errorf("%w: %s left undistributed", ErrPartialAllocation, r.Remainder.StringFixed(Precision))
	}
	return nil
}

// Sum adds up installment amounts.
func Sum(items []Installment) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// HasDuplicates reports whether any non-zero key appears more than once.
// Zero values (empty strings, 0) are skipped so callers can pass optional
// fields without pre-filtering.
func HasDuplicates[K comparable](keys []K) bool {
	var zero K
	seen := make(map[K]struct{}, len(keys))
	checked := 0
	for _, k := range keys {
		if k == zero {
			continue
		}
		seen[k] = struct{}{}
		checked++
	}
	return len(seen) != checked
}
