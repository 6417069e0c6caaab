package installment

import (
	"github.com/shopspring/decimal"
)

// DistributeProportional walks targets in the given order and assigns each
// one min(remaining expense, target capacity) until the expense is used up
// or the targets run out. Callers control priority by sorting targets first
// (oldest invoice first, for example).
//
// Targets that receive nothing are left out of the result. When capacity is
// short the result is flagged Partial and carries the undistributed
// Remainder; that is not an error here, see DistributionResult.Err.
func DistributeProportional(expense decimal.Decimal, targets []DistributionTarget) (DistributionResult, error) {
	if !expense.IsPositive() {
		return DistributionResult{}, ErrInvalidAmount
	}
	for _, t := range targets {
		if t.CapacityRemaining.IsNegative() {
			return DistributionResult{}, ErrInvalidCapacity
		}
	}

	res := DistributionResult{
		Allocations: make([]Allocation, 0, len(targets)),
		Allocated:   decimal.Zero,
	}
	remaining := expense
	for _, t := range targets {
		if !remaining.IsPositive() {
			break
		}
		amount := decimal.Min(remaining, t.CapacityRemaining)
		if !amount.IsPositive() {
			continue
		}
		res.Allocations = append(res.Allocations, Allocation{TargetID: t.TargetID, Amount: amount})
		res.Allocated = res.Allocated.Add(amount)
		remaining = remaining.Sub(amount)
	}

	res.Remainder = remaining
	res.Partial = remaining.IsPositive()
	return res, nil
}

// Capacity returns what a target can still take: limit minus used, never
// below zero.
func Capacity(limit, used decimal.Decimal) decimal.Decimal {
	left := limit.Abs().Sub(used)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}
