package installment

import (
	"time"

	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -Precision)

// SplitEqual divides total into count monthly installments starting at
// start. The last installment carries the rounding remainder so that the
// amounts always add up to total exactly.
func SplitEqual(total decimal.Decimal, count int, start time.Time) ([]Installment, error) {
	return Split(AllocationRequest{
		TotalAmount: total,
		Count:       count,
		StartDate:   start,
		StepMonths:  1,
		Policy:      RemainderLast,
	})
}

// Split is the general form of SplitEqual.
func Split(req AllocationRequest) ([]Installment, error) {
	if !req.TotalAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.Count < 1 {
		return nil, ErrInvalidCount
	}
	if req.StartDate.IsZero() {
		return nil, ErrInvalidDate
	}
	if req.StepMonths < 0 {
		return nil, ErrInvalidStep
	}
	step := req.StepMonths
	if step == 0 {
		step = 1
	}
	start := DateOf(req.StartDate)

	var amounts []decimal.Decimal
	switch req.Policy {
	case RemainderSpread:
		amounts = spreadAmounts(req.TotalAmount, req.Count)
	default:
		amounts = lastAmounts(req.TotalAmount, req.Count)
	}

	out := make([]Installment, req.Count)
	for i := range out {
		out[i] = Installment{
			SequenceNo: i + 1,
			Amount:     amounts[i],
			DueDate:    AddMonths(start, i*step),
		}
	}
	return out, nil
}

func lastAmounts(total decimal.Decimal, count int) []decimal.Decimal {
	if count == 1 {
		return []decimal.Decimal{total}
	}
	n := decimal.NewFromInt(int64(count))
	rest := decimal.NewFromInt(int64(count - 1))

	base := total.Div(n).Round(Precision)
	// Rounding up on tiny totals can overshoot; fall back to truncation so
	// the last installment never goes negative.
	if base.Mul(rest).GreaterThan(total) {
		base = total.Div(n).Truncate(Precision)
	}

	amounts := make([]decimal.Decimal, count)
	for i := 0; i < count-1; i++ {
		amounts[i] = base
	}
	amounts[count-1] = total.Sub(base.Mul(rest))
	return amounts
}

func spreadAmounts(total decimal.Decimal, count int) []decimal.Decimal {
	n := decimal.NewFromInt(int64(count))
	base := total.Div(n).Truncate(Precision)
	leftover := total.Sub(base.Mul(n))

	cents := leftover.Div(cent).Truncate(0)
	extra := int(cents.IntPart())
	residue := leftover.Sub(cents.Mul(cent))

	amounts := make([]decimal.Decimal, count)
	for i := range amounts {
		amounts[i] = base
		if i < extra {
			amounts[i] = amounts[i].Add(cent)
		}
	}
	// Sub-cent residue only shows up when total itself has more than two
	// decimal places.
	amounts[count-1] = amounts[count-1].Add(residue)
	return amounts
}

// DateOf strips the clock from t and returns the same calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves t forward by n calendar months keeping the day of month,
// or the last day of the target month when that day does not exist there
// (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
