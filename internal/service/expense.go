package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/installment-service/internal/installment"
	"github.com/Dan9191/installment-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Distribution is the outcome of spreading an expense over invoices.
type Distribution struct {
	Lines     []models.ExpenseDistribution `json:"lines"`
	Allocated decimal.Decimal              `json:"allocated"`
	Remainder decimal.Decimal              `json:"remainder"`
	Partial   bool                         `json:"partial"`
}

// CreateExpense stores a new draft expense with a generated reference
func (s *Service) CreateExpense(ctx context.Context, e *models.Expense) error {
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: expense amount must be greater than zero", models.ErrValidation)
	}
	if e.TaxPercent.IsNegative() || e.TaxPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: tax percent must be between 0 and 100", models.ErrValidation)
	}
	if e.Date.IsZero() {
		e.Date = s.Today()
	}
	if e.Currency == "" {
		e.Currency = "AED"
	}
	e.Reference = "EXP-" + strings.ToUpper(uuid.NewString()[:8])
	e.State = models.ExpenseDraft

	if err := s.repo.CreateExpense(ctx, e); err != nil {
		return err
	}
	s.log.Infof("Expense %s created: %s", e.Reference, e.Amount.StringFixed(installment.Precision))
	return nil
}

// DistributeExpense spreads a draft expense over the partner's posted
// invoices and credit notes, oldest first, and replaces its distribution
// lines. A partial distribution is reported, not rejected.
func (s *Service) DistributeExpense(ctx context.Context, expenseID int64) (*Distribution, error) {
	e, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if e.State != models.ExpenseDraft {
		return nil, fmt.Errorf("%w: expense %s is %s", models.ErrInvalidState, e.Reference, e.State)
	}

	invoices, err := s.repo.ListDistributableInvoices(ctx, e.PartnerID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Invoice, len(invoices))
	targets := make([]installment.DistributionTarget, 0, len(invoices))
	for _, inv := range invoices {
		id := strconv.FormatInt(inv.ID, 10)
		byID[id] = inv
		targets = append(targets, installment.DistributionTarget{
			TargetID:          id,
			CapacityRemaining: installment.Capacity(inv.AmountUntaxed, inv.AlreadyDistributed),
		})
	}

	res, err := installment.DistributeProportional(e.Amount, targets)
	if err != nil {
		return nil, err
	}

	lines := make([]models.ExpenseDistribution, len(res.Allocations))
	for i, a := range res.Allocations {
		inv := byID[a.TargetID]
		lines[i] = models.ExpenseDistribution{
			ExpenseID:    e.ID,
			InvoiceID:    inv.ID,
			Sequence:     (i + 1) * 10,
			Amount:       a.Amount,
			MoveType:     inv.MoveType,
			InvoiceTotal: inv.AmountTotal,
		}
	}

	if err := s.repo.ReplaceDistributions(ctx, e.ID, lines); err != nil {
		return nil, err
	}

	s.metrics.ExpenseDistributed(res.Partial)
	if res.Partial {
		s.log.Warnf("Expense %s only partly distributed: %s left over", e.Reference, res.Remainder.StringFixed(installment.Precision))
	} else {
		s.log.Infof("Expense %s distributed over %d invoice(s)", e.Reference, len(lines))
	}

	return &Distribution{
		Lines:     lines,
		Allocated: res.Allocated,
		Remainder: res.Remainder,
		Partial:   res.Partial,
	}, nil
}

// ComputeTotals derives tax and bank settlement figures for an expense.
// Lines on credit notes count negative in the distributed total. The bank
// amount is what the marketplace pays out: invoice totals less credit notes
// less the expense with tax.
func ComputeTotals(e *models.Expense, lines []models.ExpenseDistribution) models.ExpenseTotals {
	t := models.ExpenseTotals{
		TaxAmount:        e.Amount.Mul(e.TaxPercent).Div(hundred).Round(installment.Precision),
		TotalDistributed: decimal.Zero,
		TotalInvoices:    decimal.Zero,
		TotalCreditNotes: decimal.Zero,
	}
	t.TotalWithTax = e.Amount.Add(t.TaxAmount)

	for _, l := range lines {
		switch l.MoveType {
		case models.MoveInvoice:
			t.TotalDistributed = t.TotalDistributed.Add(l.Amount)
			t.TotalInvoices = t.TotalInvoices.Add(l.InvoiceTotal.Abs())
		case models.MoveRefund:
			t.TotalDistributed = t.TotalDistributed.Sub(l.Amount)
			t.TotalCreditNotes = t.TotalCreditNotes.Add(l.InvoiceTotal.Abs())
		}
	}
	t.CalculatedBankAmount = t.TotalInvoices.Sub(t.TotalCreditNotes).Sub(t.TotalWithTax)
	return t
}

// ExpenseTotals loads an expense with its lines and computes its totals
func (s *Service) ExpenseTotals(ctx context.Context, expenseID int64) (*models.ExpenseTotals, error) {
	e, lines, err := s.expenseWithLines(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	t := ComputeTotals(e, lines)
	return &t, nil
}

func (s *Service) expenseWithLines(ctx context.Context, expenseID int64) (*models.Expense, []models.ExpenseDistribution, error) {
	e, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.repo.ListDistributions(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	return e, lines, nil
}

// PostExpense posts a distributed draft expense
func (s *Service) PostExpense(ctx context.Context, expenseID int64) (*models.Expense, error) {
	e, lines, err := s.expenseWithLines(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if e.State != models.ExpenseDraft {
		return nil, fmt.Errorf("%w: only draft expenses can be posted", models.ErrInvalidState)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: expense %s has no distribution lines", models.ErrValidation, e.Reference)
	}
	if t := ComputeTotals(e, lines); t.CalculatedBankAmount.IsNegative() {
		return nil, fmt.Errorf("%w: calculated bank amount %s is negative", models.ErrValidation,
			t.CalculatedBankAmount.StringFixed(installment.Precision))
	}

	return s.moveExpense(ctx, e, []models.ExpenseState{models.ExpenseDraft}, models.ExpensePosted)
}

// CancelExpense cancels a draft or posted expense
func (s *Service) CancelExpense(ctx context.Context, expenseID int64) (*models.Expense, error) {
	e, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	return s.moveExpense(ctx, e, []models.ExpenseState{models.ExpenseDraft, models.ExpensePosted}, models.ExpenseCancelled)
}

func (s *Service) moveExpense(ctx context.Context, e *models.Expense, from []models.ExpenseState, to models.ExpenseState) (*models.Expense, error) {
	ok, err := s.repo.TransitionExpense(ctx, e.ID, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: expense %s cannot move from %s to %s", models.ErrInvalidState, e.Reference, e.State, to)
	}
	s.log.Infof("Expense %s: %s -> %s", e.Reference, e.State, to)
	e.State = to
	return e, nil
}
