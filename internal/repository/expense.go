package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Dan9191/installment-service/internal/models"
)

// CreateExpense inserts a draft expense
func (r *Repository) CreateExpense(ctx context.Context, e *models.Expense) error {
	query := `
		INSERT INTO erp.expenses (reference, date, description, partner_id, amount, currency,
			platform, expense_type, tax_percent, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		e.Reference, e.Date, e.Description, e.PartnerID, e.Amount, e.Currency,
		e.Platform, e.ExpenseType, e.TaxPercent, e.State,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return mapPQError(err, "expense")
	}
	return nil
}

// GetExpense retrieves an expense by id
func (r *Repository) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	var e models.Expense
	query := `
		SELECT id, reference, date, description, partner_id, amount, currency,
		       platform, expense_type, tax_percent, state, created_at, updated_at
		FROM erp.expenses
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Reference, &e.Date, &e.Description, &e.PartnerID, &e.Amount, &e.Currency,
		&e.Platform, &e.ExpenseType, &e.TaxPercent, &e.State, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %d %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return &e, nil
}

// ListDistributableInvoices returns the partner's posted invoices and credit
// notes, oldest first, with what posted expenses already took from each.
func (r *Repository) ListDistributableInvoices(ctx context.Context, partnerID int64) ([]models.Invoice, error) {
	query := `
		SELECT inv.id, inv.number, inv.partner_id, inv.move_type, inv.invoice_date,
		       inv.amount_untaxed, inv.amount_total,
		       COALESCE(SUM(d.amount) FILTER (WHERE e.state = $2), 0) AS already_distributed
		FROM erp.invoices inv
		LEFT JOIN erp.expense_distributions d ON d.invoice_id = inv.id
		LEFT JOIN erp.expenses e ON e.id = d.expense_id
		WHERE inv.partner_id = $1 AND inv.state = 'posted'
		GROUP BY inv.id
		ORDER BY inv.invoice_date, inv.id`
	rows, err := r.db.QueryContext(ctx, query, partnerID, models.ExpensePosted)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := rows.Scan(
			&inv.ID, &inv.Number, &inv.PartnerID, &inv.MoveType, &inv.InvoiceDate,
			&inv.AmountUntaxed, &inv.AmountTotal, &inv.AlreadyDistributed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ReplaceDistributions swaps the expense's distribution lines for lines in
// one transaction.
func (r *Repository) ReplaceDistributions(ctx context.Context, expenseID int64, lines []models.ExpenseDistribution) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM erp.expense_distributions WHERE expense_id = $1`, expenseID); err != nil {
			return fmt.Errorf("failed to clear distributions: %w", err)
		}
		for i := range lines {
			l := &lines[i]
			err := tx.QueryRowContext(ctx, `
				INSERT INTO erp.expense_distributions (expense_id, invoice_id, sequence, amount)
				VALUES ($1, $2, $3, $4)
				RETURNING id`,
				expenseID, l.InvoiceID, l.Sequence, l.Amount,
			).Scan(&l.ID)
			if err != nil {
				return mapPQError(err, "distribution")
			}
			l.ExpenseID = expenseID
		}
		return nil
	})
}

// ListDistributions returns the expense's lines with invoice type and total
func (r *Repository) ListDistributions(ctx context.Context, expenseID int64) ([]models.ExpenseDistribution, error) {
	query := `
		SELECT d.id, d.expense_id, d.invoice_id, d.sequence, d.amount, inv.move_type, inv.amount_total
		FROM erp.expense_distributions d
		JOIN erp.invoices inv ON inv.id = d.invoice_id
		WHERE d.expense_id = $1
		ORDER BY d.sequence, d.id`
	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query distributions: %w", err)
	}
	defer rows.Close()

	var out []models.ExpenseDistribution
	for rows.Next() {
		var d models.ExpenseDistribution
		if err := rows.Scan(&d.ID, &d.ExpenseID, &d.InvoiceID, &d.Sequence, &d.Amount, &d.MoveType, &d.InvoiceTotal); err != nil {
			return nil, fmt.Errorf("failed to scan distribution: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TransitionExpense moves an expense from one state to another, reporting
// false when it was not in the expected state.
func (r *Repository) TransitionExpense(ctx context.Context, id int64, from []models.ExpenseState, to models.ExpenseState) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE erp.expenses
		SET state = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND state = ANY($3)`,
		to, id, pq.Array(states))
	if err != nil {
		return false, fmt.Errorf("failed to update expense state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update expense state: %w", err)
	}
	return n > 0, nil
}
