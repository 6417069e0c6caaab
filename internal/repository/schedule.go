package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Dan9191/installment-service/internal/models"
)

const registrationColumns = `
	id, child_name, identity_number, email, registration_price, discount_type,
	discount_percentage, discount_amount, payment_type, installments_count,
	payment_method, join_date, state, created_at, updated_at`

const scheduleColumns = `
	id, registration_id, installment_no, amount, due_date, payment_method, state,
	invoice_ref, cheque_no_enc, cheque_fingerprint, bank_name, cheque_date,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (models.PaymentSchedule, error) {
	var (
		p           models.PaymentSchedule
		chequeNo    sql.NullString
		fingerprint sql.NullString
		bankName    sql.NullString
		chequeDate  sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.RegistrationID, &p.InstallmentNo, &p.Amount, &p.DueDate,
		&p.PaymentMethod, &p.State, &p.InvoiceRef,
		&chequeNo, &fingerprint, &bankName, &chequeDate,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	if chequeNo.Valid {
		p.Cheque = &models.Cheque{
			Number:      chequeNo.String,
			BankName:    bankName.String,
			Date:        chequeDate.Time,
			Fingerprint: fingerprint.String,
		}
	}
	return p, nil
}

// GetRegistration retrieves a registration by id
func (r *Repository) GetRegistration(ctx context.Context, id int64) (*models.Registration, error) {
	var reg models.Registration
	query := `SELECT ` + registrationColumns + ` FROM erp.registrations WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&reg.ID, &reg.ChildName, &reg.IdentityNumber, &reg.Email, &reg.RegistrationPrice,
		&reg.DiscountType, &reg.DiscountPercentage, &reg.DiscountAmount, &reg.PaymentType,
		&reg.InstallmentsCount, &reg.PaymentMethod, &reg.JoinDate, &reg.State,
		&reg.CreatedAt, &reg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("registration %d %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return &reg, nil
}

// HasApprovedRegistration reports whether another approved registration
// exists for the identity number.
func (r *Repository) HasApprovedRegistration(ctx context.Context, identityNumber string, excludeID int64) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM erp.registrations
			WHERE identity_number = $1 AND state = $2 AND id <> $3
		)`
	err := r.db.QueryRowContext(ctx, query, identityNumber, models.RegistrationApproved, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check registrations: %w", err)
	}
	return exists, nil
}

// ApproveWithSchedule replaces the registration's schedule with rows and
// marks it approved, all in one transaction.
func (r *Repository) ApproveWithSchedule(ctx context.Context, registrationID int64, rows []models.PaymentSchedule) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE erp.registrations
			SET state = $1, updated_at = CURRENT_TIMESTAMP
			WHERE id = $2 AND state <> $1`,
			models.RegistrationApproved, registrationID)
		if err != nil {
			return mapPQError(err, "approved registration for this identity number")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: registration %d is already approved", models.ErrInvalidState, registrationID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM erp.payment_schedules WHERE registration_id = $1`, registrationID); err != nil {
			return fmt.Errorf("failed to clear payment schedule: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO erp.payment_schedules (registration_id, installment_no, amount, due_date,
				payment_method, state, cheque_no_enc, cheque_fingerprint, bank_name, cheque_date,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id, created_at, updated_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare schedule insert: %w", err)
		}
		defer stmt.Close()

		for i := range rows {
			row := &rows[i]
			var chequeNo, fingerprint, bankName sql.NullString
			var chequeDate sql.NullTime
			if row.Cheque != nil {
				chequeNo = sql.NullString{String: row.Cheque.Number, Valid: true}
				fingerprint = sql.NullString{String: row.Cheque.Fingerprint, Valid: true}
				bankName = sql.NullString{String: row.Cheque.BankName, Valid: true}
				chequeDate = sql.NullTime{Time: row.Cheque.Date, Valid: !row.Cheque.Date.IsZero()}
			}
			err := stmt.QueryRowContext(ctx,
				registrationID, row.InstallmentNo, row.Amount, row.DueDate,
				row.PaymentMethod, row.State, chequeNo, fingerprint, bankName, chequeDate,
			).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt)
			if err != nil {
				return mapPQError(err, fmt.Sprintf("installment %d", row.InstallmentNo))
			}
			row.RegistrationID = registrationID
		}
		return nil
	})
}

// GetSchedule lists the registration's installments by number
func (r *Repository) GetSchedule(ctx context.Context, registrationID int64) ([]models.PaymentSchedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM erp.payment_schedules
		WHERE registration_id = $1
		ORDER BY installment_no`
	rows, err := r.db.QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment schedule: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentSchedule
	for rows.Next() {
		p, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment schedule: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetInstallment retrieves one installment
func (r *Repository) GetInstallment(ctx context.Context, id int64) (*models.PaymentSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM erp.payment_schedules WHERE id = $1`
	p, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("installment %d %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	return &p, nil
}

// TransitionInstallment moves an installment to state `to` when its current
// state is one of `from`. It reports false when the row was not in an
// allowed state, which keeps concurrent transitions from both winning.
func (r *Repository) TransitionInstallment(ctx context.Context, id int64, from []models.InstallmentState, to models.InstallmentState, invoiceRef string) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE erp.payment_schedules
		SET state = $1,
		    invoice_ref = CASE WHEN $2 = '' THEN invoice_ref ELSE $2 END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND state = ANY($4)`,
		to, invoiceRef, id, pq.Array(states))
	if err != nil {
		return false, fmt.Errorf("failed to update installment state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update installment state: %w", err)
	}
	return n > 0, nil
}

// MarkOverdue flags every unpaid draft/invoiced installment due before today
func (r *Repository) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE erp.payment_schedules
		SET state = $1, updated_at = CURRENT_TIMESTAMP
		WHERE state IN ($2, $3) AND due_date < $4`,
		models.InstallmentOverdue, models.InstallmentDraft, models.InstallmentInvoiced, today)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue installments: %w", err)
	}
	return res.RowsAffected()
}

// ListReminders returns unpaid installments due on or before until, joined
// with the registration contact.
func (r *Repository) ListReminders(ctx context.Context, today, until time.Time) ([]models.Reminder, error) {
	query := `
		SELECT ps.id, ps.registration_id, ps.installment_no, ps.amount, ps.due_date,
		       ps.payment_method, ps.state, ps.invoice_ref, reg.child_name, reg.email
		FROM erp.payment_schedules ps
		JOIN erp.registrations reg ON reg.id = ps.registration_id
		WHERE ps.state <> $1 AND ps.due_date <= $2 AND reg.email <> ''
		ORDER BY ps.due_date, ps.id`
	rows, err := r.db.QueryContext(ctx, query, models.InstallmentPaid, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var out []models.Reminder
	for rows.Next() {
		var rem models.Reminder
		p := &rem.Installment
		if err := rows.Scan(
			&p.ID, &p.RegistrationID, &p.InstallmentNo, &p.Amount, &p.DueDate,
			&p.PaymentMethod, &p.State, &p.InvoiceRef, &rem.ChildName, &rem.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		rem.Overdue = p.IsOverdue(today)
		out = append(out, rem)
	}
	return out, rows.Err()
}
