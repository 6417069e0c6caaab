package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/installment-service/internal/export"
	"github.com/Dan9191/installment-service/internal/installment"
	"github.com/Dan9191/installment-service/internal/models"
	"github.com/Dan9191/installment-service/internal/utils"
)

// PreviewSchedule returns the installments a registration would get if it
// were approved now. Nothing is stored.
func (s *Service) PreviewSchedule(ctx context.Context, registrationID int64) ([]installment.Installment, error) {
	reg, err := s.repo.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return s.splitRegistration(reg)
}

// MaxSplitCount bounds the calculator, which builds one row per installment.
const MaxSplitCount = 120

// SplitAmount runs the allocator with the configured remainder policy.
func (s *Service) SplitAmount(total decimal.Decimal, count int, start time.Time, stepMonths int) ([]installment.Installment, error) {
	if count > MaxSplitCount {
		return nil, fmt.Errorf("%w: count must be at most %d", installment.ErrInvalidInput, MaxSplitCount)
	}
	return installment.Split(installment.AllocationRequest{
		TotalAmount: total,
		Count:       count,
		StartDate:   start,
		StepMonths:  stepMonths,
		Policy:      s.policy,
	})
}

func (s *Service) splitRegistration(reg *models.Registration) ([]installment.Installment, error) {
	start := reg.JoinDate
	if start.IsZero() {
		start = s.Today()
	}
	return s.SplitAmount(reg.FinalPrice(), reg.ScheduleCount(), start, 1)
}

// ApproveRegistration approves a registration and stores its payment
// schedule. Cheque payments need one cheque line per installment; their
// amounts replace the computed split when they add up to the final price.
func (s *Service) ApproveRegistration(ctx context.Context, registrationID int64, cheques []models.ChequeLine) ([]models.PaymentSchedule, error) {
	reg, err := s.repo.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.State == models.RegistrationApproved {
		return nil, fmt.Errorf("%w: registration %d is already approved", models.ErrInvalidState, reg.ID)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if reg.IdentityNumber != "" {
		exists, err := s.repo.HasApprovedRegistration(ctx, reg.IdentityNumber, reg.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: identity number %s already has an approved registration", models.ErrConflict, reg.IdentityNumber)
		}
	}

	items, err := s.splitRegistration(reg)
	if err != nil {
		return nil, err
	}

	rows := make([]models.PaymentSchedule, len(items))
	for i, it := range items {
		rows[i] = models.PaymentSchedule{
			RegistrationID: reg.ID,
			InstallmentNo:  it.SequenceNo,
			Amount:         it.Amount,
			DueDate:        it.DueDate,
			PaymentMethod:  reg.PaymentMethod,
			State:          models.InstallmentDraft,
		}
	}

	var plainNumbers []string
	if reg.PaymentMethod == models.MethodCheque {
		if err := ValidateCheques(cheques, len(items), reg.FinalPrice()); err != nil {
			return nil, err
		}
		plainNumbers = make([]string, len(rows))
		for i, line := range cheques {
			number := utils.NormalizeChequeNumber(line.Number)
			sealed, err := utils.Encrypt(number, []byte(s.config.EncryptionKey))
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt cheque number: %w", err)
			}
			rows[i].Amount = line.Amount
			rows[i].Cheque = &models.Cheque{
				Number:      sealed,
				BankName:    strings.TrimSpace(line.BankName),
				Date:        installment.DateOf(line.Date),
				Fingerprint: utils.ChequeFingerprint(number, s.config.HMACSecret),
			}
			plainNumbers[i] = number
		}
	}

	if err := s.repo.ApproveWithSchedule(ctx, reg.ID, rows); err != nil {
		s.log.WithError(err).Errorf("Failed to approve registration %d", reg.ID)
		return nil, err
	}

	// Hand back readable cheque numbers, not the stored ciphertext.
	for i, n := range plainNumbers {
		rows[i].Cheque.Number = n
	}

	s.metrics.ScheduleApproved(string(reg.PaymentMethod))
	s.log.Infof("Registration %d approved: %d installment(s), final price %s",
		reg.ID, len(rows), reg.FinalPrice().StringFixed(installment.Precision))
	return rows, nil
}

// ValidateCheques checks the cheque lines entered for a schedule of count
// installments totalling total.
func ValidateCheques(cheques []models.ChequeLine, count int, total decimal.Decimal) error {
	if len(cheques) != count {
		return fmt.Errorf("%w: expected %d cheque(s), got %d", models.ErrValidation, count, len(cheques))
	}
	numbers := make([]string, len(cheques))
	sum := decimal.Zero
	for i, line := range cheques {
		idx := i + 1
		number := utils.NormalizeChequeNumber(line.Number)
		if number == "" {
			return fmt.Errorf("%w: cheque number is required for installment %d", models.ErrValidation, idx)
		}
		if strings.TrimSpace(line.BankName) == "" {
			return fmt.Errorf("%w: bank name is required for installment %d", models.ErrValidation, idx)
		}
		if line.Date.IsZero() {
			return fmt.Errorf("%w: cheque date is required for installment %d", models.ErrValidation, idx)
		}
		if !line.Amount.IsPositive() {
			return fmt.Errorf("%w: amount of installment %d is invalid", models.ErrValidation, idx)
		}
		if !line.Amount.Equal(line.Amount.Round(installment.Precision)) {
			return fmt.Errorf("%w: amount of installment %d has more than %d decimals", models.ErrValidation, idx, installment.Precision)
		}
		numbers[i] = number
		sum = sum.Add(line.Amount)
	}
	if installment.HasDuplicates(numbers) {
		return fmt.Errorf("%w: the same cheque number cannot be used more than once", models.ErrValidation)
	}
	if !sum.Equal(total) {
		return fmt.Errorf("%w: cheque amounts add up to %s, expected %s", models.ErrValidation,
			sum.StringFixed(installment.Precision), total.StringFixed(installment.Precision))
	}
	return nil
}

// GetSchedule returns the stored schedule with cheque numbers decrypted
func (s *Service) GetSchedule(ctx context.Context, registrationID int64) ([]models.PaymentSchedule, error) {
	if _, err := s.repo.GetRegistration(ctx, registrationID); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetSchedule(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if err := s.openCheque(&rows[i]); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// ExportSchedule renders the stored schedule as the cheque deposit XML
func (s *Service) ExportSchedule(ctx context.Context, registrationID int64) ([]byte, error) {
	reg, err := s.repo.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.GetSchedule(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: registration %d has no schedule yet", models.ErrInvalidState, reg.ID)
	}
	return export.ScheduleXML(reg, rows)
}

func (s *Service) openCheque(p *models.PaymentSchedule) error {
	if p.Cheque == nil || p.Cheque.Number == "" {
		return nil
	}
	number, err := utils.Decrypt(p.Cheque.Number, []byte(s.config.EncryptionKey))
	if err != nil {
		return fmt.Errorf("failed to decrypt cheque of installment %d: %w", p.ID, err)
	}
	p.Cheque.Number = number
	return nil
}

// InvoiceInstallment issues the invoice reference for a draft or overdue
// installment. An installment is invoiced once.
func (s *Service) InvoiceInstallment(ctx context.Context, installmentID int64) (*models.PaymentSchedule, error) {
	p, err := s.repo.GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if p.InvoiceRef != "" || p.State == models.InstallmentInvoiced || p.State == models.InstallmentPaid {
		return nil, fmt.Errorf("%w: installment %d is already invoiced", models.ErrInvalidState, p.ID)
	}

	ref := fmt.Sprintf("INS/%d/%02d", p.RegistrationID, p.InstallmentNo)
	return s.transition(ctx, p, []models.InstallmentState{models.InstallmentDraft, models.InstallmentOverdue},
		models.InstallmentInvoiced, ref)
}

// MarkInstallmentPaid settles an invoiced or overdue installment
func (s *Service) MarkInstallmentPaid(ctx context.Context, installmentID int64) (*models.PaymentSchedule, error) {
	p, err := s.repo.GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, p, []models.InstallmentState{models.InstallmentInvoiced, models.InstallmentOverdue},
		models.InstallmentPaid, "")
}

func (s *Service) transition(ctx context.Context, p *models.PaymentSchedule, from []models.InstallmentState, to models.InstallmentState, ref string) (*models.PaymentSchedule, error) {
	ok, err := s.repo.TransitionInstallment(ctx, p.ID, from, to, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: installment %d cannot move from %s to %s", models.ErrInvalidState, p.ID, p.State, to)
	}

	updated, err := s.repo.GetInstallment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.openCheque(updated); err != nil {
		return nil, err
	}
	s.log.Infof("Installment %d of registration %d: %s -> %s", updated.InstallmentNo, updated.RegistrationID, p.State, to)
	return updated, nil
}

// MarkOverdue flags unpaid installments due before today
func (s *Service) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, installment.DateOf(today))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Infof("Marked %d installment(s) overdue", n)
	}
	return n, nil
}

// DueReminders lists installments that are overdue or due within
// horizonDays of today.
func (s *Service) DueReminders(ctx context.Context, today time.Time, horizonDays int) ([]models.Reminder, error) {
	today = installment.DateOf(today)
	return s.repo.ListReminders(ctx, today, today.AddDate(0, 0, horizonDays))
}
