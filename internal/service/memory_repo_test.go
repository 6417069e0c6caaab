package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/installment-service/internal/config"
	"github.com/Dan9191/installment-service/internal/models"
)

type memoryRepo struct {
	users         map[string]*models.User
	registrations map[int64]*models.Registration
	schedules     map[int64]*models.PaymentSchedule
	expenses      map[int64]*models.Expense
	invoices      map[int64]models.Invoice
	distributions map[int64][]models.ExpenseDistribution
	employees     map[int64]*models.Employee
	locations     []models.OfficeLocation
	attendances   map[int64]*models.Attendance
	nextID        int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:         make(map[string]*models.User),
		registrations: make(map[int64]*models.Registration),
		schedules:     make(map[int64]*models.PaymentSchedule),
		expenses:      make(map[int64]*models.Expense),
		invoices:      make(map[int64]models.Invoice),
		distributions: make(map[int64][]models.ExpenseDistribution),
		employees:     make(map[int64]*models.Employee),
		attendances:   make(map[int64]*models.Attendance),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) CreateUser(ctx context.Context, user *models.User) error {
	if _, ok := r.users[user.Email]; ok {
		return fmt.Errorf("user %w", models.ErrConflict)
	}
	user.ID = r.id()
	u := *user
	r.users[user.Email] = &u
	return nil
}

func (r *memoryRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, fmt.Errorf("user %w", models.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *memoryRepo) GetRegistration(ctx context.Context, id int64) (*models.Registration, error) {
	reg, ok := r.registrations[id]
	if !ok {
		return nil, fmt.Errorf("registration %d %w", id, models.ErrNotFound)
	}
	cp := *reg
	return &cp, nil
}

func (r *memoryRepo) HasApprovedRegistration(ctx context.Context, identityNumber string, excludeID int64) (bool, error) {
	for _, reg := range r.registrations {
		if reg.IdentityNumber == identityNumber && reg.State == models.RegistrationApproved && reg.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) ApproveWithSchedule(ctx context.Context, registrationID int64, rows []models.PaymentSchedule) error {
	reg, ok := r.registrations[registrationID]
	if !ok {
		return fmt.Errorf("registration %w", models.ErrNotFound)
	}
	if reg.State == models.RegistrationApproved {
		return models.ErrInvalidState
	}
	for _, row := range rows {
		if row.Cheque == nil {
			continue
		}
		for _, p := range r.schedules {
			if p.Cheque != nil && p.Cheque.Fingerprint == row.Cheque.Fingerprint {
				return fmt.Errorf("cheque %w", models.ErrConflict)
			}
		}
	}
	for id, p := range r.schedules {
		if p.RegistrationID == registrationID {
			delete(r.schedules, id)
		}
	}
	for i := range rows {
		rows[i].ID = r.id()
		rows[i].RegistrationID = registrationID
		cp := rows[i]
		if cp.Cheque != nil {
			ch := *cp.Cheque
			cp.Cheque = &ch
		}
		r.schedules[cp.ID] = &cp
	}
	reg.State = models.RegistrationApproved
	return nil
}

func (r *memoryRepo) GetSchedule(ctx context.Context, registrationID int64) ([]models.PaymentSchedule, error) {
	var out []models.PaymentSchedule
	for _, p := range r.schedules {
		if p.RegistrationID == registrationID {
			out = append(out, r.copySchedule(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNo < out[j].InstallmentNo })
	return out, nil
}

func (r *memoryRepo) copySchedule(p *models.PaymentSchedule) models.PaymentSchedule {
	cp := *p
	if p.Cheque != nil {
		ch := *p.Cheque
		cp.Cheque = &ch
	}
	return cp
}

func (r *memoryRepo) GetInstallment(ctx context.Context, id int64) (*models.PaymentSchedule, error) {
	p, ok := r.schedules[id]
	if !ok {
		return nil, fmt.Errorf("installment %d %w", id, models.ErrNotFound)
	}
	cp := r.copySchedule(p)
	return &cp, nil
}

func (r *memoryRepo) TransitionInstallment(ctx context.Context, id int64, from []models.InstallmentState, to models.InstallmentState, invoiceRef string) (bool, error) {
	p, ok := r.schedules[id]
	if !ok || !slices.Contains(from, p.State) {
		return false, nil
	}
	p.State = to
	if invoiceRef != "" {
		p.InvoiceRef = invoiceRef
	}
	return true, nil
}

func (r *memoryRepo) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	var n int64
	for _, p := range r.schedules {
		if (p.State == models.InstallmentDraft || p.State == models.InstallmentInvoiced) && p.DueDate.Before(today) {
			p.State = models.InstallmentOverdue
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) ListReminders(ctx context.Context, today, until time.Time) ([]models.Reminder, error) {
	var out []models.Reminder
	for _, p := range r.schedules {
		reg := r.registrations[p.RegistrationID]
		if p.State == models.InstallmentPaid || p.DueDate.After(until) || reg.Email == "" {
			continue
		}
		out = append(out, models.Reminder{
			Installment: r.copySchedule(p),
			ChildName:   reg.ChildName,
			Email:       reg.Email,
			Overdue:     p.IsOverdue(today),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Installment.DueDate.Before(out[j].Installment.DueDate) })
	return out, nil
}

func (r *memoryRepo) CreateExpense(ctx context.Context, e *models.Expense) error {
	e.ID = r.id()
	cp := *e
	r.expenses[e.ID] = &cp
	return nil
}

func (r *memoryRepo) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	e, ok := r.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense %d %w", id, models.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (r *memoryRepo) ListDistributableInvoices(ctx context.Context, partnerID int64) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range r.invoices {
		if inv.PartnerID != partnerID {
			continue
		}
		inv.AlreadyDistributed = decimal.Zero
		for expenseID, lines := range r.distributions {
			if r.expenses[expenseID].State != models.ExpensePosted {
				continue
			}
			for _, l := range lines {
				if l.InvoiceID == inv.ID {
					inv.AlreadyDistributed = inv.AlreadyDistributed.Add(l.Amount)
				}
			}
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InvoiceDate.Equal(out[j].InvoiceDate) {
			return out[i].InvoiceDate.Before(out[j].InvoiceDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) ReplaceDistributions(ctx context.Context, expenseID int64, lines []models.ExpenseDistribution) error {
	for i := range lines {
		lines[i].ID = r.id()
		lines[i].ExpenseID = expenseID
	}
	r.distributions[expenseID] = slices.Clone(lines)
	return nil
}

func (r *memoryRepo) ListDistributions(ctx context.Context, expenseID int64) ([]models.ExpenseDistribution, error) {
	out := slices.Clone(r.distributions[expenseID])
	for i := range out {
		inv := r.invoices[out[i].InvoiceID]
		out[i].MoveType = inv.MoveType
		out[i].InvoiceTotal = inv.AmountTotal
	}
	return out, nil
}

func (r *memoryRepo) TransitionExpense(ctx context.Context, id int64, from []models.ExpenseState, to models.ExpenseState) (bool, error) {
	e, ok := r.expenses[id]
	if !ok || !slices.Contains(from, e.State) {
		return false, nil
	}
	e.State = to
	return true, nil
}

func (r *memoryRepo) GetEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	e, ok := r.employees[id]
	if !ok {
		return nil, fmt.Errorf("employee %d %w", id, models.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (r *memoryRepo) FindEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error) {
	for _, e := range r.employees {
		if e.MobileUsername == username {
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("employee %w", models.ErrNotFound)
}

func (r *memoryRepo) UpdateEmployeePIN(ctx context.Context, id int64, hash, salt string) error {
	e, ok := r.employees[id]
	if !ok {
		return fmt.Errorf("employee %d %w", id, models.ErrNotFound)
	}
	e.PinHash, e.PinSalt, e.AllowMobileAccess = hash, salt, true
	return nil
}

func (r *memoryRepo) ListOfficeLocations(ctx context.Context) ([]models.OfficeLocation, error) {
	return slices.Clone(r.locations), nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		HMACSecret:      "test-hmac",
		EncryptionKey:   "0123456789abcdef0123456789abcdef",
		RemainderPolicy: "last",
	}
}

func newTestService(repo *memoryRepo) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := NewService(repo, log, testConfig())
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (r *memoryRepo) CreateAttendance(ctx context.Context, a *models.Attendance) error {
	for _, open := range r.attendances {
		if open.EmployeeID == a.EmployeeID && open.CheckOut == nil {
			return fmt.Errorf("%w: open attendance already exists", models.ErrConflict)
		}
	}
	a.ID = r.id()
	cp := *a
	r.attendances[a.ID] = &cp
	return nil
}

func (r *memoryRepo) GetOpenAttendance(ctx context.Context, employeeID int64) (*models.Attendance, error) {
	for _, a := range r.attendances {
		if a.EmployeeID == employeeID && a.CheckOut == nil {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("open attendance for employee %d %w", employeeID, models.ErrNotFound)
}

func (r *memoryRepo) CloseAttendance(ctx context.Context, a *models.Attendance) error {
	stored, ok := r.attendances[a.ID]
	if !ok || stored.CheckOut != nil {
		return fmt.Errorf("%w: attendance %d is already closed", models.ErrInvalidState, a.ID)
	}
	cp := *a
	r.attendances[a.ID] = &cp
	return nil
}
