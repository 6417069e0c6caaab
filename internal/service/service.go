package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/installment-service/internal/config"
	"github.com/Dan9191/installment-service/internal/installment"
	"github.com/Dan9191/installment-service/internal/metrics"
	"github.com/Dan9191/installment-service/internal/models"
)

// Token audiences.
const (
	AudienceStaff  = "staff"
	AudienceMobile = "mobile"
)

const tokenTTL = 24 * time.Hour

// Repository is the persistence the service needs.
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	GetRegistration(ctx context.Context, id int64) (*models.Registration, error)
	HasApprovedRegistration(ctx context.Context, identityNumber string, excludeID int64) (bool, error)
	ApproveWithSchedule(ctx context.Context, registrationID int64, rows []models.PaymentSchedule) error
	GetSchedule(ctx context.Context, registrationID int64) ([]models.PaymentSchedule, error)
	GetInstallment(ctx context.Context, id int64) (*models.PaymentSchedule, error)
	TransitionInstallment(ctx context.Context, id int64, from []models.InstallmentState, to models.InstallmentState, invoiceRef string) (bool, error)
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
	ListReminders(ctx context.Context, today, until time.Time) ([]models.Reminder, error)

	CreateExpense(ctx context.Context, e *models.Expense) error
	GetExpense(ctx context.Context, id int64) (*models.Expense, error)
	ListDistributableInvoices(ctx context.Context, partnerID int64) ([]models.Invoice, error)
	ReplaceDistributions(ctx context.Context, expenseID int64, lines []models.ExpenseDistribution) error
	ListDistributions(ctx context.Context, expenseID int64) ([]models.ExpenseDistribution, error)
	TransitionExpense(ctx context.Context, id int64, from []models.ExpenseState, to models.ExpenseState) (bool, error)

	GetEmployee(ctx context.Context, id int64) (*models.Employee, error)
	FindEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error)
	UpdateEmployeePIN(ctx context.Context, id int64, hash, salt string) error
	ListOfficeLocations(ctx context.Context) ([]models.OfficeLocation, error)
	CreateAttendance(ctx context.Context, a *models.Attendance) error
	GetOpenAttendance(ctx context.Context, employeeID int64) (*models.Attendance, error)
	CloseAttendance(ctx context.Context, a *models.Attendance) error
}

// Service handles business logic
type Service struct {
	repo    Repository
	log     *logrus.Logger
	config  *config.Config
	policy  installment.RemainderPolicy
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService initializes a new service
func NewService(repo Repository, log *logrus.Logger, cfg *config.Config) *Service {
	policy, err := installment.ParseRemainderPolicy(cfg.RemainderPolicy)
	if err != nil {
		log.WithError(err).Warn("Falling back to remainder-to-last rounding")
	}
	return &Service{repo: repo, log: log, config: cfg, policy: policy, now: time.Now}
}

// WithMetrics records approvals and distributions on m.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Today is the current calendar date in UTC.
func (s *Service) Today() time.Time {
	return installment.DateOf(s.now())
}

// Register creates a new staff user with hashed password
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a staff user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	token, err := s.issueToken(strconv.FormatInt(user.ID, 10), AudienceStaff)
	if err != nil {
		return "", err
	}

	s.log.Infof("User logged in: %s", user.Email)
	return token, nil
}

func (s *Service) issueToken(subject, audience string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}
