package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/installment-service/internal/installment"
	"github.com/Dan9191/installment-service/internal/models"
	"github.com/Dan9191/installment-service/internal/service"
)

// Service is what the HTTP layer calls into.
type Service interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	MobileLogin(ctx context.Context, username, code string) (string, error)

	PreviewSchedule(ctx context.Context, registrationID int64) ([]installment.Installment, error)
	ApproveRegistration(ctx context.Context, registrationID int64, cheques []models.ChequeLine) ([]models.PaymentSchedule, error)
	GetSchedule(ctx context.Context, registrationID int64) ([]models.PaymentSchedule, error)
	ExportSchedule(ctx context.Context, registrationID int64) ([]byte, error)
	InvoiceInstallment(ctx context.Context, installmentID int64) (*models.PaymentSchedule, error)
	MarkInstallmentPaid(ctx context.Context, installmentID int64) (*models.PaymentSchedule, error)
	SplitAmount(total decimal.Decimal, count int, start time.Time, stepMonths int) ([]installment.Installment, error)

	CreateExpense(ctx context.Context, e *models.Expense) error
	DistributeExpense(ctx context.Context, expenseID int64) (*service.Distribution, error)
	ExpenseTotals(ctx context.Context, expenseID int64) (*models.ExpenseTotals, error)
	PostExpense(ctx context.Context, expenseID int64) (*models.Expense, error)
	CancelExpense(ctx context.Context, expenseID int64) (*models.Expense, error)

	SetPIN(ctx context.Context, employeeID int64, code string) error
	CheckIn(ctx context.Context, employeeID int64, lat, lon float64) (*service.CheckIn, error)
	CheckOut(ctx context.Context, employeeID int64, lat, lon float64) (*service.CheckOut, error)
}

// Handler serves the JSON API
type Handler struct {
	svc      Service
	logger   *logrus.Logger
	validate *validator.Validate
}

// NewHandler creates a handler over svc
func NewHandler(svc Service, logger *logrus.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, validate: validator.New()}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WithError(err).Warn("Failed to decode request")
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request payload"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid id"})
		return 0, false
	}
	return id, true
}

// fail maps service errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, installment.ErrInvalidInput), errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrOutOfRange):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidState):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("Request failed")
		respondJSON(w, status, errorResponse{Error: "Internal server error"})
		return
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}
