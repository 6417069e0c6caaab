package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/installment-service/internal/models"
)

type expenseRequest struct {
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string          `json:"description" validate:"max=255"`
	PartnerID   int64           `json:"partner_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Platform    string          `json:"platform" validate:"required,oneof=amazon noon other"`
	ExpenseType string          `json:"expense_type" validate:"required,oneof=commission shipping storage returns penalties other"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
}

// CreateExpense records a draft marketplace expense
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	e := &models.Expense{
		Description: req.Description,
		PartnerID:   req.PartnerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Platform:    req.Platform,
		ExpenseType: req.ExpenseType,
		TaxPercent:  req.TaxPercent,
	}
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid date"})
			return
		}
		e.Date = d
	}
	if err := h.svc.CreateExpense(r.Context(), e); err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// DistributeExpense spreads an expense over open invoices
func (h *Handler) DistributeExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.svc.DistributeExpense(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// ExpenseTotals returns tax and bank settlement figures
func (h *Handler) ExpenseTotals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.ExpenseTotals(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// PostExpense posts a distributed expense
func (h *Handler) PostExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.PostExpense(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// CancelExpense cancels an expense
func (h *Handler) CancelExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.CancelExpense(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}
