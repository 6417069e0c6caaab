package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/installment-service/internal/installment"
	"github.com/Dan9191/installment-service/internal/models"
)

type approveRequest struct {
	Cheques []models.ChequeLine `json:"cheques"`
}

type splitRequest struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int             `json:"count" validate:"required,min=1,max=120"`
	StartDate   string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	StepMonths  int             `json:"step_months" validate:"min=0"`
}

type scheduleResponse struct {
	Installments []installment.Installment `json:"installments"`
	Total        decimal.Decimal           `json:"total"`
}

func newScheduleResponse(items []installment.Installment) scheduleResponse {
	return scheduleResponse{Installments: items, Total: installment.Sum(items)}
}

// PreviewSchedule shows the installments a registration would get
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := h.svc.PreviewSchedule(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newScheduleResponse(items))
}

// ApproveRegistration approves a registration and stores its schedule
func (h *Handler) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	rows, err := h.svc.ApproveRegistration(r.Context(), id, req.Cheques)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rows)
}

// GetSchedule returns the stored schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rows, err := h.svc.GetSchedule(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// ExportSchedule returns the schedule as deposit XML
func (h *Handler) ExportSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.svc.ExportSchedule(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// InvoiceInstallment issues the invoice for an installment
func (h *Handler) InvoiceInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.InvoiceInstallment(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// PayInstallment marks an installment paid
func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.MarkInstallmentPaid(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Split is a stateless installment calculator
func (h *Handler) Split(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid start_date"})
		return
	}
	items, err := h.svc.SplitAmount(req.TotalAmount, req.Count, start, req.StepMonths)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newScheduleResponse(items))
}
