package handler

import (
	"net/http"

	"github.com/Dan9191/installment-service/internal/middleware"
)

type pinRequest struct {
	PIN string `json:"pin" validate:"required"`
}

type positionRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

// SetPIN sets an employee's mobile PIN
func (h *Handler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetPIN(r.Context(), id, req.PIN); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckIn opens the calling employee's attendance at an office
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := middleware.Subject(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}
	var req positionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ci, err := h.svc.CheckIn(r.Context(), employeeID, *req.Latitude, *req.Longitude)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ci)
}

// CheckOut closes the calling employee's open attendance
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := middleware.Subject(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}
	var req positionRequest
	if !h.decode(w, r, &req) {
		return
	}
	co, err := h.svc.CheckOut(r.Context(), employeeID, *req.Latitude, *req.Longitude)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, co)
}
