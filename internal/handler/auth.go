package handler

import (
	"net/http"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type mobileLoginRequest struct {
	Username string `json:"username" validate:"required"`
	PIN      string `json:"pin" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register handles staff user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Login handles staff authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// MobileLogin handles employee PIN authentication
func (h *Handler) MobileLogin(w http.ResponseWriter, r *http.Request) {
	var req mobileLoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.svc.MobileLogin(r.Context(), req.Username, req.PIN)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token})
}
