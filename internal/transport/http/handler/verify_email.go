package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hunt-tickets/verify-api/internal/application/verification"
	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/pkg/validate"
	"github.com/hunt-tickets/verify-api/internal/transport/http/middleware"
)

// VerifyEmailHandler handles email verification flow endpoints.
type VerifyEmailHandler struct {
	svc verification.Service
}

func NewVerifyEmailHandler(svc verification.Service) *VerifyEmailHandler {
	return &VerifyEmailHandler{svc: svc}
}

func (h *VerifyEmailHandler) Action(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "send":
		var body struct {
			Email string `json:"email" validate:"required,email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.svc.Issue(r.Context(), claims.UserID, domain.ChannelEmail, body.Email); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true, Message: "verification code sent"})
	case "verify":
		var body struct {
			Email string `json:"email" validate:"required,email"`
			Code  string `json:"code" validate:"required,len=6,numeric"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.svc.Verify(r.Context(), claims.UserID, domain.ChannelEmail, body.Email, body.Code); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true, Message: "email verified"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
