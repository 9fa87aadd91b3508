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

// VerifyPhoneHandler handles phone verification flow endpoints.
type VerifyPhoneHandler struct {
	svc verification.Service
}

func NewVerifyPhoneHandler(svc verification.Service) *VerifyPhoneHandler {
	return &VerifyPhoneHandler{svc: svc}
}

// Check is public so the signup form can test a number before the account
// exists. It never requires authentication.
func (h *VerifyPhoneHandler) Check(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone         string `json:"phone_number" validate:"required,e164"`
		CheckVerified bool   `json:"check_verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := h.svc.CheckPhone(r.Context(), body.Phone, body.CheckVerified)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *VerifyPhoneHandler) Action(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "send":
		var body struct {
			Phone string `json:"phone_number" validate:"required,e164"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.svc.Issue(r.Context(), claims.UserID, domain.ChannelSMS, body.Phone); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true, Message: "verification code sent"})
	case "verify":
		var body struct {
			Phone string `json:"phone_number" validate:"required,e164"`
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
		if err := h.svc.Verify(r.Context(), claims.UserID, domain.ChannelSMS, body.Phone, body.Code); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true, Message: "phone verified"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
