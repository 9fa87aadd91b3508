package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hunt-tickets/verify-api/internal/application/auth"
	"github.com/hunt-tickets/verify-api/internal/application/session"
	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/pkg/validate"
	"github.com/hunt-tickets/verify-api/internal/transport/http/middleware"
)

// SessionHandler handles sign-in and session endpoints.
type SessionHandler struct {
	auth auth.Service
	svc  session.Service
}

func NewSessionHandler(authSvc auth.Service, svc session.Service) *SessionHandler {
	return &SessionHandler{auth: authSvc, svc: svc}
}

func (h *SessionHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
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
	// Unknown emails and cooldown hits both get the generic success; a 429
	// only for registered addresses would confirm the account exists.
	if err := h.auth.RequestSignInOTP(r.Context(), body.Email); err != nil && !errors.Is(err, domain.ErrTooSoon) {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "if the email is registered, a sign-in code was sent"})
}

func (h *SessionHandler) ValidateOTP(w http.ResponseWriter, r *http.Request) {
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
	result, err := h.auth.ValidateSignInOTP(r.Context(), body.Email, body.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeLogin(w, result)
}

func (h *SessionHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
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
	if err := h.auth.RequestMagicLink(r.Context(), body.Email); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "if the email is registered, a sign-in link was sent"})
}

// ValidateMagicLink accepts GET with query params so the emailed link can hit
// it directly from a browser.
func (h *SessionHandler) ValidateMagicLink(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("token")
	if email == "" || token == "" {
		writeError(w, http.StatusBadRequest, "email and token required")
		return
	}
	result, err := h.auth.ValidateMagicLink(r.Context(), email, token)
	if err != nil {
		httpError(w, err)
		return
	}
	writeLogin(w, result)
}

func (h *SessionHandler) Google(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDToken string `json:"id_token" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.auth.SignInWithGoogle(r.Context(), body.IDToken)
	if err != nil {
		httpError(w, err)
		return
	}
	writeLogin(w, result)
}

func (h *SessionHandler) Anonymous(w http.ResponseWriter, r *http.Request) {
	result, err := h.auth.SignInAnonymous(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeLogin(w, result)
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, err := h.svc.GetCurrent(r.Context(), claims.SessionID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Authenticated: true, Session: sess, User: sess.User})
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token required")
		return
	}
	bearer, newToken, err := h.svc.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{AccessToken: bearer, RefreshToken: newToken})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

func writeLogin(w http.ResponseWriter, result *auth.LoginResult) {
	writeJSON(w, http.StatusOK, AuthEnvelope{
		AccessToken:  result.Bearer,
		RefreshToken: result.RefreshToken,
		Session:      result.Session,
		User:         result.Session.User,
	})
}
