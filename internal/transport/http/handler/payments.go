package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hunt-tickets/verify-api/internal/application/payment"
	"github.com/hunt-tickets/verify-api/internal/transport/http/middleware"
)

// PaymentHandler handles payment-processor connection endpoints.
type PaymentHandler struct {
	svc          payment.Service
	dashboardURL string
}

func NewPaymentHandler(svc payment.Service, dashboardURL string) *PaymentHandler {
	return &PaymentHandler{svc: svc, dashboardURL: dashboardURL}
}

// Connect redirects the user to the processor's authorization page. The
// service registers a single-use state for the signed-in user; the callback
// only accepts that state back.
func (h *PaymentHandler) Connect(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	url, err := h.svc.ConnectURL(r.Context(), chi.URLParam(r, "processor"), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback lands unauthenticated from the processor's redirect. The service
// resolves the user from the stored state, never from anything the request
// claims about itself.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") == "" {
		writeError(w, http.StatusBadRequest, "missing state")
		return
	}
	if _, err := h.svc.HandleCallback(r.Context(), chi.URLParam(r, "processor"), q.Get("state"), q.Get("code")); err != nil {
		httpError(w, err)
		return
	}
	http.Redirect(w, r, h.dashboardURL, http.StatusSeeOther)
}

func (h *PaymentHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Disconnect(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "payment account disconnected"})
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accounts, err := h.svc.List(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}
