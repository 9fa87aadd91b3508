package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hunt-tickets/verify-api/internal/application/auth"
	"github.com/hunt-tickets/verify-api/internal/application/payment"
	"github.com/hunt-tickets/verify-api/internal/application/session"
	"github.com/hunt-tickets/verify-api/internal/application/user"
	"github.com/hunt-tickets/verify-api/internal/application/verification"
	"github.com/hunt-tickets/verify-api/internal/config"
	"github.com/hunt-tickets/verify-api/internal/domain"
	jwtinfra "github.com/hunt-tickets/verify-api/internal/infrastructure/jwt"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/processor"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/smtp"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/sns"
	"github.com/hunt-tickets/verify-api/internal/transport/http/handler"
	appmiddleware "github.com/hunt-tickets/verify-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Users           UserRepository
	Sessions        SessionRepository
	CodeStore       CodeStore
	PaymentAccounts PaymentAccountRepository
	Mailer          smtp.Mailer
	SMSSender       sns.SMSSender
	Google          GoogleVerifier
	JWTProvider     *jwtinfra.Provider
	Processors      processor.Configs
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to endpoints that send codes
	// or probe account existence.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	verifySvc := verification.NewService(verification.ServiceDeps{
		Store:          deps.CodeStore,
		Users:          deps.Users,
		SMS:            deps.SMSSender,
		Mailer:         deps.Mailer,
		CodeTTL:        cfg.VerifyCodeTTL,
		ResendCooldown: cfg.VerifyResendCooldown,
		SilentConflict: cfg.VerifySilentConflict,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Users:           deps.Users,
		Sessions:        deps.Sessions,
		Store:           deps.CodeStore,
		Verifier:        verifySvc,
		Mailer:          deps.Mailer,
		Google:          deps.Google,
		JWTProvider:     deps.JWTProvider,
		AppURL:          cfg.AppURL,
		MagicLinkTTL:    cfg.MagicLinkTTL,
		RefreshTokenDur: cfg.RefreshTokenDur,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		Sessions:        deps.Sessions,
		Users:           deps.Users,
		JWTProvider:     deps.JWTProvider,
		RefreshTokenDur: cfg.RefreshTokenDur,
	})
	userSvc := user.NewService(user.ServiceDeps{
		Users:    deps.Users,
		Sessions: deps.Sessions,
	})
	paymentSvc := payment.NewService(payment.ServiceDeps{
		Accounts: deps.PaymentAccounts,
		States:   deps.CodeStore,
		Configs:  deps.Processors,
	})

	healthH := handler.NewHealthHandler()
	verifyPhoneH := handler.NewVerifyPhoneHandler(verifySvc)
	verifyEmailH := handler.NewVerifyEmailHandler(verifySvc)
	sessionH := handler.NewSessionHandler(authSvc, sessionSvc)
	userH := handler.NewUserHandler(userSvc)
	paymentH := handler.NewPaymentHandler(paymentSvc, cfg.DashboardURL)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Get("/test", healthH.Test)
		r.Post("/test", healthH.Test)

		r.With(sensitiveRL.Limit).Post("/verify-phone/check", verifyPhoneH.Check)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)

		r.With(sensitiveRL.Limit).Post("/sessions/otp/request", sessionH.RequestOTP)
		r.With(sensitiveRL.Limit).Post("/sessions/otp/validate", sessionH.ValidateOTP)
		r.With(sensitiveRL.Limit).Post("/sessions/magic-link/request", sessionH.RequestMagicLink)
		r.With(sensitiveRL.Limit).Get("/sessions/magic-link/validate", sessionH.ValidateMagicLink)
		r.Post("/sessions/google", sessionH.Google)
		r.Post("/sessions/anonymous", sessionH.Anonymous)
		r.Post("/sessions/refresh", sessionH.Refresh)

		// OAuth callbacks arrive as processor-initiated redirects, so no bearer.
		r.Get("/payments/{processor}/callback", paymentH.Callback)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.With(sensitiveRL.Limit).Post("/verify-phone/{action}", verifyPhoneH.Action)
			r.With(sensitiveRL.Limit).Post("/verify-email/{action}", verifyEmailH.Action)

			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Delete("/users/{id}", userH.Delete)

			r.Get("/payments", paymentH.List)
			r.Get("/payments/{processor}/connect", paymentH.Connect)
			r.Delete("/payments/{id}", paymentH.Disconnect)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
			})
		})
	})

	return r
}
