// Package auth implements the passwordless sign-in flows: email OTP,
// magic links, Google ID tokens and anonymous guest sessions. All of them
// end in the same place, a session row plus a signed bearer token.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hunt-tickets/verify-api/internal/application/verification"
	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/google"
	"github.com/hunt-tickets/verify-api/internal/pkg/id"
	pkgtoken "github.com/hunt-tickets/verify-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
}

type codeStore interface {
	Put(ctx context.Context, v *domain.VerificationRequest) error
	Get(ctx context.Context, subjectID, address string) (*domain.VerificationRequest, error)
	Remove(ctx context.Context, subjectID, address string) error
}

type emailSender interface {
	SendEmail(to, subject, body string) error
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

type jwtSigner interface {
	Sign(userID, role, sessionID string) (string, error)
}

type LoginResult struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
}

type Service interface {
	// RequestSignInOTP emails a one-time sign-in code. Unknown addresses are
	// swallowed so the endpoint cannot be used to enumerate accounts.
	RequestSignInOTP(ctx context.Context, email string) error
	ValidateSignInOTP(ctx context.Context, email, code string) (*LoginResult, error)

	RequestMagicLink(ctx context.Context, email string) error
	ValidateMagicLink(ctx context.Context, email, token string) (*LoginResult, error)

	SignInWithGoogle(ctx context.Context, idToken string) (*LoginResult, error)
	SignInAnonymous(ctx context.Context) (*LoginResult, error)
}

type ServiceDeps struct {
	Users           userStore
	Sessions        sessionStore
	Store           codeStore
	Verifier        verification.Service
	Mailer          emailSender
	Google          googleVerifier
	JWTProvider     jwtSigner
	AppURL          string
	MagicLinkTTL    time.Duration
	RefreshTokenDur time.Duration
	Now             func() time.Time
}

type service struct {
	users           userStore
	sessions        sessionStore
	store           codeStore
	verifier        verification.Service
	mailer          emailSender
	google          googleVerifier
	jwtProvider     jwtSigner
	appURL          string
	magicLinkTTL    time.Duration
	refreshTokenDur time.Duration
	now             func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:           deps.Users,
		sessions:        deps.Sessions,
		store:           deps.Store,
		verifier:        deps.Verifier,
		mailer:          deps.Mailer,
		google:          deps.Google,
		jwtProvider:     deps.JWTProvider,
		appURL:          deps.AppURL,
		magicLinkTTL:    deps.MagicLinkTTL,
		refreshTokenDur: deps.RefreshTokenDur,
		now:             now,
	}
}

func (s *service) RequestSignInOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		slog.Info("sign-in OTP requested for unknown email, skipping send")
		return nil
	}
	return s.verifier.Issue(ctx, u.UserID, domain.ChannelEmail, email)
}

func (s *service) ValidateSignInOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid email or code: %w", domain.ErrUnauthorized)
	}
	if err := s.verifier.Verify(ctx, u.UserID, domain.ChannelEmail, email, code); err != nil {
		return nil, err
	}
	return s.createSession(ctx, u)
}

// Magic-link entries share the code store with OTP entries; the address is
// prefixed so a pending sign-in code and a pending link never collide.
func magicAddress(email string) string {
	return "magic-link:" + email
}

func (s *service) RequestMagicLink(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		slog.Info("magic link requested for unknown email, skipping send")
		return nil
	}
	tok, err := pkgtoken.NewMagicLinkToken()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tok), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := s.now()
	v := &domain.VerificationRequest{
		SubjectID: u.UserID,
		Address:   magicAddress(email),
		Channel:   domain.ChannelEmail,
		CodeHash:  string(hash),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.magicLinkTTL).Unix(),
	}
	if err := s.store.Put(ctx, v); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/v1/sessions/magic-link/validate?email=%s&token=%s",
		s.appURL, url.QueryEscape(email), tok)
	if err := s.mailer.SendEmail(u.Email, "Tu enlace de acceso Hunt Tickets", magicLinkBody(link)); err != nil {
		if rmErr := s.store.Remove(ctx, u.UserID, magicAddress(email)); rmErr != nil {
			slog.Warn("failed to roll back magic link entry", "user_id", u.UserID, "err", rmErr)
		}
		return fmt.Errorf("send magic link: %v: %w", err, domain.ErrDeliveryFailed)
	}
	return nil
}

func (s *service) ValidateMagicLink(ctx context.Context, email, tok string) (*LoginResult, error) {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid link: %w", domain.ErrUnauthorized)
	}
	v, err := s.store.Get(ctx, u.UserID, magicAddress(email))
	if err != nil {
		return nil, fmt.Errorf("no pending link: %w", domain.ErrNotFound)
	}
	if s.now().Unix() > v.ExpiresAt {
		if err := s.store.Remove(ctx, u.UserID, magicAddress(email)); err != nil {
			slog.Warn("failed to remove expired magic link entry", "user_id", u.UserID, "err", err)
		}
		return nil, fmt.Errorf("link expired: %w", domain.ErrExpired)
	}
	if bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(tok)) != nil {
		return nil, fmt.Errorf("invalid link token: %w", domain.ErrMismatch)
	}
	if err := s.store.Remove(ctx, u.UserID, magicAddress(email)); err != nil {
		slog.Warn("failed to remove consumed magic link entry", "user_id", u.UserID, "err", err)
	}
	if !u.EmailConfirmed {
		if err := s.users.Update(ctx, u.UserID, map[string]interface{}{"email_confirmed": true}); err != nil {
			return nil, err
		}
	}
	return s.createSession(ctx, u)
}

func (s *service) SignInWithGoogle(ctx context.Context, idToken string) (*LoginResult, error) {
	p, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByGoogleSub(ctx, p.Sub)
	if err != nil {
		// First Google sign-in: attach to an existing account with the same
		// email, or provision a fresh one.
		u, err = s.users.GetByEmail(ctx, p.Email)
		if err == nil {
			if err := s.users.Update(ctx, u.UserID, map[string]interface{}{
				"google_sub": p.Sub, "auth_provider": "google",
			}); err != nil {
				return nil, err
			}
		} else {
			now := s.now().UTC()
			u = &domain.User{
				UserID:         id.New(),
				Name:           p.Name,
				Email:          p.Email,
				EmailConfirmed: p.EmailVerified,
				Role:           domain.RoleUser,
				AvatarURL:      p.Picture,
				AuthProvider:   "google",
				GoogleSub:      p.Sub,
				Enable:         true,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.users.Put(ctx, u); err != nil {
				return nil, err
			}
		}
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}
	return s.createSession(ctx, u)
}

func (s *service) SignInAnonymous(ctx context.Context) (*LoginResult, error) {
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         "Guest",
		Email:        fmt.Sprintf("anon-%s@guest.hunt-tickets.com", strings.ToLower(id.New())),
		Role:         domain.RoleUser,
		IsAnonymous:  true,
		AuthProvider: "anonymous",
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	return s.createSession(ctx, u)
}

func (s *service) createSession(ctx context.Context, u *domain.User) (*LoginResult, error) {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return &LoginResult{Bearer: bearer, RefreshToken: refreshToken, Session: sess}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func magicLinkBody(link string) string {
	return fmt.Sprintf("Haz clic para iniciar sesión en Hunt Tickets: %s\r\n\r\nEl enlace es válido por 24 horas. Si no solicitaste este acceso, ignora este mensaje.", link)
}
