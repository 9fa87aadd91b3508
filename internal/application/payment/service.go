// Package payment implements OAuth connection of payment-processor accounts
// (MercadoPago, Stripe Connect) to a user. Token refresh is intentionally
// not handled here; connected accounts keep whatever tokens the exchange
// returned.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/processor"
	"github.com/hunt-tickets/verify-api/internal/pkg/id"
	pkgtoken "github.com/hunt-tickets/verify-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// stateTTL bounds how long an authorization started on the connect page can
// stay pending before its callback is rejected.
const stateTTL = 10 * time.Minute

type accountStore interface {
	Put(ctx context.Context, a *domain.PaymentAccount) error
	ListByUser(ctx context.Context, userID string) ([]domain.PaymentAccount, error)
	Revoke(ctx context.Context, accountID string) error
}

type stateStore interface {
	Put(ctx context.Context, v *domain.VerificationRequest) error
	Get(ctx context.Context, subjectID, address string) (*domain.VerificationRequest, error)
	Remove(ctx context.Context, subjectID, address string) error
}

type Service interface {
	// ConnectURL returns the processor's authorization URL for the user to
	// approve the connection. The state parameter it embeds is random and
	// single-use; HandleCallback resolves the user from it server-side.
	ConnectURL(ctx context.Context, processorName, userID string) (string, error)
	// HandleCallback validates and consumes the state, exchanges the
	// authorization code and persists the connected account.
	HandleCallback(ctx context.Context, processorName, state, code string) (*domain.PaymentAccount, error)
	List(ctx context.Context, userID string) ([]domain.PaymentAccount, error)
	// Disconnect revokes a connected account. The account must belong to
	// userID.
	Disconnect(ctx context.Context, userID, accountID string) error
}

type ServiceDeps struct {
	Accounts accountStore
	States   stateStore
	Configs  processor.Configs
	Now      func() time.Time
}

type service struct {
	accounts accountStore
	states   stateStore
	configs  processor.Configs
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{accounts: deps.Accounts, states: deps.States, configs: deps.Configs, now: now}
}

// State entries share the code store with verification codes; the address is
// prefixed per processor so concurrent MercadoPago and Stripe connects for
// the same user never collide.
func stateAddress(processorName string) string {
	return "oauth-state:" + processorName
}

func (s *service) ConnectURL(ctx context.Context, processorName, userID string) (string, error) {
	conf, err := s.configs.Get(processorName)
	if err != nil {
		return "", err
	}
	tok, err := pkgtoken.NewOAuthStateToken()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tok), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	now := s.now()
	v := &domain.VerificationRequest{
		SubjectID: userID,
		Address:   stateAddress(processorName),
		Channel:   processorName,
		CodeHash:  string(hash),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(stateTTL).Unix(),
	}
	if err := s.states.Put(ctx, v); err != nil {
		return "", err
	}
	// The state carries the user id only as a lookup key; the random token
	// is what the callback actually verifies against the stored hash.
	state := userID + "." + tok
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

func (s *service) HandleCallback(ctx context.Context, processorName, state, code string) (*domain.PaymentAccount, error) {
	conf, err := s.configs.Get(processorName)
	if err != nil {
		return nil, err
	}
	userID, err := s.consumeState(ctx, processorName, state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("missing authorization code: %w", domain.ErrBadRequest)
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %v: %w", err, domain.ErrUnauthorized)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("no access token received from %s: %w", processorName, domain.ErrUnauthorized)
	}

	procAccountID := processorAccountID(processorName, tok)
	now := s.now().UTC()
	acc := &domain.PaymentAccount{
		AccountID:          id.New(),
		UserID:             userID,
		Processor:          processorName,
		ProcessorAccountID: procAccountID,
		AccessToken:        tok.AccessToken,
		RefreshToken:       tok.RefreshToken,
		Scope:              extraString(tok, "scope"),
		Status:             "active",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		acc.TokenExpiresAt = &exp
	}
	if err := s.accounts.Put(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// consumeState resolves the user id from the state parameter and invalidates
// the stored entry. Every rejection reads the same to the caller so a forged
// state learns nothing about pending connects.
func (s *service) consumeState(ctx context.Context, processorName, state string) (string, error) {
	userID, tok, ok := strings.Cut(state, ".")
	if !ok || userID == "" {
		return "", fmt.Errorf("malformed oauth state: %w", domain.ErrUnauthorized)
	}
	v, err := s.states.Get(ctx, userID, stateAddress(processorName))
	if err != nil {
		return "", fmt.Errorf("unknown oauth state: %w", domain.ErrUnauthorized)
	}
	if s.now().Unix() > v.ExpiresAt {
		if err := s.states.Remove(ctx, userID, stateAddress(processorName)); err != nil {
			slog.Warn("failed to remove expired oauth state", "user_id", userID, "err", err)
		}
		return "", fmt.Errorf("oauth state expired: %w", domain.ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(tok)) != nil {
		return "", fmt.Errorf("oauth state token mismatch: %w", domain.ErrUnauthorized)
	}
	if err := s.states.Remove(ctx, userID, stateAddress(processorName)); err != nil {
		slog.Warn("failed to remove consumed oauth state", "user_id", userID, "err", err)
	}
	return userID, nil
}

func (s *service) List(ctx context.Context, userID string) ([]domain.PaymentAccount, error) {
	return s.accounts.ListByUser(ctx, userID)
}

func (s *service) Disconnect(ctx context.Context, userID, accountID string) error {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.AccountID == accountID {
			return s.accounts.Revoke(ctx, accountID)
		}
	}
	return fmt.Errorf("payment account not found: %w", domain.ErrNotFound)
}

// processorAccountID extracts the processor-side account identifier.
// MercadoPago embeds it in the access token ("APP_USR-{user_id}-{ts}-{hash}-{app_id}");
// Stripe returns it as the stripe_user_id extra field.
func processorAccountID(processorName string, tok *oauth2.Token) string {
	switch processorName {
	case domain.ProcessorMercadoPago:
		parts := strings.Split(tok.AccessToken, "-")
		if len(parts) >= 2 {
			return parts[1]
		}
		return ""
	case domain.ProcessorStripe:
		return extraString(tok, "stripe_user_id")
	default:
		return ""
	}
}

func extraString(tok *oauth2.Token, key string) string {
	v, _ := tok.Extra(key).(string)
	return v
}
