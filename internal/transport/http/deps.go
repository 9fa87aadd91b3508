package http

import (
	"context"

	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/infrastructure/google"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	// GetVerifiedByPhone returns the account that has confirmed ownership of
	// the number, if any. Unconfirmed holders are not returned.
	GetVerifiedByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error)
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, userID string) error
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
	SoftDeleteByUser(ctx context.Context, userID string) error
}

// CodeStore is the minimal interface the router requires from a one-time-code
// store. Implementations exist for memory, Redis and DynamoDB.
type CodeStore interface {
	Put(ctx context.Context, v *domain.VerificationRequest) error
	Get(ctx context.Context, subjectID, address string) (*domain.VerificationRequest, error)
	Remove(ctx context.Context, subjectID, address string) error
}

// PaymentAccountRepository is the minimal interface the router requires from a
// connected-account store.
type PaymentAccountRepository interface {
	Put(ctx context.Context, a *domain.PaymentAccount) error
	ListByUser(ctx context.Context, userID string) ([]domain.PaymentAccount, error)
	Revoke(ctx context.Context, accountID string) error
}

// GoogleVerifier validates Google ID tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}
