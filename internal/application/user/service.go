package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldName           = "name"
	fieldPhone          = "phone"
	fieldPhoneConfirmed = "phone_confirmed"
	fieldAvatarURL      = "avatar_url"
)

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, userID string) error
}

type sessionStore interface {
	SoftDeleteByUser(ctx context.Context, userID string) error
}

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error)
	Delete(ctx context.Context, userID string) error
}

type ServiceDeps struct {
	Users    userStore
	Sessions sessionStore
}

type service struct {
	users    userStore
	sessions sessionStore
}

func NewService(deps ServiceDeps) Service {
	return &service{users: deps.Users, sessions: deps.Sessions}
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         req.Name,
		Email:        email,
		Phone:        req.Phone,
		Role:         domain.RoleUser,
		AuthProvider: "email",
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates[fieldName] = *req.Name
	}
	if req.AvatarURL != nil {
		updates[fieldAvatarURL] = *req.AvatarURL
	}
	if req.Phone != nil && (u.Phone == nil || *u.Phone != *req.Phone) {
		// A new number starts unverified regardless of the old one's state.
		updates[fieldPhone] = *req.Phone
		updates[fieldPhoneConfirmed] = false
	}
	if len(updates) == 0 {
		return u, nil
	}
	if err := s.users.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, userID)
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.users.ScanPage(ctx, int32(limit), cursor)
}

func (s *service) Delete(ctx context.Context, userID string) error {
	if err := s.users.SoftDelete(ctx, userID); err != nil {
		return err
	}
	return s.sessions.SoftDeleteByUser(ctx, userID)
}
