// Package verification implements the one-time-code engine: issuing codes,
// delivering them over SMS or email, and consuming them to confirm channel
// addresses. Both the profile confirmation flows and the passwordless sign-in
// flow run through this one engine; only the delivery channel differs.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/hunt-tickets/verify-api/internal/pkg/otp"
	"golang.org/x/crypto/bcrypt"
)

type codeStore interface {
	Put(ctx context.Context, v *domain.VerificationRequest) error
	Get(ctx context.Context, subjectID, address string) (*domain.VerificationRequest, error)
	Remove(ctx context.Context, subjectID, address string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetVerifiedByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type emailSender interface {
	SendEmail(to, subject, body string) error
}

// PhoneStatus is the result of a public phone existence check.
type PhoneStatus struct {
	Exists     bool   `json:"exists"`
	IsVerified *bool  `json:"is_verified,omitempty"`
	Message    string `json:"message"`
}

type Service interface {
	// Issue generates a code for (subjectID, address), stores it and sends it
	// over the given channel. The address must be the one on the subject's
	// account. Re-issuing before the cooldown elapses fails with ErrTooSoon;
	// re-issuing after it overwrites (invalidates) the previous code.
	Issue(ctx context.Context, subjectID, channel, address string) error
	// Verify consumes the pending code for (subjectID, address). On a match
	// it flips the account's confirmation flag for the channel and removes
	// the entry; a wrong code leaves the entry in place for another attempt.
	Verify(ctx context.Context, subjectID, channel, address, code string) error
	// CheckPhone reports whether a phone number is registered and, on
	// request, whether it is already confirmed.
	CheckPhone(ctx context.Context, phone string, checkVerified bool) (*PhoneStatus, error)
}

type ServiceDeps struct {
	Store          codeStore
	Users          userStore
	SMS            smsSender
	Mailer         emailSender
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	// SilentConflict makes issuance to a phone confirmed on another account
	// report success without sending anything, so callers cannot probe which
	// numbers are taken. When false the conflict is surfaced as ErrConflict.
	SilentConflict bool
	Now            func() time.Time
}

type service struct {
	store          codeStore
	users          userStore
	sms            smsSender
	mailer         emailSender
	codeTTL        time.Duration
	resendCooldown time.Duration
	silentConflict bool
	now            func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:          deps.Store,
		users:          deps.Users,
		sms:            deps.SMS,
		mailer:         deps.Mailer,
		codeTTL:        deps.CodeTTL,
		resendCooldown: deps.ResendCooldown,
		silentConflict: deps.SilentConflict,
		now:            now,
	}
}

func (s *service) Issue(ctx context.Context, subjectID, channel, address string) error {
	u, err := s.users.Get(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err := ownsAddress(u, channel, address); err != nil {
		return err
	}

	if channel == domain.ChannelSMS {
		owner, err := s.users.GetVerifiedByPhone(ctx, address)
		if err == nil && owner.UserID != subjectID {
			if s.silentConflict {
				slog.Info("phone already verified on another account, skipping send", "subject_id", subjectID)
				return nil
			}
			return fmt.Errorf("phone already verified on another account: %w", domain.ErrConflict)
		}
	}

	now := s.now()
	if prev, err := s.store.Get(ctx, subjectID, address); err == nil {
		issuedAt := time.Unix(prev.IssuedAt, 0)
		if now.Before(issuedAt.Add(s.resendCooldown)) && now.Unix() <= prev.ExpiresAt {
			return fmt.Errorf("code issued %ds ago: %w", int(now.Sub(issuedAt).Seconds()), domain.ErrTooSoon)
		}
	}

	code, err := otp.New()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	v := &domain.VerificationRequest{
		SubjectID: subjectID,
		Address:   address,
		Channel:   channel,
		CodeHash:  string(hash),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.codeTTL).Unix(),
	}
	if err := s.store.Put(ctx, v); err != nil {
		return err
	}

	if err := s.deliver(ctx, channel, address, code); err != nil {
		// No pending entry may survive a failed send: the user has no way to
		// receive the code, so issuance is rolled back.
		if rmErr := s.store.Remove(ctx, subjectID, address); rmErr != nil {
			slog.Warn("failed to roll back verification entry", "subject_id", subjectID, "err", rmErr)
		}
		return fmt.Errorf("send verification code: %v: %w", err, domain.ErrDeliveryFailed)
	}
	return nil
}

func (s *service) Verify(ctx context.Context, subjectID, channel, address, code string) error {
	v, err := s.store.Get(ctx, subjectID, address)
	if err != nil {
		return fmt.Errorf("no verification code found: %w", domain.ErrNotFound)
	}
	if s.now().Unix() > v.ExpiresAt {
		if err := s.store.Remove(ctx, subjectID, address); err != nil {
			slog.Warn("failed to remove expired verification entry", "subject_id", subjectID, "err", err)
		}
		return fmt.Errorf("verification code has expired: %w", domain.ErrExpired)
	}
	if bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)) != nil {
		return fmt.Errorf("invalid verification code: %w", domain.ErrMismatch)
	}

	if err := s.store.Remove(ctx, subjectID, address); err != nil {
		slog.Warn("failed to remove consumed verification entry", "subject_id", subjectID, "err", err)
	}
	return s.users.Update(ctx, subjectID, map[string]interface{}{confirmedField(channel): true})
}

func (s *service) CheckPhone(ctx context.Context, phone string, checkVerified bool) (*PhoneStatus, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return &PhoneStatus{Exists: false, Message: "phone number available"}, nil
	}
	if checkVerified {
		verified := u.PhoneConfirmed
		msg := "phone number exists but not verified"
		if verified {
			msg = "phone number already verified by another account"
		}
		return &PhoneStatus{Exists: true, IsVerified: &verified, Message: msg}, nil
	}
	return &PhoneStatus{Exists: true, Message: "phone number already registered"}, nil
}

func (s *service) deliver(ctx context.Context, channel, address, code string) error {
	switch channel {
	case domain.ChannelSMS:
		return s.sms.SendSMS(ctx, address, smsBody(code))
	case domain.ChannelEmail:
		return s.mailer.SendEmail(address, fmt.Sprintf("Código de verificación - %s", code), emailBody(code))
	default:
		return fmt.Errorf("unknown channel %q: %w", channel, domain.ErrBadRequest)
	}
}

func ownsAddress(u *domain.User, channel, address string) error {
	switch channel {
	case domain.ChannelSMS:
		if u.Phone == nil || *u.Phone != address {
			return fmt.Errorf("phone number not found or doesn't belong to user: %w", domain.ErrBadRequest)
		}
	case domain.ChannelEmail:
		if u.Email != address {
			return fmt.Errorf("email doesn't belong to user: %w", domain.ErrBadRequest)
		}
	default:
		return fmt.Errorf("unknown channel %q: %w", channel, domain.ErrBadRequest)
	}
	return nil
}

func confirmedField(channel string) string {
	if channel == domain.ChannelSMS {
		return "phone_confirmed"
	}
	return "email_confirmed"
}

func smsBody(code string) string {
	return fmt.Sprintf("Tu código de verificación Hunt Tickets: %s. Válido por 5 minutos. No compartas este código.", code)
}

func emailBody(code string) string {
	return fmt.Sprintf("Tu código de verificación Hunt Tickets es %s. Válido por 5 minutos. No compartas este código.", code)
}
