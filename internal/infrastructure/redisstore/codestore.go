// Package redisstore is the shared code store backend. Entries are JSON
// values under verify:{subject}:{address} with a server-side TTL, so multiple
// API instances see the same pending codes and Redis evicts stale ones.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

type CodeStore struct {
	client *redis.Client
	now    func() time.Time
}

// New connects to Redis. A nil clock falls back to time.Now; callers that
// inject a clock into the verification engine should pass the same one so
// the server-side TTL and the engine's expiry never disagree.
func New(addr, password string, now func() time.Time) *CodeStore {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), now)
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, now func() time.Time) *CodeStore {
	if now == nil {
		now = time.Now
	}
	return &CodeStore{client: client, now: now}
}

func (s *CodeStore) Put(ctx context.Context, v *domain.VerificationRequest) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	ttl := time.Unix(v.ExpiresAt, 0).Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("verification already expired: %w", domain.ErrBadRequest)
	}
	// SET with TTL is a single atomic write per key; a reissue overwrites the
	// previous entry and resets the TTL in the same command.
	return s.client.Set(ctx, storeKey(v.SubjectID, v.Address), b, ttl).Err()
}

func (s *CodeStore) Get(ctx context.Context, subjectID, address string) (*domain.VerificationRequest, error) {
	b, err := s.client.Get(ctx, storeKey(subjectID, address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var v domain.VerificationRequest
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &v, nil
}

func (s *CodeStore) Remove(ctx context.Context, subjectID, address string) error {
	return s.client.Del(ctx, storeKey(subjectID, address)).Err()
}

func storeKey(subjectID, address string) string {
	return fmt.Sprintf("verify:%s:%s", subjectID, address)
}
