package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/hunt-tickets/verify-api/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// Put derives the server-side TTL from the injected clock, not the wall
// clock, so a store sharing a clock with the verification engine rejects an
// entry the engine already considers expired. The write must be refused
// before any command reaches Redis.
func TestPut_ExpiredPerInjectedClock(t *testing.T) {
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	client := redis.NewClient(&redis.Options{Addr: "localhost:1"}) // never dialed
	store := NewWithClient(client, func() time.Time { return base })

	err := store.Put(context.Background(), &domain.VerificationRequest{
		SubjectID: "u1",
		Address:   "+573001112233",
		CodeHash:  "hash",
		IssuedAt:  base.Add(-10 * time.Minute).Unix(),
		ExpiresAt: base.Add(-5 * time.Minute).Unix(),
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestStoreKey(t *testing.T) {
	assert.Equal(t, "verify:u1:+573001112233", storeKey("u1", "+573001112233"))
}
