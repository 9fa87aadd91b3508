// Package memstore is the process-local code store backend. It mirrors the
// behavior of the reference deployment: codes live in a single process, so it
// is only suitable when exactly one API instance serves verification traffic.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/hunt-tickets/verify-api/internal/domain"
)

type key struct {
	subjectID string
	address   string
}

// CodeStore is an in-memory, mutex-guarded map of pending verifications.
type CodeStore struct {
	mu      sync.RWMutex
	entries map[key]domain.VerificationRequest
}

func New() *CodeStore {
	return &CodeStore{entries: make(map[key]domain.VerificationRequest)}
}

func (s *CodeStore) Put(ctx context.Context, v *domain.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key{v.SubjectID, v.Address}] = *v
	return nil
}

func (s *CodeStore) Get(ctx context.Context, subjectID, address string) (*domain.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key{subjectID, address}]
	if !ok {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	cp := v
	return &cp, nil
}

func (s *CodeStore) Remove(ctx context.Context, subjectID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key{subjectID, address})
	return nil
}
