/*
Package memory provides an in-memory OrderStore for tests and demos.

PURPOSE:
  Implements disbursement.OrderStore with maps and a mutex. Same
  semantics as the SQLite store - append-only revisions, replay
  detection - without a database.

SEE ALSO:
  - store/sqlite: the persistent implementation
  - disbursement: the OrderStore contract
*/
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/sickpay-engine/disbursement"
)

// Store is an in-memory OrderStore.
type Store struct {
	mu        sync.RWMutex
	revisions map[uuid.UUID][]disbursement.Snapshot
	handled   map[string]uuid.UUID
}

func New() *Store {
	return &Store{
		revisions: make(map[uuid.UUID][]disbursement.Snapshot),
		handled:   make(map[string]uuid.UUID),
	}
}

func (s *Store) AppendRevision(ctx context.Context, snap disbursement.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions[snap.CorrelationID] = append(s.revisions[snap.CorrelationID], snap)
	return nil
}

func (s *Store) Revisions(ctx context.Context, correlationID uuid.UUID) ([]disbursement.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	revs := s.revisions[correlationID]
	out := make([]disbursement.Snapshot, len(revs))
	copy(out, revs)
	return out, nil
}

func (s *Store) LatestRevision(ctx context.Context, correlationID uuid.UUID) (*disbursement.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	revs := s.revisions[correlationID]
	if len(revs) == 0 {
		return nil, fmt.Errorf("%w: %s", disbursement.ErrRevisionNotFound, correlationID)
	}
	latest := revs[len(revs)-1]
	return &latest, nil
}

func (s *Store) MarkHandled(ctx context.Context, messageID string, orderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handled[messageID]; ok {
		return false, nil
	}
	s.handled[messageID] = orderID
	return true, nil
}

func (s *Store) WasHandled(ctx context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handled[messageID]
	return ok, nil
}
