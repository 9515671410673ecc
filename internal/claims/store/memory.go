// Package store persists claim sessions. Both stores implement the same
// optimistic concurrency contract: Update succeeds only when the stored
// version equals the caller's, then bumps it.
package store

import (
	"context"
	"sort"
	"sync"

	"estateclaims/internal/claims/models"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/sentinel"
	"estateclaims/pkg/platform/tx"
)

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	ClaimantID id.UserID
	Status     models.Status
}

func (f ListFilter) matches(s *models.Session) bool {
	if !f.ClaimantID.IsNil() && s.ClaimantID != f.ClaimantID {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

type InMemory struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemory) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.sessions[session.ID] = session.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.sessions, session.ID)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return found.Clone(), nil
}

// FindForUpdate is FindByID; tx.Memory already runs one unit at a time.
func (s *InMemory) FindForUpdate(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.FindByID(ctx, sessionID)
}

func (s *InMemory) Update(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[session.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != session.Version {
		return sentinel.ErrStaleWrite
	}
	session.Version++
	s.sessions[session.ID] = session.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.sessions[current.ID] = current
	})
	return nil
}

// List returns matching sessions, newest first.
func (s *InMemory) List(_ context.Context, filter ListFilter) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Session, 0)
	for _, session := range s.sessions {
		if filter.matches(session) {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Put stores a session verbatim. Test seeding only.
func (s *InMemory) Put(session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
}
