// Package store persists documents with the same version-checked Update
// contract as the claim session store.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"estateclaims/internal/documents/models"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/sentinel"
	"estateclaims/pkg/platform/tx"
)

type InMemory struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*models.Document
}

func NewInMemory() *InMemory {
	return &InMemory{documents: make(map[id.DocumentID]*models.Document)}
}

func (s *InMemory) Create(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.documents[doc.ID] = doc.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.documents, doc.ID)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.documents[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return found.Clone(), nil
}

func (s *InMemory) Update(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.documents[doc.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != doc.Version {
		return sentinel.ErrStaleWrite
	}
	doc.Version++
	s.documents[doc.ID] = doc.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.documents[current.ID] = current
	})
	return nil
}

// ListBySession returns the session's documents, oldest upload first.
func (s *InMemory) ListBySession(_ context.Context, sessionID id.SessionID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Document, 0)
	for _, d := range s.documents {
		if d.SessionID == sessionID {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

// ListByStatus returns documents in any of the statuses, newest upload first.
func (s *InMemory) ListByStatus(_ context.Context, statuses ...models.Status) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Document, 0)
	for _, d := range s.documents {
		if slices.Contains(statuses, d.Status) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}
