// Package store persists discovered assets and asset claims. Assets are
// insert-only and keyed by (session, source reference); claims follow the
// same versioned compare-and-set contract as the other stores.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"estateclaims/internal/assets/models"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/sentinel"
	"estateclaims/pkg/platform/tx"
)

// ClaimFilter narrows ListClaims. Zero values match everything.
type ClaimFilter struct {
	ClaimantID id.UserID
	AssetID    id.AssetID
	Status     models.ClaimStatus
}

func (f ClaimFilter) matches(c *models.AssetClaim) bool {
	if !f.ClaimantID.IsNil() && c.ClaimantID != f.ClaimantID {
		return false
	}
	if !f.AssetID.IsNil() && c.AssetID != f.AssetID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

type sourceKey struct {
	session id.SessionID
	ref     string
}

type claimKey struct {
	asset    id.AssetID
	claimant id.UserID
}

type InMemory struct {
	mu        sync.RWMutex
	assets    map[id.AssetID]*models.Asset
	bySource  map[sourceKey]id.AssetID
	claims    map[id.AssetClaimID]*models.AssetClaim
	byClaimer map[claimKey]id.AssetClaimID
}

func NewInMemory() *InMemory {
	return &InMemory{
		assets:    make(map[id.AssetID]*models.Asset),
		bySource:  make(map[sourceKey]id.AssetID),
		claims:    make(map[id.AssetClaimID]*models.AssetClaim),
		byClaimer: make(map[claimKey]id.AssetClaimID),
	}
}

// CreateAsset inserts the asset unless its session already holds one with the
// same source reference. It reports whether a row was written.
func (s *InMemory) CreateAsset(ctx context.Context, asset *models.Asset) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sourceKey{session: asset.SessionID, ref: asset.SourceRef}
	if _, exists := s.bySource[key]; exists {
		return false, nil
	}
	if _, exists := s.assets[asset.ID]; exists {
		return false, sentinel.ErrAlreadyUsed
	}
	s.assets[asset.ID] = asset.Clone()
	s.bySource[key] = asset.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.assets, asset.ID)
		delete(s.bySource, key)
	})
	return true, nil
}

func (s *InMemory) FindAsset(_ context.Context, assetID id.AssetID) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.assets[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return found.Clone(), nil
}

// ListAssets returns a session's assets, most recently discovered first.
func (s *InMemory) ListAssets(_ context.Context, sessionID id.SessionID) ([]*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Asset, 0)
	for _, a := range s.assets {
		if a.SessionID == sessionID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DiscoveredAt.Equal(out[j].DiscoveredAt) {
			return out[i].SourceRef < out[j].SourceRef
		}
		return out[i].DiscoveredAt.After(out[j].DiscoveredAt)
	})
	return out, nil
}

// CountAssets counts the assets discovered across the given sessions.
func (s *InMemory) CountAssets(_ context.Context, sessionIDs []id.SessionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.assets {
		if slices.Contains(sessionIDs, a.SessionID) {
			n++
		}
	}
	return n, nil
}

// CreateClaim returns ErrAlreadyUsed when the claimant already holds a claim
// on the asset.
func (s *InMemory) CreateClaim(ctx context.Context, claim *models.AssetClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := claimKey{asset: claim.AssetID, claimant: claim.ClaimantID}
	if _, exists := s.byClaimer[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.claims[claim.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.claims[claim.ID] = claim.Clone()
	s.byClaimer[key] = claim.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.claims, claim.ID)
		delete(s.byClaimer, key)
	})
	return nil
}

func (s *InMemory) FindClaim(_ context.Context, claimID id.AssetClaimID) (*models.AssetClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, ok := s.claims[claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return found.Clone(), nil
}

func (s *InMemory) UpdateClaim(ctx context.Context, claim *models.AssetClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.claims[claim.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != claim.Version {
		return sentinel.ErrStaleWrite
	}
	claim.Version++
	s.claims[claim.ID] = claim.Clone()
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.claims[current.ID] = current
	})
	return nil
}

// ListClaims returns matching claims, newest first.
func (s *InMemory) ListClaims(_ context.Context, filter ClaimFilter) ([]*models.AssetClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AssetClaim, 0)
	for _, c := range s.claims {
		if filter.matches(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClaimedAt.After(out[j].ClaimedAt)
	})
	return out, nil
}
