package review

import (
	"context"

	claimsmodels "estateclaims/internal/claims/models"
	claimsservice "estateclaims/internal/claims/service"
	id "estateclaims/pkg/domain"
)

// SessionAPI is the claim session service exposed over HTTP. Starting a
// review and recording an outcome go through the coordinator so they share
// its per-session serialization.
type SessionAPI struct {
	*claimsservice.Service
	coordinator *Coordinator
}

func NewSessionAPI(sessions *claimsservice.Service, coordinator *Coordinator) *SessionAPI {
	return &SessionAPI{Service: sessions, coordinator: coordinator}
}

func (a *SessionAPI) BeginReview(ctx context.Context, caller id.Caller, sessionID id.SessionID, reviewer id.UserID) (*claimsmodels.Session, error) {
	return a.coordinator.BeginReview(ctx, caller, sessionID, reviewer)
}

func (a *SessionAPI) RecordVerificationOutcome(ctx context.Context, caller id.Caller, sessionID id.SessionID, allVerified bool, notes string) (*claimsmodels.Session, error) {
	return a.coordinator.RecordVerificationOutcome(ctx, caller, sessionID, allVerified, notes)
}
