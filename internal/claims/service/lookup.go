package service

import (
	"context"
	"errors"

	"estateclaims/internal/claims/models"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/platform/sentinel"
)

type sessionFinder interface {
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindForUpdate(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

// Lookup reads sessions for other engines without access checks or audit.
// It reads through the store so it can be built before the Service that
// depends on those engines.
type Lookup struct {
	sessions sessionFinder
}

func NewLookup(sessions sessionFinder) *Lookup {
	return &Lookup{sessions: sessions}
}

func (l *Lookup) Session(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return translateFind(l.sessions.FindByID(ctx, sessionID))
}

// SessionForUpdate reads the session and locks it against concurrent
// transitions for the rest of the unit of work in ctx.
func (l *Lookup) SessionForUpdate(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return translateFind(l.sessions.FindForUpdate(ctx, sessionID))
}

func translateFind(session *models.Session, err error) (*models.Session, error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim session")
	}
	return session, nil
}
