package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "estateclaims/pkg/domain"
)

// Action is the closed audit vocabulary.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionView    Action = "VIEW"
	ActionVerify  Action = "VERIFY"
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionUpload  Action = "UPLOAD"
	ActionLogin   Action = "LOGIN"
	ActionLogout  Action = "LOGOUT"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionView, ActionVerify,
		ActionApprove, ActionReject, ActionUpload, ActionLogin, ActionLogout:
		return true
	}
	return false
}

// Entity types recorded against audit entries.
const (
	EntityClaimSession = "claim_session"
	EntityDocument     = "document"
	EntityAsset        = "asset"
	EntityAssetClaim   = "asset_claim"
)

// RequestMetadata is copied from the request context when the entry is built.
type RequestMetadata struct {
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Entry is one append-only audit record.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    id.UserID       `json:"actor_id"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Detail     map[string]any  `json:"detail,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Request    RequestMetadata `json:"request"`
}

// Store persists entries. Append must join the transaction carried in ctx.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error)
	// ListRecent returns at most limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}
