// Package domain holds typed identifiers shared across modules. Each entity has
// its own ID type so a DocumentID can never be passed where a SessionID is
// expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "estateclaims/pkg/domain-errors"
)

type (
	UserID       uuid.UUID
	SessionID    uuid.UUID
	DocumentID   uuid.UUID
	AssetID      uuid.UUID
	AssetClaimID uuid.UUID
)

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id SessionID) String() string    { return uuid.UUID(id).String() }
func (id DocumentID) String() string   { return uuid.UUID(id).String() }
func (id AssetID) String() string      { return uuid.UUID(id).String() }
func (id AssetClaimID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AssetID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AssetClaimID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id AssetID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id AssetClaimID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SessionID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AssetID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AssetClaimID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func NewUserID() UserID             { return UserID(uuid.New()) }
func NewSessionID() SessionID       { return SessionID(uuid.New()) }
func NewDocumentID() DocumentID     { return DocumentID(uuid.New()) }
func NewAssetID() AssetID           { return AssetID(uuid.New()) }
func NewAssetClaimID() AssetClaimID { return AssetClaimID(uuid.New()) }

// SystemActor identifies writes made by the service itself, e.g. asset
// discovery results.
var SystemActor = UserID(uuid.MustParse("00000000-0000-0000-0000-000000000001"))

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document id")
	return DocumentID(u), err
}

func ParseAssetID(s string) (AssetID, error) {
	u, err := parseUUID(s, "asset id")
	return AssetID(u), err
}

func ParseAssetClaimID(s string) (AssetClaimID, error) {
	u, err := parseUUID(s, "asset claim id")
	return AssetClaimID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs at trust boundaries.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+kind)
	}
	return u, nil
}
