package models

import (
	"maps"
	"strings"
	"time"

	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
)

// AssetType is the kind of holding an institution reported.
type AssetType string

const (
	AssetBankAccount AssetType = "BANK_ACCOUNT"
	AssetInvestment  AssetType = "INVESTMENT"
	AssetInsurance   AssetType = "INSURANCE"
	AssetProperty    AssetType = "PROPERTY"
	AssetLoan        AssetType = "LOAN"
	AssetOther       AssetType = "OTHER"
)

func (t AssetType) IsValid() bool {
	switch t {
	case AssetBankAccount, AssetInvestment, AssetInsurance, AssetProperty, AssetLoan, AssetOther:
		return true
	}
	return false
}

// RequiresReceipt reports whether a claim must carry a settlement receipt
// before processing starts.
func (t AssetType) RequiresReceipt() bool {
	return t == AssetLoan
}

// Asset is a holding discovered for a verified claim session. Assets are
// written once by discovery and never updated.
type Asset struct {
	ID              id.AssetID     `json:"id"`
	SessionID       id.SessionID   `json:"session_id"`
	SourceRef       string         `json:"source_ref"`
	InstitutionName string         `json:"institution_name"`
	Type            AssetType      `json:"asset_type"`
	AccountNumber   string         `json:"account_number,omitempty"`
	EstimatedValue  int64          `json:"estimated_value"`
	Currency        string         `json:"currency"`
	Details         map[string]any `json:"details"`
	DiscoveredAt    time.Time      `json:"discovered_at"`
}

// NewAsset validates a discovery finding. EstimatedValue is in minor units.
func NewAsset(assetID id.AssetID, sessionID id.SessionID, sourceRef, institution string, assetType AssetType,
	accountNumber string, value int64, currency string, details map[string]any, now time.Time) (*Asset, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	institution = strings.TrimSpace(institution)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	switch {
	case sessionID.IsNil():
		return nil, dErrors.New(dErrors.CodeValidation, "session is required")
	case sourceRef == "":
		return nil, dErrors.New(dErrors.CodeValidation, "source reference is required")
	case institution == "":
		return nil, dErrors.New(dErrors.CodeValidation, "institution name is required")
	case !assetType.IsValid():
		return nil, dErrors.New(dErrors.CodeValidation, "unknown asset type")
	case len(currency) != 3:
		return nil, dErrors.New(dErrors.CodeValidation, "currency must be a three-letter code")
	case value < 0:
		return nil, dErrors.New(dErrors.CodeValidation, "estimated value cannot be negative")
	}
	if details == nil {
		details = map[string]any{}
	}
	return &Asset{
		ID:              assetID,
		SessionID:       sessionID,
		SourceRef:       sourceRef,
		InstitutionName: institution,
		Type:            assetType,
		AccountNumber:   strings.TrimSpace(accountNumber),
		EstimatedValue:  value,
		Currency:        currency,
		Details:         maps.Clone(details),
		DiscoveredAt:    now,
	}, nil
}

func (a *Asset) Clone() *Asset {
	c := *a
	c.Details = maps.Clone(a.Details)
	return &c
}
