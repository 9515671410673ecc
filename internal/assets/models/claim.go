package models

import (
	"fmt"
	"strings"
	"time"

	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
)

const maxNotesLength = 4000

// ClaimStatus is the settlement state of one asset claim.
type ClaimStatus string

const (
	ClaimClaimed     ClaimStatus = "CLAIMED"
	ClaimProcessing  ClaimStatus = "PROCESSING"
	ClaimTransferred ClaimStatus = "TRANSFERRED"
	ClaimRejected    ClaimStatus = "REJECTED"
)

var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimClaimed:    {ClaimProcessing},
	ClaimProcessing: {ClaimTransferred, ClaimRejected},
}

func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimClaimed, ClaimProcessing, ClaimTransferred, ClaimRejected:
		return true
	}
	return false
}

func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimTransferred || s == ClaimRejected
}

func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, allowed := range claimTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseOutcome accepts the two terminal statuses only.
func ParseOutcome(v string) (ClaimStatus, error) {
	s := ClaimStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.IsTerminal() {
		return "", dErrors.New(dErrors.CodeValidation, "outcome must be TRANSFERRED or REJECTED")
	}
	return s, nil
}

// AssetClaim is one claimant's pursuit of one asset.
//
// Invariants:
//   - at most one AssetClaim per (AssetID, ClaimantID)
//   - ReceiptLocator is set only for LOAN assets, and only on leaving CLAIMED
//   - ProcessedAt is set iff Status is terminal
type AssetClaim struct {
	ID              id.AssetClaimID `json:"id"`
	AssetID         id.AssetID      `json:"asset_id"`
	ClaimantID      id.UserID       `json:"claimant_id"`
	Status          ClaimStatus     `json:"status"`
	ClaimedAt       time.Time       `json:"claimed_at"`
	ReceiptLocator  string          `json:"receipt_locator,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ProcessingNotes string          `json:"processing_notes,omitempty"`
	Version         int64           `json:"version"`
}

func NewAssetClaim(claimID id.AssetClaimID, assetID id.AssetID, claimant id.UserID, now time.Time) (*AssetClaim, error) {
	if assetID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "asset is required")
	}
	if claimant.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "claimant is required")
	}
	return &AssetClaim{
		ID:         claimID,
		AssetID:    assetID,
		ClaimantID: claimant,
		Status:     ClaimClaimed,
		ClaimedAt:  now,
		Version:    1,
	}, nil
}

func (c *AssetClaim) Clone() *AssetClaim {
	out := *c
	if c.ProcessedAt != nil {
		t := *c.ProcessedAt
		out.ProcessedAt = &t
	}
	return &out
}

func (c *AssetClaim) transition(next ClaimStatus) error {
	if !c.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("asset claim cannot move from %s to %s", c.Status, next))
	}
	c.Status = next
	return nil
}

// CanAttachReceipt reports whether a receipt may be attached now.
func (c *AssetClaim) CanAttachReceipt(asset *Asset) error {
	if !asset.Type.RequiresReceipt() {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("receipts apply to loan assets only (asset type %s)", asset.Type))
	}
	if c.Status != ClaimClaimed {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("receipt cannot be attached in %s", c.Status))
	}
	return nil
}

// AttachReceipt records the settlement receipt of a loan and starts processing.
func (c *AssetClaim) AttachReceipt(asset *Asset, locator string) error {
	if err := c.CanAttachReceipt(asset); err != nil {
		return err
	}
	if strings.TrimSpace(locator) == "" {
		return dErrors.New(dErrors.CodeValidation, "receipt locator is required")
	}
	if err := c.transition(ClaimProcessing); err != nil {
		return err
	}
	c.ReceiptLocator = locator
	return nil
}

// StartProcessing is the administrative path out of CLAIMED for assets that
// need no receipt.
func (c *AssetClaim) StartProcessing(asset *Asset, notes string) error {
	if asset.Type.RequiresReceipt() {
		return dErrors.New(dErrors.CodeInvalidState, "loan claims start processing when the receipt is attached")
	}
	if len(notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	if err := c.transition(ClaimProcessing); err != nil {
		return err
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		c.ProcessingNotes = notes
	}
	return nil
}

// Finalize closes a processing claim. Repeating the recorded outcome reports
// false; any other outcome on a closed claim is a state error.
func (c *AssetClaim) Finalize(outcome ClaimStatus, notes string, now time.Time) (bool, error) {
	if !outcome.IsTerminal() {
		return false, dErrors.New(dErrors.CodeValidation, "outcome must be TRANSFERRED or REJECTED")
	}
	notes = strings.TrimSpace(notes)
	if len(notes) > maxNotesLength {
		return false, dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	switch {
	case c.Status == outcome:
		return false, nil
	case c.Status.IsTerminal():
		return false, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("asset claim already finalized as %s", c.Status))
	case c.Status != ClaimProcessing:
		return false, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("asset claim is not processing (status %s)", c.Status))
	}
	if err := c.transition(outcome); err != nil {
		return false, err
	}
	c.ProcessedAt = &now
	if notes != "" {
		c.ProcessingNotes = notes
	}
	return true, nil
}
