package handler

import (
	"strings"

	"estateclaims/internal/assets/models"
	id "estateclaims/pkg/domain"
)

// InitiateClaimRequest is the body of POST /assets/{assetID}/claims. An empty
// claimant claims for the caller.
type InitiateClaimRequest struct {
	ClaimantID string `json:"claimant_id"`

	claimant id.UserID
}

func (r *InitiateClaimRequest) Validate() error {
	r.ClaimantID = strings.TrimSpace(r.ClaimantID)
	if r.ClaimantID == "" {
		return nil
	}
	claimant, err := id.ParseUserID(r.ClaimantID)
	if err != nil {
		return err
	}
	r.claimant = claimant
	return nil
}

// StartProcessingRequest is the body of POST /asset-claims/{claimID}/processing.
type StartProcessingRequest struct {
	Notes string `json:"notes"`
}

func (r *StartProcessingRequest) Validate() error {
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

// FinalizeRequest is the body of POST /asset-claims/{claimID}/finalize.
type FinalizeRequest struct {
	Outcome string `json:"outcome"`
	Notes   string `json:"notes"`

	outcome models.ClaimStatus
}

func (r *FinalizeRequest) Validate() error {
	outcome, err := models.ParseOutcome(r.Outcome)
	if err != nil {
		return err
	}
	r.outcome = outcome
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}
