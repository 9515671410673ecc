package handler

import (
	"strings"

	"estateclaims/internal/claims/models"
	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
)

// CreateSessionRequest is the body of POST /claims/sessions.
type CreateSessionRequest struct {
	DeceasedName     string `json:"deceased_name"`
	DeceasedIDNumber string `json:"deceased_id_number"`
	Relationship     string `json:"relationship"`
	Consent          bool   `json:"consent"`
	Notes            string `json:"notes"`
}

// Validate implements httputil.Validatable. Field rules live on the model;
// this only normalizes.
func (r *CreateSessionRequest) Validate() error {
	r.DeceasedName = strings.TrimSpace(r.DeceasedName)
	r.DeceasedIDNumber = strings.TrimSpace(r.DeceasedIDNumber)
	r.Relationship = strings.TrimSpace(r.Relationship)
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

func (r *CreateSessionRequest) toModel() models.CreateSessionRequest {
	return models.CreateSessionRequest{
		DeceasedName:     r.DeceasedName,
		DeceasedIDNumber: r.DeceasedIDNumber,
		Relationship:     r.Relationship,
		Consent:          r.Consent,
		Notes:            r.Notes,
	}
}

// BeginReviewRequest is the body of POST /claims/sessions/{id}/review.
// An empty reviewer assigns the caller.
type BeginReviewRequest struct {
	ReviewerID string `json:"reviewer_id"`

	reviewer id.UserID
}

func (r *BeginReviewRequest) Validate() error {
	r.ReviewerID = strings.TrimSpace(r.ReviewerID)
	if r.ReviewerID == "" {
		return nil
	}
	reviewer, err := id.ParseUserID(r.ReviewerID)
	if err != nil {
		return err
	}
	r.reviewer = reviewer
	return nil
}

// OutcomeRequest is the body of POST /claims/sessions/{id}/outcome.
type OutcomeRequest struct {
	AllVerified *bool  `json:"all_verified"`
	Notes       string `json:"notes"`
}

func (r *OutcomeRequest) Validate() error {
	if r.AllVerified == nil {
		return dErrors.New(dErrors.CodeValidation, "all_verified is required")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

// NotesRequest carries reviewer notes for rejecting a submission.
type NotesRequest struct {
	Notes string `json:"notes"`
}

func (r *NotesRequest) Validate() error {
	r.Notes = strings.TrimSpace(r.Notes)
	if r.Notes == "" {
		return dErrors.New(dErrors.CodeValidation, "notes are required")
	}
	return nil
}
