package models

import (
	"fmt"
	"strings"
	"time"

	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
)

const (
	maxNameLength  = 200
	maxNotesLength = 4000
)

// Session is a claimant's case for one deceased person.
//
// Invariants:
//   - ConsentGiven and ConsentAt are set and cleared together
//   - no document may be attached while ConsentGiven is false
//   - Status only changes along the transition table in status.go
//   - sessions are never deleted; REJECTED and APPROVED close them
type Session struct {
	ID               id.SessionID `json:"id"`
	ClaimantID       id.UserID    `json:"claimant_id"`
	DeceasedName     string       `json:"deceased_name"`
	DeceasedIDNumber string       `json:"deceased_id_number,omitempty"`
	Relationship     string       `json:"relationship"`
	ConsentGiven     bool         `json:"consent_given"`
	ConsentAt        *time.Time   `json:"consent_at,omitempty"`
	Status           Status       `json:"status"`
	AssignedReviewer *id.UserID   `json:"assigned_reviewer,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	Version          int64        `json:"version"`
}

// NewSession validates the opening fields. Callers pass consent=true; the
// consent flag is part of the signature so the check lives with the invariant.
func NewSession(sessionID id.SessionID, claimant id.UserID, deceasedName, deceasedIDNumber, relationship string, consent bool, notes string, now time.Time) (*Session, error) {
	deceasedName = strings.TrimSpace(deceasedName)
	relationship = strings.TrimSpace(relationship)
	switch {
	case claimant.IsNil():
		return nil, dErrors.New(dErrors.CodeValidation, "claimant is required")
	case deceasedName == "":
		return nil, dErrors.New(dErrors.CodeValidation, "deceased name is required")
	case len(deceasedName) > maxNameLength:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("deceased name must be %d characters or less", maxNameLength))
	case relationship == "":
		return nil, dErrors.New(dErrors.CodeValidation, "relationship is required")
	case !consent:
		return nil, dErrors.New(dErrors.CodeValidation, "consent is required to open a claim")
	case len(notes) > maxNotesLength:
		return nil, dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	consentAt := now
	return &Session{
		ID:               sessionID,
		ClaimantID:       claimant,
		DeceasedName:     deceasedName,
		DeceasedIDNumber: strings.TrimSpace(deceasedIDNumber),
		Relationship:     relationship,
		ConsentGiven:     true,
		ConsentAt:        &consentAt,
		Status:           StatusStarted,
		Notes:            notes,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}, nil
}

// Clone returns a deep copy so stores never share pointers with callers.
func (s *Session) Clone() *Session {
	c := *s
	if s.ConsentAt != nil {
		t := *s.ConsentAt
		c.ConsentAt = &t
	}
	if s.AssignedReviewer != nil {
		r := *s.AssignedReviewer
		c.AssignedReviewer = &r
	}
	return &c
}

func (s *Session) IsOwnedBy(user id.UserID) bool {
	return s.ClaimantID == user
}

// CanAttachDocuments is the upload precondition.
func (s *Session) CanAttachDocuments() error {
	if !s.ConsentGiven {
		return dErrors.New(dErrors.CodePrecondition, "consent has not been given for this claim")
	}
	if s.Status != StatusStarted && s.Status != StatusDocumentsUploaded {
		return dErrors.New(dErrors.CodePrecondition, fmt.Sprintf("documents cannot be added to a claim in %s", s.Status))
	}
	return nil
}

func (s *Session) canChangeConsent() error {
	if s.Status != StatusStarted && s.Status != StatusDocumentsUploaded {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("consent cannot change in %s", s.Status))
	}
	return nil
}

// GrantConsent sets the flag and its timestamp together. Returns false when
// consent was already given.
func (s *Session) GrantConsent(now time.Time) (bool, error) {
	if err := s.canChangeConsent(); err != nil {
		return false, err
	}
	if s.ConsentGiven {
		return false, nil
	}
	s.ConsentGiven = true
	s.ConsentAt = &now
	s.UpdatedAt = now
	return true, nil
}

// WithdrawConsent clears the flag and its timestamp together.
func (s *Session) WithdrawConsent(now time.Time) (bool, error) {
	if err := s.canChangeConsent(); err != nil {
		return false, err
	}
	if !s.ConsentGiven {
		return false, nil
	}
	s.ConsentGiven = false
	s.ConsentAt = nil
	s.UpdatedAt = now
	return true, nil
}

func (s *Session) transition(next Status, now time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("claim cannot move from %s to %s", s.Status, next))
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

// SubmitDocuments moves STARTED to DOCUMENTS_UPLOADED. It reports false when
// the session is already there. Document completeness is checked by the caller.
func (s *Session) SubmitDocuments(now time.Time) (bool, error) {
	if s.Status == StatusDocumentsUploaded {
		return false, nil
	}
	if !s.ConsentGiven {
		return false, dErrors.New(dErrors.CodePrecondition, "consent has not been given for this claim")
	}
	return true, s.transition(StatusDocumentsUploaded, now)
}

func (s *Session) BeginReview(reviewer id.UserID, now time.Time) error {
	if reviewer.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "reviewer is required")
	}
	if err := s.transition(StatusUnderReview, now); err != nil {
		return err
	}
	s.AssignedReviewer = &reviewer
	return nil
}

// RecordVerificationOutcome applies the aggregate document result. A repeat
// of the outcome already recorded reports false; a conflicting outcome is a
// state error.
func (s *Session) RecordVerificationOutcome(allVerified bool, notes string, now time.Time) (bool, error) {
	notes = strings.TrimSpace(notes)
	target := StatusVerified
	if !allVerified {
		target = StatusRejected
		if notes == "" {
			return false, dErrors.New(dErrors.CodeValidation, "notes are required when rejecting a claim")
		}
	}

	switch {
	case s.Status == target,
		allVerified && s.Status == StatusApproved:
		return false, nil
	case s.Status == StatusVerified || s.Status == StatusRejected || s.Status == StatusApproved:
		return false, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("claim already resolved as %s", s.Status))
	case s.Status != StatusUnderReview:
		return false, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("claim is not under review (status %s)", s.Status))
	}

	if err := s.transition(target, now); err != nil {
		return false, err
	}
	if notes != "" {
		s.Notes = notes
	}
	return true, nil
}

// RejectSubmission closes a submitted claim before review starts.
func (s *Session) RejectSubmission(notes string, now time.Time) error {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return dErrors.New(dErrors.CodeValidation, "notes are required when rejecting a claim")
	}
	if s.Status != StatusDocumentsUploaded {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("only submitted claims can be rejected before review (status %s)", s.Status))
	}
	if err := s.transition(StatusRejected, now); err != nil {
		return err
	}
	s.Notes = notes
	return nil
}

func (s *Session) Approve(now time.Time) error {
	if s.Status != StatusVerified {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("only verified claims can be approved (status %s)", s.Status))
	}
	return s.transition(StatusApproved, now)
}

// EligibleForDiscovery reports whether assets may be discovered for the session.
func EligibleForDiscovery(s *Session) bool {
	return s.Status == StatusVerified || s.Status == StatusApproved
}

// Progress is the required-document completion of a session.
type Progress struct {
	SessionID       id.SessionID `json:"session_id"`
	RequiredTotal   int          `json:"required_total"`
	RequiredPresent int          `json:"required_present"`
	MissingRequired []string     `json:"missing_required"`
	Percent         int          `json:"percent"`
	ReadyToSubmit   bool         `json:"ready_to_submit"`
}

// Stats summarises a caller's claims for the dashboard.
type Stats struct {
	TotalClaims      int `json:"total_claims"`
	PendingReview    int `json:"pending_review"`
	ClaimsApproved   int `json:"claims_approved"`
	AssetsDiscovered int `json:"assets_discovered"`
}

// CreateSessionRequest carries the claimant-supplied fields of a new claim.
type CreateSessionRequest struct {
	DeceasedName     string
	DeceasedIDNumber string
	Relationship     string
	Consent          bool
	Notes            string
}
