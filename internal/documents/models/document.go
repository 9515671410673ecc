package models

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"

	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
)

// MaxFileSize is the upload limit per document.
const MaxFileSize = 10 * 1024 * 1024

const maxReasonLength = 2000

var allowedMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// FileMeta is the claimant-supplied description of an upload.
type FileMeta struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Validate checks the type allow-list and size bound.
func (f FileMeta) Validate() error {
	name := strings.TrimSpace(f.Name)
	switch {
	case name == "" || filepath.Base(name) == ".":
		return dErrors.New(dErrors.CodeValidation, "file name is required")
	case !allowedMIMETypes[f.MIMEType]:
		return dErrors.New(dErrors.CodeValidation, "file type must be JPEG, PNG or PDF")
	case f.Size <= 0:
		return dErrors.New(dErrors.CodeValidation, "file is empty")
	case f.Size > MaxFileSize:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("file exceeds the %d MB limit", MaxFileSize/(1024*1024)))
	}
	return nil
}

// OCRResult is the structured extraction attached by RunOCR.
type OCRResult struct {
	Fields        map[string]string `json:"fields"`
	ExtractedText string            `json:"extracted_text"`
	Confidence    float64           `json:"confidence"`
}

// Validate checks the confidence lies in [0,1].
func (r OCRResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("OCR confidence %v out of range [0,1]", r.Confidence))
	}
	return nil
}

// Document is one piece of evidence attached to a claim session.
//
// Invariants:
//   - RejectionReason is non-empty iff Status is REJECTED
//   - VERIFIED and REJECTED documents never change; a re-upload is a new Document
//   - StorageLocator always points at a blob that was confirmed written
type Document struct {
	ID              id.DocumentID `json:"id"`
	SessionID       id.SessionID  `json:"session_id"`
	Type            DocType       `json:"document_type"`
	File            FileMeta      `json:"file"`
	StorageLocator  string        `json:"storage_locator"`
	Status          Status        `json:"status"`
	OCR             *OCRResult    `json:"ocr_result,omitempty"`
	OCRAt           *time.Time    `json:"ocr_processed_at,omitempty"`
	VerifiedBy      *id.UserID    `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time    `json:"verified_at,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	UploadedAt      time.Time     `json:"uploaded_at"`
	Version         int64         `json:"version"`
}

// NewDocument builds a PENDING document for a blob that has already been stored.
func NewDocument(docID id.DocumentID, sessionID id.SessionID, docType DocType, file FileMeta, locator string, now time.Time) (*Document, error) {
	if !docType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown document type")
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(locator) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document requires a storage locator")
	}
	return &Document{
		ID:             docID,
		SessionID:      sessionID,
		Type:           docType,
		File:           file,
		StorageLocator: locator,
		Status:         StatusPending,
		UploadedAt:     now,
		Version:        1,
	}, nil
}

func (d *Document) Clone() *Document {
	c := *d
	if d.OCR != nil {
		ocr := *d.OCR
		ocr.Fields = maps.Clone(d.OCR.Fields)
		c.OCR = &ocr
	}
	if d.OCRAt != nil {
		t := *d.OCRAt
		c.OCRAt = &t
	}
	if d.VerifiedBy != nil {
		v := *d.VerifiedBy
		c.VerifiedBy = &v
	}
	if d.VerifiedAt != nil {
		t := *d.VerifiedAt
		c.VerifiedAt = &t
	}
	return &c
}

// CompleteOCR attaches an extraction. A document only accepts one: a second
// run would overwrite a reviewer's corrections.
func (d *Document) CompleteOCR(result OCRResult, now time.Time) error {
	if d.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("OCR can only run on a PENDING document, document is %s", d.Status))
	}
	if err := result.Validate(); err != nil {
		return err
	}
	d.OCR = &result
	d.OCRAt = &now
	d.Status = StatusOCRComplete
	return nil
}

// Decide records the reviewer's verdict. Rejection requires a reason.
func (d *Document) Decide(verifier id.UserID, approved bool, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if !approved && reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	if len(reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is too long")
	}
	next := StatusVerified
	if !approved {
		next = StatusRejected
	}
	if !d.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("document already %s", d.Status))
	}
	d.Status = next
	d.VerifiedBy = &verifier
	d.VerifiedAt = &now
	if approved {
		d.RejectionReason = ""
	} else {
		d.RejectionReason = reason
	}
	return nil
}
