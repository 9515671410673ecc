// Package ocr extracts structured fields from uploaded evidence. The real
// provider is out of scope; Mock returns deterministic data shaped like a
// provider response.
package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"estateclaims/internal/documents/models"
	"estateclaims/internal/platform/external"
)

// Request is what a provider needs to read one document.
type Request struct {
	DocType  models.DocType
	MIMEType string
	FileName string
	Content  []byte
}

type Provider interface {
	Extract(ctx context.Context, req Request) (models.OCRResult, error)
}

// Client runs a Provider under an external.Guard.
type Client struct {
	provider Provider
	guard    *external.Guard
}

func NewClient(provider Provider, guard *external.Guard) *Client {
	return &Client{provider: provider, guard: guard}
}

// Extract refuses an answer whose confidence is outside [0,1] without
// retrying.
func (c *Client) Extract(ctx context.Context, req Request) (models.OCRResult, error) {
	return external.Do(ctx, c.guard, "extract", func(ctx context.Context) (models.OCRResult, error) {
		result, err := c.provider.Extract(ctx, req)
		if err != nil {
			return models.OCRResult{}, err
		}
		if err := result.Validate(); err != nil {
			return models.OCRResult{}, fmt.Errorf("%w: %w", external.ErrPermanent, err)
		}
		return result, nil
	})
}

// Mock is a deterministic provider. Latency simulates a slow service and
// Err forces every call to fail.
type Mock struct {
	Latency time.Duration
	Err     error
}

func (m Mock) Extract(ctx context.Context, req Request) (models.OCRResult, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return models.OCRResult{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return models.OCRResult{}, m.Err
	}
	if len(req.Content) == 0 {
		return models.OCRResult{}, fmt.Errorf("empty document: %w", external.ErrPermanent)
	}
	fields := map[string]string{
		"document_type": string(req.DocType),
		"source_file":   req.FileName,
	}
	switch req.DocType {
	case models.DocDeathCertificate:
		fields["date_of_death"] = "2024-01-15"
		fields["registration_number"] = "DC-" + strings.ToUpper(fmt.Sprintf("%x", len(req.Content)))
	case models.DocClaimantID, models.DocDeceasedID:
		fields["id_number"] = fmt.Sprintf("ID%08d", len(req.Content))
	case models.DocAccountStatement:
		fields["institution"] = "First National Bank"
	}
	return models.OCRResult{
		Fields:        fields,
		ExtractedText: "Sample extracted text from " + req.DocType.Label(),
		Confidence:    0.95,
	}, nil
}
