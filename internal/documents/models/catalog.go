package models

import (
	dErrors "estateclaims/pkg/domain-errors"
)

// DocType is an entry of the fixed evidence catalog.
type DocType string

const (
	DocDeathCertificate    DocType = "death_certificate"
	DocClaimantID          DocType = "claimant_id"
	DocProofOfRelationship DocType = "proof_of_relationship"
	DocDeceasedID          DocType = "deceased_id"
	DocAccountStatement    DocType = "account_statement"
	DocOther               DocType = "other"
)

// CatalogEntry describes one evidence type.
type CatalogEntry struct {
	Type     DocType `json:"type"`
	Label    string  `json:"label"`
	Required bool    `json:"required"`
}

var catalog = []CatalogEntry{
	{Type: DocDeathCertificate, Label: "Death Certificate", Required: true},
	{Type: DocClaimantID, Label: "Your ID Document", Required: true},
	{Type: DocProofOfRelationship, Label: "Proof of Relationship", Required: true},
	{Type: DocDeceasedID, Label: "Deceased's ID Document"},
	{Type: DocAccountStatement, Label: "Bank Account Statement"},
	{Type: DocOther, Label: "Other Supporting Document"},
}

// Catalog returns the evidence catalog in display order.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// RequiredTypes returns the catalog types a session must supply.
func RequiredTypes() []DocType {
	var out []DocType
	for _, e := range catalog {
		if e.Required {
			out = append(out, e.Type)
		}
	}
	return out
}

func (t DocType) IsValid() bool {
	for _, e := range catalog {
		if e.Type == t {
			return true
		}
	}
	return false
}

func (t DocType) IsRequired() bool {
	for _, e := range catalog {
		if e.Type == t {
			return e.Required
		}
	}
	return false
}

func (t DocType) Label() string {
	for _, e := range catalog {
		if e.Type == t {
			return e.Label
		}
	}
	return string(t)
}

// ParseDocType accepts only catalog types.
func ParseDocType(v string) (DocType, error) {
	t := DocType(v)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown document type: "+v)
	}
	return t, nil
}
