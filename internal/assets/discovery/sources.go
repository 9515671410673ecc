package discovery

import (
	"context"
	"fmt"
	"hash/fnv"
	"maps"
	"time"

	"estateclaims/internal/assets/models"
	claimsmodels "estateclaims/internal/claims/models"
)

// Mock is a deterministic source. Each session gets the same findings on
// every call; values vary per session so listings look realistic.
type Mock struct {
	SourceName  string
	Institution string
	Holdings    []Holding
	Latency     time.Duration
	Err         error
}

// Holding describes one canned finding. BaseValue is in minor units.
type Holding struct {
	Key       string
	Type      models.AssetType
	BaseValue int64
	Currency  string
	Details   map[string]any
}

func (m Mock) Name() string { return m.SourceName }

func (m Mock) Discover(ctx context.Context, session *claimsmodels.Session) ([]Finding, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	seed := sessionSeed(session)
	out := make([]Finding, 0, len(m.Holdings))
	for i, h := range m.Holdings {
		out = append(out, Finding{
			SourceRef:       fmt.Sprintf("%s:%s", m.SourceName, h.Key),
			InstitutionName: m.Institution,
			Type:            h.Type,
			AccountNumber:   fmt.Sprintf("****%04d", (seed+uint32(i)*7919)%10000),
			EstimatedValue:  h.BaseValue + int64(seed%1000)*100,
			Currency:        h.Currency,
			Details:         maps.Clone(h.Details),
		})
	}
	return out, nil
}

func sessionSeed(session *claimsmodels.Session) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(session.ID.String()))
	_, _ = h.Write([]byte(session.DeceasedIDNumber))
	return h.Sum32()
}

// DefaultSources is the registry set used outside tests: a bank, an insurer
// and a credit bureau reporting an outstanding loan.
func DefaultSources() []Source {
	return []Source{
		Mock{
			SourceName:  "bank-registry",
			Institution: "First National Bank",
			Holdings: []Holding{
				{Key: "cheque", Type: models.AssetBankAccount, BaseValue: 4_500_000, Currency: "ZAR", Details: map[string]any{"account_kind": "cheque"}},
				{Key: "unit-trust", Type: models.AssetInvestment, BaseValue: 12_000_000, Currency: "ZAR", Details: map[string]any{"fund": "Balanced Growth"}},
			},
		},
		Mock{
			SourceName:  "insurance-registry",
			Institution: "Old Mutual Life",
			Holdings: []Holding{
				{Key: "life-policy", Type: models.AssetInsurance, BaseValue: 50_000_000, Currency: "ZAR", Details: map[string]any{"policy_kind": "whole life"}},
			},
		},
		Mock{
			SourceName:  "credit-bureau",
			Institution: "Standard Home Loans",
			Holdings: []Holding{
				{Key: "home-loan", Type: models.AssetLoan, BaseValue: 80_000_000, Currency: "ZAR", Details: map[string]any{"secured": true}},
			},
		},
	}
}
