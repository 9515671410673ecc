package claims

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string) error
	DELETE(path string) error
	Upload(path, fileName, mimeType string, content []byte, fields map[string]string) error
	Status() int
	Body() []byte
	GetResponseField(field string) (interface{}, error)
	Set(name, value string)
	Get(name string) string
}

var requiredDocuments = []string{"death_certificate", "claimant_id", "proof_of_relationship"}

// RegisterSteps registers claim session, review and asset claim steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &claimSteps{tc: tc}

	// Claim session
	ctx.Step(`^I open a claim for the estate of "([^"]*)" as their "([^"]*)"$`, steps.openClaim)
	ctx.Step(`^I upload a "([^"]*)" document$`, steps.uploadDocument)
	ctx.Step(`^I upload all required documents$`, steps.uploadRequired)
	ctx.Step(`^I submit the documents$`, steps.submit)
	ctx.Step(`^I withdraw consent$`, steps.withdrawConsent)
	ctx.Step(`^the session status should be "([^"]*)"$`, steps.sessionStatusShouldBe)

	// Review
	ctx.Step(`^I begin reviewing the session$`, steps.beginReview)
	ctx.Step(`^I approve the "([^"]*)" document$`, steps.approveDocument)
	ctx.Step(`^I reject the "([^"]*)" document because "([^"]*)"$`, steps.rejectDocument)
	ctx.Step(`^I approve every required document$`, steps.approveRequired)
	ctx.Step(`^I approve the session$`, steps.approveSession)

	// Assets
	ctx.Step(`^I list the assets of the session$`, steps.listAssets)
	ctx.Step(`^the response should list (\d+) assets$`, steps.shouldListAssets)
	ctx.Step(`^I claim the "([^"]*)" asset$`, steps.claimAsset)
	ctx.Step(`^I attach a receipt to the claim$`, steps.attachReceipt)
	ctx.Step(`^I start processing the claim$`, steps.startProcessing)
	ctx.Step(`^I finalize the claim as "([^"]*)"$`, steps.finalize)
	ctx.Step(`^the claim status should be "([^"]*)"$`, steps.claimStatusShouldBe)
}

type claimSteps struct {
	tc TestContext
}

func (s *claimSteps) expect(status int) error {
	if s.tc.Status() != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, s.tc.Status(), s.tc.Body())
	}
	return nil
}

func (s *claimSteps) save(field, name string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %s is not a string", field)
	}
	s.tc.Set(name, str)
	return nil
}

func (s *claimSteps) openClaim(ctx context.Context, deceased, relationship string) error {
	err := s.tc.POST("/claims/sessions", map[string]interface{}{
		"deceased_name": deceased,
		"relationship":  relationship,
		"consent":       true,
	})
	if err != nil {
		return err
	}
	if err := s.expect(201); err != nil {
		return err
	}
	return s.save("id", "session_id")
}

func (s *claimSteps) uploadDocument(ctx context.Context, docType string) error {
	err := s.tc.Upload("/documents", docType+".pdf", "application/pdf", []byte("%PDF-1.7 "+docType), map[string]string{
		"session_id":    s.tc.Get("session_id"),
		"document_type": docType,
	})
	if err != nil {
		return err
	}
	if s.tc.Status() != 201 {
		return nil
	}
	return s.save("id", "doc_"+docType)
}

func (s *claimSteps) uploadRequired(ctx context.Context) error {
	for _, t := range requiredDocuments {
		if err := s.uploadDocument(ctx, t); err != nil {
			return err
		}
		if err := s.expect(201); err != nil {
			return err
		}
	}
	return nil
}

func (s *claimSteps) sessionPath(suffix string) string {
	return "/claims/sessions/" + s.tc.Get("session_id") + suffix
}

func (s *claimSteps) submit(ctx context.Context) error {
	return s.tc.POST(s.sessionPath("/submit"), nil)
}

func (s *claimSteps) withdrawConsent(ctx context.Context) error {
	return s.tc.DELETE(s.sessionPath("/consent"))
}

func (s *claimSteps) beginReview(ctx context.Context) error {
	return s.tc.POST(s.sessionPath("/review"), map[string]interface{}{})
}

func (s *claimSteps) approveSession(ctx context.Context) error {
	return s.tc.POST(s.sessionPath("/approve"), nil)
}

func (s *claimSteps) sessionStatusShouldBe(ctx context.Context, want string) error {
	if err := s.tc.GET(s.sessionPath("")); err != nil {
		return err
	}
	if err := s.expect(200); err != nil {
		return err
	}
	got, err := s.tc.GetResponseField("status")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected session status %s, got %v", want, got)
	}
	return nil
}

func (s *claimSteps) decide(docType string, approved bool, reason string) error {
	docID := s.tc.Get("doc_" + docType)
	if docID == "" {
		return fmt.Errorf("no %s document uploaded in this scenario", docType)
	}
	return s.tc.POST("/review/documents/"+docID+"/decision", map[string]interface{}{
		"approved": approved,
		"reason":   reason,
	})
}

func (s *claimSteps) approveDocument(ctx context.Context, docType string) error {
	return s.decide(docType, true, "")
}

func (s *claimSteps) rejectDocument(ctx context.Context, docType, reason string) error {
	return s.decide(docType, false, reason)
}

func (s *claimSteps) approveRequired(ctx context.Context) error {
	for _, t := range requiredDocuments {
		if err := s.decide(t, true, ""); err != nil {
			return err
		}
		if err := s.expect(200); err != nil {
			return err
		}
	}
	return nil
}

type asset struct {
	ID   string `json:"id"`
	Type string `json:"asset_type"`
}

func (s *claimSteps) listAssets(ctx context.Context) error {
	return s.tc.GET("/assets?session_id=" + s.tc.Get("session_id"))
}

func (s *claimSteps) assets() ([]asset, error) {
	var body struct {
		Assets []asset `json:"assets"`
	}
	if err := json.Unmarshal(s.tc.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode assets: %w", err)
	}
	return body.Assets, nil
}

func (s *claimSteps) shouldListAssets(ctx context.Context, n int) error {
	if err := s.expect(200); err != nil {
		return err
	}
	list, err := s.assets()
	if err != nil {
		return err
	}
	if len(list) != n {
		return fmt.Errorf("expected %d assets, got %d", n, len(list))
	}
	return nil
}

func (s *claimSteps) claimAsset(ctx context.Context, assetType string) error {
	if err := s.listAssets(ctx); err != nil {
		return err
	}
	list, err := s.assets()
	if err != nil {
		return err
	}
	for _, a := range list {
		if a.Type == assetType {
			if err := s.tc.POST("/assets/"+a.ID+"/claims", nil); err != nil {
				return err
			}
			if s.tc.Status() != 201 {
				return nil
			}
			return s.save("id", "claim_id")
		}
	}
	return fmt.Errorf("no %s asset discovered", assetType)
}

func (s *claimSteps) claimPath(suffix string) string {
	return "/asset-claims/" + s.tc.Get("claim_id") + suffix
}

func (s *claimSteps) attachReceipt(ctx context.Context) error {
	return s.tc.Upload(s.claimPath("/receipt"), "receipt.png", "image/png",
		[]byte("\x89PNG\r\n\x1a\nreceipt"), nil)
}

func (s *claimSteps) startProcessing(ctx context.Context) error {
	return s.tc.POST(s.claimPath("/processing"), map[string]interface{}{})
}

func (s *claimSteps) finalize(ctx context.Context, outcome string) error {
	return s.tc.POST(s.claimPath("/finalize"), map[string]interface{}{"outcome": outcome})
}

func (s *claimSteps) claimStatusShouldBe(ctx context.Context, want string) error {
	if err := s.tc.GET(s.claimPath("")); err != nil {
		return err
	}
	if err := s.expect(200); err != nil {
		return err
	}
	got, err := s.tc.GetResponseField("status")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected claim status %s, got %v", want, got)
	}
	return nil
}
