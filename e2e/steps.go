package e2e

import (
	"github.com/cucumber/godog"

	"estateclaims/e2e/steps/claims"
	"estateclaims/e2e/steps/common"
)

// RegisterSteps wires the shared request/assertion steps and the claim
// workflow steps into one scenario.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	claims.RegisterSteps(ctx, tc)
}
