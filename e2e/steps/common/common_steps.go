package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	ActAs(name, role string) error
	Anonymous()
	POST(path string, body interface{}) error
	GET(path string) error
	Status() int
	Body() []byte
	GetResponseField(field string) (interface{}, error)
	Set(name, value string)
}

// RegisterSteps registers actor, request and assertion steps shared by all features
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Actors
	ctx.Step(`^I am the claimant "([^"]*)"$`, steps.asRole("CLAIMANT"))
	ctx.Step(`^I am the reviewer "([^"]*)"$`, steps.asRole("REVIEWER"))
	ctx.Step(`^I am the admin "([^"]*)"$`, steps.asRole("ADMIN"))
	ctx.Step(`^I am not authenticated$`, steps.anonymous)

	// Generic requests
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I POST "([^"]*)" with body:$`, steps.postWithBody)

	// Assertions
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response error should be "([^"]*)"$`, steps.errorShouldBe)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, steps.saveField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) asRole(role string) func(ctx context.Context, name string) error {
	return func(ctx context.Context, name string) error {
		return s.tc.ActAs(name, role)
	}
}

func (s *commonSteps) anonymous(ctx context.Context) error {
	s.tc.Anonymous()
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) postWithBody(ctx context.Context, path string, body *godog.DocString) error {
	var payload interface{}
	if err := unmarshal(body.Content, &payload); err != nil {
		return err
	}
	return s.tc.POST(path, payload)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, status int) error {
	if s.tc.Status() != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, s.tc.Status(), s.tc.Body())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, want string) error {
	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if str := stringify(got); str != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, str)
	}
	return nil
}

func (s *commonSteps) errorShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) saveField(ctx context.Context, field, name string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Set(name, stringify(v))
	return nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
