package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestContext holds per-scenario state: the acting identity, the last
// response and ids captured along the way.
type TestContext struct {
	baseURL    string
	signingKey []byte
	issuer     string
	audience   string
	client     *http.Client

	actors  map[string]string
	current string

	lastStatus int
	lastBody   []byte
	vars       map[string]string
}

func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:    env("E2E_BASE_URL", "http://localhost:8080"),
		signingKey: []byte(env("JWT_SIGNING_KEY", "dev-secret-key-change-in-production")),
		issuer:     env("JWT_ISSUER", "estate-identity"),
		audience:   env("JWT_AUDIENCE", "estate-claims"),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Reset clears scenario state.
func (tc *TestContext) Reset() {
	tc.actors = make(map[string]string)
	tc.current = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.vars = make(map[string]string)
}

// ActAs switches the caller to a named actor holding role, minting a token
// for a fresh user the first time the name is seen.
func (tc *TestContext) ActAs(name, role string) error {
	if _, ok := tc.actors[name]; !ok {
		token, err := tc.mint(role)
		if err != nil {
			return err
		}
		tc.actors[name] = token
	}
	tc.current = name
	return nil
}

// Anonymous drops the Authorization header for subsequent requests.
func (tc *TestContext) Anonymous() {
	tc.current = ""
}

func (tc *TestContext) mint(role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"roles":   []string{strings.ToUpper(role)},
		"iss":     tc.issuer,
		"aud":     tc.audience,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
		"jti":     uuid.NewString(),
	})
	return token.SignedString(tc.signingKey)
}

func (tc *TestContext) POST(path string, body interface{}) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(raw)
	}
	return tc.do(http.MethodPost, path, buf, "application/json")
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, "")
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, "")
}

// Upload posts a multipart form with one file part and extra fields.
func (tc *TestContext) Upload(path, fileName, mimeType string, content []byte, fields map[string]string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName)}
	h["Content-Type"] = []string{mimeType}
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, &buf, w.FormDataContentType())
}

func (tc *TestContext) do(method, path string, body io.Reader, contentType string) error {
	req, err := http.NewRequest(method, tc.baseURL+tc.Expand(path), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token, ok := tc.actors[tc.current]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) Status() int {
	return tc.lastStatus
}

// GetResponseField reads a dotted path from the last JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not json: %w (body %s)", err, tc.lastBody)
	}
	for _, key := range strings.Split(field, ".") {
		obj, ok := doc.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %s is not an object", field, key)
		}
		if doc, ok = obj[key]; !ok {
			return nil, fmt.Errorf("field %q missing in %s", field, tc.lastBody)
		}
	}
	return doc, nil
}

func (tc *TestContext) Body() []byte {
	return tc.lastBody
}

func (tc *TestContext) Set(name, value string) {
	tc.vars[name] = value
}

func (tc *TestContext) Get(name string) string {
	return tc.vars[name]
}

// Expand replaces {name} placeholders with captured values.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
