package httputil

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
	"estateclaims/pkg/requestcontext"
)

func multipartRequest(t *testing.T, field, fileName, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("session_id", "abc"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestReadMultipartFile(t *testing.T) {
	pdf := []byte("%PDF-1.7\n1 0 obj")

	t.Run("reads the part and keeps other form values", func(t *testing.T) {
		req := multipartRequest(t, "file", "will.pdf", "application/pdf", pdf)
		upload, err := ReadMultipartFile(httptest.NewRecorder(), req, "file", 1024)
		require.NoError(t, err)
		assert.Equal(t, "will.pdf", upload.Name)
		assert.Equal(t, "application/pdf", upload.ContentType)
		assert.Equal(t, pdf, upload.Content)
		assert.Equal(t, "abc", req.FormValue("session_id"))
	})

	t.Run("generic declared type is sniffed", func(t *testing.T) {
		req := multipartRequest(t, "file", "will.bin", "application/octet-stream", pdf)
		upload, err := ReadMultipartFile(httptest.NewRecorder(), req, "file", 1024)
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", upload.ContentType)
	})

	t.Run("missing part is a validation error", func(t *testing.T) {
		req := multipartRequest(t, "attachment", "will.pdf", "application/pdf", pdf)
		_, err := ReadMultipartFile(httptest.NewRecorder(), req, "file", 1024)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "file is required")
	})

	t.Run("oversized body is a validation error", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), 3<<20)
		req := multipartRequest(t, "file", "big.pdf", "application/pdf", big)
		_, err := ReadMultipartFile(httptest.NewRecorder(), req, "file", 1<<20)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "1 MB")
	})

	t.Run("json body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"file":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		_, err := ReadMultipartFile(httptest.NewRecorder(), req, "file", 1024)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func TestSniffContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, "image/jpeg", SniffContentType("image/jpeg; charset=binary", png))
	assert.Equal(t, "image/png", SniffContentType("", png))
	assert.Equal(t, "image/png", SniffContentType("application/octet-stream", png))
	assert.Equal(t, "text/plain", SniffContentType("", []byte("hello")))
}

func TestRequireCaller(t *testing.T) {
	t.Run("anonymous is 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		_, ok := RequireCaller(w, context.Background())
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("returns the caller from context", func(t *testing.T) {
		caller := id.Caller{UserID: id.NewUserID(), Roles: []id.Role{id.RoleClaimant}}
		w := httptest.NewRecorder()
		got, ok := RequireCaller(w, requestcontext.WithCaller(context.Background(), caller))
		require.True(t, ok)
		assert.Equal(t, caller, got)
	})
}
