package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"estateclaims/internal/platform/logger"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/requestcontext"
)

type stubAuthenticator struct {
	caller id.Caller
	err    error
}

func (s stubAuthenticator) Authenticate(string) (id.Caller, error) { return s.caller, s.err }

func TestRequireAuth(t *testing.T) {
	caller := id.Caller{UserID: id.NewUserID(), Roles: []id.Role{id.RoleClaimant}}

	run := func(a Authenticator, header string) (*httptest.ResponseRecorder, id.Caller, bool) {
		var got id.Caller
		var seen bool
		h := RequireAuth(a, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, seen = requestcontext.Caller(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec, got, seen
	}

	t.Run("valid token stores caller", func(t *testing.T) {
		rec, got, seen := run(stubAuthenticator{caller: caller}, "Bearer good")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, seen)
		assert.Equal(t, caller, got)
	})

	t.Run("missing header", func(t *testing.T) {
		rec, _, seen := run(stubAuthenticator{caller: caller}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, seen)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec, _, seen := run(stubAuthenticator{err: errors.New("bad")}, "Bearer bad")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, seen)
	})
}
