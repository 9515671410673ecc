package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer", "test-audience")

func Test_GenerateAndValidate(t *testing.T) {
	userID := id.NewUserID()
	token, err := jwtService.GenerateAccessToken(userID, []id.Role{id.RoleReviewer}, time.Hour)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, []string{"REVIEWER"}, claims.Roles)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(id.NewUserID(), nil, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", "test-issuer", "someone-else")
	token, err := other.GenerateAccessToken(id.NewUserID(), nil, time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Authenticate(t *testing.T) {
	userID := id.NewUserID()
	token, err := jwtService.GenerateAccessToken(userID, []id.Role{id.RoleClaimant, "SUPERUSER"}, time.Hour)
	require.NoError(t, err)

	caller, err := jwtService.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, caller.UserID)
	assert.Equal(t, []id.Role{id.RoleClaimant}, caller.Roles)
	assert.False(t, caller.IsStaff())
}
