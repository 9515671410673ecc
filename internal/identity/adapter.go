package identity

import (
	id "estateclaims/pkg/domain"
)

// Authenticate validates a bearer token and returns its caller. Satisfies the
// auth middleware's Authenticator.
func (s *JWTService) Authenticate(token string) (id.Caller, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return id.Caller{}, err
	}
	return claims.Caller()
}
