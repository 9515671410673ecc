package testutil

import (
	"net/http"

	id "estateclaims/pkg/domain"
	"estateclaims/pkg/requestcontext"
)

// WithCaller adds an authenticated caller to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithCaller(req *http.Request, caller id.Caller) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// Claimant returns a fresh caller holding only the CLAIMANT role.
func Claimant() id.Caller {
	return id.Caller{UserID: id.NewUserID(), Roles: []id.Role{id.RoleClaimant}}
}

// Reviewer returns a fresh caller holding the REVIEWER role.
func Reviewer() id.Caller {
	return id.Caller{UserID: id.NewUserID(), Roles: []id.Role{id.RoleReviewer}}
}

// Admin returns a fresh caller holding the ADMIN role.
func Admin() id.Caller {
	return id.Caller{UserID: id.NewUserID(), Roles: []id.Role{id.RoleAdmin}}
}
