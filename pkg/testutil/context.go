package testutil

import (
	"net/http"

	id "stablehand/pkg/domain"
	"stablehand/pkg/requestcontext"
)

// WithAuth puts the caller's user and organization on the request context,
// as the auth middleware does for a valid token. Invalid IDs are skipped so
// tests can exercise the unauthenticated path.
func WithAuth(req *http.Request, userID, organizationID string) *http.Request {
	ctx := req.Context()
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsedUserID)
	}
	if parsedOrgID, err := id.ParseOrganizationID(organizationID); err == nil {
		ctx = requestcontext.WithOrganizationID(ctx, parsedOrgID)
	}
	return req.WithContext(ctx)
}
