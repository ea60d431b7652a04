package auth

import (
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

// grantRejected reports whether the token endpoint refused the grant itself,
// as opposed to failing to answer. revoked is set when the refresh token is
// no longer usable and the stored credential should be dropped.
func grantRejected(err error) (rejected, revoked bool) {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false, false
	}

	switch retrieveErr.ErrorCode {
	case "invalid_grant":
		return true, true
	case "invalid_client", "unauthorized_client":
		return true, false
	}
	if retrieveErr.Response != nil {
		switch retrieveErr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return true, false
		}
	}
	return false, false
}
