package api

import (
	"errors"
	"strings"
)

var (
	errMissingAuthorization = errors.New("no authorization header")
	errBadAuthorization     = errors.New("invalid header format")
)

// bearerToken extracts the credential from an Authorization header value.
// The caller decides how to interpret the token; both credential schemes
// share this parsing step.
func bearerToken(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errMissingAuthorization
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errBadAuthorization
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errBadAuthorization
	}
	return token, nil
}
