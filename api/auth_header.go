package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

const (
	bearerScheme    = "Bearer"
	tokenQueryParam = "token"
)

// requestToken returns the JWT a request authenticates with. The
// Authorization header wins; browsers cannot set headers on websocket and
// EventSource connections, so those send the token as ?token= instead.
func requestToken(r *http.Request) (string, error) {
	if raw := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization)); raw != "" {
		return bearerToken(raw)
	}
	if token := strings.TrimSpace(r.URL.Query().Get(tokenQueryParam)); token != "" {
		return compactJWT(token)
	}
	return "", errMissingAuthorization
}

// bearerToken parses an "Authorization: Bearer <jwt>" value. The scheme is
// case-insensitive.
func bearerToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errMissingAuthorization
	}
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", errBadAuthorization
	}
	return compactJWT(strings.TrimSpace(token))
}

// compactJWT rejects anything that is not three dot-separated segments.
func compactJWT(token string) (string, error) {
	if strings.Count(token, ".") != 2 || strings.ContainsAny(token, " \t") {
		return "", errBadAuthorization
	}
	for _, part := range strings.SplitN(token, ".", 3) {
		if part == "" {
			return "", errBadAuthorization
		}
	}
	return token, nil
}
