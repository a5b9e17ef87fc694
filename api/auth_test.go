package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

func signedToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "user-123",
		"aud": "api://aud",
		"iss": "https://issuer/",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"nbf": time.Now().Add(-time.Minute).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	}
}

func newTestAuth(t *testing.T, secret []byte) *Auth {
	t.Helper()
	auth, err := NewAuth(AuthConfig{Audience: "api://aud", Issuer: "https://issuer/", SharedSecret: secret})
	if err != nil {
		t.Fatalf("new auth: %v", err)
	}
	return auth
}

func TestRequestToken(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		header  string
		want    string
		wantErr error
	}{
		{name: "header", target: "/", header: "Bearer header.payload.signature", want: "header.payload.signature"},
		{name: "lowercase scheme", target: "/", header: "  bearer header.payload.signature ", want: "header.payload.signature"},
		{name: "query", target: "/?token=header.payload.signature", want: "header.payload.signature"},
		{name: "header wins", target: "/?token=q.q.q", header: "Bearer h.h.h", want: "h.h.h"},
		{name: "missing", target: "/", wantErr: errMissingAuthorization},
		{name: "blank header and query", target: "/?token=%20", header: "   ", wantErr: errMissingAuthorization},
		{name: "basic scheme", target: "/", header: "Basic abc.def.ghi", wantErr: errBadAuthorization},
		{name: "scheme only", target: "/", header: "Bearer", wantErr: errBadAuthorization},
		{name: "many periods", target: "/", header: "Bearer " + strings.Repeat(".", 1000), wantErr: errBadAuthorization},
		{name: "empty segment", target: "/", header: "Bearer a..c", wantErr: errBadAuthorization},
		{name: "query not a jwt", target: "/?token=opaque", wantErr: errBadAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			got, err := requestToken(req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Fatalf("expected token %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewAuthRequiresKeySource(t *testing.T) {
	if _, err := NewAuth(AuthConfig{}); err == nil {
		t.Fatalf("expected error without jwks or secret")
	}
	if _, err := NewAuth(AuthConfig{SharedSecret: []byte("s"), KeyCacheTTL: -time.Second}); err == nil {
		t.Fatalf("expected error for negative cache ttl")
	}
}

func TestUserIDFromTokenHS256(t *testing.T) {
	secret := []byte("test-secret")
	auth := newTestAuth(t, secret)

	userID, err := auth.UserIDFromToken(signedToken(t, secret, validClaims()))
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("unexpected user id: %s", userID)
	}
}

func TestUserIDFromTokenRejects(t *testing.T) {
	secret := []byte("test-secret")
	auth := newTestAuth(t, secret)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAud := validClaims()
	wrongAud["aud"] = "api://other"
	noSub := validClaims()
	delete(noSub, "sub")

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "abc.def.ghi"},
		{name: "wrong secret", token: signedToken(t, []byte("other"), validClaims())},
		{name: "expired", token: signedToken(t, secret, expired)},
		{name: "audience", token: signedToken(t, secret, wrongAud)},
		{name: "missing sub", token: signedToken(t, secret, noSub)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.UserIDFromToken(tt.token); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRequireAuthMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	auth := newTestAuth(t, secret)
	token := signedToken(t, secret, validClaims())

	e := echo.New()
	e.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c))
	}, requireAuth(auth))

	tests := []struct {
		name     string
		target   string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "header", target: "/whoami", header: "Bearer " + token, wantCode: http.StatusOK, wantBody: "user-123"},
		{name: "query fallback", target: "/whoami?token=" + token, wantCode: http.StatusOK, wantBody: "user-123"},
		{name: "missing", target: "/whoami", wantCode: http.StatusUnauthorized, wantBody: `{"error":"unauthorized"}`},
		{name: "bad header wins over query", target: "/whoami?token=" + token, header: "Bearer nope", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && strings.TrimSpace(rec.Body.String()) != tt.wantBody {
				t.Fatalf("unexpected body %q", rec.Body.String())
			}
		})
	}
}
