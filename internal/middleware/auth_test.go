package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func generateTestKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

func signedToken(t *testing.T, privateKey *rsa.PrivateKey, userID string, expired bool) string {
	t.Helper()
	claims := &Claims{
		UserID: userID,
		Email:  "dev@example.com",
		Role:   "publisher",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if expired {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authedHandler(t *testing.T, pub *rsa.PublicKey, skip []string) (http.Handler, *string) {
	t.Helper()
	var seenUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return NewAuthMiddleware(pub, nil, skip).Handler(inner), &seenUser
}

func TestAuthAcceptsValidToken(t *testing.T) {
	priv, pub := generateTestKeys(t)
	handler, seenUser := authedHandler(t, pub, nil)

	req := httptest.NewRequest(http.MethodGet, "/apps", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, priv, "user-1", false))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if *seenUser != "user-1" {
		t.Fatalf("user id in context = %q", *seenUser)
	}
}

func TestAuthRejections(t *testing.T) {
	priv, pub := generateTestKeys(t)
	otherPriv, _ := generateTestKeys(t)
	handler, _ := authedHandler(t, pub, nil)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
		{"expired token", "Bearer " + signedToken(t, priv, "user-1", true)},
		{"wrong key", "Bearer " + signedToken(t, otherPriv, "user-1", false)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/apps", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuthSkipPaths(t *testing.T) {
	_, pub := generateTestKeys(t)
	handler, _ := authedHandler(t, pub, []string{"/healthz"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for skipped path", rec.Code)
	}
}
