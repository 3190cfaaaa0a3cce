// AngelaMos | 2026
// auth_test.go

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/carterperez-dev/templates/checkout-backend/internal/config"
	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/middleware"
)

func newKeyPair(t *testing.T, cfg config.JWTConfig) (*Signer, *Verifier) {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	if err := GenerateKeyPair(priv, pub); err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	signer, err := NewSigner(priv, cfg)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	cfg.PublicKeyPath = pub
	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return signer, verifier
}

var testJWT = config.JWTConfig{Issuer: "identity", Audience: "checkout-api"}

func TestVerifyRoundTrip(t *testing.T) {
	signer, verifier := newKeyPair(t, testJWT)

	token, err := signer.CreateAccessToken(middleware.AccessTokenClaims{
		UserID: "user-1",
		Email:  "buyer@example.com",
		Role:   middleware.RoleAdmin,
	}, time.Minute)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}

	claims, err := verifier.VerifyAccessToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "buyer@example.com" || claims.Role != middleware.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	signer, verifier := newKeyPair(t, testJWT)
	other, _ := newKeyPair(t, testJWT)

	claims := middleware.AccessTokenClaims{UserID: "user-1", Role: middleware.RoleCustomer}

	expired, err := signer.CreateAccessToken(claims, -time.Minute)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	if _, err := verifier.VerifyAccessToken(context.Background(), expired); !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	foreign, _ := other.CreateAccessToken(claims, time.Minute)
	if _, err := verifier.VerifyAccessToken(context.Background(), foreign); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign key, got %v", err)
	}

	if _, err := verifier.VerifyAccessToken(context.Background(), "not.a.jwt"); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	signer, _ := newKeyPair(t, config.JWTConfig{Issuer: "identity", Audience: "elsewhere"})
	pub, err := signer.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}

	verifier, err := NewVerifierFromKey(pub, testJWT)
	if err != nil {
		t.Fatalf("NewVerifierFromKey: %v", err)
	}

	token, _ := signer.CreateAccessToken(middleware.AccessTokenClaims{UserID: "user-1"}, time.Minute)
	if _, err := verifier.VerifyAccessToken(context.Background(), token); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthenticatorMiddleware(t *testing.T) {
	signer, verifier := newKeyPair(t, testJWT)
	token, _ := signer.CreateAccessToken(middleware.AccessTokenClaims{UserID: "user-9"}, time.Minute)

	var seen *middleware.AccessTokenClaims
	h := middleware.Authenticator(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetClaims(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen == nil || seen.UserID != "user-9" || seen.Role != middleware.RoleCustomer {
		t.Fatalf("unexpected claims in context: %+v", seen)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}
