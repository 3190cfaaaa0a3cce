// AngelaMos | 2026
// signer.go

package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/checkout-backend/internal/config"
	"github.com/carterperez-dev/templates/checkout-backend/internal/middleware"
)

// Signer mints access tokens with a local private key. Production tokens
// come from the identity provider; this exists for development and the
// CLI.
type Signer struct {
	privateKey jwk.Key
	config     config.JWTConfig
}

func NewSigner(privateKeyPath string, cfg config.JWTConfig) (*Signer, error) {
	privateKeyPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return NewSignerFromKey(privateKey, cfg)
}

func NewSignerFromKey(privateKey jwk.Key, cfg config.JWTConfig) (*Signer, error) {
	if setErr := privateKey.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}
	return &Signer{privateKey: privateKey, config: cfg}, nil
}

func (s *Signer) PublicKey() (jwk.Key, error) {
	return s.privateKey.PublicKey()
}

func (s *Signer) CreateAccessToken(
	claims middleware.AccessTokenClaims,
	ttl time.Duration,
) (string, error) {
	now := time.Now()

	builder := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(s.config.Issuer).
		Audience([]string{s.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		NotBefore(now).
		Claim("role", claims.Role).
		Claim("type", tokenTypeAccess)
	if claims.Email != "" {
		builder = builder.Claim("email", claims.Email)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), s.privateKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}
