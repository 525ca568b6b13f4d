package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that is missing, malformed, badly signed or expired.
var ErrInvalidToken = errors.New("invalid session token")

// Claims are the identity attributes carried by a session token.
type Claims struct {
	Email  string `json:"email"`
	UserID string `json:"userid"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens with a process-wide secret.
// A zero ttl issues tokens without an expiry.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a token issuer/verifier. The secret is copied and never mutated.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the configured token lifetime; 0 means unbounded.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for the given identity.
func (t *Tokens) Issue(email, userID string) (string, error) {
	now := t.now()
	claims := Claims{
		Email:  email,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature (and expiry, when present) and returns the claims.
func (t *Tokens) Verify(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" || claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
