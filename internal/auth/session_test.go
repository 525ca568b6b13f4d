package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	tokens := NewTokens("shhhh", 0)

	raw, err := tokens.Issue("a@x.com", "u1")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := tokens.Verify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Email != "a@x.com" || claims.UserID != "u1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ExpiresAt != nil {
		t.Fatal("token without ttl must not carry exp")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	tokens := NewTokens("shhhh", 0)
	raw, err := tokens.Issue("a@x.com", "u1")
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(raw, ".")
	forged, err := NewTokens("other", 0).Issue("b@x.com", "u2")
	if err != nil {
		t.Fatal(err)
	}
	// Payload of the forged token with the original signature.
	mixed := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	for name, tok := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"mixed":        mixed,
	} {
		if _, err := tokens.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: got %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{Email: "a@x.com", UserID: "u1"}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokens("shhhh", 0).Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestExpiry(t *testing.T) {
	tokens := NewTokens("shhhh", time.Hour)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return start }

	raw, err := tokens.Issue("a@x.com", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Verify(raw); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	tokens.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: got %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRequiresIdentity(t *testing.T) {
	tokens := NewTokens("shhhh", 0)
	raw, err := tokens.Issue("", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}
