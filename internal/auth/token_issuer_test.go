package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T, clock func() time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "kudos-auth",
		Audience:      "kudos-api",
		TokenTTL:      30 * time.Minute,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return issuer
}

func TestTokenIssuerIssuesAccessTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, expiresIn, err := issuer.IssueAccessToken(context.Background(), "ada@example.com", 0)
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("expected default ttl, got %d", expiresIn)
	}

	parser := jwt.Parser{}
	claims := &jwt.RegisteredClaims{}
	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if claims.Subject != "ada@example.com" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "kudos-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "kudos-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerHonoursProviderTTL(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	_, expiresIn, err := issuer.IssueAccessToken(context.Background(), "ada@example.com", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn != 3600 {
		t.Fatalf("expected provider ttl of 3600 seconds, got %d", expiresIn)
	}
	if _, _, err := issuer.IssueAccessToken(context.Background(), " ", time.Hour); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, _, err := issuer.IssueAccessToken(context.Background(), "grace@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	subject, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if subject != "grace@example.com" {
		t.Fatalf("unexpected subject %s", subject)
	}

	_, err = issuer.ValidateToken("invalid.token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
}

func TestTokenIssuerRejectsForeignAudience(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	foreign, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "kudos-auth",
		Audience:      "other-api",
		TokenTTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	tokenString, _, err := foreign.IssueAccessToken(context.Background(), "ada@example.com", 0)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	if _, err := issuer.ValidateToken(tokenString); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign audience, got %v", err)
	}
}

func TestTokenIssuerReportsExpiredTokens(t *testing.T) {
	current := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return current })

	tokenString, _, err := issuer.IssueAccessToken(context.Background(), "ada@example.com", time.Minute)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}
	current = current.Add(2 * time.Minute)

	if _, err := issuer.ValidateToken(tokenString); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestNewTokenIssuerValidatesConfig(t *testing.T) {
	testCases := map[string]TokenIssuerConfig{
		"missing-secret":   {Issuer: "kudos-auth", Audience: "kudos-api", TokenTTL: time.Minute},
		"missing-issuer":   {SigningSecret: []byte("secret"), Audience: "kudos-api", TokenTTL: time.Minute},
		"missing-audience": {SigningSecret: []byte("secret"), Issuer: "kudos-auth", Audience: " ", TokenTTL: time.Minute},
		"zero-ttl":         {SigningSecret: []byte("secret"), Issuer: "kudos-auth", Audience: "kudos-api"},
	}
	for name, cfg := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewTokenIssuer(cfg); err == nil {
				t.Fatalf("expected constructor error")
			}
		})
	}
}
