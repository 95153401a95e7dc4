package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredentials reports a rejected username/password pair.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidRefreshToken reports a rejected refresh token.
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	// ErrMissingIdentity reports an ID token without an email or username claim.
	ErrMissingIdentity = errors.New("auth: id token carries no identity")
)

// TokenSet is what the identity provider hands back on a successful login or refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    int64
}

// IdentityProvider authenticates users against the external directory.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (TokenSet, error)
}

type idTokenClaims struct {
	Email           string `json:"email"`
	CognitoUsername string `json:"cognito:username"`
	jwt.RegisteredClaims
}

// IdentityFromIDToken reads the email claim, falling back to cognito:username.
// The signature is not verified; the token must come straight from the provider response.
func IdentityFromIDToken(idToken string) (string, error) {
	claims := &idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(idToken), claims); err != nil {
		return "", err
	}
	if email := strings.TrimSpace(claims.Email); email != "" {
		return email, nil
	}
	if username := strings.TrimSpace(claims.CognitoUsername); username != "" {
		return username, nil
	}
	return "", ErrMissingIdentity
}
