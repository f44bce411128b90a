// Package auth is the boundary to the dashboard's authentication service.
// The chat subsystem never authenticates anyone itself; it only verifies the
// bearer tokens that service issues and extracts the caller's identity.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token has expired")
)

// Identity is what the rest of the system knows about a caller.
type Identity struct {
	UserID string
	Token  string
}

// Verifier checks a bearer token and resolves the caller's identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Claims is the custom claims structure shared with the token issuer.
type Claims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 tokens against a shared secret. It can also
// issue tokens, which the CLI and the test suite use; the production issuer
// lives in the dashboard's auth service.
type Authenticator struct {
	secretKey []byte
	issuer    string
	validity  time.Duration
}

// NewAuthenticator creates an Authenticator for the given shared secret.
func NewAuthenticator(secretKey, issuer string, validity time.Duration) *Authenticator {
	return &Authenticator{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		validity:  validity,
	}
}

// GenerateToken creates a signed token for a user.
func (a *Authenticator) GenerateToken(userID string) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    a.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secretKey)
}

// Verify implements Verifier.
func (a *Authenticator) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Token: tokenString}, nil
}
