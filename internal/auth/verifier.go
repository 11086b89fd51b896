// Package auth resolves connection credentials into a player identity.
// Registered users present an HS256 JWT; anonymous players fall back to a
// generated guest identity when the server allows it.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrGuestsDisabled = errors.New("auth: guests are not allowed")
)

// Identity is who a connection speaks for.
type Identity struct {
	UserID   string
	Username string
	IsGuest  bool
}

// Claims is the accepted JWT payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens and mints guest identities.
type Verifier struct {
	secret      []byte
	allowGuests bool
}

// NewVerifier builds a verifier. An empty secret rejects every token, so a
// guests-only deployment needs allowGuests set.
func NewVerifier(secret string, allowGuests bool) *Verifier {
	return &Verifier{secret: []byte(secret), allowGuests: allowGuests}
}

// Verify resolves a token into an identity. An empty token yields a guest
// identity named guestName when guests are allowed.
func (v *Verifier) Verify(token, guestName string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if !v.allowGuests {
			return Identity{}, ErrGuestsDisabled
		}
		return Identity{
			UserID:   "guest-" + uuid.NewString(),
			Username: guestName,
			IsGuest:  true,
		}, nil
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, Username: claims.Username}, nil
}
