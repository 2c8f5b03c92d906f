// Package jwt verifies the access tokens issued by the platform's auth
// service. The coordinator only verifies, it never signs.
package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified subject of a token.
type Identity struct {
	Subject string
	Role    string
	Name    string
}

type claims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Verify parses and validates a token against the shared secret.
func Verify(tokenString, secret string) (*Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if c.Subject == "" || c.Role == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{Subject: c.Subject, Role: c.Role, Name: c.Name}, nil
}
