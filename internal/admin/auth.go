package admin

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const tokenTTL = time.Hour

// TokenIssuer trades the admin password for a short-lived capability
// token. The password and signing secret come from configuration; when no
// password is configured, Issue always refuses.
type TokenIssuer struct {
	password []byte
	secret   []byte
}

func NewTokenIssuer(password, secret string) *TokenIssuer {
	return &TokenIssuer{password: []byte(password), secret: []byte(secret)}
}

func (i *TokenIssuer) Issue(password string) (string, error) {
	if len(i.password) == 0 ||
		subtle.ConstantTimeCompare(i.password, []byte(password)) != 1 {
		return "", ErrInvalidCredentials
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *TokenIssuer) Verify(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
