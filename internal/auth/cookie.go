package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session cookie. It carries nothing but the session id;
// the session itself lives server-side.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CookieSigner signs and verifies session cookie values with HS256.
type CookieSigner struct {
	key    []byte
	issuer string
}

// NewCookieSigner creates a signer.
func NewCookieSigner(key, issuer string) *CookieSigner {
	return &CookieSigner{key: []byte(key), issuer: issuer}
}

// Sign returns the cookie value for a session.
func (s *CookieSigner) Sign(sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse validates a cookie value and returns the session id it carries.
func (s *CookieSigner) Parse(value string) (string, error) {
	parsed, err := jwt.ParseWithClaims(value, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid session cookie")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return "", errors.New("issuer mismatch")
	}
	if claims.SessionID == "" {
		return "", errors.New("missing session id")
	}
	return claims.SessionID, nil
}
