package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OperatorSubject is the subject of every operator token.
const OperatorSubject = "operator"

// DefaultAccessTokenTTL applies when no TTL is configured.
const DefaultAccessTokenTTL = 15 * time.Minute

// Claims extends the registered JWT claims with the login session.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// GenerateAccessToken signs an operator token valid for ttl from now.
func GenerateAccessToken(secret string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	expires := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   OperatorSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		SessionID: uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates signature, expiry and subject.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject != OperatorSubject {
		return nil, fmt.Errorf("%w: unexpected subject %q", ErrTokenInvalid, claims.Subject)
	}
	return claims, nil
}
