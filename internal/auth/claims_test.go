package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func TestGenerateAndParseAccessToken(t *testing.T) {
	now := time.Now()
	token, expires, err := GenerateAccessToken(testSecret, 30*time.Minute, now)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}
	if !expires.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("expires = %v, want %v", expires, now.Add(30*time.Minute))
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != OperatorSubject {
		t.Errorf("Subject = %q, want %q", claims.Subject, OperatorSubject)
	}
	if claims.SessionID == "" {
		t.Error("SessionID should not be empty")
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	now := time.Now()
	_, expires, err := GenerateAccessToken(testSecret, 0, now)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if !expires.Equal(now.Add(DefaultAccessTokenTTL)) {
		t.Errorf("expires = %v, want default TTL", expires)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, _, err := GenerateAccessToken(testSecret, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	expired, _, err := GenerateAccessToken(testSecret, time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	wrongSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: OperatorSubject},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"empty", "", testSecret},
		{"garbage", "not-a-valid-jwt", testSecret},
		{"two segments", "abc.def", testSecret},
		{"wrong secret", valid, "another-secret-that-is-long-enough"},
		{"expired", expired, testSecret},
		{"wrong subject", wrongSubject, testSecret},
		{"no expiry", noExpiry, testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
