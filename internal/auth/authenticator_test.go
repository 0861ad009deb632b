package auth

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	operatorHashOnce sync.Once
	operatorHash     string
)

// testHash hashes "operator-password" once per test binary; Argon2id is slow.
func testHash(t *testing.T) string {
	t.Helper()
	operatorHashOnce.Do(func() {
		h, err := HashPassword("operator-password")
		if err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
		operatorHash = h
	})
	return operatorHash
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAuthenticator_Login(t *testing.T) {
	a := NewAuthenticator(Options{PasswordHash: testHash(t), Secret: testSecret, TTL: 10 * time.Minute})

	tok, err := a.Login("operator-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", tok.TokenType)
	}
	if tok.ExpiresIn != 600 {
		t.Errorf("ExpiresIn = %d, want 600", tok.ExpiresIn)
	}

	claims, err := a.Verify(tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != OperatorSubject {
		t.Errorf("Subject = %q", claims.Subject)
	}
}

func TestAuthenticator_WrongPassword(t *testing.T) {
	a := NewAuthenticator(Options{PasswordHash: testHash(t), Secret: testSecret})
	if _, err := a.Login("nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticator_BadHashIsInvalidCredentials(t *testing.T) {
	a := NewAuthenticator(Options{PasswordHash: "plaintext", Secret: testSecret})
	if _, err := a.Login("plaintext"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticator_Lockout(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	a := NewAuthenticator(Options{PasswordHash: testHash(t), Secret: testSecret, Now: clock.Now})

	for i := 0; i < maxFailedLogins; i++ {
		if _, err := a.Login("wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: error = %v, want ErrInvalidCredentials", i, err)
		}
	}

	if _, err := a.Login("operator-password"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("Login() during lockout error = %v, want ErrTooManyAttempts", err)
	}

	clock.Advance(lockoutPeriod + time.Second)
	if _, err := a.Login("operator-password"); err != nil {
		t.Fatalf("Login() after lockout error = %v", err)
	}
}

func TestAuthenticator_FailuresOutsideWindowForgotten(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	a := NewAuthenticator(Options{PasswordHash: testHash(t), Secret: testSecret, Now: clock.Now})

	for i := 0; i < maxFailedLogins-1; i++ {
		_, _ = a.Login("wrong")
	}
	clock.Advance(failureWindow + time.Second)
	_, _ = a.Login("wrong")

	if _, err := a.Login("operator-password"); err != nil {
		t.Fatalf("Login() error = %v, want success", err)
	}
}
