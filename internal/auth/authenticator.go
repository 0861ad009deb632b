package auth

import (
	"sync"
	"time"
)

const (
	// maxFailedLogins within failureWindow triggers a lockout of lockoutPeriod.
	maxFailedLogins = 5
	failureWindow   = time.Minute
	lockoutPeriod   = 5 * time.Minute
)

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int       `json:"expires_in"`
}

// Options configures an Authenticator.
type Options struct {
	// PasswordHash is the operator Argon2id PHC string.
	PasswordHash string

	// Secret signs access tokens.
	Secret string

	// TTL is the access token lifetime.
	TTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Authenticator verifies the operator password and issues tokens.
//
// Thread Safety: all methods are safe for concurrent use.
type Authenticator struct {
	hash   string
	secret string
	ttl    time.Duration
	now    func() time.Time

	mu          sync.Mutex
	failures    []time.Time
	lockedUntil time.Time
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(opts Options) *Authenticator {
	a := &Authenticator{
		hash:   opts.PasswordHash,
		secret: opts.Secret,
		ttl:    opts.TTL,
		now:    opts.Now,
	}
	if a.ttl <= 0 {
		a.ttl = DefaultAccessTokenTTL
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Login checks password and returns a signed access token.
func (a *Authenticator) Login(password string) (Token, error) {
	now := a.now()

	a.mu.Lock()
	if now.Before(a.lockedUntil) {
		a.mu.Unlock()
		return Token{}, ErrTooManyAttempts
	}
	a.mu.Unlock()

	ok, err := VerifyPassword(password, a.hash)
	if err != nil || !ok {
		a.recordFailure(now)
		return Token{}, ErrInvalidCredentials
	}

	a.mu.Lock()
	a.failures = nil
	a.mu.Unlock()

	signed, expires, err := GenerateAccessToken(a.secret, a.ttl, now)
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		ExpiresIn:   int(a.ttl.Seconds()),
	}, nil
}

func (a *Authenticator) recordFailure(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-failureWindow)
	kept := a.failures[:0]
	for _, t := range a.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	a.failures = append(kept, now)

	if len(a.failures) >= maxFailedLogins {
		a.lockedUntil = now.Add(lockoutPeriod)
		a.failures = nil
	}
}

// Verify parses and validates an access token.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	return ParseToken(token, a.secret)
}
