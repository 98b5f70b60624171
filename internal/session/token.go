// Package session mints bearer tokens and carries the authenticated caller
// through a request.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-feed-identity/pkg/utilities"
)

// Token audiences. A token is only accepted where its audience is expected.
const (
	AudienceSession       = "session"
	AudienceVerifyEmail   = "verify-email"
	AudiencePasswordReset = "password-reset"
)

var (
	ErrEmptySecret  = errors.New("signing secret is empty")
	ErrInvalidToken = errors.New("invalid token")
)

// Issuer signs HS256 tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewIssuer(secret, issuer string) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue returns a session token for subject that expires after ttl.
func (i *Issuer) Issue(subject string, ttl time.Duration) (string, error) {
	return i.IssueFor(AudienceSession, subject, ttl)
}

// IssueFor returns a token for subject scoped to audience.
func (i *Issuer) IssueFor(audience, subject string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        utilities.NewKSUID(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse accepts only session tokens and returns the subject.
func (i *Issuer) Parse(token string) (string, error) {
	return i.ParseFor(AudienceSession, token)
}

// ParseFor verifies signature, algorithm, issuer, audience and expiry and
// returns the subject.
func (i *Issuer) ParseFor(audience, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
