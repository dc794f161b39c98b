package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAPITokenIssuer identifies the portal to the log collector
	DefaultAPITokenIssuer = "dauth-admin-portal"

	// DefaultAPITokenTTL is the lifetime of an API token
	DefaultAPITokenTTL = time.Hour
)

// ErrMissingSecret is returned when no HMAC secret is configured
var ErrMissingSecret = errors.New("api token secret is empty")

// APITokenIssuer signs short-lived HS256 tokens for portal-to-backend calls
type APITokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewAPITokenIssuer creates an issuer; empty issuer and zero ttl use the defaults
func NewAPITokenIssuer(secret, issuer string, ttl time.Duration) *APITokenIssuer {
	if issuer == "" {
		issuer = DefaultAPITokenIssuer
	}
	if ttl <= 0 {
		ttl = DefaultAPITokenTTL
	}
	return &APITokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a fresh signed token
func (i *APITokenIssuer) Issue() (string, error) {
	if len(i.secret) == 0 {
		return "", ErrMissingSecret
	}

	now := i.now()
	claims := APIClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign api token: %w", err)
	}
	return signed, nil
}

// Validate parses a token issued with the same secret and issuer
func (i *APITokenIssuer) Validate(token string) (*APIClaims, error) {
	claims := &APIClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(i.issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse api token: %w", err)
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
