package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenValidator verifies a bearer token and returns its claims
type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (jwt.MapClaims, error)
}

// hmacValidator verifies HS256 tokens signed with a shared secret
type hmacValidator struct {
	secret []byte
	parser *jwt.Parser
}

func newHMACValidator(secret []byte, issuer, audience string) (*hmacValidator, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(audience))
	}

	return &hmacValidator{
		secret: secret,
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

// ValidateToken implements tokenValidator
func (v *hmacValidator) ValidateToken(_ context.Context, token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// TokenOptions describes a token minted by IssueToken
type TokenOptions struct {
	Subject  string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// IssueToken signs an HS256 admin token
func IssueToken(secret []byte, opts TokenOptions, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is required")
	}
	if opts.TTL <= 0 {
		return "", errors.New("token lifetime must be positive")
	}

	claims := jwt.RegisteredClaims{
		Subject:   opts.Subject,
		Issuer:    opts.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(opts.TTL)),
	}
	if opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{opts.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
