// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package auth implements bearer-token authentication and scope-based
// authorization policies for the request pipeline.
//
// Tokens are JWTs signed with HMAC-SHA256. A token is accepted when its
// signature verifies, it has not expired, its issuer equals the configured
// authority and, when an audience is configured, its audience contains it.
// Scopes are read from the space-separated "scope" claim or the "scp" array.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Options configure token validation and policies.
type Options struct {
	// Authority is the token issuer. ExternalAuthority is the address
	// clients use to reach it and defaults to Authority.
	Authority         string
	ExternalAuthority string
	Audience          string
	SignKey           string

	// RequireHTTPSMetadata is carried for parity with metadata-discovering
	// validators; the HMAC validator never fetches metadata.
	RequireHTTPSMetadata bool

	// Policies maps a policy name to the scope it requires.
	Policies map[string]string
	// Scopes maps a scope to its human-readable description.
	Scopes map[string]string
}

// External returns the authority address advertised to clients.
func (o Options) External() string {
	if o.ExternalAuthority != "" {
		return strings.TrimRight(o.ExternalAuthority, "/")
	}
	return strings.TrimRight(o.Authority, "/")
}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Scopes  []string
	Claims  jwt.MapClaims
}

// HasScope reports whether the principal was granted scope.
func (p Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// JWTValidator validates HS256 tokens.
type JWTValidator struct {
	key    []byte
	parser *jwt.Parser
}

// NewJWTValidator builds a validator for opts. A validator without a sign
// key rejects every token with ErrMissingSignKey.
func NewJWTValidator(opts Options) *JWTValidator {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if opts.Authority != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Authority))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &JWTValidator{
		key:    []byte(opts.SignKey),
		parser: jwt.NewParser(parserOpts...),
	}
}

func (v *JWTValidator) Validate(_ context.Context, tokenString string) (Principal, error) {
	if len(v.key) == 0 {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingSignKey)
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	subject, err := claims.GetSubject()
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return Principal{
		Subject: subject,
		Scopes:  scopesFromClaims(claims),
		Claims:  claims,
	}, nil
}

func scopesFromClaims(claims jwt.MapClaims) []string {
	var scopes []string
	if s, ok := claims["scope"].(string); ok {
		scopes = append(scopes, strings.Fields(s)...)
	}
	if list, ok := claims["scp"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
	}
	return scopes
}

// IssueToken signs an HS256 token for subject with the given scopes. It is
// used by the development token endpoint and by tests.
func IssueToken(opts Options, subject string, scopes []string, ttl time.Duration) (string, error) {
	if opts.SignKey == "" {
		return "", ErrMissingSignKey
	}
	if ttl <= 0 {
		return "", errors.New("invalid params for issuing token")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   opts.Authority,
		"sub":   subject,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"scope": strings.Join(scopes, " "),
	}
	if opts.Audience != "" {
		claims["aud"] = opts.Audience
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(opts.SignKey))
	if err != nil {
		return "", fmt.Errorf("error occurred during signing token: %w", err)
	}
	return signed, nil
}

type principalCtxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}
