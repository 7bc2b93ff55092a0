package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MKhiriev/go-miniservice/internal/logger"
	"github.com/MKhiriev/go-miniservice/internal/problem"
)

// Authenticate validates the bearer token when one is sent and stores the
// principal in the request context. Requests without an Authorization header
// continue anonymously; a malformed or rejected token ends the request
// with 401.
func Authenticate(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			log := logger.FromRequest(r)

			token, err := bearerToken(header)
			if err != nil {
				log.Err(err).Msg("rejected authorization header")
				unauthorized(w, err.Error())
				return
			}

			principal, err := v.Validate(r.Context(), token)
			if err != nil {
				log.Err(err).Msg("token validation failed")
				if errors.Is(err, ErrTokenExpired) {
					unauthorized(w, ErrTokenExpired.Error())
					return
				}
				unauthorized(w, http.StatusText(http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// Policies maps policy names to required scopes.
type Policies map[string]string

// Require allows the request only when the authenticated principal holds
// the scope of policy. Anonymous callers get 401, callers without the scope
// get 403. Require panics on an unknown policy so route wiring fails fast.
func (p Policies) Require(policy string) func(http.Handler) http.Handler {
	scope, ok := p[policy]
	if !ok {
		panic(fmt.Errorf("%w: %q", ErrUnknownPolicy, policy))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				unauthorized(w, "authentication required")
				return
			}
			if !principal.HasScope(scope) {
				logger.FromRequest(r).Warn().
					Str("policy", policy).
					Str("subject", principal.Subject).
					Msg("missing required scope")
				_ = problem.Write(w, problem.New(http.StatusForbidden, fmt.Sprintf("scope %q is required", scope)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidAuthorizationHeader
	}
	if parts[1] == "" {
		return "", ErrEmptyToken
	}
	return parts[1], nil
}

func unauthorized(w http.ResponseWriter, detail string) {
	_ = problem.Write(w, problem.New(http.StatusUnauthorized, detail))
}
