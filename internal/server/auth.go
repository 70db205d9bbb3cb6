package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type principalKey struct{}

// Principal identifies who authenticated a request.
type Principal struct {
	Subject string
	Source  string
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func authenticateJWT(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errUnauthenticated
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Principal{}, errUnauthenticated
	}
	return Principal{Subject: claims.Subject, Source: "jwt"}, nil
}

var errUnauthenticated = &httpError{Status: http.StatusUnauthorized, Message: "authentication required"}

// requireAuth accepts either a Bearer JWT (HS256, validated against
// cfg.JWTSecret) or a matching X-Api-Key header, mirroring
// anasdox-workline/internal/server/auth.go's dual-credential middleware.
// Unauthenticated endpoints (health, metrics, the status page) never pass
// through this middleware.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := strings.TrimSpace(r.Header.Get("Authorization"))
		if authz != "" {
			token, ok := bearerToken(authz)
			if !ok {
				writeError(w, errUnauthenticated)
				return
			}
			principal, err := authenticateJWT(token, s.cfg.JWTSecret)
			if err != nil {
				writeError(w, errUnauthenticated)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
			return
		}

		apiKey := strings.TrimSpace(r.Header.Get("X-Api-Key"))
		if apiKey != "" && s.cfg.APIKey != "" && apiKey == s.cfg.APIKey {
			principal := Principal{Subject: "api-key-client", Source: "api_key"}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
			return
		}

		writeError(w, errUnauthenticated)
	})
}
