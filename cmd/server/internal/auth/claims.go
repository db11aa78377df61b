// Package auth extracts tenant claims from bearer tokens. The platform fronts
// this service with JWT-authenticated clients; token claims backfill request
// fields the body omits, never override them.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token fields the orchestrator cares about.
type Claims struct {
	TenantID string
	Role     string
}

// ParseBearer validates a bearer token against secret and returns its tenant
// claims. An empty header or secret yields zero claims without error;
// malformed or unverifiable tokens are errors.
func ParseBearer(authorization, secret string) (Claims, error) {
	if authorization == "" || secret == "" {
		return Claims{}, nil
	}

	raw := strings.TrimPrefix(authorization, "Bearer ")
	if raw == authorization {
		return Claims{}, fmt.Errorf("authorization header is not a bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse bearer token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	claims := Claims{}
	if tenant, ok := mapClaims["tenant_id"].(string); ok {
		claims.TenantID = tenant
	}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = role
	}
	return claims, nil
}
