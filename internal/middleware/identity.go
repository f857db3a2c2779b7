package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Appitzr-Project/Backend-Profile/internal/models"
)

type contextKey int

const (
	identityKey contextKey = iota
	gatewayClaimsKey
)

// WithIdentity attaches the verified caller to ctx.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller attached by one of the auth middlewares.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// identityFromClaims maps token or authorizer claims onto an Identity.
// Groups come from "cognito:groups" and fall back to "groups".
func identityFromClaims(subject string, claims map[string]any) models.Identity {
	id := models.Identity{SubjectID: subject}
	if id.SubjectID == "" {
		id.SubjectID, _ = claims["sub"].(string)
	}
	id.Email, _ = claims["email"].(string)

	groups, ok := claims["cognito:groups"]
	if !ok {
		groups = claims["groups"]
	}
	id.Groups = ParseGroups(groups)
	return id
}

// ParseGroups accepts the shapes group claims arrive in: a JSON array, a
// string slice, or a string such as "[venue member]" or "venue,member" as
// API Gateway flattens arrays.
func ParseGroups(v any) []string {
	switch g := v.(type) {
	case nil:
		return nil
	case []string:
		return g
	case []any:
		out := make([]string, 0, len(g))
		for _, item := range g {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		s := strings.TrimSpace(g)
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		return strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == '"'
		})
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.NewErrorResponse(status, message))
}
