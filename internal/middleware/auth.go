package middleware

import (
	"context"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/option"
)

// WithGatewayClaims stores the API Gateway authorizer claims for the request.
// The Lambda adapter calls it before the router runs.
func WithGatewayClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, gatewayClaimsKey, claims)
}

// GatewayAuth resolves the caller from Cognito authorizer claims already
// verified by API Gateway. Requests without claims pass through anonymous.
func GatewayAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := r.Context().Value(gatewayClaimsKey).(map[string]any)
			if len(claims) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithIdentity(r.Context(), identityFromClaims("", claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (token string, present bool, ok bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false, false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", true, false
	}
	return parts[1], true, true
}

// JWTAuth validates HMAC-signed bearer tokens.
func JWTAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, present, ok := bearerToken(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			ctx := WithIdentity(r.Context(), identityFromClaims("", claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type FirebaseAuthConfig struct {
	ProjectID       string
	CredentialsJSON string
}

// NewFirebaseAuthClient builds the Admin SDK auth client used to verify ID
// tokens. Without explicit credentials it falls back to ADC.
func NewFirebaseAuthClient(ctx context.Context, cfg FirebaseAuthConfig) (*fbauth.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}

// TokenVerifier is satisfied by *auth.Client.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseAuth verifies Firebase ID tokens. Groups are read from the
// "groups" custom claim.
func FirebaseAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idToken, present, ok := bearerToken(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}
			if verifier == nil {
				writeError(w, http.StatusUnauthorized, "Authentication unavailable")
				return
			}

			tok, err := verifier.VerifyIDToken(r.Context(), idToken)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), identityFromClaims(tok.UID, tok.Claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGroup answers 401 when no identity was resolved and 403 when the
// caller is not a member of group.
func RequireGroup(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || id.OwnerKey().IsZero() {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !id.InGroup(group) {
				writeError(w, http.StatusForbidden, "Forbidden: requires group "+group)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
