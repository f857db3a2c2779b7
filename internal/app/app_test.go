package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Appitzr-Project/Backend-Profile/internal/config"
	"github.com/Appitzr-Project/Backend-Profile/internal/logger"
)

const secret = "app-test-secret"

func testConfig(t *testing.T, dataDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Env:            "test",
		BasePath:       "/venueprofile",
		RequestTimeout: 5 * time.Second,
		CORS:           config.CORSConfig{AllowedOrigins: []string{"https://*.appetizr.co"}},
		Auth:           config.AuthConfig{Mode: config.AuthJWT, JWTSecret: secret},
		Store:          config.StoreConfig{Kind: config.StoreMemory, DataDir: dataDir, DynamoTablePrefix: "test"},
		Media: config.MediaConfig{
			Kind:          config.MediaLocal,
			PublicBaseURL: "/uploads",
			UploadDir:     t.TempDir(),
		},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Profiles: config.ProfilesConfig{MemberTable: "UserProfile", VenueTable: "VenueProfile"},
	}
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "m-1", "email": "m@b.com", "cognito:groups": []string{"member"},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func serve(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNew_MemoryStack(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, ""), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close(context.Background())) })

	rr := serve(a.Handler, http.MethodGet, "/venueprofile/health-check", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(a.Handler, http.MethodPost, "/venueprofile/profile", token(t), `{"memberName":"Ana","mobileNumber":"0400"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = serve(a.Handler, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `profile_operations_total{operation="create",outcome="ok",variant="member"} 1`)
}

func TestNew_MemorySnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	first, err := New(context.Background(), testConfig(t, dir), logger.Discard())
	require.NoError(t, err)
	rr := serve(first.Handler, http.MethodPost, "/venueprofile/profile", token(t), `{"memberName":"Ana","mobileNumber":"0400"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, first.Close(context.Background()))

	second, err := New(context.Background(), testConfig(t, dir), logger.Discard())
	require.NoError(t, err)
	defer second.Close(context.Background())

	rr = serve(second.Handler, http.MethodGet, "/venueprofile/profile", token(t), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"memberName":"Ana"`)

	rr = serve(second.Handler, http.MethodPost, "/venueprofile/profile", token(t), `{"memberName":"Ana","mobileNumber":"0400"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Metrics.Enabled = false

	a, err := New(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer a.Close(context.Background())

	rr := serve(a.Handler, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestNew_GatewayModeIsAnonymousWithoutClaims(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Auth = config.AuthConfig{Mode: config.AuthGateway}

	a, err := New(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	defer a.Close(context.Background())

	rr := serve(a.Handler, http.MethodGet, "/venueprofile/profile/venue", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
