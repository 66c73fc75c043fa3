package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scent-memory-network/internal/application/dto"
	"scent-memory-network/internal/config"
	"scent-memory-network/internal/domain/network"
	"scent-memory-network/pkg/auth"
)

const familiesYAML = `families:
  - name: Marine
    color: "#3FA7D6"
    keywords: [sea, salt, ozone]
  - name: Earthy
    color: "#6B4F2A"
    keywords: [moss, soil]
`

func testConfig(t *testing.T, memoriesURL string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "families.yaml")
	require.NoError(t, os.WriteFile(path, []byte(familiesYAML), 0o644))

	cfg := config.Defaults()
	cfg.LogLevel = "error"
	cfg.MemoriesAPIURL = memoriesURL
	cfg.JWTSecret = "container-secret"
	cfg.EnableMetrics = true
	cfg.Network.FamilyTablePath = path
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestInitializeContainer(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"m1","title":"Beach","processed":true,"extracted_scents":[{"top_notes":["Sea Salt"]}]},
			{"id":"m2","title":"Pier","processed":true,"extracted_scents":[{"heart_notes":["sea salt"]}]}
		]`))
	}))
	defer upstream.Close()

	container, cleanup, err := InitializeContainer(testConfig(t, upstream.URL))
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.Start(ctx)

	router := container.GetRouter()
	require.NotNil(t, router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	token, err := auth.IssueHS256("container-secret", "u1", "", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/network", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result dto.NetworkResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, network.StateReady, result.State)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, network.Family("marine"), result.Nodes[0].Family)

	// Served from the snapshot cache the second time.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), container.Source.Stats().Hits)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), "scent_memory_http_requests_total")
}

func TestInitializeContainer_RequiresSecret(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "error"

	_, _, err := InitializeContainer(cfg)
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestInitializeContainer_InvalidLogLevel(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "loud"

	_, _, err := InitializeContainer(cfg)
	assert.Error(t, err)
}
