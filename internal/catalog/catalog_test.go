package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BotBlake/tabbench/internal/engine"
	"github.com/BotBlake/tabbench/internal/httpclient"
	"github.com/BotBlake/tabbench/internal/hwinventory"
	"github.com/BotBlake/tabbench/internal/report"
	"github.com/BotBlake/tabbench/internal/staging"
)

func testConfig() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.RetryAttempts = 0
	return cfg
}

func TestFetchPlatforms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/platforms", r.URL.Path)
		json.NewEncoder(w).Encode(platformsResponse{Platforms: []Platform{
			{ID: "linux-x86_64", Supported: true},
			{ID: "macos-arm64", Supported: false},
		}})
	}))
	defer server.Close()

	client := New(server.URL, "", testConfig(), nil)
	platforms, err := client.FetchPlatforms(context.Background())
	require.NoError(t, err)
	require.Len(t, platforms, 2)
	assert.True(t, platforms[0].Supported)
	assert.False(t, platforms[1].Supported)
}

func TestFetchPlan_RejectsUnsupportedPlatform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(platformsResponse{Platforms: []Platform{
			{ID: "linux-x86_64", Supported: false},
		}})
	}))
	defer server.Close()

	client := New(server.URL, "", testConfig(), nil)
	_, err := client.FetchPlan(context.Background(), "linux-x86_64")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestFetchPlan_ReturnsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/platforms":
			json.NewEncoder(w).Encode(platformsResponse{Platforms: []Platform{
				{ID: "linux-x86_64", Supported: true},
			}})
		case "/api/v1/plans":
			assert.Equal(t, "linux-x86_64", r.URL.Query().Get("platform_id"))
			json.NewEncoder(w).Encode(PlanEnvelope{
				Token: "tok-123",
				Plan: engine.BenchmarkPlan{
					Files: []engine.File{{Name: "a.mkv", Path: "/staging/a.mkv"}},
				},
				Assets: []staging.Asset{
					{Name: "ffmpeg", URL: "https://example.com/ffmpeg.tar.xz", SHA256: "deadbeef", IsArchive: true, Executable: true},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL, "", testConfig(), nil)
	envelope, err := client.FetchPlan(context.Background(), "linux-x86_64")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", envelope.Token)
	require.Len(t, envelope.Plan.Files, 1)
	assert.Equal(t, "a.mkv", envelope.Plan.Files[0].Name)
	require.Len(t, envelope.Assets, 1)
	assert.True(t, envelope.Assets[0].IsArchive)
}

func TestFetchPlan_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if r.URL.Path == "/api/v1/platforms" {
			json.NewEncoder(w).Encode(platformsResponse{Platforms: []Platform{{ID: "p1", Supported: true}}})
			return
		}
		json.NewEncoder(w).Encode(PlanEnvelope{Token: "t"})
	}))
	defer server.Close()

	client := New(server.URL, "secret", testConfig(), nil)
	_, err := client.FetchPlan(context.Background(), "p1")
	require.NoError(t, err)
}

func TestSubmitReport_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reports", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var rep report.Report
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rep))
		assert.Equal(t, "tok-123", rep.Token)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := New(server.URL, "", testConfig(), nil)
	rep := report.New("tok-123", hwinventory.HostInfo{}, nil)
	err := client.SubmitReport(context.Background(), rep)
	require.NoError(t, err)
}

func TestSubmitReport_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := New(server.URL, "", testConfig(), nil)
	rep := report.New("tok-123", hwinventory.HostInfo{}, nil)
	err := client.SubmitReport(context.Background(), rep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
