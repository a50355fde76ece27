// Package catalog implements the HTTP Catalog Client collaborator: it
// fetches the platform list and benchmark plan from a remote catalog
// service and submits the finished report back to it.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/BotBlake/tabbench/internal/engine"
	"github.com/BotBlake/tabbench/internal/httpclient"
	"github.com/BotBlake/tabbench/internal/report"
	"github.com/BotBlake/tabbench/internal/staging"
)

// Platform describes one catalog-known benchmarking target.
type Platform struct {
	ID        string `json:"id"`
	Supported bool   `json:"supported"`
}

type platformsResponse struct {
	Platforms []Platform `json:"platforms"`
}

// PlanEnvelope is the wire shape returned by the plan endpoint: an
// opaque token the catalog will later correlate a submitted report
// against, the benchmark plan itself, and the manifest of assets (the
// transcoder archive and any sample media) the caller must stage
// locally before the plan's File.Path entries resolve to real files.
type PlanEnvelope struct {
	Token  string               `json:"token"`
	Plan   engine.BenchmarkPlan `json:"plan"`
	Assets []staging.Asset      `json:"assets"`
}

// ErrUnsupportedPlatform is returned when the requested platform ID is
// absent from the catalog or marked unsupported.
var ErrUnsupportedPlatform = fmt.Errorf("platform not supported by catalog")

// Client is the HTTP Catalog Client collaborator.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *slog.Logger
}

// New builds a catalog Client from resolved configuration values.
func New(baseURL, bearerToken string, httpCfg httpclient.Config, logger *slog.Logger) *Client {
	httpCfg.BearerToken = bearerToken
	if logger != nil {
		httpCfg.Logger = logger
	}
	return &Client{
		baseURL: baseURL,
		http:    httpclient.New(httpCfg),
		logger:  logger,
	}
}

// FetchPlatforms retrieves the catalog's supported-platform list.
func (c *Client) FetchPlatforms(ctx context.Context) ([]Platform, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/api/v1/platforms")
	if err != nil {
		return nil, fmt.Errorf("fetching platforms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog replied with status %d", resp.StatusCode)
	}

	var parsed platformsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding platforms response: %w", err)
	}
	return parsed.Platforms, nil
}

// FetchPlan retrieves the benchmark plan for platformID, after
// verifying it appears in the supported-platform list.
func (c *Client) FetchPlan(ctx context.Context, platformID string) (PlanEnvelope, error) {
	platforms, err := c.FetchPlatforms(ctx)
	if err != nil {
		return PlanEnvelope{}, err
	}

	supported := false
	for _, p := range platforms {
		if p.ID == platformID && p.Supported {
			supported = true
			break
		}
	}
	if !supported {
		return PlanEnvelope{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platformID)
	}

	resp, err := c.http.Get(ctx, c.baseURL+"/api/v1/plans?platform_id="+platformID)
	if err != nil {
		return PlanEnvelope{}, fmt.Errorf("fetching plan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PlanEnvelope{}, fmt.Errorf("catalog replied with status %d", resp.StatusCode)
	}

	var envelope PlanEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return PlanEnvelope{}, fmt.Errorf("decoding plan response: %w", err)
	}
	return envelope, nil
}

// SubmitReport posts a finished report back to the catalog. A non-2xx
// reply is surfaced as an error but never aborts a completed benchmark
// run — submission is a best-effort courtesy, not a precondition for
// the run having succeeded.
func (c *Client) SubmitReport(ctx context.Context, rep report.Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	resp, err := c.http.PostJSON(ctx, c.baseURL+"/api/v1/reports", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submitting report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("catalog rejected report with status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
