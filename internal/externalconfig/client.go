// Package externalconfig is the client for the external
// configuration-and-experimentation service: the system of record for
// Dimensions, Default Configs, and Experiments/Variants, consulted by the
// resolver at read time. Modeled on the teacher's
// internal/infrastructure/llm HTTP-client-with-circuit-breaker pattern.
package externalconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"log/slog"
	"time"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/pkg/metrics"
	"github.com/juspay/airborne/pkg/retry"
)

// DefaultConfigEntry is one row returned by ListDefaultConfigs.
type DefaultConfigEntry struct {
	Key         string
	Default     domain.Document
	Description string
}

// ApplicableVariant is one entry returned by ApplicableVariants.
type ApplicableVariant struct {
	ID        string
	Type      string // "Control" | "Experimental"
	Overrides map[string]domain.Document
}

// ExperimentInput is the payload for CreateExperiment.
type ExperimentInput struct {
	Org          string
	Workspace    string
	Name         string
	Type         string // always "Default" per spec.md §6
	Variants     []string
	Context      map[string]interface{} // JsonLogic tree, e.g. {"and": [leaf, ...]}
	Description  string
	ChangeReason string
}

// Client is the external config-and-experimentation service contract
// consumed by internal/resolver and internal/release.
type Client interface {
	ListDefaultConfigs(ctx context.Context, org, workspace string, all bool) ([]DefaultConfigEntry, error)
	CreateDefaultConfig(ctx context.Context, org, workspace, key string, value domain.Document, description string) error
	UpdateDefaultConfig(ctx context.Context, org, workspace, key string, value domain.Document, description string) error
	DeleteDefaultConfig(ctx context.Context, org, workspace, key string) error

	CreateExperiment(ctx context.Context, in ExperimentInput) (string, error)
	RampExperiment(ctx context.Context, id string, trafficPercentage int) error
	ConcludeExperiment(ctx context.Context, id string, chosenVariant string) error
	DiscardExperiment(ctx context.Context, id string) error

	ApplicableVariants(ctx context.Context, workspace, org string, toss int, context map[string]string) ([]ApplicableVariant, error)
	GetResolvedConfig(ctx context.Context, workspace, org string, context map[string]string, variantIDs []string) (map[string]domain.Document, error)
}

// HTTPClient implements Client over a JSON REST API, matching the
// teacher's HTTPLLMClient shape: a shared *http.Client, a retry.Executor,
// and a retry.CircuitBreaker wrapping every call.
type HTTPClient struct {
	cfg     config.ExternalConfigConfig
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.ExternalConfigMetrics
	retry   *retry.Executor
	breaker *retry.CircuitBreaker
}

// New builds an HTTPClient.
func New(cfg config.ExternalConfigConfig, m *metrics.ExternalConfigMetrics, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	return &HTTPClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: m,
		retry:   retry.NewExecutor(rc, func(err error) bool { return err != nil }, logger),
		breaker: retry.NewCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown),
	}
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body, out interface{}) error {
	start := time.Now()
	err := c.breaker.Call(func() error {
		return c.retry.Execute(ctx, func(ctx context.Context) error {
			var reqBody io.Reader
			if body != nil {
				b, err := json.Marshal(body)
				if err != nil {
					return err
				}
				reqBody = bytes.NewReader(b)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if c.cfg.APIToken != "" {
				req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				data, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("externalconfig: %s %s returned %d: %s", method, path, resp.StatusCode, string(data))
			}
			if out != nil {
				return json.NewDecoder(resp.Body).Decode(out)
			}
			return nil
		})
	})
	if c.metrics != nil {
		if err == retry.ErrCircuitOpen {
			c.metrics.CircuitOpen.WithLabelValues(path).Inc()
		}
		c.metrics.Observe(path, time.Since(start), err == nil)
	}
	return err
}

func (c *HTTPClient) ListDefaultConfigs(ctx context.Context, org, workspace string, all bool) ([]DefaultConfigEntry, error) {
	var out []DefaultConfigEntry
	path := fmt.Sprintf("/org/%s/workspace/%s/default-configs?all=%t", org, workspace, all)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateDefaultConfig(ctx context.Context, org, workspace, key string, value domain.Document, description string) error {
	path := fmt.Sprintf("/org/%s/workspace/%s/default-configs", org, workspace)
	body := map[string]interface{}{"key": key, "value": value.ToAny(), "description": description}
	return c.call(ctx, http.MethodPost, path, body, nil)
}

func (c *HTTPClient) UpdateDefaultConfig(ctx context.Context, org, workspace, key string, value domain.Document, description string) error {
	path := fmt.Sprintf("/org/%s/workspace/%s/default-configs/%s", org, workspace, key)
	body := map[string]interface{}{"value": value.ToAny(), "description": description}
	return c.call(ctx, http.MethodPut, path, body, nil)
}

func (c *HTTPClient) DeleteDefaultConfig(ctx context.Context, org, workspace, key string) error {
	path := fmt.Sprintf("/org/%s/workspace/%s/default-configs/%s", org, workspace, key)
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) CreateExperiment(ctx context.Context, in ExperimentInput) (string, error) {
	path := fmt.Sprintf("/org/%s/workspace/%s/experiments", in.Org, in.Workspace)
	body := map[string]interface{}{
		"name": in.Name, "type": "Default", "variants": in.Variants,
		"context": in.Context, "description": in.Description, "change_reason": in.ChangeReason,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *HTTPClient) RampExperiment(ctx context.Context, id string, trafficPercentage int) error {
	path := fmt.Sprintf("/experiments/%s/ramp", id)
	return c.call(ctx, http.MethodPost, path, map[string]int{"traffic_percentage": trafficPercentage}, nil)
}

func (c *HTTPClient) ConcludeExperiment(ctx context.Context, id string, chosenVariant string) error {
	path := fmt.Sprintf("/experiments/%s/conclude", id)
	return c.call(ctx, http.MethodPost, path, map[string]string{"chosen_variant": chosenVariant}, nil)
}

func (c *HTTPClient) DiscardExperiment(ctx context.Context, id string) error {
	path := fmt.Sprintf("/experiments/%s/discard", id)
	return c.call(ctx, http.MethodPost, path, nil, nil)
}

func (c *HTTPClient) ApplicableVariants(ctx context.Context, workspace, org string, toss int, dimCtx map[string]string) ([]ApplicableVariant, error) {
	path := fmt.Sprintf("/org/%s/workspace/%s/applicable-variants", org, workspace)
	body := map[string]interface{}{"toss": toss, "context": dimCtx}
	var out []ApplicableVariant
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetResolvedConfig(ctx context.Context, workspace, org string, dimCtx map[string]string, variantIDs []string) (map[string]domain.Document, error) {
	path := fmt.Sprintf("/org/%s/workspace/%s/resolved-config", org, workspace)
	body := map[string]interface{}{"context": dimCtx, "variant_ids": variantIDs}
	var out map[string]domain.Document
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
