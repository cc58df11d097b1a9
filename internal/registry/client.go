// Package registry talks to the marine unit registry. It provides the HTTP
// client used in production, a YAML-backed static registry for development,
// and a caching decorator.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/model"
)

// maxResponseBytes caps how much of a registry response is read.
const maxResponseBytes = 4 << 20

// ErrUnitNotFound is returned by FetchUnit when the registry does not know
// the unit.
var ErrUnitNotFound = model.ErrUnitNotFound

// StatusError is an unexpected HTTP status from the registry.
type StatusError struct {
	Operation  string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry: %s returned status %d", e.Operation, e.StatusCode)
}

// Recorder observes registry calls. outcome is "ok", "error" or "rejected".
type Recorder interface {
	RecordRegistryCall(operation, outcome string, duration time.Duration)
	SetRegistryBreakerState(state float64)
}

// Client is the HTTP implementation of model.MarineRegistry.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	breaker  *Breaker
	logger   *zap.Logger
	recorder Recorder
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a registry client for cfg.
func NewClient(cfg config.RegistryConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		breaker: NewBreaker(cfg.CircuitBreaker),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker.OnStateChange(func(s BreakerState) {
		if s == BreakerOpen {
			c.logger.Warn("registry circuit breaker opened")
		} else {
			c.logger.Info("registry circuit breaker state changed", zap.Stringer("state", s))
		}
		if c.recorder != nil {
			c.recorder.SetRegistryBreakerState(float64(s))
		}
	})
	return c
}

// Breaker exposes the circuit breaker.
func (c *Client) Breaker() *Breaker { return c.breaker }

// HealthCheck reports the registry as unhealthy while the breaker is open.
func (c *Client) HealthCheck(context.Context) error {
	return c.breaker.Allow()
}

// FetchUnitsForUser lists the units registered to actorID.
func (c *Client) FetchUnitsForUser(ctx context.Context, actorID string) ([]model.MarineUnit, error) {
	var units []model.MarineUnit
	err := c.get(ctx, "fetch_units_for_user", "/owners/"+url.PathEscape(actorID)+"/units", &units)
	return units, err
}

// FetchUnit returns one unit, or ErrUnitNotFound.
func (c *Client) FetchUnit(ctx context.Context, unitID string) (model.MarineUnit, error) {
	var unit model.MarineUnit
	err := c.get(ctx, "fetch_unit", "/units/"+url.PathEscape(unitID), &unit)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return model.MarineUnit{}, ErrUnitNotFound
	}
	return unit, err
}

// CheckOwnership reports whether actorID owns unitID.
func (c *Client) CheckOwnership(ctx context.Context, unitID, actorID string) (bool, error) {
	var body struct {
		Owned bool `json:"owned"`
	}
	path := "/units/" + url.PathEscape(unitID) + "/owners/" + url.PathEscape(actorID)
	if err := c.get(ctx, "check_ownership", path, &body); err != nil {
		return false, err
	}
	return body.Owned, nil
}

// MortgageStatus returns the mortgage state of unitID.
func (c *Client) MortgageStatus(ctx context.Context, unitID string) (model.MortgageStatus, error) {
	var st model.MortgageStatus
	err := c.get(ctx, "mortgage_status", "/units/"+url.PathEscape(unitID)+"/mortgage", &st)
	return st, err
}

// Compliance returns the open violations and detentions of unitID.
func (c *Client) Compliance(ctx context.Context, unitID string) (model.ComplianceReport, error) {
	var report model.ComplianceReport
	err := c.get(ctx, "compliance", "/units/"+url.PathEscape(unitID)+"/compliance", &report)
	if err == nil && report.UnitID == "" {
		report.UnitID = unitID
	}
	return report, err
}

// FetchCategories lists the unit categories.
func (c *Client) FetchCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := c.get(ctx, "fetch_categories", "/categories", &cats)
	return cats, err
}

// get performs one GET with circuit breaker protection and decodes the JSON
// response into out. 4xx responses are returned as *StatusError but do not
// count against the breaker.
func (c *Client) get(ctx context.Context, operation, path string, out any) (err error) {
	ctx, span := observability.StartSpan(ctx, "registry."+operation,
		attribute.String("registry.operation", operation),
	)
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil && outcome == "ok" {
			outcome = "error"
		}
		c.record(operation, outcome, time.Since(start))
		observability.EndSpanWithError(span, err)
	}()

	if err := c.breaker.Allow(); err != nil {
		outcome = "rejected"
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("registry: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		// A cancelled caller says nothing about the registry's health.
		if ctx.Err() == nil {
			c.breaker.Record(true)
		}
		return fmt.Errorf("registry: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.breaker.Record(true)
		return fmt.Errorf("registry: %s: read response: %w", operation, err)
	}

	switch {
	case resp.StatusCode >= 500:
		c.breaker.Record(true)
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode}
	}
	c.breaker.Record(false)

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("registry: %s: decode response: %w", operation, err)
	}
	return nil
}

func (c *Client) record(operation, outcome string, d time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordRegistryCall(operation, outcome, d)
	}
}
