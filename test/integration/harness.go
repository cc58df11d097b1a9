// Package integration runs the wizard API end to end: the full router and
// middleware chain, HMAC bearer tokens, the policy file, the shipped
// definitions and message catalogs, and the HTTP registry client talking to
// a mock marine registry.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/vesselwizard/internal/capability"
	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/eligibility"
	"github.com/pitabwire/vesselwizard/internal/messages"
	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/internal/registry"
	"github.com/pitabwire/vesselwizard/internal/transactions"
	"github.com/pitabwire/vesselwizard/internal/transport"
	"github.com/pitabwire/vesselwizard/internal/wizard"
	"github.com/pitabwire/vesselwizard/model"
)

// TestHarness wires the whole service against a mock registry.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer
	cfg    *config.Config

	Registry    *MockRegistry
	Client      *registry.Client
	Definitions *definition.Registry
	Engine      *wizard.Engine
	Metrics     *observability.Metrics
	Gatherer    *prometheus.Registry
}

type harnessConfig struct {
	units           registry.StaticFile
	breaker         config.CircuitBreakerConfig
	handlerTimeout  time.Duration
	registryTimeout time.Duration
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

// WithUnits replaces the units served by the mock registry.
func WithUnits(f registry.StaticFile) HarnessOption {
	return func(c *harnessConfig) { c.units = f }
}

// WithCircuitBreaker overrides the registry circuit breaker settings.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *harnessConfig) { c.breaker = cb }
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.handlerTimeout = d }
}

// WithRegistryTimeout sets the registry client's request timeout.
func WithRegistryTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.registryTimeout = d }
}

// NewTestHarness builds the service and starts it on an httptest server.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		units: DefaultUnits(),
		breaker: config.CircuitBreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          200 * time.Millisecond,
		},
		handlerTimeout:  5 * time.Second,
		registryTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}

	root := repoRoot()
	logger := zap.NewNop()
	h := &TestHarness{t: t, issuer: newTokenIssuer(t)}

	// Step 1: Configuration.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Auth.Issuer = h.issuer.issuer
	h.cfg.Auth.Audience = h.issuer.audience
	h.cfg.Registry = config.RegistryConfig{
		Driver:         config.RegistryHTTP,
		Timeout:        hc.registryTimeout,
		CircuitBreaker: hc.breaker,
		Cache:          config.CacheConfig{TTL: time.Minute, MaxEntries: 100},
	}
	h.cfg.Observability.Metrics = config.MetricsConfig{Enabled: true, Path: "/metrics"}

	// Step 2: Metrics on a private registry so harnesses do not collide.
	h.Gatherer = prometheus.NewRegistry()
	h.Metrics = observability.InitMetrics(h.Gatherer)

	// Step 3: Messages and definitions shipped with the service.
	catalog, err := messages.Load(filepath.Join(root, "messages"), "en")
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	defs, err := definition.NewLoader().LoadAll([]string{filepath.Join(root, "definitions")})
	if err != nil {
		t.Fatalf("load definitions: %v", err)
	}
	h.Definitions, err = definition.NewRegistry(defs)
	if err != nil {
		t.Fatalf("compile definitions: %v", err)
	}

	// Step 4: Registry client against the mock, behind the cache.
	h.Registry = newMockRegistry(t, hc.units)
	h.cfg.Registry.BaseURL = h.Registry.URL()
	h.Client = registry.NewClient(h.cfg.Registry, logger,
		registry.WithRecorder(h.Metrics),
		registry.WithToken("registry-service-token"),
	)
	units := registry.NewCached(h.Client, h.cfg.Registry.Cache, h.Metrics)

	ruleSets, err := transactions.Register(h.Definitions, units, catalog)
	if err != nil {
		t.Fatalf("register rule sets: %v", err)
	}

	// Step 5: Capabilities from the shipped policy file.
	evaluator, err := capability.NewStaticPolicyEvaluator(filepath.Join(root, "config", "policies.yaml"))
	if err != nil {
		t.Fatalf("load policy file: %v", err)
	}
	capResolver := capability.NewResolver(evaluator, h.cfg.Capability.Cache, h.Metrics)

	// Step 6: Engines.
	eligibilityEngine := eligibility.NewEngine(logger,
		eligibility.WithRecorder(h.Metrics),
		eligibility.WithMessages(catalog),
		eligibility.WithLookupTimeout(hc.registryTimeout),
	)
	store := wizard.NewMemorySessionStore()
	h.Engine = wizard.NewEngine(h.Definitions, store, eligibilityEngine, ruleSets, units, capResolver, logger,
		wizard.WithRecorder(h.Metrics),
		wizard.WithMessages(catalog),
		wizard.WithTTL(time.Hour),
	)

	// Step 7: Router with the real authenticator.
	authenticate, err := transport.JWTAuthenticator(h.cfg.Auth, h.issuer.secret)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	router := transport.NewRouter(transport.Dependencies{
		Config:             h.cfg,
		Logger:             logger,
		Authenticate:       authenticate,
		Locales:            catalog,
		CapabilityResolver: capResolver,
		Definitions:        h.Definitions,
		Wizard:             h.Engine,
		Metrics:            h.Metrics,
		Readiness: observability.ReadinessChecks{
			DefinitionsLoaded: h.Definitions.Loaded,
			SessionStore:      store,
			Registry:          h.Client,
		},
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)
	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// GenerateForeignToken creates a JWT signed with an unknown secret.
func (h *TestHarness) GenerateForeignToken(claims TestClaims) string {
	return h.issuer.GenerateForeignToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// GETWithHeaders performs an authenticated GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, headers)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// PUTWithHeaders performs an authenticated PUT request with additional headers.
func (h *TestHarness) PUTWithHeaders(path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("PUT", path, body, token, headers)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code and
// closes the body.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != expected {
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// AssertErrorCode checks the status and the error envelope code.
func (h *TestHarness) AssertErrorCode(t *testing.T, resp *http.Response, status int, code string) model.ErrorEnvelope {
	t.Helper()
	var body struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	h.AssertJSON(t, resp, status, &body)
	if body.Error.Code != code {
		t.Errorf("error code = %q, want %q", body.Error.Code, code)
	}
	return body.Error
}

// --- Wizard helpers ---

// StartSession starts a session for txType and returns its view.
func (h *TestHarness) StartSession(t *testing.T, token, txType string) wizard.View {
	t.Helper()
	var v wizard.View
	h.AssertJSON(t, h.POST("/api/wizard/sessions", map[string]any{"transaction_type": txType}, token), http.StatusCreated, &v)
	return v
}

// View checks for a 200 response and decodes the session view.
func (h *TestHarness) View(t *testing.T, resp *http.Response) wizard.View {
	t.Helper()
	var v wizard.View
	h.AssertJSON(t, resp, http.StatusOK, &v)
	return v
}

// SessionPath returns the API path of a session sub-resource.
func SessionPath(id, sub string) string {
	if sub == "" {
		return "/api/wizard/sessions/" + id
	}
	return "/api/wizard/sessions/" + id + "/" + sub
}

// Values encodes key/value pairs in the ordered form data wire format.
func Values(kv ...string) []map[string]string {
	out := make([]map[string]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, map[string]string{"key": kv[i], "value": kv[i+1]})
	}
	return out
}

// IfMatch returns the If-Match header value carrying version.
func IfMatch(version int) string {
	return strconv.Quote(strconv.Itoa(version))
}

// --- Default claims and fixtures ---

// OwnerClaims returns claims for a vessel owner.
func OwnerClaims() TestClaims {
	return TestClaims{
		ActorID: "owner-1",
		Email:   "owner@marine.example.com",
		Roles:   []string{"vessel_owner"},
	}
}

// OtherOwnerClaims returns claims for a second vessel owner.
func OtherOwnerClaims() TestClaims {
	return TestClaims{
		ActorID: "owner-2",
		Email:   "other@marine.example.com",
		Roles:   []string{"vessel_owner"},
	}
}

// BankOfficerClaims returns claims for a bank officer, who may only handle
// mortgages.
func BankOfficerClaims() TestClaims {
	return TestClaims{
		ActorID: "bank-1",
		Email:   "officer@bank.example.com",
		Roles:   []string{"bank_officer"},
	}
}

// DefaultUnits returns the registry content shared by the tests. owner-1
// owns one unit in each interesting state.
func DefaultUnits() registry.StaticFile {
	recorded := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return registry.StaticFile{
		Units: []registry.StaticUnit{
			unit("MU-1", "Nour", model.RegistrationPermanent, nil, nil, "owner-1"),
			unit("MU-2", "Sea Falcon", model.RegistrationPermanent,
				&model.MortgageStatus{Mortgaged: true, Bank: "National Bank", Reference: "MB-778"}, nil, "owner-1"),
			unit("MU-3", "Blue Heron", model.RegistrationTemporary, nil, nil, "owner-1"),
			unit("MU-4", "Zahra", model.RegistrationPermanent, nil, []model.ComplianceIssue{{
				ID: "V-9", Kind: model.IssueViolation, Description: "Expired safety certificate", RecordedAt: recorded,
			}}, "owner-1"),
			unit("MU-5", "Dana", model.RegistrationPermanent, nil, nil, "owner-2"),
		},
		Categories: []model.Category{{ID: "fishing", Name: "Fishing vessel"}},
	}
}

func unit(id, name, status string, mortgage *model.MortgageStatus, issues []model.ComplianceIssue, owners ...string) registry.StaticUnit {
	return registry.StaticUnit{
		MarineUnit: model.MarineUnit{ID: id, Name: name, RegistrationStatus: status},
		Owners:     owners,
		Mortgage:   mortgage,
		Issues:     issues,
	}
}

// FutureDate returns a date years from now in the wire format.
func FutureDate(years int) string {
	return time.Now().AddDate(years, 0, 0).Format(time.DateOnly)
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// repoRoot returns the absolute path of the module root.
func repoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}
