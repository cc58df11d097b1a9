package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_endpoints(t *testing.T) {
	var auth atomic.Value
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/owners/actor-1/units":
			writeJSON(w, []model.MarineUnit{{ID: "u-1", Name: "Nour", RegistrationStatus: model.RegistrationPermanent}})
		case "/units/u-1":
			writeJSON(w, model.MarineUnit{ID: "u-1", Name: "Nour"})
		case "/units/u-1/owners/actor-1":
			writeJSON(w, map[string]bool{"owned": true})
		case "/units/u-1/mortgage":
			writeJSON(w, model.MortgageStatus{Mortgaged: true, Bank: "National Bank"})
		case "/units/u-1/compliance":
			writeJSON(w, model.ComplianceReport{Issues: []model.ComplianceIssue{{ID: "d-1", Kind: model.IssueDetention}}})
		case "/categories":
			writeJSON(w, []model.Category{{ID: "fishing", Name: "Fishing vessel"}})
		default:
			http.NotFound(w, r)
		}
	})

	c := NewClient(config.RegistryConfig{BaseURL: srv.URL + "/"}, nil, WithToken("secret"))
	ctx := context.Background()

	units, err := c.FetchUnitsForUser(ctx, "actor-1")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "Nour", units[0].Name)
	assert.Equal(t, "Bearer secret", auth.Load())

	unit, err := c.FetchUnit(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", unit.ID)

	owned, err := c.CheckOwnership(ctx, "u-1", "actor-1")
	require.NoError(t, err)
	assert.True(t, owned)

	st, err := c.MortgageStatus(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "National Bank", st.Bank)

	report, err := c.Compliance(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", report.UnitID)
	assert.Len(t, report.Detentions(), 1)

	cats, err := c.FetchCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Category{{ID: "fishing", Name: "Fishing vessel"}}, cats)
}

func TestClient_FetchUnit_notFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c := NewClient(config.RegistryConfig{BaseURL: srv.URL}, nil)

	_, err := c.FetchUnit(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnitNotFound)
	assert.Equal(t, BreakerClosed, c.Breaker().State(), "4xx does not count against the breaker")
}

func TestClient_serverErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c := NewClient(config.RegistryConfig{
		BaseURL:        srv.URL,
		CircuitBreaker: config.CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour},
	}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.MortgageStatus(ctx, "u-1")
		var se *StatusError
		require.True(t, errors.As(err, &se), "err = %v", err)
		assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	}

	_, err := c.MortgageStatus(ctx, "u-1")
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, int32(2), calls.Load(), "an open breaker must not reach the server")
}

func TestClient_cancelledContext(t *testing.T) {
	block := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	defer close(block)

	c := NewClient(config.RegistryConfig{
		BaseURL:        srv.URL,
		CircuitBreaker: config.CircuitBreakerConfig{FailureThreshold: 1},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.CheckOwnership(ctx, "u-1", "actor-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, BreakerClosed, c.Breaker().State())
}

type recordingRecorder struct {
	calls []string
}

func (r *recordingRecorder) RecordRegistryCall(operation, outcome string, _ time.Duration) {
	r.calls = append(r.calls, operation+":"+outcome)
}

func (r *recordingRecorder) SetRegistryBreakerState(float64) {}

func TestClient_recordsOutcomes(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []model.Category{})
	})
	rec := &recordingRecorder{}
	c := NewClient(config.RegistryConfig{BaseURL: srv.URL}, nil, WithRecorder(rec))

	_, err := c.FetchCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch_categories:ok"}, rec.calls)
}
