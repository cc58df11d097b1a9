package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/internal/wizard"
	"github.com/pitabwire/vesselwizard/model"
)

// ==========================================================================
// Registry Failures
// ==========================================================================

func TestResilience_UnitListFailure_Returns502(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(OwnerClaims())
	v := h.StartSession(t, token, "mortgage_request")

	h.Registry.FailTimes(OpFetchUnitsForUser, http.StatusInternalServerError, 1)
	h.AssertErrorCode(t, h.GET(SessionPath(v.Session.ID, "units"), token), http.StatusBadGateway, model.ErrBackendUnavailable)

	// Failures are not cached: the next call reaches the registry again.
	var list wizard.UnitList
	h.AssertJSON(t, h.GET(SessionPath(v.Session.ID, "units"), token), http.StatusOK, &list)
	if got := h.Registry.Calls(OpFetchUnitsForUser); got != 2 {
		t.Errorf("registry list calls = %d, want 2", got)
	}

	// Successful lists are served from the cache.
	h.AssertJSON(t, h.GET(SessionPath(v.Session.ID, "units"), token), http.StatusOK, &list)
	if got := h.Registry.Calls(OpFetchUnitsForUser); got != 2 {
		t.Errorf("registry list calls after cache hit = %d, want 2", got)
	}
}

func TestResilience_LookupFailure_UnitsUnavailable(t *testing.T) {
	h := NewTestHarness(t, WithCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold: 50,
		SuccessThreshold: 1,
		Timeout:          time.Second,
	}))
	token := h.GenerateToken(OwnerClaims())
	v := h.StartSession(t, token, "mortgage_request")
	id := v.Session.ID

	h.Registry.Fail(OpCompliance, http.StatusServiceUnavailable)

	var list wizard.UnitList
	h.AssertJSON(t, h.GET(SessionPath(id, "units"), token), http.StatusOK, &list)
	if len(list.Eligible) != 0 {
		t.Errorf("eligible = %s, want none while compliance is down", FormatJSON(list.Eligible))
	}
	unavailable := map[string]bool{}
	for _, u := range list.Unavailable {
		unavailable[u.ID] = true
	}
	if !unavailable["MU-1"] || !unavailable["MU-4"] {
		t.Errorf("unavailable = %v, want MU-1 and MU-4", unavailable)
	}
	// Units rejected before the compliance lookup keep their verdict.
	if len(list.Ineligible) != 2 {
		t.Errorf("ineligible = %s, want MU-2 and MU-3", FormatJSON(list.Ineligible))
	}

	// Selecting during the outage shows a retryable error and keeps the
	// session on the selection step.
	v = h.View(t, h.POST(SessionPath(id, "units"), map[string]any{"version": 1, "unit_ids": []string{"MU-1"}}, token))
	if v.Session.PendingAction == nil || v.Session.PendingAction.Type != model.ActionShowError || !v.Session.PendingAction.Transient {
		t.Fatalf("pending action = %s, want transient ShowError", FormatJSON(v.Session.PendingAction))
	}
	if v.Step.ID != "select_unit" || v.Session.SelectedUnitID != "" {
		t.Errorf("step = %q unit = %q, want select_unit with no unit", v.Step.ID, v.Session.SelectedUnitID)
	}

	// Retry after the registry recovers.
	h.Registry.Clear()
	v = h.View(t, h.POST(SessionPath(id, "units"), map[string]any{"version": v.Session.Version, "unit_ids": []string{"MU-1"}}, token))
	if v.Step.ID != "mortgage_details" {
		t.Errorf("after retry step = %q, want mortgage_details", v.Step.ID)
	}
	if v.Session.PendingAction != nil {
		t.Errorf("pending action = %s, want none", FormatJSON(v.Session.PendingAction))
	}
}

func TestResilience_SlowRegistry_TimesOut(t *testing.T) {
	h := NewTestHarness(t, WithRegistryTimeout(100*time.Millisecond))
	token := h.GenerateToken(OwnerClaims())
	v := h.StartSession(t, token, "mortgage_request")

	h.Registry.Delay(OpFetchUnitsForUser, 2*time.Second)

	start := time.Now()
	h.AssertErrorCode(t, h.GET(SessionPath(v.Session.ID, "units"), token), http.StatusBadGateway, model.ErrBackendUnavailable)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("request took %v, want the registry timeout to cut it short", elapsed)
	}
}

// ==========================================================================
// Circuit Breaker
// ==========================================================================

func TestResilience_CircuitBreaker_TripsAndRecovers(t *testing.T) {
	h := NewTestHarness(t, WithCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          200 * time.Millisecond,
	}))
	token := h.GenerateToken(OwnerClaims())
	v := h.StartSession(t, token, "mortgage_request")
	unitsPath := SessionPath(v.Session.ID, "units")

	h.Registry.Fail(OpFetchUnitsForUser, http.StatusInternalServerError)
	for range 3 {
		h.AssertStatus(t, h.GET(unitsPath, token), http.StatusBadGateway)
	}
	if got := h.Registry.Calls(OpFetchUnitsForUser); got != 3 {
		t.Fatalf("registry calls = %d, want 3", got)
	}

	// Open: the registry is no longer called.
	h.AssertStatus(t, h.GET(unitsPath, token), http.StatusBadGateway)
	if got := h.Registry.Calls(OpFetchUnitsForUser); got != 3 {
		t.Errorf("registry calls while open = %d, want 3", got)
	}
	if got := testutil.ToFloat64(h.Metrics.RegistryCallsTotal.WithLabelValues(OpFetchUnitsForUser, "rejected")); got != 1 {
		t.Errorf("rejected calls metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.Metrics.RegistryBreakerState); got != 1 {
		t.Errorf("breaker state metric = %v, want 1 (open)", got)
	}
	h.AssertStatus(t, h.GET("/ready", ""), http.StatusServiceUnavailable)

	// Cool down, then a successful probe closes the breaker.
	h.Registry.Clear()
	time.Sleep(300 * time.Millisecond)

	var list wizard.UnitList
	h.AssertJSON(t, h.GET(unitsPath, token), http.StatusOK, &list)
	if len(list.Eligible) != 1 {
		t.Errorf("eligible after recovery = %s", FormatJSON(list.Eligible))
	}
	h.AssertStatus(t, h.GET("/ready", ""), http.StatusOK)
}

func TestResilience_ClientErrorsDoNotTripBreaker(t *testing.T) {
	h := NewTestHarness(t, WithCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	}))
	token := h.GenerateToken(OwnerClaims())

	// Unknown units answer 404; selecting one is a NOT_FOUND every time and
	// never opens the breaker.
	for range 3 {
		v := h.StartSession(t, token, "mortgage_request")
		h.AssertErrorCode(t, h.POST(SessionPath(v.Session.ID, "units"), map[string]any{"version": 1, "unit_ids": []string{"MU-404"}}, token),
			http.StatusNotFound, model.ErrNotFound)
	}
	if got := h.Registry.Calls(OpFetchUnit); got != 3 {
		t.Errorf("registry unit calls = %d, want 3", got)
	}
	h.AssertStatus(t, h.GET("/ready", ""), http.StatusOK)
}
