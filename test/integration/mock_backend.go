package integration

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pitabwire/vesselwizard/internal/registry"
)

// Registry operations served by the mock, named as the registry client
// names them.
const (
	OpFetchUnitsForUser = "fetch_units_for_user"
	OpFetchUnit         = "fetch_unit"
	OpCheckOwnership    = "check_ownership"
	OpMortgageStatus    = "mortgage_status"
	OpCompliance        = "compliance"
	OpFetchCategories   = "fetch_categories"
)

// MockRegistry is an HTTP test server speaking the marine registry API. It
// answers from a static registry and lets tests inject failures per
// operation. Every request is recorded.
type MockRegistry struct {
	t      *testing.T
	data   *registry.Static
	server *httptest.Server

	mu       sync.Mutex
	faults   map[string]*fault
	received map[string][]RecordedRequest
}

// RecordedRequest captures a request received by the mock registry.
type RecordedRequest struct {
	Path          string
	Authorization string
	ReceivedAt    time.Time
}

type fault struct {
	status    int
	delay     time.Duration
	remaining int // 0 means until cleared
}

func newMockRegistry(t *testing.T, data registry.StaticFile) *MockRegistry {
	t.Helper()

	static, err := registry.NewStatic(data)
	if err != nil {
		t.Fatalf("mock registry data: %v", err)
	}
	m := &MockRegistry{
		t:        t,
		data:     static,
		faults:   make(map[string]*fault),
		received: make(map[string][]RecordedRequest),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /owners/{actor}/units", m.handle(OpFetchUnitsForUser, func(r *http.Request) (any, error) {
		return m.data.FetchUnitsForUser(r.Context(), r.PathValue("actor"))
	}))
	mux.HandleFunc("GET /units/{id}", m.handle(OpFetchUnit, func(r *http.Request) (any, error) {
		return m.data.FetchUnit(r.Context(), r.PathValue("id"))
	}))
	mux.HandleFunc("GET /units/{id}/owners/{actor}", m.handle(OpCheckOwnership, func(r *http.Request) (any, error) {
		owned, err := m.data.CheckOwnership(r.Context(), r.PathValue("id"), r.PathValue("actor"))
		return map[string]bool{"owned": owned}, err
	}))
	mux.HandleFunc("GET /units/{id}/mortgage", m.handle(OpMortgageStatus, func(r *http.Request) (any, error) {
		return m.data.MortgageStatus(r.Context(), r.PathValue("id"))
	}))
	mux.HandleFunc("GET /units/{id}/compliance", m.handle(OpCompliance, func(r *http.Request) (any, error) {
		return m.data.Compliance(r.Context(), r.PathValue("id"))
	}))
	mux.HandleFunc("GET /categories", m.handle(OpFetchCategories, func(r *http.Request) (any, error) {
		return m.data.FetchCategories(r.Context())
	}))

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the base URL of the mock registry.
func (m *MockRegistry) URL() string {
	return m.server.URL
}

// Fail makes op answer with status until Clear is called.
func (m *MockRegistry) Fail(op string, status int) {
	m.setFault(op, &fault{status: status})
}

// FailTimes makes the next n calls of op answer with status.
func (m *MockRegistry) FailTimes(op string, status, n int) {
	m.setFault(op, &fault{status: status, remaining: n})
}

// Delay makes op sleep for d before answering normally.
func (m *MockRegistry) Delay(op string, d time.Duration) {
	m.setFault(op, &fault{delay: d})
}

// Clear removes every injected fault.
func (m *MockRegistry) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.faults)
}

// Calls returns how many requests op has received.
func (m *MockRegistry) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received[op])
}

// Requests returns the recorded requests of op.
func (m *MockRegistry) Requests(op string) []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.received[op]...)
}

func (m *MockRegistry) setFault(op string, f *fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = f
}

// takeFault records the request and returns the fault to apply, if any.
func (m *MockRegistry) takeFault(op string, r *http.Request) *fault {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.received[op] = append(m.received[op], RecordedRequest{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		ReceivedAt:    time.Now(),
	})

	f, ok := m.faults[op]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(m.faults, op)
		}
	}
	copied := *f
	return &copied
}

func (m *MockRegistry) handle(op string, answer func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f := m.takeFault(op, r); f != nil {
			if f.delay > 0 {
				select {
				case <-time.After(f.delay):
				case <-r.Context().Done():
					return
				}
			}
			if f.status != 0 {
				w.WriteHeader(f.status)
				return
			}
		}

		body, err := answer(r)
		switch {
		case errors.Is(err, registry.ErrUnitNotFound):
			w.WriteHeader(http.StatusNotFound)
			return
		case err != nil:
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			m.t.Errorf("mock registry: encode %s response: %v", op, err)
		}
	}
}
