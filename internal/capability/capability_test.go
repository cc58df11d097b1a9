package capability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/model"
)

func testRctx(roles ...string) *model.RequestContext {
	return &model.RequestContext{
		ActorID: "actor-1",
		Roles:   roles,
	}
}

var testCache = config.CacheConfig{TTL: 5 * time.Minute, MaxEntries: 100}

// --- StaticPolicyEvaluator tests ---

func TestStaticPolicyEvaluator_ResolveCapabilities(t *testing.T) {
	e, err := NewStaticPolicyEvaluator("testdata/policies.yaml")
	if err != nil {
		t.Fatalf("NewStaticPolicyEvaluator() error = %v", err)
	}

	caps, err := e.ResolveCapabilities(testRctx("citizen"))
	if err != nil {
		t.Fatalf("ResolveCapabilities() error = %v", err)
	}

	if !caps.Has("marine:mortgage:request") {
		t.Error("citizen should have marine:mortgage:request")
	}
	if caps.Has("marine:mortgage:release") {
		t.Error("citizen should not have marine:mortgage:release")
	}
	if e.Roles() != 4 {
		t.Errorf("Roles() = %d, want 4", e.Roles())
	}
}

func TestStaticPolicyEvaluator_MultipleRoles(t *testing.T) {
	e, _ := NewStaticPolicyEvaluator("testdata/policies.yaml")
	caps, _ := e.ResolveCapabilities(testRctx("citizen", "bank_officer"))

	if !caps.Has("marine:mortgage:release") {
		t.Error("bank_officer should add marine:mortgage:release")
	}
	if !caps.Has("marine:registration:permanent") {
		t.Error("combined roles should keep marine:registration:permanent")
	}
}

func TestStaticPolicyEvaluator_Wildcard(t *testing.T) {
	e, _ := NewStaticPolicyEvaluator("testdata/policies.yaml")

	caps, _ := e.ResolveCapabilities(testRctx("registry_officer"))
	if !caps.Has("marine:registration:cancel") {
		t.Error("marine:* should match marine:registration:cancel")
	}
	if caps.Has("fisheries:license:issue") {
		t.Error("marine:* should not match another domain")
	}

	caps, _ = e.ResolveCapabilities(testRctx("admin"))
	if !caps.Has("fisheries:license:issue") {
		t.Error("* should match everything")
	}
}

func TestStaticPolicyEvaluator_UnknownRole(t *testing.T) {
	e, _ := NewStaticPolicyEvaluator("testdata/policies.yaml")
	caps, _ := e.ResolveCapabilities(testRctx("nonexistent"))

	if len(caps) != 0 {
		t.Errorf("unknown role should return empty capabilities, got %v", caps)
	}
}

func TestStaticPolicyEvaluator_BadFile(t *testing.T) {
	_, err := NewStaticPolicyEvaluator("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("expected error for missing policy file")
	}
}

func TestStaticPolicyEvaluator_Sync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("roles:\n  citizen: [\"marine:mortgage:request\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	e, err := NewStaticPolicyEvaluator(path)
	if err != nil {
		t.Fatalf("NewStaticPolicyEvaluator() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("roles:\n  citizen: [\"marine:*\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := e.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	caps, _ := e.ResolveCapabilities(testRctx("citizen"))
	if !caps.Has("marine:registration:cancel") {
		t.Error("Sync() should pick up the new policy")
	}
}

func TestAllowAll(t *testing.T) {
	caps, err := AllowAll{}.ResolveCapabilities(testRctx())
	if err != nil || !caps.Has("marine:mortgage:request") {
		t.Errorf("AllowAll should grant everything, got %v, %v", caps, err)
	}
}

// --- Resolver tests ---

type countingRecorder struct{ hits, misses int }

func (c *countingRecorder) RecordCapabilityCacheHit()  { c.hits++ }
func (c *countingRecorder) RecordCapabilityCacheMiss() { c.misses++ }

func TestResolver_Resolve_and_Cache(t *testing.T) {
	e, _ := NewStaticPolicyEvaluator("testdata/policies.yaml")
	rec := &countingRecorder{}
	r := NewResolver(e, testCache, rec)

	rctx := testRctx("citizen")

	caps1, err := r.Resolve(rctx)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !caps1.Has("marine:mortgage:request") {
		t.Error("should have marine:mortgage:request")
	}

	caps2, err := r.Resolve(rctx)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !caps2.Has("marine:mortgage:request") {
		t.Error("cached result should have marine:mortgage:request")
	}
	if rec.hits != 1 || rec.misses != 1 {
		t.Errorf("hits = %d, misses = %d, want 1 and 1", rec.hits, rec.misses)
	}
}

func TestResolver_rolesPartOfKey(t *testing.T) {
	e, _ := NewStaticPolicyEvaluator("testdata/policies.yaml")
	r := NewResolver(e, testCache, nil)

	caps, _ := r.Resolve(testRctx("citizen"))
	if caps.Has("marine:mortgage:release") {
		t.Fatal("citizen should not release mortgages")
	}
	caps, _ = r.Resolve(testRctx("citizen", "bank_officer"))
	if !caps.Has("marine:mortgage:release") {
		t.Error("new roles must not be served from the old cache entry")
	}
}

func TestResolver_Allowed(t *testing.T) {
	e, _ := NewStaticPolicyEvaluator("testdata/policies.yaml")
	r := NewResolver(e, testCache, nil)

	ok, err := r.Allowed(testRctx("citizen"), "marine:mortgage:request")
	if err != nil || !ok {
		t.Errorf("Allowed() = %v, %v, want true", ok, err)
	}
	ok, _ = r.Allowed(testRctx("citizen"), "marine:mortgage:request", "marine:registration:cancel")
	if ok {
		t.Error("Allowed() needs every capability")
	}
	ok, _ = r.Allowed(testRctx())
	if !ok {
		t.Error("Allowed() with nothing required should be true")
	}
}

func TestResolver_Invalidate(t *testing.T) {
	callCount := 0
	mock := &mockEvaluator{
		resolveFunc: func(rctx *model.RequestContext) (model.CapabilitySet, error) {
			callCount++
			return model.CapabilitySet{"marine:mortgage:request": true}, nil
		},
	}
	r := NewResolver(mock, testCache, nil)
	rctx := testRctx("citizen")

	r.Resolve(rctx)
	if callCount != 1 {
		t.Fatalf("callCount = %d, want 1", callCount)
	}

	r.Resolve(rctx)
	if callCount != 1 {
		t.Fatalf("callCount = %d after cache hit, want 1", callCount)
	}

	r.Invalidate("actor-1")

	r.Resolve(rctx)
	if callCount != 2 {
		t.Fatalf("callCount = %d after invalidate, want 2", callCount)
	}
}

func TestResolver_TTLExpiry(t *testing.T) {
	callCount := 0
	mock := &mockEvaluator{
		resolveFunc: func(rctx *model.RequestContext) (model.CapabilitySet, error) {
			callCount++
			return model.CapabilitySet{"marine:mortgage:request": true}, nil
		},
	}
	r := NewResolver(mock, testCache, nil)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	rctx := testRctx()

	r.Resolve(rctx)
	now = now.Add(testCache.TTL)
	r.Resolve(rctx)

	if callCount != 2 {
		t.Fatalf("callCount = %d, want 2 (TTL expired)", callCount)
	}
}

func TestResolver_boundedCache(t *testing.T) {
	mock := &mockEvaluator{
		resolveFunc: func(*model.RequestContext) (model.CapabilitySet, error) {
			return model.CapabilitySet{}, nil
		},
	}
	r := NewResolver(mock, config.CacheConfig{TTL: time.Minute, MaxEntries: 2}, nil)
	for _, actor := range []string{"a", "b", "c", "d"} {
		r.Resolve(&model.RequestContext{ActorID: actor})
	}
	if len(r.cache) > 2 {
		t.Errorf("cache size = %d, want at most 2", len(r.cache))
	}
}

// --- Mock PolicyEvaluator ---

type mockEvaluator struct {
	resolveFunc func(rctx *model.RequestContext) (model.CapabilitySet, error)
}

func (m *mockEvaluator) ResolveCapabilities(rctx *model.RequestContext) (model.CapabilitySet, error) {
	return m.resolveFunc(rctx)
}

func (m *mockEvaluator) Sync() error { return nil }

var _ model.CapabilityResolver = (*Resolver)(nil)
