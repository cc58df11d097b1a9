package transport

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/model"
)

// --- test helpers ---

var testSecret = []byte("test-signing-secret-0123456789abcdef")

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		Issuer:     "https://auth.marine.example.gov",
		Audience:   "vessel-wizard",
		Algorithms: []string{"HS256"},
	}
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "actor-1",
		"iss":   "https://auth.marine.example.gov",
		"aud":   "vessel-wizard",
		"exp":   jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"iat":   jwt.NewNumericDate(time.Now()),
		"roles": []string{"vessel_owner"},
	}
}

func signHS(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func newAuthenticator(t *testing.T, cfg config.AuthConfig, inner http.Handler) http.Handler {
	t.Helper()
	mw, err := JWTAuthenticator(cfg, testSecret)
	if err != nil {
		t.Fatalf("JWTAuthenticator: %v", err)
	}
	return mw(inner)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
}

// serveToken runs the handler with a bearer token and returns the response.
func serveToken(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error.Message
}

// --- JWTAuthenticator tests ---

func TestJWTAuthenticator_missingSecret(t *testing.T) {
	_, err := JWTAuthenticator(testAuthCfg(), nil)
	if !errors.Is(err, ErrMissingSecret) {
		t.Errorf("err = %v, want ErrMissingSecret", err)
	}
}

func TestJWTAuthenticator_rejectsAsymmetricConfig(t *testing.T) {
	cfg := testAuthCfg()
	cfg.Algorithms = []string{"RS256"}
	if _, err := JWTAuthenticator(cfg, testSecret); err == nil {
		t.Error("expected error for RS256 configuration")
	}
}

func TestJWTAuthenticator_validToken(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())
		if claims == nil {
			t.Fatal("claims should be in context")
		}
		if sub, _ := claims["sub"].(string); sub != "actor-1" {
			t.Errorf("sub = %q, want actor-1", sub)
		}
		w.WriteHeader(200)
	}))

	w := serveToken(handler, signHS(t, testSecret, validClaims()))
	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestJWTAuthenticator_defaultAlgorithm(t *testing.T) {
	cfg := testAuthCfg()
	cfg.Algorithms = nil
	handler := newAuthenticator(t, cfg, okHandler())

	if w := serveToken(handler, signHS(t, testSecret, validClaims())); w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestJWTAuthenticator_missingAuthHeader(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	w := serveToken(handler, "")
	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Missing authorization header" {
		t.Errorf("message = %q", msg)
	}
}

func TestJWTAuthenticator_invalidFormat(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestJWTAuthenticator_expiredToken(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	claims := validClaims()
	claims["exp"] = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	w := serveToken(handler, signHS(t, testSecret, claims))
	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Token expired" {
		t.Errorf("message = %q, want Token expired", msg)
	}
}

func TestJWTAuthenticator_wrongIssuer(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	claims := validClaims()
	claims["iss"] = "https://evil.example.com"

	w := serveToken(handler, signHS(t, testSecret, claims))
	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Invalid token issuer" {
		t.Errorf("message = %q", msg)
	}
}

func TestJWTAuthenticator_wrongAudience(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	claims := validClaims()
	claims["aud"] = "some-other-api"

	w := serveToken(handler, signHS(t, testSecret, claims))
	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Invalid token audience" {
		t.Errorf("message = %q", msg)
	}
}

func TestJWTAuthenticator_badSignature(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	w := serveToken(handler, signHS(t, []byte("a-different-secret-entirely-000000"), validClaims()))
	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Invalid token signature" {
		t.Errorf("message = %q", msg)
	}
}

func TestJWTAuthenticator_disallowedAlgorithm(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if w := serveToken(handler, token); w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestJWTAuthenticator_missingExpClaim(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	claims := validClaims()
	delete(claims, "exp")

	if w := serveToken(handler, signHS(t, testSecret, claims)); w.Code != 401 {
		t.Errorf("status = %d, want 401 for missing exp", w.Code)
	}
}

func TestJWTAuthenticator_clockSkewTolerance(t *testing.T) {
	handler := newAuthenticator(t, testAuthCfg(), okHandler())

	// Expired 15 seconds ago, inside the 30s leeway.
	claims := validClaims()
	claims["exp"] = jwt.NewNumericDate(time.Now().Add(-15 * time.Second))

	if w := serveToken(handler, signHS(t, testSecret, claims)); w.Code != 200 {
		t.Errorf("status = %d, want 200 (token within clock skew tolerance)", w.Code)
	}
}

// --- claim helpers ---

func TestClaimHelpers_dotNotation(t *testing.T) {
	claims := map[string]any{
		"realm_access": map[string]any{
			"roles": []any{"agent", "vessel_owner"},
		},
		"sub": "actor-1",
	}

	if v := claimString(claims, "sub"); v != "actor-1" {
		t.Errorf("sub = %q, want actor-1", v)
	}

	roles := claimStringSlice(claims, "realm_access.roles")
	if len(roles) != 2 || roles[0] != "agent" {
		t.Errorf("realm_access.roles = %v, want [agent vessel_owner]", roles)
	}

	if v := claimString(claims, "nonexistent.path"); v != "" {
		t.Errorf("nonexistent.path = %q, want empty", v)
	}
	if v := claimString(nil, "sub"); v != "" {
		t.Errorf("nil claims = %q, want empty", v)
	}
}
