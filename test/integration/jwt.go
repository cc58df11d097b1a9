package integration

import (
	"maps"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestClaims holds the configurable claims for generating test JWT tokens.
type TestClaims struct {
	ActorID string
	Email   string
	Roles   []string
	Extra   map[string]any
}

// tokenIssuer signs HMAC tokens with the secret the harness hands to the
// authenticator.
type tokenIssuer struct {
	t        *testing.T
	secret   []byte
	issuer   string
	audience string
}

func newTokenIssuer(t *testing.T) *tokenIssuer {
	return &tokenIssuer{
		t:        t,
		secret:   []byte("integration-signing-secret-0123456789"),
		issuer:   "https://auth.test.marine.example.gov",
		audience: "vessel-wizard-test",
	}
}

// GenerateToken creates a valid, signed JWT token with the given claims.
func (ti *tokenIssuer) GenerateToken(claims TestClaims) string {
	return ti.sign(claims, time.Now().Add(time.Hour))
}

// GenerateExpiredToken creates a JWT that expired well outside the clock
// skew tolerance.
func (ti *tokenIssuer) GenerateExpiredToken(claims TestClaims) string {
	return ti.sign(claims, time.Now().Add(-time.Hour))
}

// GenerateForeignToken creates a token signed with a secret the server does
// not know.
func (ti *tokenIssuer) GenerateForeignToken(claims TestClaims) string {
	other := *ti
	other.secret = []byte("some-other-signing-secret-9876543210")
	return other.sign(claims, time.Now().Add(time.Hour))
}

func (ti *tokenIssuer) sign(claims TestClaims, exp time.Time) string {
	ti.t.Helper()

	mapClaims := jwt.MapClaims{
		"iss":   ti.issuer,
		"aud":   ti.audience,
		"iat":   jwt.NewNumericDate(exp.Add(-time.Hour)),
		"exp":   jwt.NewNumericDate(exp),
		"sub":   claims.ActorID,
		"email": claims.Email,
		"roles": claims.Roles,
	}
	maps.Copy(mapClaims, claims.Extra)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(ti.secret)
	if err != nil {
		ti.t.Fatalf("sign token: %v", err)
	}
	return signed
}
