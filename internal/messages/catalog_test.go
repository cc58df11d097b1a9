package messages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/vesselwizard/model"
)

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("testdata", "en")
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	c := loadTestCatalog(t)
	assert.Equal(t, []string{"en", "ar"}, c.Locales())
	assert.Equal(t, "en", c.DefaultLocale())
	assert.Equal(t, "Service unavailable", c.Lookup("en", "eligibility.lookup_failed.title"))
}

func TestLoad_missingDefault(t *testing.T) {
	_, err := Load("testdata", "fr")
	assert.Error(t, err)
}

func TestLoad_missingDirectory(t *testing.T) {
	_, err := Load("testdata/nope", "en")
	assert.Error(t, err)
}

func TestLookup_fallbacks(t *testing.T) {
	c := loadTestCatalog(t)

	assert.Equal(t, "هذا الحقل مطلوب", c.Lookup("ar", "validation.required"))
	assert.Equal(t, "Back", c.Lookup("ar", "action.back"), "missing key falls back to the default locale")
	assert.Equal(t, "no.such.key", c.Lookup("ar", "no.such.key"), "unknown key resolves to itself")
	assert.Equal(t, "This field is required", c.Lookup("de", "validation.required"), "unsupported locale uses the default")
	assert.Equal(t, "This field is required", c.Lookup("", "validation.required"))
	assert.Equal(t, "إعادة المحاولة", c.Lookup("ar-EG", "action.retry"), "regional variant matches its base language")
}

func TestNegotiate(t *testing.T) {
	c := loadTestCatalog(t)

	tests := []struct {
		header string
		want   string
	}{
		{"ar-EG,ar;q=0.9,en;q=0.8", "ar"},
		{"en-GB", "en"},
		{"fr-FR,fr;q=0.9", "en"},
		{"", "en"},
		{";;;", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Negotiate(tt.header))
		})
	}
}

func TestResolve_usesRequestLocale(t *testing.T) {
	c := loadTestCatalog(t)

	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{ActorID: "a", Locale: "ar"})
	assert.Equal(t, "هذا الحقل مطلوب", c.Resolve(ctx, "validation.required"))
	assert.Equal(t, "This field is required", c.Resolve(context.Background(), "validation.required"))

	var _ model.MessageResolver = c
}

func TestCodeResolver(t *testing.T) {
	c := loadTestCatalog(t)
	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{ActorID: "a", Locale: "ar"})

	resolve := c.CodeResolver(ctx)
	assert.Equal(t, "هذا الحقل مطلوب", resolve("validation.required"))
	assert.Equal(t, "validation.otp", resolve("validation.otp"))
}

func TestNew_badLocale(t *testing.T) {
	_, err := New("en", map[string]map[string]string{"en": {}, "not a tag!": {}})
	assert.Error(t, err)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Vessel Name", Humanize("vessel_name"))
	assert.Equal(t, "Imo Number", Humanize("imo_number"))
}
