package transactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/model"
)

func loadDefinitions(t *testing.T) *definition.Registry {
	t.Helper()
	defs, err := definition.NewLoader().LoadAll([]string{"../definition/testdata/marine"})
	require.NoError(t, err)
	reg, err := definition.NewRegistry(defs)
	require.NoError(t, err)
	return reg
}

func TestRegister(t *testing.T) {
	sets, err := Register(loadDefinitions(t), fixture(t), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, Names(), sets.Names())

	rs, ok := sets.Get(TypeMortgageRelease)
	require.True(t, ok)
	release := rs.(*MortgageRelease)
	assert.Equal(t, 1, release.detailsStep)

	rs, _ = sets.Get(TypeRegistrationCancellation)
	assert.Equal(t, 1, rs.(*RegistrationCancellation).consentStep)
}

func TestBuild_missingRouteStep(t *testing.T) {
	tx, err := definition.Compile("marine", model.TransactionDefinition{
		Type:    "mortgage_release",
		RuleSet: TypeMortgageRelease,
		Steps: []model.StepDefinition{
			{ID: "select_unit", Fields: []model.FieldDefinition{{ID: "unit_id", Type: "marine_unit_selector"}}},
		},
	})
	require.NoError(t, err)

	_, err = Build(tx, fixture(t), nil)
	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestBuild_unknownRuleSet(t *testing.T) {
	_, err := Build(&definition.Transaction{Type: "x", RuleSet: "telepathy"}, fixture(t), nil)
	assert.Error(t, err)
}
