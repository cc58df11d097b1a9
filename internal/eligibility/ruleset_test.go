package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type titledRules struct{ stubRules }

func (titledRules) TransactionType() string       { return "titled" }
func (titledRules) StepTitle() string             { return "Pick a vessel" }
func (titledRules) StepDescription() string       { return "Only vessels you own are listed." }
func (titledRules) AllowsMultipleSelection() bool { return true }

func TestHookDefaults(t *testing.T) {
	rs := newFakeRules()
	assert.False(t, AllowsMultipleSelection(rs))
	assert.Equal(t, DefaultStepTitle, StepTitle(rs))
	assert.Equal(t, DefaultStepDescription, StepDescription(rs))
}

func TestHookOverrides(t *testing.T) {
	rs := titledRules{}
	assert.True(t, AllowsMultipleSelection(rs))
	assert.Equal(t, "Pick a vessel", StepTitle(rs))
	assert.Equal(t, "Only vessels you own are listed.", StepDescription(rs))
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(newFakeRules(), titledRules{})
	require.NoError(t, err)

	rs, ok := reg.Get("titled")
	require.True(t, ok)
	assert.Equal(t, "titled", rs.TransactionType())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"fake", "titled"}, reg.Names())

	assert.Error(t, reg.Register(newFakeRules()), "duplicate transaction type")
}
