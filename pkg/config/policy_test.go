package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicy_EmptyPathUsesDefaults(t *testing.T) {
	policy, err := LoadPolicy("")
	require.NoError(t, err)

	assert.Equal(t, "30", policy.BudgetPercentages["health"].String())
	assert.Equal(t, "10", policy.BudgetPercentages["sponsorship"].String())
	assert.Len(t, policy.BudgetPercentages, 6)
	assert.Empty(t, policy.Currencies)
}

func TestLoadPolicy_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
budget_percentages:
  health: 25
  general: 7.5
currencies:
  - code: kes
    name: Kenyan Shilling
    rate: 129.5
  - code: EUR
    name: Euro
    rate: 0.92
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, "25", policy.BudgetPercentages["health"].String())
	assert.Equal(t, "7.5", policy.BudgetPercentages["general"].String())
	assert.Equal(t, "20", policy.BudgetPercentages["education"].String())
	require.Len(t, policy.Currencies, 2)
	assert.Equal(t, "EUR", policy.Currencies[0].Code)
	assert.Equal(t, "0.92", policy.Currencies[0].Rate.String())
	assert.Equal(t, "KES", policy.Currencies[1].Code)
}

func TestLoadPolicy_RejectsNonPositiveRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
currencies:
  - code: XYZ
    name: Broken
    rate: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadPolicy(path)
	assert.Error(t, err)
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
