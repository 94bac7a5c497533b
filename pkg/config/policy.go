package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Policy holds fund planning settings that change rarely and live in a file
// rather than the environment.
type Policy struct {
	// BudgetPercentages is keyed by category name; values are percentages (30 = 30%).
	BudgetPercentages map[string]decimal.Decimal
	Currencies        []SeedCurrency
}

// SeedCurrency is a currency registered at startup when missing.
type SeedCurrency struct {
	Code string
	Name string
	Rate decimal.Decimal
}

type rawSeedCurrency struct {
	Code string `mapstructure:"code"`
	Name string `mapstructure:"name"`
	Rate string `mapstructure:"rate"`
}

var defaultBudgetPercentages = map[string]int64{
	"health":      30,
	"education":   20,
	"relief":      20,
	"shelter":     15,
	"sponsorship": 10,
	"general":     20,
}

// DefaultPolicy returns the built-in planning percentages and no seed currencies.
func DefaultPolicy() *Policy {
	pct := make(map[string]decimal.Decimal, len(defaultBudgetPercentages))
	for k, v := range defaultBudgetPercentages {
		pct[k] = decimal.NewFromInt(v)
	}
	return &Policy{BudgetPercentages: pct}
}

// LoadPolicy reads a YAML/JSON/TOML policy file. An empty path yields DefaultPolicy.
// Categories missing from the file keep their default percentage.
func LoadPolicy(path string) (*Policy, error) {
	policy := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading policy file %q: %w", path, err)
	}

	for key, raw := range v.GetStringMapString("budget_percentages") {
		pct, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("budget percentage %q: %w", key, err)
		}
		if pct.IsNegative() {
			return nil, fmt.Errorf("budget percentage %q must not be negative", key)
		}
		policy.BudgetPercentages[strings.ToLower(strings.TrimSpace(key))] = pct
	}

	var seeds []rawSeedCurrency
	if err := v.UnmarshalKey("currencies", &seeds); err != nil {
		return nil, fmt.Errorf("decoding policy currencies: %w", err)
	}
	for _, seed := range seeds {
		code := strings.ToUpper(strings.TrimSpace(seed.Code))
		if code == "" {
			return nil, fmt.Errorf("policy currency code is required")
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(seed.Rate))
		if err != nil {
			return nil, fmt.Errorf("policy currency %s rate: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("policy currency %s rate must be positive", code)
		}
		policy.Currencies = append(policy.Currencies, SeedCurrency{Code: code, Name: seed.Name, Rate: rate})
	}
	sort.Slice(policy.Currencies, func(i, j int) bool {
		return policy.Currencies[i].Code < policy.Currencies[j].Code
	})
	return policy, nil
}
