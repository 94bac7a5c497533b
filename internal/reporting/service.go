package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/money"
)

// Service answers read-only questions about an account. Nothing here mutates
// ledger state.
type Service interface {
	ScopePercentages(ctx context.Context, accountID uuid.UUID) (map[enums.Category]decimal.Decimal, error)
	Dashboard(ctx context.Context, accountID uuid.UUID) (*Dashboard, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (*Report, error)
}

type accounts interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error)
	GetBalance(ctx context.Context, accountID uuid.UUID, currency string) (*ledger.Balance, error)
	ListCurrencyBalances(ctx context.Context, accountID uuid.UUID) ([]ledger.Balance, error)
	GetCategoryBalances(ctx context.Context, accountID uuid.UUID) (map[enums.Category]ledger.CategoryView, error)
}

type rates interface {
	GetRate(ctx context.Context, code string) (decimal.Decimal, error)
}

// Dashboard is the combined view shown for one account.
type Dashboard struct {
	Account          *models.LedgerAccount                  `json:"account"`
	Balance          *ledger.Balance                        `json:"balance"`
	Currencies       []ledger.Balance                       `json:"currencies"`
	Categories       map[enums.Category]ledger.CategoryView `json:"categories"`
	ScopePercentages map[enums.Category]decimal.Decimal     `json:"scope_percentages"`
}

// Rule names one reconciliation check.
type Rule string

const (
	RuleBalanceIdentity        Rule = "balance_identity"
	RuleCurrencyReconciliation Rule = "currency_reconciliation"
	RuleCategorySum            Rule = "category_sum"
	RuleAccountReplay          Rule = "account_replay"
	RuleCurrencyReplay         Rule = "currency_replay"
	RuleCategoryReplay         Rule = "category_replay"
)

// Violation is one failed check. Expected and Actual are in base currency
// unless Currency is set.
type Violation struct {
	Rule     Rule            `json:"rule"`
	Field    string          `json:"field"`
	Currency string          `json:"currency,omitempty"`
	Category enums.Category  `json:"category,omitempty"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

func (v Violation) String() string {
	scope := v.Field
	if v.Currency != "" {
		scope = v.Currency + "." + scope
	}
	if v.Category != "" {
		scope = string(v.Category) + "." + scope
	}
	return fmt.Sprintf("%s %s: expected %s, got %s", v.Rule, scope, v.Expected, v.Actual)
}

// Report is the outcome of reconciling one account.
type Report struct {
	AccountID  uuid.UUID   `json:"account_id"`
	CheckedAt  time.Time   `json:"checked_at"`
	Violations []Violation `json:"violations"`
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

type service struct {
	repo     Repository
	accounts accounts
	rates    rates
	epsilon  decimal.Decimal
	now      func() time.Time
}

func NewService(repo Repository, accounts accounts, rates rates, epsilon decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reporting repository required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if rates == nil {
		return nil, fmt.Errorf("currency rates required")
	}
	return &service{
		repo:     repo,
		accounts: accounts,
		rates:    rates,
		epsilon:  epsilon,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// ScopePercentages splits usedFund across categories from the log. Every
// category is present; all are zero while nothing has been used.
func (s *service) ScopePercentages(ctx context.Context, accountID uuid.UUID) (map[enums.Category]decimal.Decimal, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.percentages(ctx, acct)
}

func (s *service) percentages(ctx context.Context, acct *models.LedgerAccount) (map[enums.Category]decimal.Decimal, error) {
	out := make(map[enums.Category]decimal.Decimal, len(enums.Categories()))
	for _, category := range enums.Categories() {
		out[category] = decimal.Zero
	}
	if !acct.UsedFund.IsPositive() {
		return out, nil
	}
	totals, err := s.repo.UsedByCategory(ctx, acct.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "sum used funds by category")
	}
	for _, row := range totals {
		if _, known := out[row.Category]; !known {
			continue
		}
		out[row.Category] = money.Percent(money.Round(row.Total), acct.UsedFund)
	}
	return out, nil
}

func (s *service) Dashboard(ctx context.Context, accountID uuid.UUID) (*Dashboard, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	balance, err := s.accounts.GetBalance(ctx, accountID, "")
	if err != nil {
		return nil, err
	}
	currencies, err := s.accounts.ListCurrencyBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	categories, err := s.accounts.GetCategoryBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	pct, err := s.percentages(ctx, acct)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Account:          acct,
		Balance:          balance,
		Currencies:       currencies,
		Categories:       categories,
		ScopePercentages: pct,
	}, nil
}

// Reconcile checks an account against its own breakdowns and against a
// replay of its transaction log.
func (s *service) Reconcile(ctx context.Context, accountID uuid.UUID) (*Report, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	currencies, err := s.accounts.ListCurrencyBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	categories, err := s.accounts.GetCategoryBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.Transactions(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load transaction log")
	}

	report := &Report{AccountID: acct.ID, CheckedAt: s.now()}
	add := func(v Violation) { report.Violations = append(report.Violations, v) }

	held := acct.UsedFund.Add(acct.OnHoldFund).Add(acct.AvailableFund)
	if !money.WithinEpsilon(acct.TotalFund, held, s.epsilon) {
		add(Violation{Rule: RuleBalanceIdentity, Field: "total", Expected: held, Actual: acct.TotalFund})
	}

	converted := ledger.Delta{}
	for _, row := range currencies {
		rate, err := s.rates.GetRate(ctx, row.Currency)
		if err != nil {
			return nil, err
		}
		converted = converted.Add(ledger.Delta{
			Total:     money.ToBase(row.Total, rate),
			Used:      money.ToBase(row.Used, rate),
			OnHold:    money.ToBase(row.OnHold, rate),
			Available: money.ToBase(row.Available, rate),
		})
	}
	for _, f := range compare(accountDelta(acct), converted) {
		if !money.WithinEpsilon(f.want, f.got, s.epsilon) {
			add(Violation{Rule: RuleCurrencyReconciliation, Field: f.name, Expected: f.want, Actual: f.got})
		}
	}

	earmarked := decimal.Zero
	for _, view := range categories {
		earmarked = earmarked.Add(view.Available)
	}
	if earmarked.GreaterThan(acct.AvailableFund) {
		add(Violation{Rule: RuleCategorySum, Field: "available", Expected: acct.AvailableFund, Actual: earmarked})
	}

	byAccount := ledger.Delta{}
	byCurrency := make(map[string]ledger.Delta)
	byCategory := make(map[enums.Category]ledger.Delta)
	for _, txn := range txns {
		byAccount = byAccount.Add(ledger.Effect(txn.Subtype, txn.Status, txn.BaseAmount))
		byCurrency[txn.Currency] = byCurrency[txn.Currency].Add(ledger.Effect(txn.Subtype, txn.Status, txn.Amount))
		if txn.Bucket != nil {
			byCategory[*txn.Bucket] = byCategory[*txn.Bucket].Add(ledger.Effect(txn.Subtype, txn.Status, txn.BaseAmount))
		}
	}

	for _, f := range compare(byAccount, accountDelta(acct)) {
		if !f.want.Equal(f.got) {
			add(Violation{Rule: RuleAccountReplay, Field: f.name, Expected: f.want, Actual: f.got})
		}
	}

	stored := make(map[string]ledger.Delta, len(currencies))
	for _, row := range currencies {
		stored[row.Currency] = ledger.Delta{Total: row.Total, Used: row.Used, OnHold: row.OnHold, Available: row.Available}
	}
	for _, code := range unionKeys(byCurrency, stored) {
		for _, f := range compare(byCurrency[code], stored[code]) {
			if !f.want.Equal(f.got) {
				add(Violation{Rule: RuleCurrencyReplay, Field: f.name, Currency: code, Expected: f.want, Actual: f.got})
			}
		}
	}

	for _, category := range enums.Categories() {
		view := categories[category]
		got := ledger.Delta{Total: view.Total, Used: view.Used, OnHold: view.OnHold, Available: view.Available}
		for _, f := range compare(byCategory[category], got) {
			if !f.want.Equal(f.got) {
				add(Violation{Rule: RuleCategoryReplay, Field: f.name, Category: category, Expected: f.want, Actual: f.got})
			}
		}
	}
	return report, nil
}

type fieldPair struct {
	name string
	want decimal.Decimal
	got  decimal.Decimal
}

func compare(want, got ledger.Delta) []fieldPair {
	return []fieldPair{
		{"total", want.Total, got.Total},
		{"used", want.Used, got.Used},
		{"on_hold", want.OnHold, got.OnHold},
		{"available", want.Available, got.Available},
	}
}

func accountDelta(acct *models.LedgerAccount) ledger.Delta {
	return ledger.Delta{
		Total:     acct.TotalFund,
		Used:      acct.UsedFund,
		OnHold:    acct.OnHoldFund,
		Available: acct.AvailableFund,
	}
}

func unionKeys(a, b map[string]ledger.Delta) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
