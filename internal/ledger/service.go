package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/money"
	"github.com/reliefbridge/fundledger/pkg/pagination"
)

// Service exposes account management and the single-account fund operations.
type Service interface {
	CreateAccount(ctx context.Context, input CreateAccountInput) (*models.LedgerAccount, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]models.LedgerAccount, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	AddFund(ctx context.Context, input FundInput) (*models.FundTransaction, error)
	UseFund(ctx context.Context, input FundInput) (*models.FundTransaction, error)
	GetBalance(ctx context.Context, accountID uuid.UUID, currency string) (*Balance, error)
	ListCurrencyBalances(ctx context.Context, accountID uuid.UUID) ([]Balance, error)
	GetCategoryBalances(ctx context.Context, accountID uuid.UUID) (map[enums.Category]CategoryView, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) (pagination.Page[models.FundTransaction], error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateAccountInput describes a new account. Currency defaults to the base
// currency.
type CreateAccountInput struct {
	Kind     enums.AccountKind
	Name     string
	OwnerRef *string
	ParentID *uuid.UUID
	Currency string
}

// FundInput is the payload for AddFund and UseFund.
type FundInput struct {
	AccountID  uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Category   *enums.Category
	TargetType *enums.TargetType
	TargetID   *string
	Note       *string
}

// Balance is one set of balance columns, either the account's base totals or
// a single currency row.
type Balance struct {
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	Used      decimal.Decimal `json:"used"`
	OnHold    decimal.Decimal `json:"on_hold"`
	Available decimal.Decimal `json:"available"`
}

// CategoryView is the reporting shape of one category bucket.
type CategoryView struct {
	Available          decimal.Decimal `json:"available"`
	Total              decimal.Decimal `json:"total"`
	Used               decimal.Decimal `json:"used"`
	OnHold             decimal.Decimal `json:"on_hold"`
	LatestDonationDate *time.Time      `json:"latest_donation_date,omitempty"`
	StandardBudget     decimal.Decimal `json:"standard_budget"`
}

// ServiceParams wires the ledger service.
type ServiceParams struct {
	Repo              Repository
	Engine            *Engine
	Currencies        currencyLookup
	TxRunner          txRunner
	Recorder          *Recorder
	BaseCurrency      string
	BudgetPercentages map[string]decimal.Decimal
}

type service struct {
	repo       Repository
	engine     *Engine
	currencies currencyLookup
	tx         txRunner
	recorder   *Recorder
	base       string
	budget     map[enums.Category]decimal.Decimal
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("ledger engine required")
	}
	if params.Currencies == nil {
		return nil, fmt.Errorf("currency lookup required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	base := strings.ToUpper(strings.TrimSpace(params.BaseCurrency))
	if base == "" {
		return nil, fmt.Errorf("base currency required")
	}
	recorder := params.Recorder
	if recorder == nil {
		recorder = NewRecorder(nil, nil)
	}

	budget := make(map[enums.Category]decimal.Decimal, len(params.BudgetPercentages))
	for key, pct := range params.BudgetPercentages {
		category, err := enums.ParseCategory(strings.ToLower(key))
		if err != nil {
			return nil, fmt.Errorf("budget percentages: %w", err)
		}
		budget[category] = pct
	}

	return &service{
		repo:       params.Repo,
		engine:     params.Engine,
		currencies: params.Currencies,
		tx:         params.TxRunner,
		recorder:   recorder,
		base:       base,
		budget:     budget,
	}, nil
}

func (s *service) CreateAccount(ctx context.Context, input CreateAccountInput) (*models.LedgerAccount, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid account kind %q", input.Kind))
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account name is required")
	}
	if input.Kind == enums.AccountKindSubFund && input.ParentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub-funds require a parent financial fund")
	}
	if input.Kind != enums.AccountKindSubFund && input.ParentID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only sub-funds may have a parent")
	}
	code := input.Currency
	if strings.TrimSpace(code) == "" {
		code = s.base
	}

	var acct *models.LedgerAccount
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cur, err := s.currencies.Lookup(ctx, tx, code)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		if input.ParentID != nil {
			parent, err := repo.FindAccount(ctx, *input.ParentID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load parent account")
			}
			if parent == nil {
				return pkgerrors.New(pkgerrors.CodeUnknownAccount, "parent account not found")
			}
			if parent.Kind != enums.AccountKindFinancialFund {
				return pkgerrors.New(pkgerrors.CodeValidation, "a sub-fund parent must be a financial fund")
			}
		}
		acct = &models.LedgerAccount{
			Kind:          input.Kind,
			Name:          name,
			OwnerRef:      input.OwnerRef,
			ParentID:      input.ParentID,
			Currency:      cur.Code,
			TotalFund:     decimal.Zero,
			UsedFund:      decimal.Zero,
			OnHoldFund:    decimal.Zero,
			AvailableFund: decimal.Zero,
		}
		if err := repo.CreateAccount(ctx, acct); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *service) GetAccount(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error) {
	acct, err := s.repo.FindAccount(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load account")
	}
	if acct == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownAccount, "account not found")
	}
	return acct, nil
}

func (s *service) ListAccounts(ctx context.Context, filter AccountFilter) ([]models.LedgerAccount, error) {
	if filter.Kind != nil && !filter.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid account kind %q", *filter.Kind))
	}
	accounts, err := s.repo.ListAccounts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list accounts")
	}
	return accounts, nil
}

func (s *service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		acct, err := lockAccount(ctx, repo, id)
		if err != nil {
			return err
		}
		if !acct.TotalFund.IsZero() || !acct.UsedFund.IsZero() || !acct.OnHoldFund.IsZero() || !acct.AvailableFund.IsZero() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "account still carries a balance")
		}
		busy, err := repo.HasDependents(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check account dependents")
		}
		if busy {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "account has transactions or dependent records")
		}
		if err := repo.DeleteAccount(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete account")
		}
		return nil
	})
}

func (s *service) AddFund(ctx context.Context, input FundInput) (*models.FundTransaction, error) {
	return s.post(ctx, "add_fund", enums.TransactionSubtypeDeposit, input)
}

func (s *service) UseFund(ctx context.Context, input FundInput) (*models.FundTransaction, error) {
	return s.post(ctx, "use_fund", enums.TransactionSubtypeSpend, input)
}

func (s *service) post(ctx context.Context, operation string, subtype enums.TransactionSubtype, input FundInput) (*models.FundTransaction, error) {
	var txn *models.FundTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.engine.Post(ctx, tx, Entry{
			AccountID:  input.AccountID,
			Subtype:    subtype,
			Amount:     input.Amount,
			Currency:   input.Currency,
			Category:   input.Category,
			TargetType: input.TargetType,
			TargetID:   input.TargetID,
			Note:       input.Note,
		})
		return err
	})
	s.recorder.Record(ctx, operation, err, txn)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// GetBalance returns the base totals when currency is empty, otherwise the
// row for that currency. A currency the account never touched reads as zeros.
func (s *service) GetBalance(ctx context.Context, accountID uuid.UUID, currency string) (*Balance, error) {
	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(currency) == "" {
		return &Balance{
			Currency:  s.base,
			Total:     acct.TotalFund,
			Used:      acct.UsedFund,
			OnHold:    acct.OnHoldFund,
			Available: acct.AvailableFund,
		}, nil
	}

	cur, err := s.currencies.Lookup(ctx, nil, currency)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindCurrencyBalance(ctx, acct.ID, cur.Code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load currency balance")
	}
	if row == nil {
		return &Balance{Currency: cur.Code, Total: decimal.Zero, Used: decimal.Zero, OnHold: decimal.Zero, Available: decimal.Zero}, nil
	}
	return currencyBalance(*row), nil
}

func (s *service) ListCurrencyBalances(ctx context.Context, accountID uuid.UUID) ([]Balance, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListCurrencyBalances(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list currency balances")
	}
	out := make([]Balance, 0, len(rows))
	for _, row := range rows {
		out = append(out, *currencyBalance(row))
	}
	return out, nil
}

// GetCategoryBalances reports every category, including ones with no bucket
// yet. StandardBudget is a planning reference only and is never enforced.
func (s *service) GetCategoryBalances(ctx context.Context, accountID uuid.UUID) (map[enums.Category]CategoryView, error) {
	acct, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListCategoryBalances(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list category balances")
	}
	byCategory := make(map[enums.Category]models.CategoryBalance, len(rows))
	for _, row := range rows {
		byCategory[row.Category] = row
	}

	out := make(map[enums.Category]CategoryView, len(enums.Categories()))
	for _, category := range enums.Categories() {
		view := CategoryView{
			Available:      decimal.Zero,
			Total:          decimal.Zero,
			Used:           decimal.Zero,
			OnHold:         decimal.Zero,
			StandardBudget: money.Round(acct.TotalFund.Mul(s.budget[category]).Div(decimal.NewFromInt(100))),
		}
		if row, ok := byCategory[category]; ok {
			view.Available = row.Amount
			view.Total = row.Total
			view.Used = row.Used
			view.OnHold = row.OnHold
		}
		latest, err := s.repo.LatestDonationAt(ctx, accountID, category)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load latest donation")
		}
		view.LatestDonationDate = latest
		out[category] = view
	}
	return out, nil
}

func (s *service) ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) (pagination.Page[models.FundTransaction], error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return pagination.Page[models.FundTransaction]{}, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.FundTransaction]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListTransactions(ctx, accountID, cursor, params.Limit)
	if err != nil {
		return pagination.Page[models.FundTransaction]{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list transactions")
	}
	return pagination.Trim(rows, params.Limit, func(t models.FundTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	}), nil
}

func currencyBalance(row models.CurrencyBalance) *Balance {
	return &Balance{
		Currency:  row.Currency,
		Total:     row.TotalFund,
		Used:      row.UsedFund,
		OnHold:    row.OnHoldFund,
		Available: row.AvailableFund,
	}
}
