package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/db"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/money"
)

const pendingHoldIndex = "ux_fund_transactions_pending_hold"

type currencyLookup interface {
	Lookup(ctx context.Context, tx *gorm.DB, code string) (*models.Currency, error)
}

// Entry is one balance movement against one account.
type Entry struct {
	AccountID       uuid.UUID
	Subtype         enums.TransactionSubtype
	Amount          decimal.Decimal
	Currency        string
	Category        *enums.Category
	TargetType      *enums.TargetType
	TargetID        *string
	PaymentSequence *int
	Note            *string
}

// Engine applies postings inside a caller-owned database transaction. Every
// workflow that moves money goes through Post or Settle, so locking, version
// checks, bucket upkeep and transaction logging live in one place.
type Engine struct {
	repo       Repository
	currencies currencyLookup
	now        func() time.Time
}

func NewEngine(repo Repository, currencies currencyLookup) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if currencies == nil {
		return nil, fmt.Errorf("currency lookup required")
	}
	return &Engine{repo: repo, currencies: currencies, now: func() time.Time { return time.Now().UTC() }}, nil
}

// LockAccounts takes row locks on every id in ascending id order so two
// transactions touching the same pair can never deadlock.
func (e *Engine) LockAccounts(ctx context.Context, tx *gorm.DB, ids ...uuid.UUID) (map[uuid.UUID]*models.LedgerAccount, error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	repo := e.repo.WithTx(tx)
	out := make(map[uuid.UUID]*models.LedgerAccount, len(ordered))
	for _, id := range ordered {
		if _, seen := out[id]; seen {
			continue
		}
		acct, err := lockAccount(ctx, repo, id)
		if err != nil {
			return nil, err
		}
		out[id] = acct
	}
	return out, nil
}

// Post validates and applies one entry, appending its transaction. Holds are
// logged as pending; everything else is completed immediately.
func (e *Engine) Post(ctx context.Context, tx *gorm.DB, entry Entry) (*models.FundTransaction, error) {
	s, ok := postShifts[entry.Subtype]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported transaction subtype %q", entry.Subtype))
	}
	if !entry.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if !entry.Amount.Equal(money.Round(entry.Amount)) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must have at most two decimal places")
	}
	if entry.Category != nil && !entry.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownCategory, fmt.Sprintf("unknown category %q", *entry.Category))
	}
	if entry.TargetType != nil && !entry.TargetType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid target type %q", *entry.TargetType))
	}
	if (entry.TargetType == nil) != (entry.TargetID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target type and target id go together")
	}

	repo := e.repo.WithTx(tx)
	acct, err := lockAccount(ctx, repo, entry.AccountID)
	if err != nil {
		return nil, err
	}
	hold := entry.Subtype == enums.TransactionSubtypeHold
	if hold && acct.Kind != enums.AccountKindUserBudget {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "holds can only be placed on user budgets")
	}
	if hold && strings.TrimSpace(entry.Currency) == "" {
		entry.Currency = acct.Currency
	}

	cur, err := e.currencies.Lookup(ctx, tx, entry.Currency)
	if err != nil {
		return nil, err
	}
	native := entry.Amount
	base := money.ToBase(native, cur.Rate)
	if !base.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount is too small to convert to the base currency")
	}

	now := e.now()
	row, err := currencyRow(ctx, repo, acct.ID, cur.Code)
	if err != nil {
		return nil, err
	}
	var bucket *models.CategoryBalance
	if hold {
		if acct.AvailableFund.LessThan(base) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds").
				WithDetails(map[string]any{"available": acct.AvailableFund, "requested": base})
		}
		if cur, row, native, err = e.holdSource(ctx, tx, repo, acct, cur, row, native, base); err != nil {
			return nil, err
		}
		if bucket, err = holdBucket(ctx, repo, acct, entry.Category, base); err != nil {
			return nil, err
		}
	} else {
		if entry.Category != nil {
			if bucket, err = categoryRow(ctx, repo, acct.ID, *entry.Category); err != nil {
				return nil, err
			}
		}
		if k := s.debit(); k > 0 {
			if err := checkFunds(ctx, repo, acct, row, bucket, scaled(native, k), scaled(base, k)); err != nil {
				return nil, err
			}
		}
	}

	applyToCurrency(row, s.delta(native), now)
	var bucketCategory *enums.Category
	if bucket != nil {
		applyToCategory(bucket, s.delta(base), now)
		bucketCategory = &bucket.Category
	}
	if err := persist(ctx, repo, acct, row, bucket, s.delta(base), now); err != nil {
		return nil, err
	}

	status := enums.TransactionStatusCompleted
	if entry.Subtype == enums.TransactionSubtypeHold {
		status = enums.TransactionStatusPending
	}
	txn := &models.FundTransaction{
		AccountID:       acct.ID,
		Currency:        cur.Code,
		Amount:          native,
		BaseAmount:      base,
		Type:            entry.Subtype.Type(),
		Subtype:         entry.Subtype,
		Status:          status,
		Category:        entry.Category,
		Bucket:          bucketCategory,
		TargetType:      entry.TargetType,
		TargetID:        entry.TargetID,
		PaymentSequence: entry.PaymentSequence,
		Note:            entry.Note,
		CreatedAt:       now,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		if db.IsUniqueViolation(err, pendingHoldIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending hold already exists for this target")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "append fund transaction")
	}
	return txn, nil
}

// Settle moves the pending hold for a target to completed or reversed and
// releases its on-hold amount accordingly. It returns nil when the target has
// no pending hold.
func (e *Engine) Settle(ctx context.Context, tx *gorm.DB, targetType enums.TargetType, targetID string, outcome enums.TransactionStatus) (*models.FundTransaction, error) {
	s, ok := settleShifts[outcome]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("a hold cannot settle as %q", outcome))
	}

	repo := e.repo.WithTx(tx)
	hold, err := repo.FindPendingHold(ctx, targetType, targetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "find pending hold")
	}
	if hold == nil {
		return nil, nil
	}

	acct, err := lockAccount(ctx, repo, hold.AccountID)
	if err != nil {
		return nil, err
	}
	if acct.OnHoldFund.LessThan(hold.BaseAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "account holds less than the pending hold amount").
			WithDetails(map[string]any{"account_id": acct.ID, "hold_id": hold.ID})
	}

	now := e.now()
	row, err := currencyRow(ctx, repo, acct.ID, hold.Currency)
	if err != nil {
		return nil, err
	}
	var bucket *models.CategoryBalance
	if hold.Bucket != nil {
		if bucket, err = categoryRow(ctx, repo, acct.ID, *hold.Bucket); err != nil {
			return nil, err
		}
	}

	applyToCurrency(row, s.delta(hold.Amount), now)
	if bucket != nil {
		applyToCategory(bucket, s.delta(hold.BaseAmount), now)
	}
	if err := persist(ctx, repo, acct, row, bucket, s.delta(hold.BaseAmount), now); err != nil {
		return nil, err
	}

	n, err := repo.SettleTransaction(ctx, hold.ID, outcome, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "settle hold")
	}
	if n == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "hold was settled concurrently")
	}
	hold.Status = outcome
	hold.SettledAt = &now
	return hold, nil
}

func lockAccount(ctx context.Context, repo Repository, id uuid.UUID) (*models.LedgerAccount, error) {
	acct, err := repo.LockAccount(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock account")
	}
	if acct == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownAccount, "account not found").
			WithDetails(map[string]any{"account_id": id})
	}
	return acct, nil
}

func currencyRow(ctx context.Context, repo Repository, accountID uuid.UUID, code string) (*models.CurrencyBalance, error) {
	row, err := repo.FindCurrencyBalance(ctx, accountID, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load currency balance")
	}
	if row == nil {
		row = &models.CurrencyBalance{
			AccountID:     accountID,
			Currency:      code,
			TotalFund:     decimal.Zero,
			UsedFund:      decimal.Zero,
			OnHoldFund:    decimal.Zero,
			AvailableFund: decimal.Zero,
		}
	}
	return row, nil
}

func categoryRow(ctx context.Context, repo Repository, accountID uuid.UUID, category enums.Category) (*models.CategoryBalance, error) {
	row, err := repo.FindCategoryBalance(ctx, accountID, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load category balance")
	}
	if row == nil {
		row = &models.CategoryBalance{
			AccountID: accountID,
			Category:  category,
			Total:     decimal.Zero,
			Used:      decimal.Zero,
			OnHold:    decimal.Zero,
			Amount:    decimal.Zero,
		}
	}
	return row, nil
}

// holdSource picks the currency row a hold draws from. The requested
// currency is used when its row covers the hold; otherwise the hold moves to
// the budget's own currency or the first other row that covers the same base
// value, converted at the current rate.
func (e *Engine) holdSource(ctx context.Context, tx *gorm.DB, repo Repository, acct *models.LedgerAccount, cur *models.Currency, row *models.CurrencyBalance, native, base decimal.Decimal) (*models.Currency, *models.CurrencyBalance, decimal.Decimal, error) {
	if !row.AvailableFund.LessThan(native) {
		return cur, row, native, nil
	}
	rows, err := repo.ListCurrencyBalances(ctx, acct.ID)
	if err != nil {
		return nil, nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load currency balances")
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Currency == acct.Currency && rows[j].Currency != acct.Currency
	})
	for i := range rows {
		candidate := &rows[i]
		if candidate.Currency == cur.Code || !candidate.AvailableFund.IsPositive() {
			continue
		}
		alt, err := e.currencies.Lookup(ctx, tx, candidate.Currency)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		converted := money.FromBase(base, alt.Rate)
		if converted.IsPositive() && !candidate.AvailableFund.LessThan(converted) {
			return alt, candidate, converted, nil
		}
	}
	return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "no single currency balance covers the hold").
		WithDetails(map[string]any{"currency": cur.Code, "requested": native})
}

// holdBucket picks the category bucket a hold draws from: the tagged bucket
// when it covers the hold, nil when the funds outside every bucket do, and
// otherwise the largest bucket that covers it, so the buckets never add up to
// more than the account's available funds.
func holdBucket(ctx context.Context, repo Repository, acct *models.LedgerAccount, category *enums.Category, base decimal.Decimal) (*models.CategoryBalance, error) {
	buckets, err := repo.ListCategoryBalances(ctx, acct.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load category balances")
	}
	earmarked := decimal.Zero
	for i := range buckets {
		b := &buckets[i]
		if category != nil && b.Category == *category && !b.Amount.LessThan(base) {
			return b, nil
		}
		earmarked = earmarked.Add(b.Amount)
	}
	if !acct.AvailableFund.Sub(earmarked).LessThan(base) {
		return nil, nil
	}

	var largest *models.CategoryBalance
	for i := range buckets {
		if largest == nil || buckets[i].Amount.GreaterThan(largest.Amount) {
			largest = &buckets[i]
		}
	}
	if largest != nil && !largest.Amount.LessThan(base) {
		return largest, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "available funds are split across category buckets; no single bucket covers the hold").
		WithDetails(map[string]any{"available": acct.AvailableFund, "requested": base})
}

// checkFunds runs the debit checks in order: currency row, account, then the
// category bucket or, for uncategorised debits, the funds not earmarked by
// any bucket.
func checkFunds(ctx context.Context, repo Repository, acct *models.LedgerAccount, row *models.CurrencyBalance, bucket *models.CategoryBalance, native, base decimal.Decimal) error {
	if row.AvailableFund.LessThan(native) {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds in currency").
			WithDetails(map[string]any{"currency": row.Currency, "available": row.AvailableFund, "requested": native})
	}
	if acct.AvailableFund.LessThan(base) {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient funds").
			WithDetails(map[string]any{"available": acct.AvailableFund, "requested": base})
	}
	if bucket != nil {
		if bucket.Amount.LessThan(base) {
			return pkgerrors.New(pkgerrors.CodeInsufficientCategoryFunds, "insufficient funds in category").
				WithDetails(map[string]any{"category": bucket.Category, "available": bucket.Amount, "requested": base})
		}
		return nil
	}

	buckets, err := repo.ListCategoryBalances(ctx, acct.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load category balances")
	}
	earmarked := decimal.Zero
	for _, b := range buckets {
		earmarked = earmarked.Add(b.Amount)
	}
	if free := acct.AvailableFund.Sub(earmarked); free.LessThan(base) {
		return pkgerrors.New(pkgerrors.CodeInsufficientCategoryFunds, "funds are earmarked for categories; name a category to spend them").
			WithDetails(map[string]any{"uncategorised": free, "requested": base})
	}
	return nil
}

func applyToAccount(acct *models.LedgerAccount, d Delta) {
	acct.TotalFund = acct.TotalFund.Add(d.Total)
	acct.UsedFund = acct.UsedFund.Add(d.Used)
	acct.OnHoldFund = acct.OnHoldFund.Add(d.OnHold)
	acct.AvailableFund = acct.AvailableFund.Add(d.Available)
}

func applyToCurrency(row *models.CurrencyBalance, d Delta, now time.Time) {
	row.TotalFund = row.TotalFund.Add(d.Total)
	row.UsedFund = row.UsedFund.Add(d.Used)
	row.OnHoldFund = row.OnHoldFund.Add(d.OnHold)
	row.AvailableFund = row.AvailableFund.Add(d.Available)
	row.UpdatedAt = now
}

func applyToCategory(row *models.CategoryBalance, d Delta, now time.Time) {
	row.Total = row.Total.Add(d.Total)
	row.Used = row.Used.Add(d.Used)
	row.OnHold = row.OnHold.Add(d.OnHold)
	row.Amount = row.Amount.Add(d.Available)
	row.UpdatedAt = now
}

// persist writes the breakdown rows and then the account under its version
// guard.
func persist(ctx context.Context, repo Repository, acct *models.LedgerAccount, row *models.CurrencyBalance, bucket *models.CategoryBalance, d Delta, now time.Time) error {
	if err := repo.SaveCurrencyBalance(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save currency balance")
	}
	if bucket != nil {
		if err := repo.SaveCategoryBalance(ctx, bucket); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save category balance")
		}
	}

	version := acct.Version
	applyToAccount(acct, d)
	ok, err := repo.UpdateAccountBalances(ctx, acct, version, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update account balances")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "account changed concurrently").
			WithDetails(map[string]any{"account_id": acct.ID, "version": version})
	}
	acct.Version = version + 1
	acct.UpdatedAt = now
	return nil
}
