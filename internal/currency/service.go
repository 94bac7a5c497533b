package currency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/money"
)

const maxCodeLength = 10

// Service is the currency registry: rates against the base currency and
// conversions in both directions.
type Service interface {
	GetRate(ctx context.Context, code string) (decimal.Decimal, error)
	ConvertToBase(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, error)
	ConvertFromBase(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, error)
	Upsert(ctx context.Context, input UpsertInput) (*models.Currency, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]models.Currency, error)
	Base(ctx context.Context) (*models.Currency, error)
	EnsureBase(ctx context.Context, baseCode string, seeds []config.SeedCurrency) error
	// Lookup resolves a currency inside an open transaction.
	Lookup(ctx context.Context, tx *gorm.DB, code string) (*models.Currency, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UpsertInput creates or updates a currency.
type UpsertInput struct {
	Code string
	Name string
	Rate decimal.Decimal
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires a currency registry.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("currency repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg, now: func() time.Time { return time.Now().UTC() }}, nil
}

// NormalizeCode trims and uppercases a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Lookup(ctx context.Context, tx *gorm.DB, code string) (*models.Currency, error) {
	return lookup(ctx, s.repo.WithTx(tx), code)
}

func lookup(ctx context.Context, repo Repository, code string) (*models.Currency, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownCurrency, "currency code is required")
	}
	c, err := repo.Find(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load currency")
	}
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownCurrency, fmt.Sprintf("currency %s is not registered", code))
	}
	if !c.Rate.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRate, fmt.Sprintf("currency %s has non-positive rate", code))
	}
	return c, nil
}

func (s *service) GetRate(ctx context.Context, code string) (decimal.Decimal, error) {
	c, err := lookup(ctx, s.repo, code)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Rate, nil
}

func (s *service) ConvertToBase(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, error) {
	rate, err := s.GetRate(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	return money.ToBase(amount, rate), nil
}

func (s *service) ConvertFromBase(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, error) {
	rate, err := s.GetRate(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	return money.FromBase(amount, rate), nil
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (*models.Currency, error) {
	code := NormalizeCode(input.Code)
	if code == "" || len(code) > maxCodeLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency code must be 1-10 characters")
	}
	if !input.Rate.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRate, "rate must be greater than zero")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = code
	}

	var saved *models.Currency
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.Find(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load currency")
		}
		if existing != nil && existing.IsBase && !input.Rate.Equal(decimal.NewFromInt(1)) {
			return pkgerrors.New(pkgerrors.CodeInvalidRate, "base currency rate is fixed at 1")
		}

		row := &models.Currency{
			Code:        code,
			Name:        name,
			Rate:        input.Rate.Round(money.RateScale),
			LastUpdated: s.now(),
		}
		if existing != nil {
			row.IsBase = existing.IsBase
			row.CreatedAt = existing.CreatedAt
		}
		if err := repo.Upsert(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save currency")
		}
		saved = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"currency": code, "rate": saved.Rate.String()})
	s.logg.Info(logCtx, "currency upserted")
	return saved, nil
}

func (s *service) Delete(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.Find(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load currency")
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeUnknownCurrency, fmt.Sprintf("currency %s is not registered", code))
		}
		if existing.IsBase {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "the base currency cannot be deleted")
		}
		used, err := repo.IsReferenced(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check currency references")
		}
		if used {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("currency %s is referenced by balances", code))
		}
		if err := repo.Delete(ctx, code); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete currency")
		}
		return nil
	})
}

func (s *service) List(ctx context.Context) ([]models.Currency, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list currencies")
	}
	return out, nil
}

func (s *service) Base(ctx context.Context) (*models.Currency, error) {
	base, err := s.repo.FindBase(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load base currency")
	}
	if base == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownCurrency, "no base currency registered")
	}
	return base, nil
}

// EnsureBase registers baseCode with rate 1 when no base exists and adds any
// seed currency that is not registered yet. Existing rates are left alone.
func (s *service) EnsureBase(ctx context.Context, baseCode string, seeds []config.SeedCurrency) error {
	baseCode = NormalizeCode(baseCode)
	if baseCode == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "base currency code is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		base, err := repo.FindBase(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load base currency")
		}
		switch {
		case base == nil:
			existing, err := repo.Find(ctx, baseCode)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load currency")
			}
			if existing != nil && !existing.Rate.Equal(decimal.NewFromInt(1)) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("currency %s exists with rate %s and cannot become base", baseCode, existing.Rate))
			}
			row := &models.Currency{Code: baseCode, Name: baseCode, Rate: decimal.NewFromInt(1), IsBase: true, LastUpdated: s.now()}
			if existing != nil {
				row.Name = existing.Name
				if err := tx.WithContext(ctx).Model(&models.Currency{}).Where("code = ?", baseCode).Update("is_base", true).Error; err != nil {
					return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "mark base currency")
				}
			} else if err := repo.Upsert(ctx, row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create base currency")
			}
			s.logg.Info(s.logg.WithField(ctx, "currency", baseCode), "base currency registered")
		case base.Code != baseCode:
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("base currency is %s, configured %s", base.Code, baseCode))
		}

		for _, seed := range seeds {
			code := NormalizeCode(seed.Code)
			if code == baseCode {
				continue
			}
			existing, err := repo.Find(ctx, code)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load seed currency")
			}
			if existing != nil {
				continue
			}
			if !seed.Rate.IsPositive() {
				return pkgerrors.New(pkgerrors.CodeInvalidRate, fmt.Sprintf("seed currency %s has non-positive rate", code))
			}
			name := seed.Name
			if name == "" {
				name = code
			}
			if err := repo.Upsert(ctx, &models.Currency{Code: code, Name: name, Rate: seed.Rate, LastUpdated: s.now()}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "seed currency")
			}
		}
		return nil
	})
}
