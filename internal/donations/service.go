package donations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
)

// Service records donor gifts. A donation credits the receiving account and
// the fund it is reported against, with one donation entry on each.
type Service interface {
	RecordDonation(ctx context.Context, input RecordInput) (*Receipt, error)
	ListDonations(ctx context.Context, accountID uuid.UUID) ([]models.Donation, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type engine interface {
	LockAccounts(ctx context.Context, tx *gorm.DB, ids ...uuid.UUID) (map[uuid.UUID]*models.LedgerAccount, error)
	Post(ctx context.Context, tx *gorm.DB, entry ledger.Entry) (*models.FundTransaction, error)
}

type RecordInput struct {
	Donor      string
	AccountID  uuid.UUID
	FundID     uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Category   *enums.Category
	TargetType *enums.TargetType
	TargetID   *string
	RecordedBy uuid.UUID
}

// Receipt carries the donation row and its account and fund entries.
type Receipt struct {
	Donation     *models.Donation
	AccountEntry *models.FundTransaction
	FundEntry    *models.FundTransaction
}

type service struct {
	repo     Repository
	engine   engine
	tx       txRunner
	recorder *ledger.Recorder
	base     string
	now      func() time.Time
}

func NewService(repo Repository, engine engine, tx txRunner, recorder *ledger.Recorder, baseCurrency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("donation repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("ledger engine required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if recorder == nil {
		recorder = ledger.NewRecorder(nil, nil)
	}
	return &service{
		repo:     repo,
		engine:   engine,
		tx:       tx,
		recorder: recorder,
		base:     baseCurrency,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) RecordDonation(ctx context.Context, input RecordInput) (*Receipt, error) {
	donor := strings.TrimSpace(input.Donor)
	if donor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "donor is required")
	}
	if input.AccountID == input.FundID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account and fund must differ")
	}
	if input.RecordedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recorder is required")
	}
	code := strings.ToUpper(strings.TrimSpace(input.Currency))
	if code == "" {
		code = strings.ToUpper(s.base)
	}

	receipt := &Receipt{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.engine.LockAccounts(ctx, tx, input.AccountID, input.FundID); err != nil {
			return err
		}
		entry := ledger.Entry{
			Subtype:    enums.TransactionSubtypeDonation,
			Amount:     input.Amount,
			Currency:   code,
			Category:   input.Category,
			TargetType: input.TargetType,
			TargetID:   input.TargetID,
		}
		var err error
		entry.AccountID = input.AccountID
		if receipt.AccountEntry, err = s.engine.Post(ctx, tx, entry); err != nil {
			return err
		}
		entry.AccountID = input.FundID
		if receipt.FundEntry, err = s.engine.Post(ctx, tx, entry); err != nil {
			return err
		}

		receipt.Donation = &models.Donation{
			Donor:      donor,
			AccountID:  input.AccountID,
			FundID:     input.FundID,
			Amount:     input.Amount,
			Currency:   receipt.AccountEntry.Currency,
			Category:   input.Category,
			TargetType: input.TargetType,
			TargetID:   input.TargetID,
			RecordedBy: input.RecordedBy,
			CreatedAt:  s.now(),
		}
		if err := s.repo.WithTx(tx).Create(ctx, receipt.Donation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create donation")
		}
		return nil
	})
	s.recorder.Record(ctx, "record_donation", err, receipt.AccountEntry, receipt.FundEntry)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *service) ListDonations(ctx context.Context, accountID uuid.UUID) ([]models.Donation, error) {
	out, err := s.repo.List(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list donations")
	}
	return out, nil
}
