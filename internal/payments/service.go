package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/pkg/auth"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
)

// Service records money paid out of a fund.
type Service interface {
	RecordPayment(ctx context.Context, input RecordInput, actor auth.Actor) (*Receipt, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, fundID uuid.UUID) ([]models.Payment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type poster interface {
	Post(ctx context.Context, tx *gorm.DB, entry ledger.Entry) (*models.FundTransaction, error)
}

// RecordInput describes one payment. Without a target the payment is its
// own target.
type RecordInput struct {
	FundID     uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Payee      string
	Method     enums.PaymentMethod
	Notes      *string
	Category   *enums.Category
	TargetType *enums.TargetType
	TargetID   *string
	Sequence   *int
}

// Receipt pairs the payment row with the ledger entry it produced.
type Receipt struct {
	Payment     *models.Payment
	Transaction *models.FundTransaction
}

type service struct {
	repo     Repository
	engine   poster
	tx       txRunner
	recorder *ledger.Recorder
	base     string
	now      func() time.Time
}

func NewService(repo Repository, engine poster, tx txRunner, recorder *ledger.Recorder, baseCurrency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
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

func (s *service) RecordPayment(ctx context.Context, input RecordInput, actor auth.Actor) (*Receipt, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators can record payments")
	}
	payee := strings.TrimSpace(input.Payee)
	if payee == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payee is required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}
	if input.Sequence != nil && *input.Sequence < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sequence must be at least 1")
	}
	code := strings.ToUpper(strings.TrimSpace(input.Currency))
	if code == "" {
		code = strings.ToUpper(s.base)
	}

	payment := &models.Payment{
		ID:         uuid.New(),
		FundID:     input.FundID,
		Amount:     input.Amount,
		Currency:   code,
		Payee:      payee,
		Method:     input.Method,
		Notes:      input.Notes,
		Category:   input.Category,
		TargetType: input.TargetType,
		TargetID:   input.TargetID,
		Sequence:   input.Sequence,
		RecordedBy: actor.UserID,
	}
	if payment.TargetType == nil && payment.TargetID == nil {
		targetType := enums.TargetTypePayment
		targetID := payment.ID.String()
		payment.TargetType = &targetType
		payment.TargetID = &targetID
	}

	var txn *models.FundTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.engine.Post(ctx, tx, ledger.Entry{
			AccountID:       payment.FundID,
			Subtype:         enums.TransactionSubtypePayment,
			Amount:          payment.Amount,
			Currency:        payment.Currency,
			Category:        payment.Category,
			TargetType:      payment.TargetType,
			TargetID:        payment.TargetID,
			PaymentSequence: payment.Sequence,
			Note:            payment.Notes,
		})
		if err != nil {
			return err
		}
		payment.Currency = txn.Currency
		payment.CreatedAt = s.now()
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create payment")
		}
		return nil
	})
	s.recorder.Record(ctx, "record_payment", err, txn)
	if err != nil {
		return nil, err
	}
	return &Receipt{Payment: payment, Transaction: txn}, nil
}

func (s *service) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

func (s *service) ListPayments(ctx context.Context, fundID uuid.UUID) ([]models.Payment, error) {
	out, err := s.repo.ListByFund(ctx, fundID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list payments")
	}
	return out, nil
}
