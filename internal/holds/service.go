package holds

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

// Service reserves user budget funds for a case or project and settles the
// reservation when the case or project is decided.
type Service interface {
	Hold(ctx context.Context, input HoldInput) (*models.FundTransaction, error)
	// Commit and Reverse return nil when the target has no pending hold.
	Commit(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error)
	Reverse(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error)
	// Settle runs Commit or Reverse inside a caller-owned transaction.
	Settle(ctx context.Context, tx *gorm.DB, scope enums.AllocationScope, targetID string, outcome enums.TransactionStatus) (*models.FundTransaction, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type poster interface {
	Post(ctx context.Context, tx *gorm.DB, entry ledger.Entry) (*models.FundTransaction, error)
	Settle(ctx context.Context, tx *gorm.DB, targetType enums.TargetType, targetID string, outcome enums.TransactionStatus) (*models.FundTransaction, error)
}

// HoldInput reserves Amount on a user budget for one case or project. An
// empty Currency means the budget's own currency.
type HoldInput struct {
	BudgetID uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Scope    enums.AllocationScope
	TargetID string
	Category *enums.Category
}

type service struct {
	engine   poster
	tx       txRunner
	recorder *ledger.Recorder
	logg     *logger.Logger
}

func NewService(engine poster, tx txRunner, recorder *ledger.Recorder, logg *logger.Logger) (Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("ledger engine required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if recorder == nil {
		recorder = ledger.NewRecorder(logg, nil)
	}
	return &service{engine: engine, tx: tx, recorder: recorder, logg: logg}, nil
}

func (s *service) Hold(ctx context.Context, input HoldInput) (*models.FundTransaction, error) {
	targetID, err := validateTarget(input.Scope, input.TargetID)
	if err != nil {
		return nil, err
	}
	targetType := enums.TargetType(input.Scope)

	var txn *models.FundTransaction
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.engine.Post(ctx, tx, ledger.Entry{
			AccountID:  input.BudgetID,
			Subtype:    enums.TransactionSubtypeHold,
			Amount:     input.Amount,
			Currency:   strings.TrimSpace(input.Currency),
			Category:   input.Category,
			TargetType: &targetType,
			TargetID:   &targetID,
		})
		return err
	})
	s.recorder.Record(ctx, "hold", err, txn)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Commit(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error) {
	return s.settleInTx(ctx, "commit_hold", scope, targetID, enums.TransactionStatusCompleted)
}

func (s *service) Reverse(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error) {
	return s.settleInTx(ctx, "reverse_hold", scope, targetID, enums.TransactionStatusReversed)
}

func (s *service) settleInTx(ctx context.Context, operation string, scope enums.AllocationScope, targetID string, outcome enums.TransactionStatus) (*models.FundTransaction, error) {
	var txn *models.FundTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.Settle(ctx, tx, scope, targetID, outcome)
		return err
	})
	if err == nil && txn == nil {
		return nil, nil
	}
	s.recorder.Record(ctx, operation, err, txn)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Settle(ctx context.Context, tx *gorm.DB, scope enums.AllocationScope, targetID string, outcome enums.TransactionStatus) (*models.FundTransaction, error) {
	targetID, err := validateTarget(scope, targetID)
	if err != nil {
		return nil, err
	}
	txn, err := s.engine.Settle(ctx, tx, enums.TargetType(scope), targetID, outcome)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"scope":     scope,
			"target_id": targetID,
			"outcome":   outcome,
		})
		s.logg.Warn(logCtx, "holds.no_pending_hold")
	}
	return txn, nil
}

func validateTarget(scope enums.AllocationScope, targetID string) (string, error) {
	if !scope.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid scope %q", scope))
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "target id is required")
	}
	return targetID, nil
}
