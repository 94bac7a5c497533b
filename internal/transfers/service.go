package transfers

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
	"github.com/reliefbridge/fundledger/pkg/money"
)

// Service runs the staged approval of transfers between two ledger accounts.
// Balances move exactly once, on the transition into Approved.
type Service interface {
	RequestTransfer(ctx context.Context, input RequestInput) (*models.TransferRequest, error)
	AdvanceStage(ctx context.Context, id uuid.UUID, stage enums.TransferStage, actor auth.Actor) (*models.TransferRequest, error)
	GetTransfer(ctx context.Context, id uuid.UUID) (*models.TransferRequest, error)
	ListTransfers(ctx context.Context, filter Filter) ([]models.TransferRequest, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type engine interface {
	LockAccounts(ctx context.Context, tx *gorm.DB, ids ...uuid.UUID) (map[uuid.UUID]*models.LedgerAccount, error)
	Post(ctx context.Context, tx *gorm.DB, entry ledger.Entry) (*models.FundTransaction, error)
}

type currencyLookup interface {
	Lookup(ctx context.Context, tx *gorm.DB, code string) (*models.Currency, error)
}

type RequestInput struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Notes         *string
	RequestedBy   uuid.UUID
}

type ServiceParams struct {
	Repo         Repository
	Engine       engine
	Currencies   currencyLookup
	TxRunner     txRunner
	Recorder     *ledger.Recorder
	BaseCurrency string
}

type service struct {
	repo       Repository
	engine     engine
	currencies currencyLookup
	tx         txRunner
	recorder   *ledger.Recorder
	base       string
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transfer repository required")
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
	recorder := params.Recorder
	if recorder == nil {
		recorder = ledger.NewRecorder(nil, nil)
	}
	return &service{
		repo:       params.Repo,
		engine:     params.Engine,
		currencies: params.Currencies,
		tx:         params.TxRunner,
		recorder:   recorder,
		base:       params.BaseCurrency,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) RequestTransfer(ctx context.Context, input RequestInput) (*models.TransferRequest, error) {
	if input.FromAccountID == input.ToAccountID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination must differ")
	}
	if !input.Amount.IsPositive() || !input.Amount.Equal(money.Round(input.Amount)) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be positive with at most two decimal places")
	}
	if input.RequestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requester is required")
	}
	code := input.Currency
	if strings.TrimSpace(code) == "" {
		code = s.base
	}

	var req *models.TransferRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cur, err := s.currencies.Lookup(ctx, tx, code)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		for _, id := range []uuid.UUID{input.FromAccountID, input.ToAccountID} {
			ok, err := repo.AccountExists(ctx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "check account")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeUnknownAccount, "account not found").
					WithDetails(map[string]any{"account_id": id})
			}
		}
		now := s.now()
		req = &models.TransferRequest{
			FromAccountID: input.FromAccountID,
			ToAccountID:   input.ToAccountID,
			Amount:        input.Amount,
			Currency:      cur.Code,
			Notes:         input.Notes,
			RequestedBy:   input.RequestedBy,
			Stage:         enums.TransferStagePendingAssessment,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repo.Create(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create transfer request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// AdvanceStage moves a request to stage. Entering Approved requires an
// administrator and posts transfer_out and transfer_in in one transaction.
// Approving twice is a no-op; leaving Approved is refused.
func (s *service) AdvanceStage(ctx context.Context, id uuid.UUID, stage enums.TransferStage, actor auth.Actor) (*models.TransferRequest, error) {
	if !stage.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transfer stage %q", stage))
	}
	if stage == enums.TransferStageApproved && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators can approve transfers")
	}

	var (
		req  *models.TransferRequest
		txns []*models.FundTransaction
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		req, err = repo.Lock(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "lock transfer request")
		}
		if req == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transfer request not found")
		}
		if req.Stage.IsTerminal() {
			if stage == req.Stage {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "an approved transfer cannot change stage")
		}

		now := s.now()
		if stage == enums.TransferStageApproved {
			if txns, err = s.apply(ctx, tx, req); err != nil {
				return err
			}
			approver := actor.UserID
			req.ApprovedBy = &approver
			req.ApprovedAt = &now
		}
		req.Stage = stage
		req.UpdatedAt = now
		if err := repo.UpdateStage(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update transfer stage")
		}
		return nil
	})
	if stage == enums.TransferStageApproved && (err != nil || len(txns) > 0) {
		s.recorder.Record(ctx, "approve_transfer", err, txns...)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, req *models.TransferRequest) ([]*models.FundTransaction, error) {
	if _, err := s.engine.LockAccounts(ctx, tx, req.FromAccountID, req.ToAccountID); err != nil {
		return nil, err
	}
	targetType := enums.TargetTypeTransfer
	targetID := req.ID.String()

	out, err := s.engine.Post(ctx, tx, ledger.Entry{
		AccountID:  req.FromAccountID,
		Subtype:    enums.TransactionSubtypeTransferOut,
		Amount:     req.Amount,
		Currency:   req.Currency,
		TargetType: &targetType,
		TargetID:   &targetID,
		Note:       req.Notes,
	})
	if err != nil {
		return nil, err
	}
	in, err := s.engine.Post(ctx, tx, ledger.Entry{
		AccountID:  req.ToAccountID,
		Subtype:    enums.TransactionSubtypeTransferIn,
		Amount:     req.Amount,
		Currency:   req.Currency,
		TargetType: &targetType,
		TargetID:   &targetID,
		Note:       req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return []*models.FundTransaction{out, in}, nil
}

func (s *service) GetTransfer(ctx context.Context, id uuid.UUID) (*models.TransferRequest, error) {
	req, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load transfer request")
	}
	if req == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer request not found")
	}
	return req, nil
}

func (s *service) ListTransfers(ctx context.Context, filter Filter) ([]models.TransferRequest, error) {
	if filter.Stage != nil && !filter.Stage.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transfer stage %q", *filter.Stage))
	}
	out, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list transfer requests")
	}
	return out, nil
}
