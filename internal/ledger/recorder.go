package ledger

import (
	"context"

	"github.com/reliefbridge/fundledger/pkg/db/models"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/metrics"
)

// Recorder emits the log line and metric for a finished mutation. Call it
// after the surrounding transaction has committed or rolled back.
type Recorder struct {
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

func NewRecorder(logg *logger.Logger, m *metrics.LedgerMetrics) *Recorder {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Recorder{logg: logg, metrics: m}
}

func (r *Recorder) Record(ctx context.Context, operation string, err error, txns ...*models.FundTransaction) {
	if err != nil {
		code := string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			code = string(typed.Code())
		}
		r.metrics.ObserveMutation(operation, code)
		logCtx := r.logg.WithFields(ctx, map[string]any{"operation": operation, "code": code})
		if pkgerrors.MetadataFor(pkgerrors.Code(code)).HTTPStatus >= 500 {
			r.logg.Error(logCtx, "ledger.mutation_failed", err)
		} else {
			r.logg.Warn(logCtx, "ledger.mutation_rejected")
		}
		return
	}

	r.metrics.ObserveMutation(operation, "ok")
	for _, txn := range txns {
		if txn == nil {
			continue
		}
		fields := map[string]any{
			"operation":      operation,
			"account_id":     txn.AccountID.String(),
			"transaction_id": txn.ID.String(),
			"subtype":        txn.Subtype,
			"status":         txn.Status,
			"currency":       txn.Currency,
			"amount":         txn.Amount.String(),
			"base_amount":    txn.BaseAmount.String(),
		}
		if txn.Category != nil {
			fields["category"] = *txn.Category
		}
		if txn.TargetID != nil {
			fields["target_type"] = *txn.TargetType
			fields["target_id"] = *txn.TargetID
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "ledger.mutation")
	}
}
