package db

import (
	"context"
	"time"

	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

const defaultConflictBackoff = 10 * time.Millisecond

// RetryingRunner re-runs a whole transaction when it fails with a
// CONCURRENCY_CONFLICT. Any other error is returned on the first attempt.
type RetryingRunner struct {
	inner   TxRunner
	retries uint64
	backoff time.Duration
	OnRetry func(ctx context.Context, attempt int, err error)
}

func NewRetryingRunner(inner TxRunner, retries int, backoff time.Duration) *RetryingRunner {
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = defaultConflictBackoff
	}
	return &RetryingRunner{inner: inner, retries: uint64(retries), backoff: backoff}
}

func (r *RetryingRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	b := retry.WithMaxRetries(r.retries, retry.NewExponential(r.backoff))

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := r.inner.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict) {
			if r.OnRetry != nil {
				r.OnRetry(ctx, attempt, err)
			}
			return retry.RetryableError(err)
		}
		return err
	})
}
