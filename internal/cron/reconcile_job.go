package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/reporting"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/metrics"
)

var reconcileRules = []reporting.Rule{
	reporting.RuleBalanceIdentity,
	reporting.RuleCurrencyReconciliation,
	reporting.RuleCategorySum,
	reporting.RuleAccountReplay,
	reporting.RuleCurrencyReplay,
	reporting.RuleCategoryReplay,
}

type accountLister interface {
	ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]models.LedgerAccount, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, accountID uuid.UUID) (*reporting.Report, error)
}

type ReconcileJobParams struct {
	Logger     *logger.Logger
	Accounts   accountLister
	Reconciler reconciler
	Metrics    *metrics.LedgerMetrics
}

// NewReconcileJob checks every account against its breakdowns and its log.
// Violations are logged and exported as gauges; only read failures fail the job.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account lister required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &reconcileJob{
		logg:       params.Logger,
		accounts:   params.Accounts,
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
	}, nil
}

type reconcileJob struct {
	logg       *logger.Logger
	accounts   accountLister
	reconciler reconciler
	metrics    *metrics.LedgerMetrics
}

func (j *reconcileJob) Name() string { return "ledger-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	accounts, err := j.accounts.ListAccounts(ctx, ledger.AccountFilter{})
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	counts := make(map[string]int, len(reconcileRules))
	for _, rule := range reconcileRules {
		counts[string(rule)] = 0
	}
	var (
		errs    error
		flagged int
	)
	for _, acct := range accounts {
		report, err := j.reconciler.Reconcile(ctx, acct.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", acct.ID, err))
			continue
		}
		if report.OK() {
			continue
		}
		flagged++
		for _, v := range report.Violations {
			counts[string(v.Rule)]++
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"account_id": acct.ID.String(),
				"rule":       v.Rule,
				"field":      v.Field,
				"currency":   v.Currency,
				"category":   v.Category,
				"expected":   v.Expected.String(),
				"actual":     v.Actual.String(),
			})
			j.logg.Warn(logCtx, "ledger.reconcile_violation")
		}
	}
	j.metrics.SetViolations(counts)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"accounts_checked": len(accounts),
		"accounts_flagged": flagged,
	})
	j.logg.Info(logCtx, "ledger.reconcile_complete")
	return errs
}
