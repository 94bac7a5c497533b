// Package app wires the fund services shared by the API and the cron worker.
package app

import (
	"context"
	"fmt"

	"github.com/reliefbridge/fundledger/internal/allocations"
	"github.com/reliefbridge/fundledger/internal/currency"
	"github.com/reliefbridge/fundledger/internal/donations"
	"github.com/reliefbridge/fundledger/internal/holds"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/payments"
	"github.com/reliefbridge/fundledger/internal/reporting"
	"github.com/reliefbridge/fundledger/internal/requirements"
	"github.com/reliefbridge/fundledger/internal/transfers"
	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/db"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/metrics"
)

// Services is the full set of fund services over one database.
type Services struct {
	Currencies   currency.Service
	Engine       *ledger.Engine
	Ledger       ledger.Service
	Holds        holds.Service
	Allocations  allocations.Service
	Transfers    transfers.Service
	Payments     payments.Service
	Donations    donations.Service
	Reporting    reporting.Service
	Requirements *requirements.Processor
}

// Build loads the planning policy, seeds the currency registry and wires every
// service behind a runner that retries version conflicts.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client, m *metrics.LedgerMetrics) (*Services, error) {
	if cfg == nil || logg == nil || client == nil {
		return nil, fmt.Errorf("config, logger and db client required")
	}

	policy, err := config.LoadPolicy(cfg.Ledger.PolicyFile)
	if err != nil {
		return nil, err
	}

	runner := db.NewRetryingRunner(client, cfg.Ledger.ConflictRetries, cfg.Ledger.ConflictBackoff)
	runner.OnRetry = func(ctx context.Context, attempt int, err error) {
		m.IncRetry()
		logg.Warn(logg.WithField(ctx, "attempt", attempt), "ledger.conflict_retry")
	}

	conn := client.DB()
	base := cfg.Ledger.BaseCurrency
	recorder := ledger.NewRecorder(logg, m)

	currencies, err := currency.NewService(currency.NewRepository(conn), runner, logg)
	if err != nil {
		return nil, fmt.Errorf("currency service: %w", err)
	}
	if err := currencies.EnsureBase(ctx, base, policy.Currencies); err != nil {
		return nil, fmt.Errorf("seeding currencies: %w", err)
	}

	ledgerRepo := ledger.NewRepository(conn)
	engine, err := ledger.NewEngine(ledgerRepo, currencies)
	if err != nil {
		return nil, fmt.Errorf("ledger engine: %w", err)
	}
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:              ledgerRepo,
		Engine:            engine,
		Currencies:        currencies,
		TxRunner:          runner,
		Recorder:          recorder,
		BaseCurrency:      base,
		BudgetPercentages: policy.BudgetPercentages,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	holdSvc, err := holds.NewService(engine, runner, recorder, logg)
	if err != nil {
		return nil, fmt.Errorf("holds service: %w", err)
	}
	allocationSvc, err := allocations.NewService(allocations.NewRepository(conn), runner, logg, m)
	if err != nil {
		return nil, fmt.Errorf("allocations service: %w", err)
	}
	transferSvc, err := transfers.NewService(transfers.ServiceParams{
		Repo:         transfers.NewRepository(conn),
		Engine:       engine,
		Currencies:   currencies,
		TxRunner:     runner,
		Recorder:     recorder,
		BaseCurrency: base,
	})
	if err != nil {
		return nil, fmt.Errorf("transfers service: %w", err)
	}
	paymentSvc, err := payments.NewService(payments.NewRepository(conn), engine, runner, recorder, base)
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}
	donationSvc, err := donations.NewService(donations.NewRepository(conn), engine, runner, recorder, base)
	if err != nil {
		return nil, fmt.Errorf("donations service: %w", err)
	}
	reportingSvc, err := reporting.NewService(reporting.NewRepository(conn), ledgerSvc, currencies, cfg.Ledger.Epsilon())
	if err != nil {
		return nil, fmt.Errorf("reporting service: %w", err)
	}
	processor, err := requirements.NewProcessor(holdSvc, allocationSvc, runner, recorder, logg)
	if err != nil {
		return nil, fmt.Errorf("requirements processor: %w", err)
	}

	return &Services{
		Currencies:   currencies,
		Engine:       engine,
		Ledger:       ledgerSvc,
		Holds:        holdSvc,
		Allocations:  allocationSvc,
		Transfers:    transferSvc,
		Payments:     paymentSvc,
		Donations:    donationSvc,
		Reporting:    reportingSvc,
		Requirements: processor,
	}, nil
}
