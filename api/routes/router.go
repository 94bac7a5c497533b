package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reliefbridge/fundledger/api/controllers"
	"github.com/reliefbridge/fundledger/api/middleware"
	"github.com/reliefbridge/fundledger/internal/allocations"
	"github.com/reliefbridge/fundledger/internal/currency"
	"github.com/reliefbridge/fundledger/internal/donations"
	"github.com/reliefbridge/fundledger/internal/holds"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/payments"
	"github.com/reliefbridge/fundledger/internal/reporting"
	"github.com/reliefbridge/fundledger/internal/transfers"
	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/logger"
	pkgredis "github.com/reliefbridge/fundledger/pkg/redis"
)

// Services bundles everything the HTTP surface calls into.
type Services struct {
	Ledger       ledger.Service
	Currencies   currency.Service
	Holds        holds.Service
	Allocations  allocations.Service
	Transfers    transfers.Service
	Payments     payments.Service
	Donations    donations.Service
	Reporting    reporting.Service
	Requirements controllers.RequirementProcessor
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *pkgredis.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if cfg.FeatureFlags.MetricsEnabled && gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	adminOnly := middleware.RequireRole(logg, enums.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if !cfg.FeatureFlags.IdempotencyDisabled {
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.Route("/currencies", func(r chi.Router) {
			r.Get("/", controllers.CurrencyList(svc.Currencies, logg))
			r.With(adminOnly).Put("/{code}", controllers.CurrencyUpsert(svc.Currencies, logg))
			r.With(adminOnly).Delete("/{code}", controllers.CurrencyDelete(svc.Currencies, logg))
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", controllers.AccountList(svc.Ledger, logg))
			r.With(adminOnly).Post("/", controllers.AccountCreate(svc.Ledger, logg))
			r.Route("/{accountId}", func(r chi.Router) {
				r.Get("/", controllers.AccountGet(svc.Ledger, logg))
				r.With(adminOnly).Delete("/", controllers.AccountDelete(svc.Ledger, logg))
				r.Get("/balance", controllers.AccountBalance(svc.Ledger, logg))
				r.Get("/categories", controllers.AccountCategories(svc.Ledger, logg))
				r.Get("/transactions", controllers.AccountTransactions(svc.Ledger, logg))
				r.Post("/funds/add", controllers.AccountAddFund(svc.Ledger, logg))
				r.Post("/funds/use", controllers.AccountUseFund(svc.Ledger, logg))
				r.Get("/scope-percentages", controllers.AccountScopePercentages(svc.Reporting, logg))
				r.Get("/dashboard", controllers.AccountDashboard(svc.Reporting, logg))
				r.With(adminOnly).Get("/reconcile", controllers.AccountReconcile(svc.Reporting, logg))
			})
		})

		r.Route("/holds", func(r chi.Router) {
			r.Post("/", controllers.HoldCreate(svc.Holds, logg))
			r.Post("/{scope}/{targetId}/commit", controllers.HoldCommit(svc.Holds, logg))
			r.Post("/{scope}/{targetId}/reverse", controllers.HoldReverse(svc.Holds, logg))
		})

		r.Route("/allocations", func(r chi.Router) {
			r.Post("/", controllers.AllocationCreate(svc.Allocations, logg))
			r.Get("/{scope}/{targetId}", controllers.AllocationGet(svc.Allocations, logg))
		})

		r.Route("/releases", func(r chi.Router) {
			r.Get("/", controllers.ReleaseList(svc.Allocations, logg))
			r.Post("/", controllers.ReleaseCreate(svc.Allocations, logg))
			r.With(adminOnly).Post("/{releaseId}/approve", controllers.ReleaseApprove(svc.Allocations, logg))
			r.With(adminOnly).Post("/{releaseId}/reject", controllers.ReleaseReject(svc.Allocations, logg))
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", controllers.TransferList(svc.Transfers, logg))
			r.Post("/", controllers.TransferCreate(svc.Transfers, logg))
			r.Get("/{transferId}", controllers.TransferGet(svc.Transfers, logg))
			r.Post("/{transferId}/stage", controllers.TransferAdvanceStage(svc.Transfers, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.PaymentList(svc.Payments, logg))
			r.With(adminOnly).Post("/", controllers.PaymentCreate(svc.Payments, logg))
			r.Get("/{paymentId}", controllers.PaymentGet(svc.Payments, logg))
		})

		r.Route("/donations", func(r chi.Router) {
			r.Get("/", controllers.DonationList(svc.Donations, logg))
			r.Post("/", controllers.DonationCreate(svc.Donations, logg))
		})

		r.Route("/requirements", func(r chi.Router) {
			r.Get("/", controllers.RequirementList(svc.Requirements))
			r.Post("/{requirement}", controllers.RequirementProcess(svc.Requirements, logg))
		})
	})

	return r
}
