package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/reliefbridge/fundledger/internal/requirements"
	"github.com/reliefbridge/fundledger/pkg/auth"
	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubProcessor struct{}

func (stubProcessor) Requirements() []requirements.ID {
	return []requirements.ID{requirements.Allocate}
}

func (stubProcessor) Process(context.Context, requirements.ID, requirements.Request) (*requirements.Result, error) {
	return &requirements.Result{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "fundledger", ExpirationMinutes: 60},
		FeatureFlags: config.FeatureFlagsConfig{
			MetricsEnabled:      true,
			IdempotencyDisabled: true,
		},
		HTTP: config.HTTPConfig{AllowedOrigins: []string{"*"}},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewLedgerMetrics(reg).ObserveMutation("add_fund", "ok")
	handler := NewRouter(cfg, logger.Nop(), stubPinger{}, nil, reg, Services{Requirements: stubProcessor{}})
	return handler, cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}
}

func TestMetricsRouteExposesLedgerCounters(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fundledger_ledger_mutations_total") {
		t.Fatalf("expected ledger mutation counter in output")
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/requirements", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAdminRoutesRejectStaff(t *testing.T) {
	router, cfg := newTestRouter(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/payments"},
		{http.MethodPut, "/api/v1/currencies/EUR"},
		{http.MethodPost, "/api/v1/releases/" + uuid.NewString() + "/approve"},
	} {
		req := httptest.NewRequest(route.method, route.path, strings.NewReader(`{}`))
		req.Header.Set("Authorization", bearer(t, cfg, enums.RoleStaff))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403 got %d", route.method, route.path, rec.Code)
		}
	}
}

func TestStaffCanListRequirements(t *testing.T) {
	router, cfg := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requirements", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "allocate") {
		t.Fatalf("expected requirement ids in body, got %s", rec.Body.String())
	}
}
