package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Cron         CronConfig
	HTTP         HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FUNDLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"FUNDLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FUNDLEDGER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FUNDLEDGER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FUNDLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FUNDLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FUNDLEDGER_DB_DSN"`
	Driver string `envconfig:"FUNDLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FUNDLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"FUNDLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FUNDLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"FUNDLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"FUNDLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"FUNDLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FUNDLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FUNDLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FUNDLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FUNDLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// LockTimeout bounds how long a posting waits on account row locks.
	LockTimeout time.Duration `envconfig:"FUNDLEDGER_DB_LOCK_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FUNDLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FUNDLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"FUNDLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"FUNDLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FUNDLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FUNDLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FUNDLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FUNDLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FUNDLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FUNDLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FUNDLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FUNDLEDGER_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate         bool `envconfig:"FUNDLEDGER_AUTO_MIGRATE" default:"false"`
	MetricsEnabled      bool `envconfig:"FUNDLEDGER_METRICS_ENABLED" default:"true"`
	IdempotencyDisabled bool `envconfig:"FUNDLEDGER_IDEMPOTENCY_DISABLED" default:"false"`
}

// LedgerConfig tunes the fund engine.
type LedgerConfig struct {
	BaseCurrency      string        `envconfig:"FUNDLEDGER_LEDGER_BASE_CURRENCY" default:"USD"`
	ReconcileEpsilon  string        `envconfig:"FUNDLEDGER_LEDGER_RECONCILE_EPSILON" default:"0.05"`
	ConflictRetries   int           `envconfig:"FUNDLEDGER_LEDGER_CONFLICT_RETRIES" default:"3"`
	ConflictBackoff   time.Duration `envconfig:"FUNDLEDGER_LEDGER_CONFLICT_BACKOFF" default:"25ms"`
	PolicyFile        string        `envconfig:"FUNDLEDGER_LEDGER_POLICY_FILE"`
	StaleReleaseAfter time.Duration `envconfig:"FUNDLEDGER_LEDGER_STALE_RELEASE_AFTER" default:"168h"`
}

// Epsilon returns the reconciliation tolerance as a decimal.
func (l LedgerConfig) Epsilon() decimal.Decimal {
	eps, err := decimal.NewFromString(strings.TrimSpace(l.ReconcileEpsilon))
	if err != nil || eps.IsNegative() {
		return decimal.Zero
	}
	return eps
}

func (l *LedgerConfig) validate() error {
	l.BaseCurrency = strings.ToUpper(strings.TrimSpace(l.BaseCurrency))
	if l.BaseCurrency == "" {
		return fmt.Errorf("%s must not be empty", EnvBaseCurrency)
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(l.ReconcileEpsilon)); err != nil {
		return fmt.Errorf("%s: %w", EnvReconcileEpsilon, err)
	}
	if l.ConflictRetries < 0 {
		return fmt.Errorf("%s must not be negative", EnvConflictRetries)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FUNDLEDGER_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"FUNDLEDGER_CRON_LOCK_TTL" default:"55m"`
}

type HTTPConfig struct {
	AllowedOrigins []string `envconfig:"FUNDLEDGER_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
