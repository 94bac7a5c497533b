package config

// EnvPrefix is handed to envconfig; every variable below already carries it.
const EnvPrefix = "FUNDLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv       = "FUNDLEDGER_APP_ENV"
	EnvPort         = "FUNDLEDGER_APP_PORT"
	EnvLogLevel     = "FUNDLEDGER_LOG_LEVEL"
	EnvLogFormat    = "FUNDLEDGER_LOG_FORMAT"
	EnvLogWarnStack = "FUNDLEDGER_LOG_WARN_STACK"

	EnvDBDSN      = "FUNDLEDGER_DB_DSN"
	EnvDBHost     = "FUNDLEDGER_DB_HOST"
	EnvDBPort     = "FUNDLEDGER_DB_PORT"
	EnvDBUser     = "FUNDLEDGER_DB_USER"
	EnvDBPassword = "FUNDLEDGER_DB_PASSWORD"
	EnvDBName     = "FUNDLEDGER_DB_NAME"
	EnvDBSSLMode  = "FUNDLEDGER_DB_SSLMODE"

	EnvRedisURL = "FUNDLEDGER_REDIS_URL"

	EnvJWTSecret  = "FUNDLEDGER_JWT_SECRET"
	EnvJWTIssuer  = "FUNDLEDGER_JWT_ISSUER"
	EnvJWTExpMins = "FUNDLEDGER_JWT_EXPIRATION_MINUTES"

	EnvAutoMigrate = "FUNDLEDGER_AUTO_MIGRATE"

	EnvBaseCurrency        = "FUNDLEDGER_LEDGER_BASE_CURRENCY"
	EnvReconcileEpsilon    = "FUNDLEDGER_LEDGER_RECONCILE_EPSILON"
	EnvConflictRetries     = "FUNDLEDGER_LEDGER_CONFLICT_RETRIES"
	EnvConflictBackoff     = "FUNDLEDGER_LEDGER_CONFLICT_BACKOFF"
	EnvPolicyFile          = "FUNDLEDGER_LEDGER_POLICY_FILE"
	EnvStaleReleaseAfter   = "FUNDLEDGER_LEDGER_STALE_RELEASE_AFTER"
	EnvCronInterval        = "FUNDLEDGER_CRON_INTERVAL"
	EnvCronLockTTL         = "FUNDLEDGER_CRON_LOCK_TTL"
	EnvCORSAllowedOrigins  = "FUNDLEDGER_CORS_ALLOWED_ORIGINS"
	EnvMetricsEnabled      = "FUNDLEDGER_METRICS_ENABLED"
	EnvIdempotencyDisabled = "FUNDLEDGER_IDEMPOTENCY_DISABLED"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
