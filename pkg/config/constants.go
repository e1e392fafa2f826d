package config

const EnvPrefix = "BRANCHLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:branchledger.db?cache=shared&_fk=1"

	SequenceModeStore   = "store"
	SequenceModeCounter = "counter"
)

const (
	EnvAppEnv       = "BRANCHLEDGER_APP_ENV"
	EnvPort         = "BRANCHLEDGER_APP_PORT"
	EnvLogLevel     = "BRANCHLEDGER_LOG_LEVEL"
	EnvLogWarnStack = "BRANCHLEDGER_LOG_WARN_STACK"
	EnvCORSOrigins  = "BRANCHLEDGER_CORS_ORIGINS"

	EnvDBDSN      = "BRANCHLEDGER_DB_DSN"
	EnvDBDriver   = "BRANCHLEDGER_DB_DRIVER"
	EnvDBHost     = "BRANCHLEDGER_DB_HOST"
	EnvDBPort     = "BRANCHLEDGER_DB_PORT"
	EnvDBUser     = "BRANCHLEDGER_DB_USER"
	EnvDBPassword = "BRANCHLEDGER_DB_PASSWORD"
	EnvDBName     = "BRANCHLEDGER_DB_NAME"
	EnvDBSSLMode  = "BRANCHLEDGER_DB_SSLMODE"

	EnvRedisURL  = "BRANCHLEDGER_REDIS_URL"
	EnvRedisAddr = "BRANCHLEDGER_REDIS_ADDR"

	EnvSequenceMode       = "BRANCHLEDGER_SEQUENCE_MODE"
	EnvSequenceCounterTTL = "BRANCHLEDGER_SEQUENCE_COUNTER_TTL"

	EnvAutoMigrate           = "BRANCHLEDGER_AUTO_MIGRATE"
	EnvAllowOutgoingDispatch = "BRANCHLEDGER_FEATURE_ALLOW_OUTGOING_DISPATCH"

	EnvRateLimitOperatorWindow = "BRANCHLEDGER_RATE_LIMIT_OPERATOR_WINDOW"
	EnvRateLimitOperatorLimit  = "BRANCHLEDGER_RATE_LIMIT_OPERATOR_LIMIT"

	EnvGCPProjectID           = "BRANCHLEDGER_GCP_PROJECT_ID"
	EnvPubSubManifestTopic    = "BRANCHLEDGER_PUBSUB_MANIFEST_TOPIC"
	EnvPubSubFollowUpTopic    = "BRANCHLEDGER_PUBSUB_FOLLOWUP_TOPIC"
	EnvPubSubFollowUpSub      = "BRANCHLEDGER_PUBSUB_FOLLOWUP_SUBSCRIPTION"
	EnvFollowUpIdempotencyTTL = "BRANCHLEDGER_FOLLOWUP_IDEMPOTENCY_TTL"
	EnvOutboxBatchSize        = "BRANCHLEDGER_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollIntervalMS   = "BRANCHLEDGER_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts      = "BRANCHLEDGER_OUTBOX_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
