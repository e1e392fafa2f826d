package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Sequence     SequenceConfig
	FeatureFlags FeatureFlagsConfig
	RateLimit    RateLimitConfig
	FollowUp     FollowUpConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Sequence.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BRANCHLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"BRANCHLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BRANCHLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BRANCHLEDGER_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"BRANCHLEDGER_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BRANCHLEDGER_DB_DSN"`
	Driver string `envconfig:"BRANCHLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BRANCHLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"BRANCHLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BRANCHLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"BRANCHLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"BRANCHLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"BRANCHLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BRANCHLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BRANCHLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BRANCHLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BRANCHLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"BRANCHLEDGER_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the embedded driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BRANCHLEDGER_REDIS_URL"`
	Address      string        `envconfig:"BRANCHLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"BRANCHLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"BRANCHLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BRANCHLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BRANCHLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BRANCHLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BRANCHLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BRANCHLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// SequenceConfig selects how manifest numbers are issued.
type SequenceConfig struct {
	Mode       string        `envconfig:"BRANCHLEDGER_SEQUENCE_MODE" default:"store"`
	CounterTTL time.Duration `envconfig:"BRANCHLEDGER_SEQUENCE_COUNTER_TTL" default:"9000h"`
}

// UsesCounter reports whether the redis counter backs numbering.
func (s SequenceConfig) UsesCounter() bool {
	return strings.EqualFold(strings.TrimSpace(s.Mode), SequenceModeCounter)
}

func (s SequenceConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Mode)) {
	case SequenceModeStore, SequenceModeCounter:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvSequenceMode, SequenceModeStore, SequenceModeCounter)
	}
}

type FeatureFlagsConfig struct {
	AutoMigrate           bool `envconfig:"BRANCHLEDGER_AUTO_MIGRATE" default:"false"`
	AllowOutgoingDispatch bool `envconfig:"BRANCHLEDGER_FEATURE_ALLOW_OUTGOING_DISPATCH" default:"false"`
}

type RateLimitConfig struct {
	OperatorWindow time.Duration `envconfig:"BRANCHLEDGER_RATE_LIMIT_OPERATOR_WINDOW" default:"1m"`
	OperatorLimit  int           `envconfig:"BRANCHLEDGER_RATE_LIMIT_OPERATOR_LIMIT" default:"120"`
}

type FollowUpConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BRANCHLEDGER_FOLLOWUP_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BRANCHLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BRANCHLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BRANCHLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ManifestTopic        string `envconfig:"BRANCHLEDGER_PUBSUB_MANIFEST_TOPIC" default:"bl-manifest-events"`
	FollowUpTopic        string `envconfig:"BRANCHLEDGER_PUBSUB_FOLLOWUP_TOPIC" default:"bl-followup-events"`
	FollowUpSubscription string `envconfig:"BRANCHLEDGER_PUBSUB_FOLLOWUP_SUBSCRIPTION" default:"bl-followup-worker"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BRANCHLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BRANCHLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BRANCHLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// MaintenanceConfig drives the retention jobs of the maintenance worker.
type MaintenanceConfig struct {
	Interval              time.Duration `envconfig:"BRANCHLEDGER_MAINTENANCE_INTERVAL" default:"24h"`
	LockTTL               time.Duration `envconfig:"BRANCHLEDGER_MAINTENANCE_LOCK_TTL" default:"25h"`
	OutboxRetentionDays   int           `envconfig:"BRANCHLEDGER_MAINTENANCE_OUTBOX_RETENTION_DAYS" default:"30"`
	FollowUpRetentionDays int           `envconfig:"BRANCHLEDGER_MAINTENANCE_FOLLOWUP_RETENTION_DAYS" default:"90"`
	StaleFollowUpAfter    time.Duration `envconfig:"BRANCHLEDGER_MAINTENANCE_STALE_FOLLOWUP_AFTER" default:"72h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
