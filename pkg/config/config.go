package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "crewdispatch"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Cron         CronConfig
	Matching     MatchingConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CREWDISPATCH_APP_ENV" required:"true"`
	Port         string `envconfig:"CREWDISPATCH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CREWDISPATCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CREWDISPATCH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CREWDISPATCH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"CREWDISPATCH_DB_DSN"`

	Host     string `envconfig:"CREWDISPATCH_DB_HOST"`
	Port     int    `envconfig:"CREWDISPATCH_DB_PORT" default:"5432"`
	User     string `envconfig:"CREWDISPATCH_DB_USER"`
	Password string `envconfig:"CREWDISPATCH_DB_PASSWORD"`
	Name     string `envconfig:"CREWDISPATCH_DB_NAME"`
	SSLMode  string `envconfig:"CREWDISPATCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CREWDISPATCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CREWDISPATCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CREWDISPATCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CREWDISPATCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("db config requires either CREWDISPATCH_DB_DSN or host/user/name parts")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CREWDISPATCH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CREWDISPATCH_REDIS_ADDR"`
	Password     string        `envconfig:"CREWDISPATCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"CREWDISPATCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CREWDISPATCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CREWDISPATCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CREWDISPATCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CREWDISPATCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CREWDISPATCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CronConfig drives the offer-expiry worker cadence. The interval is a
// deployment knob, not a correctness value: expiry is decided against
// offer_expires_at, never against tick timing.
type CronConfig struct {
	Interval time.Duration `envconfig:"CREWDISPATCH_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"CREWDISPATCH_CRON_LOCK_TTL" default:"10m"`
}

// MatchingConfig holds the fallback tenant policy used when a country has no
// row in country_policies.
type MatchingConfig struct {
	DefaultOfferTimeoutHours     int  `envconfig:"CREWDISPATCH_DEFAULT_OFFER_TIMEOUT_HOURS" default:"24"`
	DefaultMaxNegotiationRounds  int  `envconfig:"CREWDISPATCH_DEFAULT_MAX_NEGOTIATION_ROUNDS" default:"3"`
	DefaultProviderAutoAccept    bool `envconfig:"CREWDISPATCH_DEFAULT_PROVIDER_AUTO_ACCEPT" default:"false"`
	MaxSearchRadiusKM            int  `envconfig:"CREWDISPATCH_MAX_SEARCH_RADIUS_KM" default:"50"`
	CandidatePoolLimit           int  `envconfig:"CREWDISPATCH_CANDIDATE_POOL_LIMIT" default:"100"`
	CollaboratorTimeoutSeconds   int  `envconfig:"CREWDISPATCH_COLLABORATOR_TIMEOUT_SECONDS" default:"10"`
}

func (m MatchingConfig) CollaboratorTimeout() time.Duration {
	if m.CollaboratorTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.CollaboratorTimeoutSeconds) * time.Second
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CREWDISPATCH_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CREWDISPATCH_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	AssignmentsTopic   string `envconfig:"CREWDISPATCH_PUBSUB_ASSIGNMENTS_TOPIC" default:"assignment-events"`
	EscalationsTopic   string `envconfig:"CREWDISPATCH_PUBSUB_ESCALATIONS_TOPIC" default:"escalation-events"`
	DomainSubscription string `envconfig:"CREWDISPATCH_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CREWDISPATCH_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CREWDISPATCH_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CREWDISPATCH_OUTBOX_MAX_ATTEMPTS" default:"10"`
}
