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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	API          APIConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Scheduler    SchedulerConfig
	Notify       NotifyConfig
	Tracing      TracingConfig
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
	Env          string `envconfig:"CARESTAFF_APP_ENV" required:"true"`
	Port         string `envconfig:"CARESTAFF_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CARESTAFF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARESTAFF_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"CARESTAFF_TIMEZONE" default:"Europe/London"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the configured agency timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	if strings.TrimSpace(a.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type ServiceConfig struct {
	Kind string `envconfig:"CARESTAFF_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics from background workers; empty disables the listener.
	MetricsAddr string `envconfig:"CARESTAFF_SERVICE_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"CARESTAFF_DB_DSN"`
	Driver string `envconfig:"CARESTAFF_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARESTAFF_DB_HOST"`
	LegacyPort     int    `envconfig:"CARESTAFF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARESTAFF_DB_USER"`
	LegacyPassword string `envconfig:"CARESTAFF_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARESTAFF_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARESTAFF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARESTAFF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARESTAFF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARESTAFF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARESTAFF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"CARESTAFF_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARESTAFF_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARESTAFF_REDIS_ADDR"`
	Password     string        `envconfig:"CARESTAFF_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARESTAFF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARESTAFF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARESTAFF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARESTAFF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARESTAFF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARESTAFF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CARESTAFF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CARESTAFF_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CARESTAFF_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// APIConfig tunes the HTTP surface: browser origins and manual trigger throttling.
type APIConfig struct {
	CORSOrigins     []string      `envconfig:"CARESTAFF_CORS_ORIGINS" default:"http://localhost:3000"`
	TriggerWindow   time.Duration `envconfig:"CARESTAFF_TRIGGER_RATE_WINDOW" default:"1m"`
	TriggerLimit    int           `envconfig:"CARESTAFF_TRIGGER_RATE_LIMIT" default:"30"`
	MetricsEnabled  bool          `envconfig:"CARESTAFF_METRICS_ENABLED" default:"true"`
	ShutdownTimeout time.Duration `envconfig:"CARESTAFF_SHUTDOWN_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CARESTAFF_AUTO_MIGRATE" default:"false"`
	// DryRunNotifications logs deliveries instead of calling providers.
	DryRunNotifications bool `envconfig:"CARESTAFF_DRY_RUN_NOTIFICATIONS" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CARESTAFF_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARESTAFF_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CARESTAFF_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARESTAFF_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"CARESTAFF_PUBSUB_NOTIFICATION_TOPIC" default:"cs-notification-events"`
	NotificationSubscription string `envconfig:"CARESTAFF_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	DecisionTopic            string `envconfig:"CARESTAFF_PUBSUB_DECISION_TOPIC" default:"cs-decision-events"`
	DecisionSubscription     string `envconfig:"CARESTAFF_PUBSUB_DECISION_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"CARESTAFF_BIGQUERY_DATASET" default:"carestaff"`
	DecisionsTable   string `envconfig:"CARESTAFF_BIGQUERY_DECISIONS_TABLE" default:"engine_decisions"`
	ShiftEventsTable string `envconfig:"CARESTAFF_BIGQUERY_SHIFT_EVENTS_TABLE" default:"shift_events"`
	InsertAttempts   int    `envconfig:"CARESTAFF_BIGQUERY_INSERT_ATTEMPTS" default:"3"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CARESTAFF_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CARESTAFF_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CARESTAFF_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// SchedulerConfig holds the 5-field cron expressions for each scan job.
type SchedulerConfig struct {
	NoShowScan        string        `envconfig:"CARESTAFF_SCHEDULE_NO_SHOW" default:"*/5 * * * *"`
	EscalationScan    string        `envconfig:"CARESTAFF_SCHEDULE_ESCALATION" default:"*/5 * * * *"`
	ShiftReminders    string        `envconfig:"CARESTAFF_SCHEDULE_SHIFT_REMINDERS" default:"*/15 * * * *"`
	AutoApproval      string        `envconfig:"CARESTAFF_SCHEDULE_AUTO_APPROVAL" default:"0 * * * *"`
	NotificationRetry string        `envconfig:"CARESTAFF_SCHEDULE_NOTIFICATION_RETRY" default:"*/2 * * * *"`
	Retention         string        `envconfig:"CARESTAFF_SCHEDULE_RETENTION" default:"30 3 * * *"`
	RetentionDays     int           `envconfig:"CARESTAFF_RETENTION_DAYS" default:"30"`
	LockTTL           time.Duration `envconfig:"CARESTAFF_SCHEDULER_LOCK_TTL" default:"10m"`
}

type NotifyConfig struct {
	EmailWebhookURL    string        `envconfig:"CARESTAFF_NOTIFY_EMAIL_WEBHOOK_URL"`
	SMSWebhookURL      string        `envconfig:"CARESTAFF_NOTIFY_SMS_WEBHOOK_URL"`
	WhatsAppWebhookURL string        `envconfig:"CARESTAFF_NOTIFY_WHATSAPP_WEBHOOK_URL"`
	WebhookToken       string        `envconfig:"CARESTAFF_NOTIFY_WEBHOOK_TOKEN"`
	SlackBotToken      string        `envconfig:"CARESTAFF_SLACK_BOT_TOKEN"`
	SlackAlertChannel  string        `envconfig:"CARESTAFF_SLACK_ALERT_CHANNEL"`
	DefaultFrom        string        `envconfig:"CARESTAFF_NOTIFY_FROM_EMAIL" default:"no-reply@carestaff.local"`
	MaxAttempts        int           `envconfig:"CARESTAFF_NOTIFY_MAX_ATTEMPTS" default:"5"`
	InitialBackoff     time.Duration `envconfig:"CARESTAFF_NOTIFY_INITIAL_BACKOFF" default:"30s"`
	MaxBackoff         time.Duration `envconfig:"CARESTAFF_NOTIFY_MAX_BACKOFF" default:"30m"`
	RequestTimeout     time.Duration `envconfig:"CARESTAFF_NOTIFY_REQUEST_TIMEOUT" default:"10s"`
}

type TracingConfig struct {
	OTLPEndpoint string  `envconfig:"CARESTAFF_OTLP_ENDPOINT"`
	Insecure     bool    `envconfig:"CARESTAFF_OTLP_INSECURE" default:"true"`
	SampleRatio  float64 `envconfig:"CARESTAFF_TRACE_SAMPLE_RATIO" default:"1"`
}

// Enabled reports whether an OTLP collector endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.OTLPEndpoint) != ""
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
