package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Verification VerificationConfig
	Fraud        FraudConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Exports      ExportsConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"KVITTOFRI_APP_ENV" required:"true"`
	Port         string `envconfig:"KVITTOFRI_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"KVITTOFRI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KVITTOFRI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KVITTOFRI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KVITTOFRI_DB_DSN"`
	Driver string `envconfig:"KVITTOFRI_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"KVITTOFRI_DB_HOST"`
	Port     int    `envconfig:"KVITTOFRI_DB_PORT" default:"5432"`
	User     string `envconfig:"KVITTOFRI_DB_USER"`
	Password string `envconfig:"KVITTOFRI_DB_PASSWORD"`
	Name     string `envconfig:"KVITTOFRI_DB_NAME"`
	SSLMode  string `envconfig:"KVITTOFRI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KVITTOFRI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KVITTOFRI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KVITTOFRI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KVITTOFRI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KVITTOFRI_REDIS_URL"`
	Address      string        `envconfig:"KVITTOFRI_REDIS_ADDR"`
	Password     string        `envconfig:"KVITTOFRI_REDIS_PASSWORD"`
	DB           int           `envconfig:"KVITTOFRI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KVITTOFRI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KVITTOFRI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KVITTOFRI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KVITTOFRI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KVITTOFRI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// VerificationConfig carries the business defaults for claim review and billing.
type VerificationConfig struct {
	ReviewPeriodDays     int    `envconfig:"KVITTOFRI_REVIEW_PERIOD_DAYS" default:"14"`
	PaymentGraceDays     int    `envconfig:"KVITTOFRI_PAYMENT_GRACE_DAYS" default:"3"`
	InvoiceDueDays       int    `envconfig:"KVITTOFRI_INVOICE_DUE_DAYS" default:"30"`
	TimeToleranceMinutes int    `envconfig:"KVITTOFRI_TIME_TOLERANCE_MINUTES" default:"2"`
	AmountToleranceSEK   string `envconfig:"KVITTOFRI_AMOUNT_TOLERANCE_SEK" default:"0.5"`
	CommissionRate       string `envconfig:"KVITTOFRI_COMMISSION_RATE" default:"0.10"`
	VATRate              string `envconfig:"KVITTOFRI_VAT_RATE" default:"0.25"`
	CodeIssueMaxAttempts int    `envconfig:"KVITTOFRI_CODE_ISSUE_MAX_ATTEMPTS" default:"100"`
	CodeExpiryDays       int    `envconfig:"KVITTOFRI_CODE_EXPIRY_DAYS" default:"365"`
}

// AmountTolerance parses the configured amount tolerance, falling back to 0.5 SEK.
func (v VerificationConfig) AmountTolerance() decimal.Decimal {
	if d, err := decimal.NewFromString(v.AmountToleranceSEK); err == nil {
		return d
	}
	return decimal.NewFromFloat(0.5)
}

// Commission parses the configured platform commission rate.
func (v VerificationConfig) Commission() decimal.Decimal {
	if d, err := decimal.NewFromString(v.CommissionRate); err == nil {
		return d
	}
	return decimal.NewFromFloat(0.10)
}

// VAT parses the configured VAT rate applied to commission on store invoices.
func (v VerificationConfig) VAT() decimal.Decimal {
	if d, err := decimal.NewFromString(v.VATRate); err == nil {
		return d
	}
	return decimal.NewFromFloat(0.25)
}

type FraudConfig struct {
	NeutralFallbackScore float64 `envconfig:"KVITTOFRI_FRAUD_NEUTRAL_SCORE" default:"0.5"`
}

type CronConfig struct {
	Interval     time.Duration `envconfig:"KVITTOFRI_CRON_INTERVAL" default:"24h"`
	LockTTL      time.Duration `envconfig:"KVITTOFRI_CRON_LOCK_TTL" default:"25h"`
	BatchTimeout time.Duration `envconfig:"KVITTOFRI_CRON_BATCH_TIMEOUT" default:"2m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KVITTOFRI_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KVITTOFRI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KVITTOFRI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"KVITTOFRI_PUBSUB_NOTIFICATION_TOPIC" default:"kf-notification-events"`
	PayoutTopic       string `envconfig:"KVITTOFRI_PUBSUB_PAYOUT_TOPIC" default:"kf-payout-requests"`
}

type ExportsConfig struct {
	Dir string `envconfig:"KVITTOFRI_EXPORT_DIR" default:"exports"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KVITTOFRI_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KVITTOFRI_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"KVITTOFRI_DB_HOST": db.Host,
		"KVITTOFRI_DB_USER": db.User,
		"KVITTOFRI_DB_NAME": db.Name,
	}
	for _, key := range []string{"KVITTOFRI_DB_HOST", "KVITTOFRI_DB_USER", "KVITTOFRI_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either KVITTOFRI_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
