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
	Stripe       StripeConfig
	SMTP         SMTPConfig
	Directory    DirectoryConfig
	Worker       WorkerConfig
	CORS         CORSConfig
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
	Env          string `envconfig:"ADHERA_APP_ENV" required:"true"`
	Port         string `envconfig:"ADHERA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ADHERA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ADHERA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ADHERA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ADHERA_DB_DSN"`
	Driver string `envconfig:"ADHERA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ADHERA_DB_HOST"`
	LegacyPort     int    `envconfig:"ADHERA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ADHERA_DB_USER"`
	LegacyPassword string `envconfig:"ADHERA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ADHERA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ADHERA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ADHERA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ADHERA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ADHERA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ADHERA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ADHERA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ADHERA_REDIS_ADDR"`
	Password     string        `envconfig:"ADHERA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ADHERA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ADHERA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ADHERA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ADHERA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ADHERA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ADHERA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"ADHERA_STRIPE_API_KEY"`
	Secret     string `envconfig:"ADHERA_STRIPE_WEBHOOK_SECRET"`
	Env        string `envconfig:"ADHERA_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"ADHERA_STRIPE_SUCCESS_URL" default:"http://localhost:3000/payment/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `envconfig:"ADHERA_STRIPE_CANCEL_URL" default:"http://localhost:3000/payment/cancelled"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SMTPConfig struct {
	Host     string `envconfig:"ADHERA_SMTP_HOST"`
	Port     string `envconfig:"ADHERA_SMTP_PORT" default:"587"`
	Username string `envconfig:"ADHERA_SMTP_USER"`
	Password string `envconfig:"ADHERA_SMTP_PASSWORD"`
	From     string `envconfig:"ADHERA_SMTP_FROM" default:"no-reply@adhera.example"`
}

type DirectoryConfig struct {
	BaseURL string        `envconfig:"ADHERA_DIRECTORY_BASE_URL"`
	Token   string        `envconfig:"ADHERA_DIRECTORY_TOKEN"`
	Timeout time.Duration `envconfig:"ADHERA_DIRECTORY_TIMEOUT" default:"10s"`
}

type WorkerConfig struct {
	Interval         time.Duration `envconfig:"ADHERA_WORKER_INTERVAL" default:"5m"`
	BatchSize        int           `envconfig:"ADHERA_WORKER_BATCH_SIZE" default:"50"`
	MaxProofAttempts int           `envconfig:"ADHERA_WORKER_MAX_PROOF_ATTEMPTS" default:"10"`
	LockTTL          time.Duration `envconfig:"ADHERA_WORKER_LOCK_TTL" default:"10m"`
	MetricsPort      string        `envconfig:"ADHERA_WORKER_METRICS_PORT" default:"9090"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ADHERA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ADHERA_AUTO_MIGRATE" default:"false"`
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
