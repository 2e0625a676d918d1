package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the api and worker processes.
// All values come from env (optionally seeded from a .env file).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Voice     VoiceConfig
	Session   SessionConfig
	Tasks     TasksConfig
	SMTP      SMTPConfig
	Documents DocumentsConfig
	Storage   StorageConfig
	Analysis  AnalysisConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	MigrateOnStart bool
}

type RedisConfig struct {
	// URL in redis://[:password@]host:port/db form. Shared by the session
	// store and the task queue.
	URL string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type VoiceConfig struct {
	// WebhookSecret is compared against the X-Vapi-Secret header when set.
	WebhookSecret string
	// DefaultRegion is the ISO-3166 region used to parse caller numbers
	// without a country prefix.
	DefaultRegion string

	PostCallThankYou bool

	RateLimitRPS   float64
	RateLimitBurst int
}

type SessionConfig struct {
	// Backend is "redis" or "memory". The memory backend is single-process only.
	Backend  string
	TTL      time.Duration
	MaxTurns int
}

type TasksConfig struct {
	Queue           string
	Concurrency     int
	NurtureCron     string
	ResultRetention time.Duration
	Timezone        string
	// MetricsPort exposes the worker's /metrics when positive.
	MetricsPort int
}

type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	SenderName string
}

type DocumentsConfig struct {
	CompanyName string
	GSTRatePct  float64
}

type StorageConfig struct {
	// Backend is "local" or "minio".
	Backend  string
	LocalDir string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
	MinIOBucket    string
}

type AnalysisConfig struct {
	// PriceVocabularyFile optionally points at a JSON price vocabulary that
	// replaces the built-in one.
	PriceVocabularyFile string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real env vars win.
func Load() (Config, error) {
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.MigrateOnStart = optBool("DB_MIGRATE_ON_START")

	c.Redis.URL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Voice.WebhookSecret = os.Getenv("VAPI_WEBHOOK_SECRET")
	c.Voice.DefaultRegion = strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_DEFAULT_REGION")))
	c.Voice.PostCallThankYou = optBool("FOLLOWUP_POST_CALL")
	c.Voice.RateLimitRPS = optFloat("WEBHOOK_RATE_LIMIT_RPS")
	c.Voice.RateLimitBurst = optInt("WEBHOOK_RATE_LIMIT_BURST")

	c.Session.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("SESSION_STORE")))
	c.Session.TTL = mustDuration("SESSION_TTL")
	c.Session.MaxTurns = optInt("SESSION_MAX_TURNS")

	c.Tasks.Queue = strings.TrimSpace(os.Getenv("TASKS_QUEUE"))
	c.Tasks.Concurrency = optInt("TASKS_CONCURRENCY")
	c.Tasks.NurtureCron = strings.TrimSpace(os.Getenv("NURTURE_CRON"))
	c.Tasks.ResultRetention = mustDuration("TASKS_RESULT_RETENTION")
	c.Tasks.Timezone = strings.TrimSpace(os.Getenv("TASKS_TIMEZONE"))
	c.Tasks.MetricsPort = optInt("WORKER_METRICS_PORT")

	c.SMTP.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.SMTP.Port = optInt("SMTP_PORT")
	c.SMTP.User = strings.TrimSpace(os.Getenv("SMTP_USER"))
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.SMTP.From = strings.TrimSpace(os.Getenv("SMTP_FROM"))
	c.SMTP.SenderName = strings.TrimSpace(os.Getenv("SMTP_SENDER_NAME"))

	c.Documents.CompanyName = strings.TrimSpace(os.Getenv("COMPANY_NAME"))
	c.Documents.GSTRatePct = optFloat("INVOICE_GST_RATE")

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_BACKEND")))
	c.Storage.LocalDir = strings.TrimSpace(os.Getenv("STORAGE_LOCAL_DIR"))
	c.Storage.MinIOEndpoint = strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	c.Storage.MinIOAccessKey = strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	c.Storage.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
	c.Storage.MinIOUseSSL = optBool("MINIO_USE_SSL")
	c.Storage.MinIOBucket = strings.TrimSpace(os.Getenv("MINIO_BUCKET"))

	c.Analysis.PriceVocabularyFile = strings.TrimSpace(os.Getenv("PRICE_VOCABULARY_FILE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills in defaults for optional
// values.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.URL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	} else if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		errs = append(errs, fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Voice.WebhookSecret == "" {
			errs = append(errs, errors.New("VAPI_WEBHOOK_SECRET is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Voice.DefaultRegion == "" {
		c.Voice.DefaultRegion = "IN"
	}
	if c.Voice.RateLimitRPS <= 0 {
		c.Voice.RateLimitRPS = 20
	}
	if c.Voice.RateLimitBurst <= 0 {
		c.Voice.RateLimitBurst = 40
	}

	switch c.Session.Backend {
	case "":
		c.Session.Backend = "redis"
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be redis or memory, got %q", c.Session.Backend))
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = time.Hour
	}
	if c.Session.MaxTurns <= 0 {
		c.Session.MaxTurns = 50
	}

	if c.Tasks.Queue == "" {
		c.Tasks.Queue = "default"
	}
	if c.Tasks.Concurrency <= 0 {
		c.Tasks.Concurrency = 10
	}
	if c.Tasks.NurtureCron == "" {
		c.Tasks.NurtureCron = "0 9 * * *"
	}
	if c.Tasks.ResultRetention <= 0 {
		c.Tasks.ResultRetention = 24 * time.Hour
	}
	if c.Tasks.Timezone == "" {
		c.Tasks.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Tasks.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TASKS_TIMEZONE is invalid: %w", err))
	}

	if c.SMTP.Host != "" {
		if c.SMTP.Port <= 0 {
			c.SMTP.Port = 587
		}
		if c.SMTP.From == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("SMTP_HOST is required in production"))
	}
	if c.SMTP.SenderName == "" {
		c.SMTP.SenderName = "Luxury Auto Group"
	}

	if c.Documents.CompanyName == "" {
		c.Documents.CompanyName = "Luxury Auto Group"
	}
	if c.Documents.GSTRatePct <= 0 {
		c.Documents.GSTRatePct = 18
	}

	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = "local"
	case "local", "minio":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be local or minio, got %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "local" && c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "generated_documents"
	}
	if c.Storage.Backend == "minio" {
		if c.Storage.MinIOEndpoint == "" || c.Storage.MinIOAccessKey == "" || c.Storage.MinIOSecretKey == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio backend"))
		}
		if c.Storage.MinIOBucket == "" {
			c.Storage.MinIOBucket = "documents"
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optFloat(key string) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func optBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
