package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full client configuration. Every field has an AIP_ prefixed
// environment variable; defaults match the hosted development backend.
type Config struct {
	API     API
	Session Session
	Redis   RedisConfig
	Errors  Errors
	Report  Report
	Points  Points
	Log     Log
}

// API configures the request pipeline.
type API struct {
	BaseURL        string        `env:"AIP_API_BASE_URL,default=http://localhost:8080/api"`
	Timeout        time.Duration `env:"AIP_API_TIMEOUT,default=30s"`
	MaxAttempts    int           `env:"AIP_API_RETRY_ATTEMPTS,default=3"`
	RetryBaseDelay time.Duration `env:"AIP_API_RETRY_DELAY,default=1s"`
	RateLimit      float64       `env:"AIP_API_RATE_LIMIT,default=0"`
	RateBurst      int           `env:"AIP_API_RATE_BURST,default=1"`
	MaxUploadBytes int64         `env:"AIP_UPLOAD_MAX_BYTES,default=10485760"`
	LoginPath      string        `env:"AIP_LOGIN_PATH,default=/login"`
}

// Session selects and configures the durable session backend.
type Session struct {
	Backend     string        `env:"AIP_SESSION_BACKEND,default=file"`
	Path        string        `env:"AIP_SESSION_PATH"`
	SealKey     string        `env:"AIP_SESSION_KEY"`
	KeyPrefix   string        `env:"AIP_SESSION_PREFIX,default=aiplatform:session:"`
	TTL         time.Duration `env:"AIP_SESSION_TTL,default=0s"`
	PostgresDSN string        `env:"AIP_POSTGRES_DSN"`
	Namespace   string        `env:"AIP_SESSION_NAMESPACE,default=default"`
}

// RedisConfig holds connection settings for the Redis session backend.
type RedisConfig struct {
	URL          string        `env:"AIP_REDIS_URL"`
	PoolSize     int           `env:"AIP_REDIS_POOL_SIZE,default=4"`
	MinIdleConns int           `env:"AIP_REDIS_MIN_IDLE,default=1"`
	DialTimeout  time.Duration `env:"AIP_REDIS_DIAL_TIMEOUT,default=5s"`
	ReadTimeout  time.Duration `env:"AIP_REDIS_READ_TIMEOUT,default=3s"`
	WriteTimeout time.Duration `env:"AIP_REDIS_WRITE_TIMEOUT,default=3s"`
}

// Errors toggles the side effects of error handling.
type Errors struct {
	ShowMessage      bool `env:"AIP_ERRORS_SHOW_MESSAGE,default=true"`
	ShowNotification bool `env:"AIP_ERRORS_SHOW_NOTIFICATION,default=false"`
	LogToConsole     bool `env:"AIP_ERRORS_LOG,default=true"`
	ReportToServer   bool `env:"AIP_ERRORS_REPORT,default=false"`
}

// Report configures where error reports are shipped.
type Report struct {
	Sink          string        `env:"AIP_REPORT_SINK,default=none"`
	URL           string        `env:"AIP_REPORT_URL"`
	KafkaBrokers  []string      `env:"AIP_REPORT_KAFKA_BROKERS"`
	KafkaTopic    string        `env:"AIP_REPORT_KAFKA_TOPIC,default=client-errors"`
	QueueSize     int           `env:"AIP_REPORT_QUEUE,default=256"`
	Timeout       time.Duration `env:"AIP_REPORT_TIMEOUT,default=5s"`
	LowSampleRate float64       `env:"AIP_REPORT_SAMPLE_LOW,default=1"`
}

// Points configures balance tracking.
type Points struct {
	LowBalanceThreshold int           `env:"AIP_POINTS_LOW_BALANCE,default=50"`
	RefreshInterval     time.Duration `env:"AIP_POINTS_REFRESH,default=30s"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `env:"AIP_LOG_LEVEL,default=info"`
	Format string `env:"AIP_LOG_FORMAT,default=text"`
	// Metrics prints the client metrics gathered during a CLI run on exit.
	Metrics bool `env:"AIP_LOG_METRICS,default=false"`
}

// Session backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Report sinks.
const (
	SinkNone  = "none"
	SinkHTTP  = "http"
	SinkKafka = "kafka"
)

// Load reads optional dotenv files (".env" when none are named), then decodes
// the environment. Missing dotenv files are not an error.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the configuration from the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	if cfg.Session.Path == "" {
		cfg.Session.Path = defaultSessionPath()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL %q", c.API.BaseURL)
	}
	if c.API.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.API.MaxAttempts)
	}
	if c.API.RetryBaseDelay < 0 || c.API.Timeout < 0 {
		return errors.New("durations must not be negative")
	}
	switch c.Session.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("redis session backend requires AIP_REDIS_URL")
		}
	case BackendPostgres:
		if c.Session.PostgresDSN == "" {
			return errors.New("postgres session backend requires AIP_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	switch c.Report.Sink {
	case SinkNone:
	case SinkHTTP:
		if c.Report.URL == "" {
			return errors.New("http report sink requires AIP_REPORT_URL")
		}
	case SinkKafka:
		if len(c.Report.KafkaBrokers) == 0 {
			return errors.New("kafka report sink requires AIP_REPORT_KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown report sink %q", c.Report.Sink)
	}
	return nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "aiplatform", "session.json")
}
