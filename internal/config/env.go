package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

type Config struct {
	Host      string `env:"APP_HOST,default=0.0.0.0"`
	Port      int    `env:"APP_PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=false"`

	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	MySQLDSN      string `env:"MYSQL_DSN"`

	JWTSecret   string `env:"JWT_SECRET"`
	MetricsUser string `env:"METRICS_USER"`
	MetricsPass string `env:"METRICS_PASS"`

	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	HeartbeatTimeout   time.Duration `env:"HEARTBEAT_TIMEOUT,default=120s"`
	PingInterval       time.Duration `env:"PING_INTERVAL,default=20s"`
	SendBufferSize     int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMalformedFrames int           `env:"MAX_MALFORMED_FRAMES,default=5"`

	PredictorURL     string        `env:"PREDICTOR_URL"`
	PredictorTimeout time.Duration `env:"PREDICTOR_TIMEOUT,default=2s"`
	SinkTimeout      time.Duration `env:"SINK_TIMEOUT,default=3s"`

	CatalogBackend string `env:"CATALOG_BACKEND,default=memory"`
	NumberBackend  string `env:"NUMBER_BACKEND,default=memory"`
}

// LoadEnv loads .env if present. A missing file is not an error; the process environment is used.
func LoadEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// Load reads .env (or the given files) and then the process environment.
func Load(files ...string) (Config, error) {
	LoadEnv(files...)

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) MetricsEnabled() bool {
	return c.MetricsUser != "" && c.MetricsPass != ""
}

func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	for name, d := range map[string]time.Duration{
		"HEARTBEAT_INTERVAL": c.HeartbeatInterval,
		"HEARTBEAT_TIMEOUT":  c.HeartbeatTimeout,
		"PING_INTERVAL":      c.PingInterval,
		"PREDICTOR_TIMEOUT":  c.PredictorTimeout,
		"SINK_TIMEOUT":       c.SinkTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.HeartbeatTimeout < c.HeartbeatInterval {
		errs = append(errs, fmt.Errorf("HEARTBEAT_TIMEOUT (%s) must not be shorter than HEARTBEAT_INTERVAL (%s)",
			c.HeartbeatTimeout, c.HeartbeatInterval))
	}
	if c.SendBufferSize <= 0 {
		errs = append(errs, errors.New("SEND_BUFFER_SIZE must be positive"))
	}
	if c.MaxMalformedFrames <= 0 {
		errs = append(errs, errors.New("MAX_MALFORMED_FRAMES must be positive"))
	}

	switch c.CatalogBackend {
	case BackendMemory:
	case BackendMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required for the mysql catalog"))
		}
	default:
		errs = append(errs, fmt.Errorf("CATALOG_BACKEND must be memory or mysql, got %q", c.CatalogBackend))
	}
	if c.NumberBackend != BackendMemory && c.NumberBackend != BackendRedis {
		errs = append(errs, fmt.Errorf("NUMBER_BACKEND must be memory or redis, got %q", c.NumberBackend))
	}

	return errors.Join(errs...)
}
