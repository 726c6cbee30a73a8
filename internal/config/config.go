package config

import (
	"errors"
	"strings"

	"github.com/caarlos0/env/v9"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBHost     string `env:"DB_HOST"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName     string `env:"DB_NAME"`
	DBPort     string `env:"DB_PORT"`
	DBPath     string `env:"DB_PATH" envDefault:"./data/directchat.db"`
	// Cloud SQL instance, used instead of DBHost when set.
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	JWTSecret         string `env:"JWT_SECRET"`

	StorageBucket   string `env:"STORAGE_BUCKET"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	RedisURL      string `env:"REDIS_URL"`
	SendRateLimit int    `env:"SEND_RATE_LIMIT" envDefault:"60"` // per minute, per user

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	BodyLimit      string   `env:"BODY_LIMIT" envDefault:"32M"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DBPort == "" {
		cfg.DBPort = cfg.defaultPort()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings each database driver and the auth layer need.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverMySQL:
		if c.DBUser == "" || c.DBPassword == "" || c.DBName == "" {
			errs = append(errs, errors.New("mysql requires DB_USER, DB_PASSWORD and DB_NAME"))
		}
		if c.DBHost == "" && c.InstanceConnectionName == "" {
			errs = append(errs, errors.New("mysql requires DB_HOST or INSTANCE_CONNECTION_NAME"))
		}
	case DriverPostgres:
		if c.DBHost == "" || c.DBName == "" {
			errs = append(errs, errors.New("postgres requires DB_HOST and DB_NAME"))
		}
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("sqlite requires DB_PATH"))
		}
	default:
		errs = append(errs, errors.New("unsupported DB_DRIVER "+c.DBDriver))
	}
	if c.FirebaseProjectID == "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("either FIREBASE_PROJECT_ID or JWT_SECRET must be set"))
	}
	if c.SendRateLimit < 0 {
		errs = append(errs, errors.New("SEND_RATE_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) defaultPort() string {
	switch c.DBDriver {
	case DriverPostgres:
		return "5432"
	case DriverSQLite:
		return ""
	default:
		return "3306"
	}
}
