package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
)

// Store drivers
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Config holds all application configuration
type Config struct {
	Env    string
	Debug  bool
	Server ServerConfig
	Store  StoreConfig
	Auth   AuthConfig
	Upload UploadConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects and configures the persistence gateway
type StoreConfig struct {
	Driver    string
	SQLiteDSN string
	DataDir   string
}

// AuthConfig holds session configuration
type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	RedisURL     string
	SecureCookie bool
}

// UploadConfig holds image upload configuration
type UploadConfig struct {
	Dir       string
	BaseURL   string
	RemoteURL string
	MaxBytes  int64
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	Dir        string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// LoadEnvFile loads additional variables from an env file. Variables already
// set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables.
// A .env file is loaded automatically via the autoload import.
func Load() (*Config, error) {
	var errs error
	env := getEnvWithDefault("APP_ENV", "development")

	cfg := &Config{
		Env:   env,
		Debug: getBool("DEBUG", false, &errs),
		Server: ServerConfig{
			Host:            getEnvWithDefault("SERVER_HOST", "0.0.0.0"),
			Port:            getInt("SERVER_PORT", 8080, &errs),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 15*time.Second, &errs),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second, &errs),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
			AllowedOrigins:  getList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Store: StoreConfig{
			Driver:    strings.ToLower(getEnvWithDefault("STORE_DRIVER", DriverSQLite)),
			SQLiteDSN: getEnvWithDefault("SQLITE_DSN", "file:danceflow.db?_foreign_keys=on&_journal_mode=WAL"),
			DataDir:   getEnvWithDefault("DATA_DIR", "data"),
		},
		Auth: AuthConfig{
			JWTSecret:    os.Getenv("JWT_SECRET"),
			TokenTTL:     time.Duration(getInt("JWT_EXPIRY_HOURS", 24, &errs)) * time.Hour,
			RedisURL:     os.Getenv("REDIS_URL"),
			SecureCookie: getBool("SECURE_COOKIE", env == "production", &errs),
		},
		Upload: UploadConfig{
			Dir:       getEnvWithDefault("UPLOAD_DIR", "uploads"),
			BaseURL:   getEnvWithDefault("UPLOAD_BASE_URL", "/uploads"),
			RemoteURL: os.Getenv("UPLOAD_REMOTE_URL"),
			MaxBytes:  int64(getInt("UPLOAD_MAX_BYTES", 5<<20, &errs)),
		},
		Log: LogConfig{
			Level:      getEnvWithDefault("LOG_LEVEL", "info"),
			Dir:        os.Getenv("LOG_DIR"),
			MaxSize:    getInt("LOG_MAX_SIZE", 100, &errs),
			MaxBackups: getInt("LOG_MAX_BACKUPS", 3, &errs),
			MaxAge:     getInt("LOG_MAX_AGE", 28, &errs),
			Compress:   getBool("LOG_COMPRESS", true, &errs),
		},
	}

	if cfg.Auth.JWTSecret == "" && env != "production" {
		cfg.Auth.JWTSecret = "danceflow-development-secret"
	}

	if err := cfg.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

// Validate accumulates every configuration problem
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLiteDSN == "" {
			result = multierror.Append(result, errors.New("SQLITE_DSN is required for the sqlite driver"))
		}
	case DriverFile:
		if c.Store.DataDir == "" {
			result = multierror.Append(result, errors.New("DATA_DIR is required for the file driver"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverFile, c.Store.Driver))
	}
	if c.Auth.JWTSecret == "" {
		result = multierror.Append(result, errors.New("JWT_SECRET is required"))
	} else if c.Env == "production" && len(c.Auth.JWTSecret) < 32 {
		result = multierror.Append(result, errors.New("JWT_SECRET must be at least 32 characters in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		result = multierror.Append(result, errors.New("JWT_EXPIRY_HOURS must be positive"))
	}
	if c.Upload.MaxBytes <= 0 {
		result = multierror.Append(result, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}

	return result.ErrorOrNil()
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getBool gets a boolean environment variable, recording parse failures in errs
func getBool(key string, defaultValue bool, errs *error) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		*errs = multierror.Append(*errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return defaultValue
	}
	return parsed
}

func getInt(key string, defaultValue int, errs *error) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = multierror.Append(*errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return parsed
}

func getDuration(key string, defaultValue time.Duration, errs *error) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*errs = multierror.Append(*errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return parsed
}

func getList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
