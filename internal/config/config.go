package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-recipes-api/internal/database"
	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

const defaultJWTSecret = "secret"

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Port int    `json:"port"`
	Host string `json:"host"`
	Env  string `json:"env"`

	// Database configuration. DatabaseURL wins over the discrete settings.
	DatabaseURL string `json:"database_url"`
	DBDriver    string `json:"db_driver"`
	DBPath      string `json:"db_path"`
	DBHost      string `json:"db_host"`
	DBPort      string `json:"db_port"`
	DBName      string `json:"db_name"`
	DBUser      string `json:"db_user"`
	DBPassword  string `json:"db_password"`
	DBSSLMode   string `json:"db_sslmode"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	JWTSecret      string        `json:"jwt_secret"`
	TokenTTL       time.Duration `json:"token_ttl"`
	LoginRateRPS   float64       `json:"login_rate_rps"`
	LoginRateBurst int           `json:"login_rate_burst"`

	// Media and pagination
	MediaRoot string `json:"media_root"`
	MediaURL  string `json:"media_url"`
	PageSize  int    `json:"page_size"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, Env: %s, DatabaseURL: %s, DBDriver: %s, DBPath: %s, DBHost: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], LogLevel: %s, JWTSecret: [REDACTED], TokenTTL: %s, MediaRoot: %s, PageSize: %d}",
		c.Port, c.Host, c.Env, maskDatabaseURL(c.DatabaseURL), c.DBDriver, c.DBPath, c.DBHost, c.DBName, c.DBUser, c.LogLevel, c.TokenTTL, c.MediaRoot, c.PageSize)
}

// Database returns the connection settings for database.InitDatabase
func (c *Config) Database() database.DatabaseConfig {
	return database.DatabaseConfig{
		Driver:   c.DBDriver,
		URL:      c.DatabaseURL,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
		Path:     c.DBPath,
	}
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// maskDatabaseURL masks password in database URL
func maskDatabaseURL(dbURL string) string {
	if dbURL == "" {
		return ""
	}

	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "[REDACTED_INVALID_URL]"
	}

	if parsed.User != nil {
		parsed.User = url.UserPassword(parsed.User.Username(), "[REDACTED]")
	}

	return parsed.String()
}

// LoadConfig reads the configuration from environment variables.
// Returns an error if a variable has an invalid format.
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	dbURL := GetEnvWithDefault("DATABASE_URL", "")
	driver := strings.ToLower(GetEnvWithDefault("DB_DRIVER", "sqlite"))
	if dbURL != "" {
		parsed, err := url.ParseRequestURI(dbURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL format: %w", err)
		}
		switch parsed.Scheme {
		case "postgres", "postgresql":
			driver = "postgres"
		default:
			return nil, fmt.Errorf("unsupported DATABASE_URL scheme %q", parsed.Scheme)
		}
	}

	ttlHours := GetEnvAsType("TOKEN_TTL_HOURS", 24)
	if ttlHours <= 0 {
		return nil, errors.New("TOKEN_TTL_HOURS must be positive")
	}

	config := &Config{
		Port:           port,
		Host:           GetEnvWithDefault("APP_HOST", "localhost"),
		Env:            GetEnvWithDefault("APP_ENV", "development"),
		DatabaseURL:    dbURL,
		DBDriver:       driver,
		DBPath:         GetEnvWithDefault("DB_PATH", "foodgram.sqlite"),
		DBHost:         GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:         GetEnvWithDefault("DB_PORT", "5432"),
		DBName:         GetEnvWithDefault("DB_NAME", "foodgram"),
		DBUser:         GetEnvWithDefault("DB_USER", "foodgram"),
		DBPassword:     GetEnvWithDefault("DB_PASSWORD", "foodgram"),
		DBSSLMode:      GetEnvWithDefault("DB_SSLMODE", "disable"),
		LogLevel:       GetEnvWithDefault("LOG_LEVEL", "info"),
		JWTSecret:      GetEnvWithDefault("JWT_SECRET", defaultJWTSecret),
		TokenTTL:       time.Duration(ttlHours) * time.Hour,
		LoginRateRPS:   GetEnvAsType("LOGIN_RATE_RPS", 1.0),
		LoginRateBurst: GetEnvAsType("LOGIN_RATE_BURST", 5),
		MediaRoot:      GetEnvWithDefault("MEDIA_ROOT", "media"),
		MediaURL:       GetEnvWithDefault("MEDIA_URL", "/media/"),
		PageSize:       GetEnvAsType("PAGE_SIZE", 6),
	}

	if config.Env == "production" && config.JWTSecret == defaultJWTSecret {
		return nil, errors.New("JWT_SECRET must be set in production")
	}
	if config.PageSize <= 0 {
		return nil, errors.New("PAGE_SIZE must be positive")
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value", key)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case float64:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return any(floatValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
