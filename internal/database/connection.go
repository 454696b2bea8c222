package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// connectAttempts and firstRetryDelay bound the startup wait for a database
// that is still coming up; the delay doubles after every failed attempt
const (
	connectAttempts = 5
	firstRetryDelay = time.Second
)

// poolSettings are applied to the sql.DB behind gorm
type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

// SQLite serializes writers, a single connection avoids "database is locked"
var (
	postgresPool = poolSettings{maxOpen: 25, maxIdle: 5, maxLifetime: 5 * time.Minute}
	sqlitePool   = poolSettings{maxOpen: 1, maxIdle: 1}
)

// InitDatabase opens the configured database, retrying with exponential
// backoff, and configures its connection pool. Unique violations surface
// as gorm.ErrDuplicatedKey for every driver.
func InitDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	dialector, pool, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	entry := log.WithFields(logrus.Fields{
		"db_driver": dialector.Name(),
		"db_host":   cfg.Host,
		"db_name":   cfg.Name,
		"db_path":   cfg.Path,
	})
	entry.Info("Initializing database connection")

	delay := firstRetryDelay
	for attempt := 1; ; attempt++ {
		var db *gorm.DB
		db, err = connect(dialector)
		if err == nil {
			sqlDB, _ := db.DB()
			pool.apply(sqlDB)
			entry.WithField("attempt", attempt).Info("Database initialized successfully")
			return db, nil
		}

		entry.WithError(err).WithField("attempt", attempt).Warn("Database connection attempt failed")
		if attempt == connectAttempts {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectAttempts, err)
}

func dialectorFor(cfg DatabaseConfig) (gorm.Dialector, poolSettings, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN()), postgresPool, nil
	case "sqlite", "":
		return sqlite.Open(cfg.DSN()), sqlitePool, nil
	default:
		return nil, poolSettings{}, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", cfg.Driver)
	}
}

// connect opens and pings the database
func connect(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

func (p poolSettings) apply(sqlDB *sql.DB) {
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxLifetime(p.maxLifetime)

	log.WithFields(logrus.Fields{
		"max_open_conns":    p.maxOpen,
		"max_idle_conns":    p.maxIdle,
		"conn_max_lifetime": p.maxLifetime.String(),
	}).Debug("Connection pool configured")
}
