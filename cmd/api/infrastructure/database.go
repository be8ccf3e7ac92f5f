package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"users-api/internal/config"
	"users-api/pkg/logger"
)

// startupPingTimeout bounds the single connectivity check done at startup
const startupPingTimeout = 5 * time.Second

// NewDatabase creates the shared connection pool with GORM configuration.
//
// The pool is opened without dialing. A single ping is issued afterwards;
// when it fails the error is logged and the pool is still returned, so the
// service keeps serving and database/sql reconnects on the next request.
func NewDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	dialector, err := newDialector(&cfg.DB)
	if err != nil {
		return nil, err
	}

	// Configure GORM logger
	gormLogger := logger.NewGormLogger(l, cfg.Logger.SlowQuerySeconds, cfg.Logger.Level)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying sql.DB for connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.DBPoolSize)
	sqlDB.SetMaxIdleConns(config.DBPoolSize)

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		l.Error("database unreachable at startup, continuing",
			zap.String("driver", cfg.DB.Driver),
			zap.String("host", cfg.DB.Host),
			zap.String("database", cfg.DB.Name),
			zap.Error(err),
		)
		return db, nil
	}

	l.Info("database connected successfully",
		zap.String("driver", cfg.DB.Driver),
		zap.String("database", cfg.DB.Name),
		zap.Int("max_open_conns", config.DBPoolSize),
	)

	return db, nil
}

// newDialector picks the GORM dialector for the configured driver.
func newDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := cfg.DSN()

	switch cfg.Driver {
	case config.DriverMySQL:
		// Skip the version probe so opening never dials the server
		return mysql.New(mysql.Config{
			DSN:                       dsn,
			SkipInitializeWithVersion: true,
		}), nil
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// CloseDatabase closes the database connection
func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
