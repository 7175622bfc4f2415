package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepmate/backend/repository"
	"github.com/prepmate/backend/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// openRepository connects GORM to Postgres and applies the pool limits
func openRepository(cfg services.DatabaseConfig) (*repository.GORMRepository, func(), error) {
	if cfg.URL == "" {
		return nil, nil, errors.New("DATABASE_URL not configured")
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	slog.Info("Connected to database")
	closeFn := func() {
		if err := sqlDB.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}
	return repository.NewGORMRepository(db), closeFn, nil
}

// openHealthPool opens a small pgx pool used only by the health endpoint
func openHealthPool(ctx context.Context, url string) *pgxpool.Pool {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		slog.Warn("Health check pool disabled", "error", err)
		return nil
	}
	poolCfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		slog.Warn("Health check pool disabled", "error", err)
		return nil
	}
	return pool
}
