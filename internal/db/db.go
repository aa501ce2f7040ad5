package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nurpe/cnc-service/internal/config"
)

// New opens the postgres pool and brings the schema up to date.
func New(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	database, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(database); err != nil {
		return nil, err
	}
	log.Info().Int("statements", len(migrationStatements)).Msg("database migrated")
	return database, nil
}

func Open(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	gormLevel := gormlogger.Warn
	if cfg.Environment == "development" {
		gormLevel = gormlogger.Info
	}

	database, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{
		Logger: gormlogger.New(zerologWriter{log: log}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.DB.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
		}
		sqlDB.SetConnMaxLifetime(lifetime)
	}
	return database, nil
}

// Migrate applies the schema on an already open connection.
func Migrate(database *gorm.DB) error {
	return runMigrations(database)
}

type zerologWriter struct {
	log zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...interface{}) {
	w.log.Debug().Str("component", "gorm").Msgf(format, args...)
}
