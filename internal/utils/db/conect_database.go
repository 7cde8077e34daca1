package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/config"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// uniqueViolation is the SQLSTATE Postgres returns for unique index conflicts.
const uniqueViolation = "23505"

// ConnectDataBase opens the GORM connection described by cfg. Credentials
// come from DB_USER/DB_PASSWORD or, when DB_SECRET_ID is set, from AWS
// Secrets Manager.
func ConnectDataBase(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	username, password := cfg.User, cfg.Password
	if cfg.SecretID != "" {
		creds, err := retrieveCredentials(ctx, cfg.SecretID)
		if err != nil {
			return nil, err
		}
		username, password = creds.Username, creds.Password
		log.Info("database credentials loaded from secrets manager", zap.String("secret_id", cfg.SecretID))
	}

	database, err := gorm.Open(postgres.Open(cfg.DSN(username, password)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Ping(ctx, database, cfg.Timeout); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info("database connected", zap.String("host", cfg.Host), zap.String("name", cfg.Name))
	return database, nil
}

func Ping(ctx context.Context, database *gorm.DB, timeout time.Duration) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// TranslateError maps driver errors to apperr sentinels: missing rows become
// apperr.ErrNotFound and unique violations apperr.ErrDuplicate.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", apperr.ErrDuplicate, pgErr.ConstraintName)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrDuplicate
	}
	return err
}

// WithTimeout binds database to ctx bounded by timeout. Callers must call the
// returned cancel once the query has finished.
func WithTimeout(ctx context.Context, database *gorm.DB, timeout time.Duration) (*gorm.DB, context.CancelFunc) {
	if timeout <= 0 {
		return database.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return database.WithContext(ctx), cancel
}
