package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/resilience"
)

// DB is the GORM handle shared by the SQL status and profile stores.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open connects, pinging until the server answers or cfg.MaxRetries
// attempts have failed, then sizes the pool.
func Open(ctx context.Context, dialector gorm.Dialector, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	slow, _ := time.ParseDuration(cfg.SlowQueryThreshold)

	policy := resilience.RetryConfig{
		MaxAttempts:    cfg.MaxRetries,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn("database not reachable yet", logger.MergeWithError(
				logger.Fields("driver", cfg.Driver, "attempt", attempt, "retry_in", wait.String()), err))
		},
	}
	gdb, err := resilience.Retry(ctx, policy, func() (*gorm.DB, error) {
		return connect(ctx, dialector, &gorm.Config{Logger: newQueryLogger(log, cfg.LogLevel, slow)})
	})
	if err != nil {
		return nil, fmt.Errorf("database: connect %s: %w", cfg.Driver, err)
	}

	pool, _ := gdb.DB()
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
		pool.SetConnMaxLifetime(d)
	}
	log.Info("database connected", logger.Fields("driver", cfg.Driver, "max_open", cfg.MaxOpenConns))
	return &DB{GormDB: gdb, log: log}, nil
}

func connect(ctx context.Context, dialector gorm.Dialector, gcfg *gorm.Config) (*gorm.DB, error) {
	gcfg.DisableAutomaticPing = true
	gcfg.TranslateError = true
	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}
	pool, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return gdb, nil
}

func (d *DB) pool() (*sql.DB, error) { return d.GormDB.DB() }

// Close is idempotent.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		pool, err := d.pool()
		if err != nil {
			d.closeErr = err
			return
		}
		d.closeErr = pool.Close()
	})
	return d.closeErr
}

func (d *DB) PingContext(ctx context.Context) error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// Stats reports connection pool usage.
func (d *DB) Stats() sql.DBStats {
	pool, err := d.pool()
	if err != nil {
		return sql.DBStats{}
	}
	return pool.Stats()
}

// WithContext starts a session bound to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.GormDB.WithContext(ctx)
}

// AutoMigrate creates or alters the tables behind models.
func (d *DB) AutoMigrate(models ...interface{}) error {
	for _, m := range models {
		if err := d.GormDB.AutoMigrate(m); err != nil {
			return fmt.Errorf("database: migrate %T: %w", m, err)
		}
	}
	d.log.Debug("schema migrated", logger.Fields("models", len(models)))
	return nil
}
