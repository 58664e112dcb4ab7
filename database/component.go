package database

import (
	"context"
	"fmt"
	"io/fs"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/remworker/component"
	"github.com/kbukum/remworker/logger"
)

// DriverFunc builds a dialector from a DSN.
type DriverFunc func(dsn string) gorm.Dialector

var drivers = map[string]DriverFunc{
	DriverSQLite:   sqlite.Open,
	DriverPostgres: postgres.Open,
}

var _ component.Component = (*Component)(nil)

// Component opens the database at startup and migrates the store tables.
type Component struct {
	cfg    Config
	log    *logger.Logger
	driver DriverFunc
	models []interface{}
	sqlFS  fs.FS
	sqlDir string
	db     *DB
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("database"), driver: drivers[cfg.Driver]}
}

// WithDriver replaces the dialector Config.Driver selects.
func (c *Component) WithDriver(fn DriverFunc) *Component {
	c.driver = fn
	return c
}

// WithAutoMigrate adds models migrated on Start when auto_migrate is on.
func (c *Component) WithAutoMigrate(models ...interface{}) *Component {
	c.models = append(c.models, models...)
	return c
}

// WithMigrations sets the versioned SQL files applied on Start when
// migrations is "sql".
func (c *Component) WithMigrations(fsys fs.FS, dir string) *Component {
	c.sqlFS, c.sqlDir = fsys, dir
	return c
}

func (c *Component) Name() string { return "database" }

// DB is nil until Start succeeds.
func (c *Component) DB() *DB { return c.db }

func (c *Component) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	db, err := Open(ctx, c.driver(c.cfg.DSN), c.cfg, c.log)
	if err != nil {
		return err
	}
	if err := c.migrate(db); err != nil {
		_ = db.Close()
		return err
	}
	c.db = db
	return nil
}

func (c *Component) migrate(db *DB) error {
	if !c.cfg.AutoMigrate {
		return nil
	}
	if c.cfg.Migrations == MigrateSQL {
		if c.sqlFS == nil {
			return fmt.Errorf("database: sql migrations selected but none registered")
		}
		if err := db.MigrateUp(c.sqlFS, c.sqlDir, migrationDrivers[c.cfg.Driver]); err != nil {
			return err
		}
		v, _, err := db.MigrationVersion(c.sqlFS, c.sqlDir, migrationDrivers[c.cfg.Driver])
		if err == nil {
			c.log.Info("schema migrated", logger.Fields("version", v))
		}
		return nil
	}
	if len(c.models) == 0 {
		return nil
	}
	return db.AutoMigrate(c.models...)
}

func (c *Component) Stop(context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusUnhealthy}
	if c.db == nil {
		h.Message = "not started"
		return h
	}
	if err := c.db.PingContext(ctx); err != nil {
		h.Message = err.Error()
		return h
	}
	st := c.db.Stats()
	h.Status = component.StatusHealthy
	h.Message = fmt.Sprintf("open=%d in_use=%d", st.OpenConnections, st.InUse)
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "database",
		Details: fmt.Sprintf("driver=%s pool=%d/%d migrate=%t (%s)", c.cfg.Driver, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns, c.cfg.AutoMigrate, c.cfg.Migrations),
	}
}
