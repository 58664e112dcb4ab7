package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"
	"testing/fstest"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/remworker/component"
	apperrors "github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/logger"
)

func memoryConfig() Config {
	cfg := Config{Enabled: true, Driver: DriverSQLite, DSN: ":memory:", AutoMigrate: true, LogLevel: "silent"}
	cfg.ApplyDefaults()
	return cfg
}

func TestComponent_Lifecycle(t *testing.T) {
	comp := NewComponent(memoryConfig(), logger.Nop())
	ctx := context.Background()

	if comp.DB() != nil {
		t.Error("DB() should be nil before Start")
	}
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %+v", h)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := comp.DB().Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}
}

func TestComponent_AutoMigrate(t *testing.T) {
	type row struct {
		ID   uint
		Name string
	}
	comp := NewComponent(memoryConfig(), logger.Nop()).WithAutoMigrate(&row{})
	if err := comp.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer comp.Stop(context.Background())
	if !comp.DB().GormDB.Migrator().HasTable(&row{}) {
		t.Error("table should have been migrated")
	}
}

func TestComponent_WithDriver(t *testing.T) {
	called := false
	comp := NewComponent(memoryConfig(), logger.Nop()).WithDriver(func(dsn string) gorm.Dialector {
		called = true
		return sqlite.Open(dsn)
	})
	if err := comp.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer comp.Stop(context.Background())
	if !called {
		t.Error("custom driver not used")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled skips checks", Config{}, false},
		{"sqlite memory", Config{Enabled: true, DSN: ":memory:"}, false},
		{"missing dsn", Config{Enabled: true}, true},
		{"unknown driver", Config{Enabled: true, Driver: "oracle", DSN: "x"}, true},
		{"bad lifetime", Config{Enabled: true, DSN: "x", ConnMaxLifetime: "soon"}, true},
		{"unknown migrations", Config{Enabled: true, DSN: "x", Migrations: "flyway"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromDatabase(t *testing.T) {
	if got := FromDatabase(gorm.ErrRecordNotFound, "recording", "r1"); got.Code != apperrors.ErrCodeNotFound {
		t.Errorf("code = %s", got.Code)
	}
	if got := FromDatabase(errors.New("dial tcp: connection refused"), "recording", "r1"); !got.Retryable {
		t.Error("connection errors should be retryable")
	}
	if got := FromDatabase(errors.New("syntax error"), "recording", "r1"); got.Retryable {
		t.Error("syntax errors should not be retryable")
	}
	if FromDatabase(nil, "x", "y") != nil {
		t.Error("nil in, nil out")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{driver.ErrBadConn, true},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		if got := IsRetryableError(tt.err); got != tt.want {
			t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestComponent_MemoryPoolPinned(t *testing.T) {
	cfg := Config{Enabled: true, DSN: ":memory:"}
	cfg.ApplyDefaults()
	if cfg.MaxOpenConns != 1 || cfg.MaxIdleConns != 1 || cfg.ConnMaxLifetime != "0s" {
		t.Errorf("memory pool = %d/%d %s", cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
	}
}

var testMigrations = fstest.MapFS{
	"sql/001_notes.up.sql":   {Data: []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);")},
	"sql/001_notes.down.sql": {Data: []byte("DROP TABLE notes;")},
	"sql/002_tags.up.sql":    {Data: []byte("CREATE TABLE tags (name TEXT PRIMARY KEY);")},
	"sql/002_tags.down.sql":  {Data: []byte("DROP TABLE tags;")},
}

func TestComponent_SQLMigrations(t *testing.T) {
	cfg := memoryConfig()
	cfg.Migrations = MigrateSQL
	comp := NewComponent(cfg, logger.Nop()).WithMigrations(testMigrations, "sql")
	ctx := context.Background()
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer comp.Stop(ctx)

	m := comp.DB().GormDB.Migrator()
	if !m.HasTable("notes") || !m.HasTable("tags") {
		t.Error("migrations were not applied")
	}
	v, dirty, err := comp.DB().MigrationVersion(testMigrations, "sql", migrationDrivers[DriverSQLite])
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 || dirty {
		t.Errorf("version = %d dirty=%t, want 2 clean", v, dirty)
	}
	if err := comp.DB().MigrateUp(testMigrations, "sql", migrationDrivers[DriverSQLite]); err != nil {
		t.Errorf("re-running up should be a no-op: %v", err)
	}
}

func TestComponent_SQLMigrationsRequireFiles(t *testing.T) {
	cfg := memoryConfig()
	cfg.Migrations = MigrateSQL
	comp := NewComponent(cfg, logger.Nop())
	if err := comp.Start(context.Background()); err == nil {
		comp.Stop(context.Background())
		t.Fatal("expected an error without registered migrations")
	}
	if comp.DB() != nil {
		t.Error("DB should stay nil when migration fails")
	}
}
