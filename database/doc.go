// Package database provides a GORM-based database component with connection
// retry, pooling, health checks and auto-migration.
//
// The driver is chosen by Config.Driver ("sqlite" or "postgres"); WithDriver
// overrides it with any gorm.Dialector constructor.
//
//	comp := database.NewComponent(cfg, log).WithAutoMigrate(&sqlstore.StatusRow{})
//	registry.Register(comp)
package database
