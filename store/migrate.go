package store

import (
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/fabriqs/wedding-pix/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded goose migrations to the database behind db.
func Migrate(db *gorm.DB, driver string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	dialect := "sqlite3"
	if driver == DriverPostgres {
		dialect = "postgres"
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(logger.Logger)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	logger.Info("Running database migrations", map[string]interface{}{"dialect": dialect})
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
