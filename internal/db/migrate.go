package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/invoicer/internal/config"
	"github.com/diewo77/invoicer/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Models lists every table the application owns, in creation order.
func Models() []any {
	return []any{&models.Invoice{}, &models.InvoiceItem{}}
}

// Migrate brings the schema up to date. With sqlMigrations on a postgres database the
// embedded SQL files run through golang-migrate; otherwise gorm AutoMigrate is used.
func Migrate(db *gorm.DB, cfg config.DatabaseConfig, sqlMigrations bool, log *zap.Logger) error {
	if sqlMigrations && cfg.Driver == "postgres" {
		log.Info("running sql migrations")
		if err := RunSQLMigrations(ToURLDSN(NormalizeDSN(cfg.ConnectionString())), false); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range Models() {
			if err := db.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}

	for _, table := range []string{"invoices", "invoice_items"} {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies (or with down, reverts) the embedded migrations against a postgres URL.
func RunSQLMigrations(databaseURL string, down bool) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
