package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/invoicer/internal/config"
	"github.com/diewo77/invoicer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sqliteConfig(t *testing.T) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "invoices.db"),
	}
}

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	conn, err := Connect(cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, Migrate(conn, cfg, false, zap.NewNop()))
	assert.True(t, conn.Migrator().HasTable(&models.Invoice{}))
	assert.True(t, conn.Migrator().HasTable(&models.InvoiceItem{}))

	// Running twice is harmless.
	require.NoError(t, Migrate(conn, cfg, false, zap.NewNop()))
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestDialectorNames(t *testing.T) {
	for _, driver := range []string{"postgres", "sqlite", "mysql"} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, DSN: "x", Host: "h", DBName: "n"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_invoices.up.sql")
	assert.Contains(t, names, "000001_create_invoices.down.sql")

	up, err := migrationFiles.ReadFile("migrations/000001_create_invoices.up.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(up), "ON DELETE CASCADE"))
}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := gorm.Open(sqlite.Open("file:seed_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := d.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, d.AutoMigrate(Models()...))
	return d
}

func TestSeedIdempotent(t *testing.T) {
	d := openMemory(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	opts := SeedOptions{Count: 12, Days: 120, Clients: 4, Seed: 42, Now: now}

	n, err := Seed(context.Background(), d, opts, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = Seed(context.Background(), d, opts, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, n, "second run without force must be a no-op")

	var count int64
	d.Model(&models.Invoice{}).Count(&count)
	assert.Equal(t, int64(12), count)

	opts.Force = true
	n, err = Seed(context.Background(), d, opts, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestSeedData(t *testing.T) {
	d := openMemory(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	_, err := Seed(context.Background(), d, SeedOptions{Count: 20, Days: 120, Clients: 5, Seed: 7, Now: now}, zap.NewNop())
	require.NoError(t, err)

	var invoices []models.Invoice
	require.NoError(t, d.Preload("Items").Find(&invoices).Error)
	require.Len(t, invoices, 20)

	clients := map[string]bool{}
	for _, inv := range invoices {
		clients[inv.Client] = true
		require.NotNil(t, inv.InvoiceNumber)
		assert.True(t, strings.HasPrefix(*inv.InvoiceNumber, "INV-"))
		assert.NotEmpty(t, inv.Items)
		assert.True(t, inv.ItemsTotal().Equal(inv.Amount), "items must sum to the invoice amount")
		assert.False(t, inv.CreatedAt.After(now))
		assert.False(t, inv.CreatedAt.Before(now.AddDate(0, 0, -120)))
		assert.NotEqual(t, models.InvoiceStatusOverdue, inv.Status, "overdue is derived on read")
	}
	assert.LessOrEqual(t, len(clients), 5)
}

func TestSeedZeroCount(t *testing.T) {
	n, err := Seed(context.Background(), nil, SeedOptions{}, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, n)
}
