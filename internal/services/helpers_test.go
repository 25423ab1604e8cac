package services

import (
	"strings"
	"testing"
	"time"

	"github.com/diewo77/invoicer/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fixedNow is the clock used across the store tests.
var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&models.Invoice{}, &models.InvoiceItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func inv(id uint, client, amount string, created time.Time, status models.InvoiceStatus) models.Invoice {
	return models.Invoice{ID: id, Client: client, Amount: dec(amount), CreatedAt: created, Status: status}
}

// insert stores a raw invoice row, bypassing the service (no due date unless given).
func insert(t *testing.T, db *gorm.DB, i models.Invoice) models.Invoice {
	t.Helper()
	if err := db.Create(&i).Error; err != nil {
		t.Fatalf("insert invoice: %v", err)
	}
	return i
}

type countingRecorder struct {
	created, promoted int
	statuses          []models.InvoiceStatus
}

func (c *countingRecorder) InvoiceCreated() { c.created++ }

func (c *countingRecorder) StatusChanged(s models.InvoiceStatus) { c.statuses = append(c.statuses, s) }

func (c *countingRecorder) OverduePromoted() { c.promoted++ }
