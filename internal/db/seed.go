package db

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/diewo77/invoicer/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedOptions controls demo data generation.
type SeedOptions struct {
	Count   int    // invoices to create
	Days    int    // creation dates are spread over the last Days days
	Clients int    // size of the client pool
	Force   bool   // seed even when invoices already exist
	Seed    uint64 // faker seed, 0 for random
	Now     time.Time
}

// DefaultSeedOptions returns the options used by DB_SEED=1.
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{Count: 40, Days: 120, Clients: 8}
}

// Seed fills an empty database with demo invoices. It is a no-op when invoices already
// exist unless opts.Force is set. It returns the number of invoices created.
func Seed(ctx context.Context, db *gorm.DB, opts SeedOptions, log *zap.Logger) (int, error) {
	if opts.Count <= 0 {
		return 0, nil
	}
	if opts.Days <= 0 {
		opts.Days = 1
	}
	if opts.Clients <= 0 {
		opts.Clients = 1
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&models.Invoice{}).Count(&existing).Error; err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	if existing > 0 && !opts.Force {
		log.Info("seed skipped, invoices already present", zap.Int64("existing", existing))
		return 0, nil
	}

	f := gofakeit.New(opts.Seed)
	clients := make([]string, opts.Clients)
	for i := range clients {
		clients[i] = f.Company()
	}

	invoices := make([]*models.Invoice, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		createdAt := opts.Now.Add(-time.Duration(f.Number(0, opts.Days*24*60)) * time.Minute)
		due := models.DefaultDueDate(createdAt)
		inv := &models.Invoice{
			Client:    clients[f.Number(0, len(clients)-1)],
			CreatedAt: createdAt,
			DueDate:   &due,
			Status:    models.InvoiceStatusSent,
		}
		// Roughly two thirds of the invoices past their term get paid.
		if due.Before(opts.Now) && f.Number(1, 3) > 1 {
			inv.Status = models.InvoiceStatusPaid
		}
		for n := f.Number(1, 4); n > 0; n-- {
			amount := decimal.NewFromFloat(f.Price(20, 2500)).Round(2)
			inv.Items = append(inv.Items, models.InvoiceItem{Description: f.ProductName(), Amount: amount})
		}
		inv.Amount = inv.ItemsTotal()
		invoices = append(invoices, inv)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, inv := range invoices {
			if err := tx.Create(inv).Error; err != nil {
				return err
			}
			number := models.FormatInvoiceNumber(inv.CreatedAt, inv.ID)
			if err := tx.Model(inv).Update("invoice_number", number).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed invoices: %w", err)
	}
	log.Info("seeded demo invoices", zap.Int("count", len(invoices)), zap.Int("clients", len(clients)))
	return len(invoices), nil
}
