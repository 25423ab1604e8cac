package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/invoicer/internal/logger"
	"github.com/diewo77/invoicer/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder receives invoice lifecycle events (metrics).
type Recorder interface {
	InvoiceCreated()
	StatusChanged(status models.InvoiceStatus)
	OverduePromoted()
}

type nopRecorder struct{}

func (nopRecorder) InvoiceCreated()                    {}
func (nopRecorder) StatusChanged(models.InvoiceStatus) {}
func (nopRecorder) OverduePromoted()                   {}

// InvoiceService encapsulates invoice persistence, lifecycle resolution and reporting.
type InvoiceService struct {
	db       *gorm.DB
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures an InvoiceService.
type Option func(*InvoiceService)

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(s *InvoiceService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder plugs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *InvoiceService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *InvoiceService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInvoiceService(db *gorm.DB, opts ...Option) *InvoiceService {
	s := &InvoiceService{db: db, logger: zap.NewNop(), recorder: nopRecorder{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock reading.
func (s *InvoiceService) Now() time.Time { return s.now() }

func (s *InvoiceService) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// Preview validates the input and returns the invoice that would be saved, without persisting it.
func (s *InvoiceService) Preview(in InvoiceInput) (*models.Invoice, error) {
	d, err := Normalize(in)
	if err != nil {
		return nil, err
	}
	now := s.now()
	due := models.DefaultDueDate(now)
	return &models.Invoice{
		Client:    d.Client,
		Amount:    d.Amount,
		CreatedAt: now,
		DueDate:   &due,
		Status:    models.InvoiceStatusSent,
		Items:     d.Items,
	}, nil
}

// Create saves a new invoice with its items and assigns its display number.
func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput) (*models.Invoice, error) {
	inv, err := s.Preview(in)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		number := models.FormatInvoiceNumber(inv.CreatedAt, inv.ID)
		if err := tx.Model(inv).Update("invoice_number", number).Error; err != nil {
			return err
		}
		inv.InvoiceNumber = &number
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.recorder.InvoiceCreated()
	s.log(ctx).Info("invoice created",
		zap.Uint("invoice_id", inv.ID),
		zap.String("invoice_number", inv.Number()),
		zap.String("amount", inv.Amount.StringFixed(2)),
		zap.Int("items", len(inv.Items)),
	)
	return inv, nil
}

// Get loads an invoice with its items, resolved against today.
func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&inv, id).Error
	if err != nil {
		return nil, notFoundOr(err, "load invoice")
	}
	s.Resolve(ctx, &inv, s.now())
	return &inv, nil
}

// Items returns the line items of an invoice; unknown invoices yield an empty slice.
func (s *InvoiceService) Items(ctx context.Context, invoiceID uint) ([]models.InvoiceItem, error) {
	items := []models.InvoiceItem{}
	if err := s.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return items, nil
}

// Update replaces client, amount and the whole item set of an invoice.
func (s *InvoiceService) Update(ctx context.Context, id uint, in InvoiceInput) (*models.Invoice, error) {
	d, err := Normalize(in)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Select("id").First(&inv, id).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&inv).Updates(map[string]any{"client": d.Client, "amount": d.Amount}).Error; err != nil {
			return err
		}
		if len(d.Items) == 0 {
			return nil
		}
		for i := range d.Items {
			d.Items[i].InvoiceID = id
		}
		return tx.Create(&d.Items).Error
	})
	if err != nil {
		return nil, notFoundOr(err, "update invoice")
	}
	s.log(ctx).Info("invoice updated", zap.Uint("invoice_id", id), zap.String("amount", d.Amount.StringFixed(2)))
	return s.Get(ctx, id)
}

// SetStatus overwrites the status of an invoice. Only Sent, Paid and Overdue are accepted.
func (s *InvoiceService) SetStatus(ctx context.Context, id uint, raw string) (*models.Invoice, error) {
	status, err := CheckStatus(raw)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var inv models.Invoice
	if err := db.First(&inv, id).Error; err != nil {
		return nil, notFoundOr(err, "load invoice")
	}
	if err := db.Model(&inv).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	s.recorder.StatusChanged(status)
	s.log(ctx).Info("invoice status changed",
		zap.Uint("invoice_id", id),
		zap.String("from", inv.Status.String()),
		zap.String("to", status.String()),
	)
	inv.Status = status
	return &inv, nil
}

// Delete removes an invoice and its items.
func (s *InvoiceService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Select("id").First(&inv, id).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&inv).Error
	})
	if err != nil {
		return notFoundOr(err, "delete invoice")
	}
	s.log(ctx).Info("invoice deleted", zap.Uint("invoice_id", id))
	return nil
}

// Resolve applies lifecycle resolution to inv and writes back what changed.
// The write-back is best effort: failures are logged and the resolved record is still returned.
// Status promotion only applies to rows still Sent, so a concurrent payment is never overwritten.
func (s *InvoiceService) Resolve(ctx context.Context, inv *models.Invoice, today time.Time) Resolution {
	res := Resolve(inv, today)
	if !res.Changed() || inv.ID == 0 {
		return res
	}
	if res.DueDateSet {
		err := s.db.WithContext(ctx).Model(&models.Invoice{}).
			Where("id = ? AND due_date IS NULL", inv.ID).
			Update("due_date", *inv.DueDate).Error
		if err != nil {
			s.log(ctx).Warn("due date write-back failed", zap.Uint("invoice_id", inv.ID), zap.Error(err))
		}
	}
	if res.BecameOverdue {
		err := s.db.WithContext(ctx).Model(&models.Invoice{}).
			Where("id = ? AND status = ?", inv.ID, models.InvoiceStatusSent).
			Update("status", models.InvoiceStatusOverdue).Error
		if err != nil {
			s.log(ctx).Warn("overdue write-back failed", zap.Uint("invoice_id", inv.ID), zap.Error(err))
		} else {
			s.recorder.OverduePromoted()
		}
	}
	return res
}

// ListQuery scopes a listing.
type ListQuery struct {
	Range  string
	Search string
}

// Listing is the resolved invoice list plus its analytics bundle.
type Listing struct {
	Invoices  []models.Invoice `json:"invoices"`
	Analytics Report           `json:"analytics"`
	Range     string           `json:"range"`
	Search    string           `json:"search,omitempty"`
}

// likeEscaper makes LIKE wildcards in a search term match literally. The escape
// character is '!' because a backslash literal is not portable to MySQL.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// List loads the invoices in scope (newest first), resolves each against today and aggregates them.
func (s *InvoiceService) List(ctx context.Context, q ListQuery) (*Listing, error) {
	rng, err := ParseRange(q.Range)
	if err != nil {
		return nil, err
	}
	now := s.now()
	db := s.db.WithContext(ctx).Model(&models.Invoice{})
	if cutoff, ok := rng.Cutoff(now); ok {
		db = db.Where("created_at >= ?", cutoff)
	}
	search := strings.TrimSpace(q.Search)
	if search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		db = db.Where("(lower(client) LIKE ? ESCAPE '!' OR lower(coalesce(invoice_number, '')) LIKE ? ESCAPE '!')", like, like)
	}
	invoices := []models.Invoice{}
	if err := db.Order("created_at desc").Order("id desc").Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	for i := range invoices {
		s.Resolve(ctx, &invoices[i], now)
	}
	return &Listing{
		Invoices:  invoices,
		Analytics: Summarize(invoices, now),
		Range:     rng.String(),
		Search:    search,
	}, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
