package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/diewo77/invoicer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type InvoiceServiceSuite struct {
	suite.Suite
	db       *gorm.DB
	recorder *countingRecorder
	svc      *InvoiceService
	ctx      context.Context
}

func TestInvoiceServiceSuite(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.recorder = &countingRecorder{}
	s.svc = NewInvoiceService(s.db,
		WithRecorder(s.recorder),
		WithClock(func() time.Time { return fixedNow }),
	)
	s.ctx = context.Background()
}

func (s *InvoiceServiceSuite) create(client string, items ...ItemInput) *models.Invoice {
	inv, err := s.svc.Create(s.ctx, InvoiceInput{Client: client, Items: items})
	s.Require().NoError(err)
	return inv
}

func (s *InvoiceServiceSuite) TestCreateWithItems() {
	inv := s.create("Acme",
		ItemInput{Description: "Design", Amount: "100"},
		ItemInput{Description: "Hosting", Amount: "50.25"},
	)

	s.NotZero(inv.ID)
	s.True(inv.Amount.Equal(dec("150.25")))
	s.Equal(models.InvoiceStatusSent, inv.Status)
	s.Equal("INV-20240315-120000-0001", inv.Number())
	s.Require().NotNil(inv.DueDate)
	s.Equal("2024-03-29", inv.DueDate.Format("2006-01-02"))
	s.Equal(1, s.recorder.created)

	items, err := s.svc.Items(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Len(items, 2)
	sum := items[0].Amount.Add(items[1].Amount)
	s.True(sum.Equal(inv.Amount), "items sum %s != amount %s", sum, inv.Amount)
}

func (s *InvoiceServiceSuite) TestCreateDirectAmount() {
	inv, err := s.svc.Create(s.ctx, InvoiceInput{Client: "Solo", Amount: "75"})
	s.Require().NoError(err)

	got, err := s.svc.Get(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.True(got.Amount.Equal(dec("75")))
	s.Empty(got.Items)
}

func (s *InvoiceServiceSuite) TestCreateInvalidStoresNothing() {
	_, err := s.svc.Create(s.ctx, InvoiceInput{Client: "", Items: []ItemInput{{}}})
	s.True(errors.Is(err, ErrInvalidInput))

	var count int64
	s.db.Model(&models.Invoice{}).Count(&count)
	s.Zero(count)
	s.Zero(s.recorder.created)
}

func (s *InvoiceServiceSuite) TestInvoiceNumbersAreUnique() {
	a := s.create("A", ItemInput{Description: "x", Amount: "1"})
	b := s.create("B", ItemInput{Description: "y", Amount: "2"})
	s.NotEqual(a.Number(), b.Number())
}

func (s *InvoiceServiceSuite) TestGetUnknown() {
	_, err := s.svc.Get(s.ctx, 4242)
	s.True(errors.Is(err, ErrNotFound))
}

func (s *InvoiceServiceSuite) TestGetPromotesAndWritesBack() {
	raw := insert(s.T(), s.db, inv(0, "Late", "80", fixedNow.AddDate(0, 0, -20), models.InvoiceStatusSent))

	got, err := s.svc.Get(s.ctx, raw.ID)
	s.Require().NoError(err)
	s.Equal(models.InvoiceStatusOverdue, got.Status)
	s.Equal(1, s.recorder.promoted)

	var stored models.Invoice
	s.Require().NoError(s.db.First(&stored, raw.ID).Error)
	s.Equal(models.InvoiceStatusOverdue, stored.Status)
	s.Require().NotNil(stored.DueDate)
	s.Equal("2024-03-09", stored.DueDate.Format("2006-01-02"))

	_, err = s.svc.Get(s.ctx, raw.ID)
	s.Require().NoError(err)
	s.Equal(1, s.recorder.promoted, "resolution must be idempotent")
}

func (s *InvoiceServiceSuite) TestPaidNeverBecomesOverdue() {
	raw := insert(s.T(), s.db, inv(0, "Good payer", "80", fixedNow.AddDate(0, 0, -200), models.InvoiceStatusPaid))

	got, err := s.svc.Get(s.ctx, raw.ID)
	s.Require().NoError(err)
	s.Equal(models.InvoiceStatusPaid, got.Status)
	s.Zero(s.recorder.promoted)
}

func (s *InvoiceServiceSuite) TestUpdateReplacesItems() {
	created := s.create("Acme",
		ItemInput{Description: "a", Amount: "10"},
		ItemInput{Description: "b", Amount: "20"},
	)

	updated, err := s.svc.Update(s.ctx, created.ID, InvoiceInput{
		Client: "Acme Corp",
		Items:  []ItemInput{{Description: "c", Amount: "5.5"}},
	})
	s.Require().NoError(err)
	s.Equal("Acme Corp", updated.Client)
	s.True(updated.Amount.Equal(dec("5.5")))
	s.Require().Len(updated.Items, 1)
	s.Equal("c", updated.Items[0].Description)
	s.Equal(created.Number(), updated.Number())

	items, err := s.svc.Items(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Len(items, 1)
}

func (s *InvoiceServiceSuite) TestUpdateToDirectAmountDropsItems() {
	created := s.create("Acme", ItemInput{Description: "a", Amount: "10"})

	updated, err := s.svc.Update(s.ctx, created.ID, InvoiceInput{Client: "Acme", Amount: "99"})
	s.Require().NoError(err)
	s.True(updated.Amount.Equal(dec("99")))
	s.Empty(updated.Items)
}

func (s *InvoiceServiceSuite) TestUpdateErrors() {
	_, err := s.svc.Update(s.ctx, 999, InvoiceInput{Client: "x", Amount: "1"})
	s.True(errors.Is(err, ErrNotFound))

	created := s.create("Acme", ItemInput{Description: "a", Amount: "10"})
	_, err = s.svc.Update(s.ctx, created.ID, InvoiceInput{Client: ""})
	s.True(errors.Is(err, ErrInvalidInput))

	items, err := s.svc.Items(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Len(items, 1, "a rejected update must leave the items untouched")
}

func (s *InvoiceServiceSuite) TestSetStatus() {
	created := s.create("Acme", ItemInput{Description: "a", Amount: "10"})

	got, err := s.svc.SetStatus(s.ctx, created.ID, "paid")
	s.Require().NoError(err)
	s.Equal(models.InvoiceStatusPaid, got.Status)
	s.Equal([]models.InvoiceStatus{models.InvoiceStatusPaid}, s.recorder.statuses)

	_, err = s.svc.SetStatus(s.ctx, created.ID, "Cancelled")
	s.True(errors.Is(err, ErrInvalidStatus))

	_, err = s.svc.SetStatus(s.ctx, 999, "Paid")
	s.True(errors.Is(err, ErrNotFound))
}

func (s *InvoiceServiceSuite) TestDeleteCascades() {
	created := s.create("Acme",
		ItemInput{Description: "a", Amount: "10"},
		ItemInput{Description: "b", Amount: "20"},
	)

	s.Require().NoError(s.svc.Delete(s.ctx, created.ID))

	items, err := s.svc.Items(s.ctx, created.ID)
	s.Require().NoError(err)
	s.NotNil(items)
	s.Empty(items)

	_, err = s.svc.Get(s.ctx, created.ID)
	s.True(errors.Is(err, ErrNotFound))
	s.True(errors.Is(s.svc.Delete(s.ctx, created.ID), ErrNotFound))
}

func (s *InvoiceServiceSuite) TestListRangeScopesInvoicesAndAnalytics() {
	insert(s.T(), s.db, inv(0, "Recent", "100", fixedNow.AddDate(0, 0, -3), models.InvoiceStatusSent))
	insert(s.T(), s.db, inv(0, "Older", "400", fixedNow.AddDate(0, 0, -40), models.InvoiceStatusPaid))

	all, err := s.svc.List(s.ctx, ListQuery{})
	s.Require().NoError(err)
	s.Len(all.Invoices, 2)
	s.Equal("all", all.Range)
	s.Equal("Recent", all.Invoices[0].Client, "newest first")

	recent, err := s.svc.List(s.ctx, ListQuery{Range: "30"})
	s.Require().NoError(err)
	s.Require().Len(recent.Invoices, 1)
	s.Equal("Recent", recent.Invoices[0].Client)
	s.Equal("30", recent.Range)
	s.Equal(1, recent.Analytics.InvoiceCount)
	s.True(recent.Analytics.TotalRevenue.Equal(dec("100")))
	s.Require().Len(recent.Analytics.TopClients, 1)
	s.Equal("Recent", recent.Analytics.TopClients[0].Client)
}

func (s *InvoiceServiceSuite) TestListSearch() {
	a := s.create("Acme Industries", ItemInput{Description: "a", Amount: "10"})
	s.create("Globex", ItemInput{Description: "b", Amount: "20"})

	byClient, err := s.svc.List(s.ctx, ListQuery{Search: "  aCmE "})
	s.Require().NoError(err)
	s.Require().Len(byClient.Invoices, 1)
	s.Equal(a.ID, byClient.Invoices[0].ID)
	s.Equal("aCmE", byClient.Search)

	byNumber, err := s.svc.List(s.ctx, ListQuery{Search: "inv-20240315-120000-0002"})
	s.Require().NoError(err)
	s.Require().Len(byNumber.Invoices, 1)
	s.Equal("Globex", byNumber.Invoices[0].Client)

}

func (s *InvoiceServiceSuite) TestListSearchMatchesWildcardsLiterally() {
	exact := s.create("acme_corp", ItemInput{Description: "a", Amount: "10"})
	s.create("acmeXcorp", ItemInput{Description: "b", Amount: "20"})
	sale := s.create("50% Off!", ItemInput{Description: "c", Amount: "30"})

	tests := []struct {
		search string
		want   []uint
	}{
		{"acme_corp", []uint{exact.ID}},
		{"ACME_CORP", []uint{exact.ID}},
		{"50%", []uint{sale.ID}},
		{"%", []uint{sale.ID}},
		{"off!", []uint{sale.ID}},
		{"_", []uint{exact.ID}},
	}
	for _, tt := range tests {
		listing, err := s.svc.List(s.ctx, ListQuery{Search: tt.search})
		s.Require().NoError(err, tt.search)
		var got []uint
		for _, inv := range listing.Invoices {
			got = append(got, inv.ID)
		}
		s.Equal(tt.want, got, "search %q", tt.search)
	}
}

func (s *InvoiceServiceSuite) TestListResolvesOverdue() {
	late := insert(s.T(), s.db, inv(0, "Late", "50", fixedNow.AddDate(0, 0, -20), models.InvoiceStatusSent))
	insert(s.T(), s.db, inv(0, "Fresh", "70", fixedNow.AddDate(0, 0, -2), models.InvoiceStatusSent))

	listing, err := s.svc.List(s.ctx, ListQuery{})
	s.Require().NoError(err)
	s.Equal(1, listing.Analytics.OverdueCount)
	s.Equal([]uint{late.ID}, listing.Analytics.OverdueIDs)
	s.Equal(1, s.recorder.promoted)
}

func (s *InvoiceServiceSuite) TestListInvalidRange() {
	_, err := s.svc.List(s.ctx, ListQuery{Range: "365"})
	s.True(errors.Is(err, ErrInvalidRange))
}

func (s *InvoiceServiceSuite) TestPreviewDoesNotPersist() {
	p, err := s.svc.Preview(InvoiceInput{Client: "Acme", Items: []ItemInput{{Description: "a", Amount: "12"}}})
	s.Require().NoError(err)
	s.Zero(p.ID)
	s.True(p.Amount.Equal(dec("12")))

	var count int64
	s.db.Model(&models.Invoice{}).Count(&count)
	s.Zero(count)
}

func TestResolveWriteBackFailureIsLogged(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	due := models.DefaultDueDate(fixedNow.AddDate(0, 0, -20))
	mock.ExpectExec(`UPDATE "invoices" SET "status"`).WillReturnError(errors.New("connection reset"))

	core, logs := observer.New(zap.WarnLevel)
	rec := &countingRecorder{}
	svc := NewInvoiceService(db, WithLogger(zap.New(core)), WithRecorder(rec))

	i := inv(7, "Late", "10", fixedNow.AddDate(0, 0, -20), models.InvoiceStatusSent)
	i.DueDate = &due
	res := svc.Resolve(context.Background(), &i, fixedNow)

	assert.True(t, res.BecameOverdue)
	assert.Equal(t, models.InvoiceStatusOverdue, i.Status, "the resolved record is returned even when the write fails")
	assert.Zero(t, rec.promoted)
	assert.Equal(t, 1, logs.FilterMessage("overdue write-back failed").Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}
