package services

import (
	"time"

	"github.com/diewo77/invoicer/internal/models"
)

// Resolution describes what Resolve changed on an invoice record.
type Resolution struct {
	DueDateSet    bool
	BecameOverdue bool
}

// Changed reports whether the record needs to be written back.
func (r Resolution) Changed() bool {
	return r.DueDateSet || r.BecameOverdue
}

// Resolve brings due date and status up to date with today.
//
// A missing due date becomes created_at + PaymentTermDays. A Sent invoice whose
// due date lies strictly before today becomes Overdue. Paid invoices keep their
// status whatever the due date. Calling Resolve again with the same today is a no-op.
func Resolve(inv *models.Invoice, today time.Time) Resolution {
	var res Resolution
	if inv == nil {
		return res
	}
	if inv.DueDate == nil {
		due := models.DefaultDueDate(inv.CreatedAt)
		inv.DueDate = &due
		res.DueDateSet = true
	}
	if inv.Status == models.InvoiceStatusSent && models.DateOf(*inv.DueDate).Before(models.DateOf(today)) {
		inv.Status = models.InvoiceStatusOverdue
		res.BecameOverdue = true
	}
	return res
}

// CheckStatus validates a requested status change.
func CheckStatus(raw string) (models.InvoiceStatus, error) {
	s, ok := models.ParseStatus(raw)
	if !ok {
		return "", ErrInvalidStatus
	}
	return s, nil
}
