package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusSent    InvoiceStatus = "Sent"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
)

// Statuses lists every recognized status in display order.
var Statuses = []InvoiceStatus{InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue}

// IsValid reports whether s is one of the recognized statuses.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

func (s InvoiceStatus) String() string {
	return string(s)
}

// ParseStatus matches a status name case-insensitively ("paid" -> Paid).
func ParseStatus(raw string) (InvoiceStatus, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(raw, string(s)) {
			return s, true
		}
	}
	return InvoiceStatus(raw), false
}

// PaymentTermDays is the number of days between creation and the due date.
const PaymentTermDays = 14

// Invoice represents a billing invoice.
// Amount is either entered directly or the sum of its items.
type Invoice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	InvoiceNumber *string         `gorm:"size:50;uniqueIndex" json:"invoice_number,omitempty"`
	Client        string          `gorm:"size:255;not null;index" json:"client"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"created_at"`
	DueDate       *time.Time      `gorm:"type:date" json:"due_date,omitempty"`
	Status        InvoiceStatus   `gorm:"size:20;not null;default:'Sent'" json:"status"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// Number returns the display number, falling back to the primary key.
func (i *Invoice) Number() string {
	if i.InvoiceNumber != nil && *i.InvoiceNumber != "" {
		return *i.InvoiceNumber
	}
	return fmt.Sprintf("#%d", i.ID)
}

// IsPaid returns true once the invoice has been marked paid.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsOverdue returns true if the invoice was promoted to overdue.
func (i *Invoice) IsOverdue() bool {
	return i.Status == InvoiceStatusOverdue
}

// ItemsTotal sums the amounts of the loaded items.
func (i *Invoice) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range i.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// InvoiceItem represents a line item on an invoice.
type InvoiceItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"index;not null" json:"invoice_id"`
	Description string          `gorm:"size:500;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultDueDate returns the calendar date PaymentTermDays after createdAt.
func DefaultDueDate(createdAt time.Time) time.Time {
	return DateOf(createdAt).AddDate(0, 0, PaymentTermDays)
}

// FormatInvoiceNumber builds the display number from the save time and primary key.
// Format: INV-YYYYMMDD-HHMMSS-NNNN (e.g., INV-20250102-150405-0042)
func FormatInvoiceNumber(savedAt time.Time, id uint) string {
	return fmt.Sprintf("INV-%s-%04d", savedAt.Format("20060102-150405"), id)
}
