package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diewo77/invoicer/internal/models"
	"github.com/diewo77/invoicer/validation"
	"github.com/shopspring/decimal"
)

// RawAmount holds an amount as typed by the user. JSON numbers and strings are both accepted.
type RawAmount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *RawAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = RawAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = RawAmount(n.String())
	return nil
}

func (a RawAmount) blank() bool { return strings.TrimSpace(string(a)) == "" }

// ItemInput is one submitted line item.
type ItemInput struct {
	Description string    `json:"description" validate:"max=500"`
	Amount      RawAmount `json:"amount"`
}

// InvoiceInput is a create or update submission: either a direct amount or a list of items.
type InvoiceInput struct {
	Client string      `json:"client" validate:"required,max=255"`
	Amount RawAmount   `json:"amount"`
	Items  []ItemInput `json:"items" validate:"dive"`
}

// Draft is a validated submission ready to persist.
type Draft struct {
	Client string
	Amount decimal.Decimal
	Items  []models.InvoiceItem
}

// Normalize validates the input and computes the invoice amount.
// Blank item rows are skipped; when any row remains the amount is the sum of the rows.
func Normalize(in InvoiceInput) (*Draft, error) {
	in.Client = strings.TrimSpace(in.Client)
	v := make(validation.Violations)
	validation.Struct(in, v)

	d := &Draft{Client: in.Client, Amount: decimal.Zero}
	rows := make([]ItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		if strings.TrimSpace(it.Description) == "" && it.Amount.blank() {
			continue
		}
		rows = append(rows, it)
	}

	switch {
	case len(rows) > 0:
		for i, it := range rows {
			field := fmt.Sprintf("items[%d]", i)
			desc := strings.TrimSpace(it.Description)
			validation.Required(field+".description", desc, v)
			validation.MaxLength(field+".description", desc, 500, v)
			if it.Amount.blank() {
				v.Add(field+".amount", "required")
				continue
			}
			amount, ok := validation.ParseAmount(field+".amount", string(it.Amount), v)
			if !ok {
				continue
			}
			d.Items = append(d.Items, models.InvoiceItem{Description: desc, Amount: amount})
			d.Amount = d.Amount.Add(amount)
		}
	case !in.Amount.blank():
		if amount, ok := validation.ParseAmount("amount", string(in.Amount), v); ok {
			d.Amount = amount
		}
	default:
		v.Add("items", "required")
	}

	if d.Amount.GreaterThanOrEqual(validation.MaxAmount) {
		v.Add("amount", "too_large")
	}
	if !v.Empty() {
		return nil, invalidInput(v)
	}
	return d, nil
}
