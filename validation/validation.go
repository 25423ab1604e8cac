package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records a violation unless the field already has one.
func (v Violations) Add(field, code string) {
	if _, exists := v[field]; !exists {
		v[field] = code
	}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func MaxLength(field, value string, max int, v Violations) {
	if len([]rune(value)) > max {
		v.Add(field, "too_long")
	}
}

func NonNegative(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v.Add(field, "must_not_be_negative")
	}
}

// MaxAmount is the first value that no longer fits a decimal(12,2) column.
var MaxAmount = decimal.New(1, 10)

// ParseAmount parses a decimal amount, accepting an optional leading "$".
// Amounts must fit decimal(12,2): at most two decimal places and below MaxAmount.
func ParseAmount(field, raw string, v Violations) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Round(2)) {
		v.Add(field, "invalid_amount")
		return decimal.Zero, false
	}
	if NonNegative(field, d, v); d.IsNegative() {
		return decimal.Zero, false
	}
	if d.GreaterThanOrEqual(MaxAmount) {
		v.Add(field, "too_large")
		return decimal.Zero, false
	}
	return d.Round(2), true
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance; field names come from json tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Struct runs tag-based validation and merges the failures into v.
// Field keys use the json path without the root struct name (e.g. "items[1].description").
func Struct(s any, v Violations) {
	err := Validator().Struct(s)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.Add("_", "invalid")
		return
	}
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		v.Add(ns, codeFor(fe.Tag()))
	}
}

func codeFor(tag string) string {
	switch tag {
	case "required", "required_without":
		return "required"
	case "max":
		return "too_long"
	default:
		return "invalid"
	}
}
