package services

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/invoicer/internal/models"
	"github.com/shopspring/decimal"
)

// TopClientsLimit caps the top clients ranking.
const TopClientsLimit = 5

// MonthTotal is one point of the revenue trend.
type MonthTotal struct {
	Month string          `json:"month"` // YYYY-MM
	Total decimal.Decimal `json:"total"`
}

// ClientTotal is one entry of the top clients ranking.
type ClientTotal struct {
	Client string          `json:"client"`
	Total  decimal.Decimal `json:"total"`
}

// StatusCount is the number of invoices in a given status.
type StatusCount struct {
	Status models.InvoiceStatus `json:"status"`
	Count  int                  `json:"count"`
}

// Report is the analytics bundle shown on the dashboard.
type Report struct {
	InvoiceCount       int             `json:"invoice_count"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	MonthlyRevenue     decimal.Decimal `json:"monthly_revenue"`
	PreviousRevenue    decimal.Decimal `json:"previous_month_revenue"`
	RevenueGrowth      decimal.Decimal `json:"revenue_growth"`
	RevenueTrend       []MonthTotal    `json:"revenue_trend"`
	StatusDistribution []StatusCount   `json:"status_distribution"`
	TopClients         []ClientTotal   `json:"top_clients"`
	OverdueCount       int             `json:"overdue_count"`
	OverdueIDs         []uint          `json:"overdue_ids"`
}

// Summarize computes the analytics bundle over already resolved invoices.
// It does not touch the store.
func Summarize(invoices []models.Invoice, now time.Time) Report {
	monthly := MonthRevenue(invoices, now.Year(), now.Month())
	py, pm := PreviousMonth(now.Year(), now.Month())
	previous := MonthRevenue(invoices, py, pm)
	ids := OverdueIDs(invoices)

	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.Amount)
	}

	return Report{
		InvoiceCount:       len(invoices),
		TotalRevenue:       total,
		MonthlyRevenue:     monthly,
		PreviousRevenue:    previous,
		RevenueGrowth:      Growth(monthly, previous),
		RevenueTrend:       RevenueTrend(invoices),
		StatusDistribution: StatusDistribution(invoices),
		TopClients:         TopClients(invoices, TopClientsLimit),
		OverdueCount:       len(ids),
		OverdueIDs:         ids,
	}
}

// RevenueTrend sums amounts per calendar month of creation, ascending by month.
func RevenueTrend(invoices []models.Invoice) []MonthTotal {
	sums := map[string]decimal.Decimal{}
	for _, inv := range invoices {
		key := inv.CreatedAt.Format("2006-01")
		sums[key] = sums[key].Add(inv.Amount)
	}
	out := make([]MonthTotal, 0, len(sums))
	for month, total := range sums {
		out = append(out, MonthTotal{Month: month, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// StatusDistribution counts invoices per recognized status; absent statuses count zero.
func StatusDistribution(invoices []models.Invoice) []StatusCount {
	counts := make(map[models.InvoiceStatus]int, len(models.Statuses))
	for _, inv := range invoices {
		counts[inv.Status]++
	}
	out := make([]StatusCount, 0, len(models.Statuses))
	for _, s := range models.Statuses {
		out = append(out, StatusCount{Status: s, Count: counts[s]})
	}
	return out
}

// TopClients ranks clients by summed amount, descending, keeping at most limit entries.
// Ties keep the order in which clients first appear.
func TopClients(invoices []models.Invoice, limit int) []ClientTotal {
	index := map[string]int{}
	var out []ClientTotal
	for _, inv := range invoices {
		i, ok := index[inv.Client]
		if !ok {
			i = len(out)
			index[inv.Client] = i
			out = append(out, ClientTotal{Client: inv.Client, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(inv.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total.GreaterThan(out[j].Total) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []ClientTotal{}
	}
	return out
}

// MonthRevenue sums amounts of invoices created in the given calendar month.
func MonthRevenue(invoices []models.Invoice, year int, month time.Month) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		y, m, _ := inv.CreatedAt.Date()
		if y == year && m == month {
			total = total.Add(inv.Amount)
		}
	}
	return total
}

// PreviousMonth returns the calendar month before (year, month), rolling the year over in January.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

var hundred = decimal.NewFromInt(100)

// Growth is the month-over-month change in percent, rounded to one decimal.
// With no previous revenue it is 100 when there is current revenue and 0 otherwise.
func Growth(monthly, previous decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		if monthly.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return monthly.Sub(previous).Div(previous).Mul(hundred).Round(1)
}

// OverdueIDs lists the ids of invoices whose resolved status is Overdue.
func OverdueIDs(invoices []models.Invoice) []uint {
	ids := []uint{}
	for _, inv := range invoices {
		if inv.Status == models.InvoiceStatusOverdue {
			ids = append(ids, inv.ID)
		}
	}
	return ids
}

// DateRange is a listing window in days; zero means no filtering.
type DateRange int

// ParseRange accepts "7", "30", "90", "all" or an empty string (all).
func ParseRange(raw string) (DateRange, error) {
	switch raw = strings.TrimSpace(strings.ToLower(raw)); raw {
	case "", "all":
		return 0, nil
	case "7", "30", "90":
		n, _ := strconv.Atoi(raw)
		return DateRange(n), nil
	}
	return 0, ErrInvalidRange
}

// String returns the query form of the range.
func (d DateRange) String() string {
	if d <= 0 {
		return "all"
	}
	return strconv.Itoa(int(d))
}

// Cutoff returns the earliest creation time kept by the window, and false when nothing is filtered.
func (d DateRange) Cutoff(now time.Time) (time.Time, bool) {
	if d <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -int(d)), true
}
