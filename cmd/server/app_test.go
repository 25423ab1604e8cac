package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/invoicer/internal/metrics"
	"github.com/diewo77/invoicer/internal/middleware"
	"github.com/diewo77/invoicer/internal/models"
	"github.com/diewo77/invoicer/internal/services"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAppDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbi, err := gorm.Open(sqlite.Open("file:app_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := dbi.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := dbi.AutoMigrate(&models.Invoice{}, &models.InvoiceItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dbi
}

func newTestApp(t *testing.T, withMetrics bool) (*App, *gorm.DB) {
	t.Helper()
	dbi := setupAppDB(t)
	var collector *metrics.Collector
	opts := []services.Option{}
	if withMetrics {
		collector = metrics.New(false)
		opts = append(opts, services.WithRecorder(collector))
	}
	return NewApp(dbi, services.NewInvoiceService(dbi, opts...), collector, zap.NewNop()), dbi
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, false)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("health: %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}
}

func TestHealthzReportsDatabase(t *testing.T) {
	dbi := setupAppDB(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	app := NewApp(dbi, services.NewInvoiceService(dbi), nil, zap.New(core))

	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz: %d %s", rr.Code, rr.Body.String())
	}

	sqlDB, _ := dbi.DB()
	_ = sqlDB.Close()
	rr = httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with a closed database, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"database":"unavailable"`) {
		t.Fatalf("unexpected body: %s", body)
	}
	if strings.Contains(body, "closed") {
		t.Fatalf("driver error leaked into the response: %s", body)
	}
	if logs.FilterMessage("health check failed").Len() != 1 {
		t.Fatalf("database failure not logged: %v", logs.All())
	}
}

func TestDashboardRendering(t *testing.T) {
	app, dbi := newTestApp(t, false)
	if err := dbi.Create(&models.Invoice{Client: "E2E Corp", Status: models.InvoiceStatusPaid}).Error; err != nil {
		t.Fatalf("inv: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/invoices?lang=fr", nil)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Factures") {
		t.Fatalf("missing french title: %s", body)
	}
	if !strings.Contains(body, "E2E Corp") {
		t.Fatalf("client not rendered: %s", body)
	}
	if !strings.Contains(body, `data-theme="system"`) {
		t.Fatalf("theme not rendered")
	}
}

func TestUnknownRoute(t *testing.T) {
	app, _ := newTestApp(t, false)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/invoices", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, true)

	create := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(`{"client":"Acme","amount":"10"}`))
	create.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, create)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"invoices_created_total 1",
		`http_requests_total{method="POST",route="POST /invoices",status="201"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	app, _ := newTestApp(t, false)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a collector, got %d", rr.Code)
	}
}
