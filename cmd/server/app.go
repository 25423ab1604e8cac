package main

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/invoicer/httpx"
	"github.com/diewo77/invoicer/internal/handlers"
	"github.com/diewo77/invoicer/internal/logger"
	"github.com/diewo77/invoicer/internal/metrics"
	"github.com/diewo77/invoicer/internal/middleware"
	"github.com/diewo77/invoicer/internal/services"
	"github.com/diewo77/invoicer/view"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	db      *gorm.DB
	metrics *metrics.Collector
	log     *zap.Logger
	handler http.Handler
}

// NewApp creates a new application with all routes configured.
// A nil collector disables /metrics and request instrumentation.
func NewApp(db *gorm.DB, svc *services.InvoiceService, collector *metrics.Collector, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{
		mux:     http.NewServeMux(),
		db:      db,
		metrics: collector,
		log:     log,
	}
	view.SetLangResolver(middleware.LangFrom)
	view.SetThemeResolver(middleware.ThemeFrom)
	app.setupRoutes(handlers.NewInvoiceHandler(svc, log))

	var inner http.Handler = app.mux
	if collector != nil {
		inner = middleware.Metrics(collector)(inner)
	}
	app.handler = middleware.Chain(inner,
		middleware.Recover(log),
		middleware.Logging(log),
		middleware.Prefs,
	)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes(ih *handlers.InvoiceHandler) {
	a.mux.HandleFunc("GET /{$}", ih.New)
	a.mux.HandleFunc("POST /preview", ih.Preview)

	a.mux.HandleFunc("GET /invoices", ih.List)
	a.mux.HandleFunc("POST /invoices", ih.Create)
	a.mux.HandleFunc("GET /invoices/{id}", ih.View)
	a.mux.HandleFunc("GET /invoices/{id}/edit", ih.Edit)
	a.mux.HandleFunc("POST /invoices/{id}", ih.Update)
	a.mux.HandleFunc("POST /invoices/{id}/status", ih.SetStatus)
	a.mux.HandleFunc("POST /invoices/{id}/delete", ih.Delete)
	a.mux.HandleFunc("GET /invoices/{id}/pdf", ih.PDF)

	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	if a.metrics != nil {
		a.mux.Handle("GET /metrics", a.metrics.Handler())
	}
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// healthz checks the database round trip. Failure details go to the log only.
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		logger.FromContextOr(r.Context(), a.log).Error("health check failed", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
