package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/invoicer/internal/config"
	"github.com/diewo77/invoicer/internal/db"
	"github.com/diewo77/invoicer/internal/logger"
	"github.com/diewo77/invoicer/internal/metrics"
	"github.com/diewo77/invoicer/internal/services"
	"github.com/diewo77/invoicer/view"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Invoice management web application",
	Long: `Serves the invoice entry form, the invoice dashboard with analytics, and PDF export.

Configuration is read from the environment (and an optional .env file):
  PORT, APP_ENV, DEV, LOG_LEVEL, LOG_FORMAT
  DB_DRIVER (postgres|sqlite|mysql), DATABASE_DSN or DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME/DB_SSLMODE
  MIGRATIONS=1 to run SQL migrations at startup, DB_SEED=1 to insert demo invoices into an empty database`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	Example: `  # AutoMigrate (or SQL migrations when MIGRATIONS=1)
  server migrate

  # Revert the SQL migrations (postgres only)
  server migrate --down`,
	RunE: runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo invoices and exit",
	Example: `  server seed --count 100 --days 180
  server seed --force`,
	RunE: runSeed,
}

func init() {
	migrateCmd.Flags().Bool("down", false, "Revert all SQL migrations")

	defaults := db.DefaultSeedOptions()
	seedCmd.Flags().Int("count", defaults.Count, "Number of invoices to create")
	seedCmd.Flags().Int("days", defaults.Days, "Spread creation dates over the last N days")
	seedCmd.Flags().Int("clients", defaults.Clients, "Number of distinct clients")
	seedCmd.Flags().Bool("force", false, "Seed even when invoices already exist")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtimeDeps is what every subcommand needs.
type runtimeDeps struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func bootstrap() (*runtimeDeps, error) {
	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logCfg := logger.ConfigForEnvironment(cfg.App.Env)
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	log := logger.New(logCfg)

	conn, err := db.Connect(cfg.Database, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &runtimeDeps{cfg: cfg, log: log, db: conn}, nil
}

func (d *runtimeDeps) close() {
	if sqlDB, err := d.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = d.log.Sync()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.close()

	down, _ := cmd.Flags().GetBool("down")
	if down {
		if deps.cfg.Database.Driver != "postgres" {
			return errors.New("--down requires DB_DRIVER=postgres")
		}
		url := db.ToURLDSN(db.NormalizeDSN(deps.cfg.Database.ConnectionString()))
		if err := db.RunSQLMigrations(url, true); err != nil {
			return fmt.Errorf("revert migrations: %w", err)
		}
		deps.log.Info("migrations reverted")
		return nil
	}
	if err := db.Migrate(deps.db, deps.cfg.Database, deps.cfg.App.Migrations, deps.log); err != nil {
		return err
	}
	deps.log.Info("migrations completed successfully")
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.close()

	if err := db.Migrate(deps.db, deps.cfg.Database, deps.cfg.App.Migrations, deps.log); err != nil {
		return err
	}
	opts := db.DefaultSeedOptions()
	opts.Count, _ = cmd.Flags().GetInt("count")
	opts.Days, _ = cmd.Flags().GetInt("days")
	opts.Clients, _ = cmd.Flags().GetInt("clients")
	opts.Force, _ = cmd.Flags().GetBool("force")
	n, err := db.Seed(cmd.Context(), deps.db, opts, deps.log)
	if err != nil {
		return err
	}
	deps.log.Info("seeding completed successfully", zap.Int("created", n))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.close()
	cfg, log := deps.cfg, deps.log

	if err := db.Migrate(deps.db, cfg.Database, cfg.App.Migrations, log); err != nil {
		return err
	}
	if cfg.App.Seed {
		if _, err := db.Seed(cmd.Context(), deps.db, db.DefaultSeedOptions(), log); err != nil {
			return err
		}
	}

	view.SetDev(cfg.App.Dev)

	var collector *metrics.Collector
	opts := []services.Option{services.WithLogger(log)}
	if cfg.App.Metrics {
		collector = metrics.New(true)
		opts = append(opts, services.WithRecorder(collector))
	}
	svc := services.NewInvoiceService(deps.db, opts...)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(deps.db, svc, collector, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		log.Info("shutdown signal received")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server stopped gracefully")
	return nil
}
