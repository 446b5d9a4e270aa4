/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tariff engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (JSON file, overridable by flags)
  2. Build the structured logger
  3. Initialize SQLite store
  4. Load catalog seed files, register price sources
  5. Wire domain services and the API handler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --config   Config file path (default: tariff-engine.json)
  --port     HTTP server port (overrides config)
  --db       SQLite database path (overrides config)
             Use ":memory:" for an in-memory database
  --dev      Enable demo scenarios and debug logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --db=./data/tariff.db

  # Development mode with demo scenarios
  ./server --db=:memory: --dev

SEE ALSO:
  - api/server.go: Router configuration
  - internal/config/config.go: Config schema
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/tariff-engine/api"
	"github.com/warp/tariff-engine/catalog"
	"github.com/warp/tariff-engine/cogs"
	"github.com/warp/tariff-engine/costs"
	"github.com/warp/tariff-engine/generic"
	"github.com/warp/tariff-engine/internal/config"
	"github.com/warp/tariff-engine/internal/logging"
	"github.com/warp/tariff-engine/packaging"
	"github.com/warp/tariff-engine/pricing"
	"github.com/warp/tariff-engine/store/sqlite"
)

var (
	cfgFile string
	port    int
	dbPath  string
	dev     bool
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the tariff engine HTTP server",
	Long: `The tariff engine resolves per-unit costs from effective-dated rules,
tracks packaging tariffs and prorates period costs into reporting windows.

Examples:
  server --db=./data/tariff.db
  server --db=:memory: --dev`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "tariff-engine.json", "config file path")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.Flags().BoolVar(&dev, "dev", false, "enable demo scenarios and debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if dev {
		cfg.Server.EnableScenarios = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Catalog and sales feed
	cat := catalog.NewStatic()
	if err := loadCatalogFiles(cfg.Catalog, cat, logger); err != nil {
		return err
	}

	// Price sources, each bounded so a slow lookup degrades instead of
	// stalling a coverage pass
	timeout := time.Duration(cfg.Pricing.LookupTimeoutSeconds) * time.Second
	prices := pricing.NewMemorySource("wb_price")
	registry := pricing.NewRegistry()
	registry.Register("wb_price", generic.WithTimeout(prices, timeout))

	// Domain services
	cogsSvc := cogs.NewService(store, registry, cat, logger)
	pkgSvc := packaging.NewService(store, cat, logger)
	costsSvc := costs.NewService(store, logger)

	var loader *api.ScenarioLoader
	if cfg.Server.EnableScenarios {
		loader = &api.ScenarioLoader{
			COGS:      cogsSvc,
			Packaging: pkgSvc,
			Costs:     costsSvc,
			Catalog:   cat,
			Prices:    prices,
			Reset:     store.Reset,
		}
		logger.Warn("demo scenario endpoints enabled; loading a scenario wipes the store")
	}

	handler := api.NewHandler(cogsSvc, pkgSvc, costsSvc, loader)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// =============================================================================
// CATALOG SEED FILES
// =============================================================================

type skuFileRow struct {
	InternalSKU     string `json:"internal_sku"`
	NmID            string `json:"nm_id"`
	MarketplaceCode string `json:"marketplace_code"`
}

type saleFileRow struct {
	SKU   string `json:"sku"`
	Date  string `json:"date"`
	Units int    `json:"units"`
}

// loadCatalogFiles seeds the in-memory catalog from optional JSON files.
func loadCatalogFiles(cfg config.CatalogConfig, cat *catalog.Static, logger *zap.Logger) error {
	if cfg.SKUFile != "" {
		var rows []skuFileRow
		if err := readJSONFile(cfg.SKUFile, &rows); err != nil {
			return fmt.Errorf("load sku file: %w", err)
		}
		for _, r := range rows {
			cat.AddSKU(catalog.SKU{
				InternalSKU:     r.InternalSKU,
				NmID:            r.NmID,
				MarketplaceCode: r.MarketplaceCode,
			})
		}
		logger.Info("catalog loaded", zap.String("file", cfg.SKUFile), zap.Int("skus", len(rows)))
	}

	if cfg.SalesFile != "" {
		var rows []saleFileRow
		if err := readJSONFile(cfg.SalesFile, &rows); err != nil {
			return fmt.Errorf("load sales file: %w", err)
		}
		for _, r := range rows {
			date, err := generic.ParseDate(r.Date)
			if err != nil {
				return fmt.Errorf("sales file row %q: %w", r.SKU, err)
			}
			cat.AddSale(catalog.Sale{SKU: r.SKU, Date: date, Units: r.Units})
		}
		logger.Info("sales feed loaded", zap.String("file", cfg.SalesFile), zap.Int("records", len(rows)))
	}
	return nil
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
