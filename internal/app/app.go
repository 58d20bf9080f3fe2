// Package app wires configuration, storage, clients, and services into the
// shared core used by cmd/macrofin-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rajkumarpandit/macrofin/internal/clients/fxrates"
	"github.com/rajkumarpandit/macrofin/internal/common"
	"github.com/rajkumarpandit/macrofin/internal/interfaces"
	"github.com/rajkumarpandit/macrofin/internal/services/applier"
	"github.com/rajkumarpandit/macrofin/internal/services/balance"
	"github.com/rajkumarpandit/macrofin/internal/services/currency"
	"github.com/rajkumarpandit/macrofin/internal/services/ledger"
	"github.com/rajkumarpandit/macrofin/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config             *common.Config
	Logger             *common.Logger
	Storage            interfaces.StorageManager
	RatesClient        interfaces.RatesClient
	CurrencyService    interfaces.CurrencyService
	BalanceService     interfaces.BalanceService
	LedgerService      interfaces.LedgerService
	TransactionService interfaces.TransactionService
	StartupTime        time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Config resolution: explicit path, MACROFIN_CONFIG, binary dir, dev fallback.
	if configPath == "" {
		configPath = os.Getenv("MACROFIN_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "macrofin.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/macrofin.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Badger.Path != "" && !filepath.IsAbs(config.Storage.Badger.Path) {
		config.Storage.Badger.Path = filepath.Join(binDir, config.Storage.Badger.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var ratesClient interfaces.RatesClient
	ratesOpts := []fxrates.ClientOption{fxrates.WithLogger(logger)}
	if config.Clients.Rates.BaseURL != "" {
		ratesOpts = append(ratesOpts, fxrates.WithBaseURL(config.Clients.Rates.BaseURL))
	}
	if config.Clients.Rates.RateLimit > 0 {
		ratesOpts = append(ratesOpts, fxrates.WithRateLimit(config.Clients.Rates.RateLimit))
	}
	if config.Clients.Rates.Timeout != "" {
		ratesOpts = append(ratesOpts, fxrates.WithTimeout(config.Clients.Rates.GetTimeout()))
	}
	ratesClient = fxrates.NewClient(config.Clients.Rates.APIKey, ratesOpts...)

	currencyService := currency.NewService(logger, config.ReportingCurrency, storageManager.RateStore(), ratesClient)
	if err := currencyService.LoadStored(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Stored exchange-rate table unavailable")
	}

	balanceService := balance.NewService(logger, storageManager.LedgerStore())
	ledgerService := ledger.NewService(logger, storageManager, currencyService)
	transactionService := applier.NewService(logger, storageManager, balanceService, currencyService)

	app := &App{
		Config:             config,
		Logger:             logger,
		Storage:            storageManager,
		RatesClient:        ratesClient,
		CurrencyService:    currencyService,
		BalanceService:     balanceService,
		LedgerService:      ledgerService,
		TransactionService: transactionService,
		StartupTime:        startupStart,
	}

	logger.Info().
		Str("environment", config.Environment).
		Str("storage_driver", config.Storage.Driver).
		Str("reporting_currency", currencyService.ReportingCurrency()).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")
	return app, nil
}

// Close shuts down storage.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close storage")
		}
	}
}
