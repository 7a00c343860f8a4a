// Package app wires configuration, storage, clients, and services into a
// single shared core used by cmd/fiiboard-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rmfonseca/fiiboard/internal/clients/brapi"
	"github.com/rmfonseca/fiiboard/internal/clients/gemini"
	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
	"github.com/rmfonseca/fiiboard/internal/services/allocation"
	"github.com/rmfonseca/fiiboard/internal/services/quotecache"
	"github.com/rmfonseca/fiiboard/internal/services/scoring"
	"github.com/rmfonseca/fiiboard/internal/storage/filestore"
)

// App holds all initialized services and clients.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	Store             interfaces.KeyedStore
	QuoteCache        interfaces.QuoteCacheService
	ScoringService    interfaces.ScoringPipeline
	AllocationService interfaces.AllocationService
	QuoteFetcher      interfaces.QuoteFetcher
	GeminiClient      interfaces.ReasoningClient
	StartupTime       time.Time

	scheduler *Scheduler
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
// configPath may be empty, in which case FIIBOARD_CONFIG and the binary
// directory are consulted.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("FIIBOARD_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "fiiboard.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/fiiboard.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	store, err := filestore.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	quoteCache := quotecache.NewService(store, logger,
		quotecache.WithNamespace(config.Cache.Namespace),
		quotecache.WithRetentionDays(config.Cache.RetentionDays),
	)

	fetcher := brapi.NewClient(config.Clients.Brapi.Token,
		brapi.WithLogger(logger),
		brapi.WithBaseURL(config.Clients.Brapi.BaseURL),
		brapi.WithRateLimit(config.Clients.Brapi.RateLimit),
		brapi.WithTimeout(config.Clients.Brapi.GetTimeout()),
	)

	var geminiClient *gemini.Client
	if config.Clients.Gemini.APIKey != "" {
		geminiOpts := []gemini.ClientOption{gemini.WithLogger(logger)}
		if config.Clients.Gemini.Model != "" {
			geminiOpts = append(geminiOpts, gemini.WithModel(config.Clients.Gemini.Model))
		}
		geminiClient, err = gemini.NewClient(context.Background(), config.Clients.Gemini.APIKey, geminiOpts...)
		if err != nil {
			logger.Warn().Err(err).Msg("Gemini client unavailable - reasoning falls back to templates")
			geminiClient = nil
		}
	}

	scoringOpts := []scoring.Option{}
	if geminiClient != nil {
		scoringOpts = append(scoringOpts, scoring.WithReasoner(geminiClient))
	}
	scoringService := scoring.NewService(logger, scoringOpts...)

	allocationService := allocation.NewService(logger,
		allocation.WithMaxCandidates(config.Allocation.MaxCandidates),
	)

	a := &App{
		Config:            config,
		Logger:            logger,
		Store:             store,
		QuoteCache:        quoteCache,
		ScoringService:    scoringService,
		AllocationService: allocationService,
		QuoteFetcher:      fetcher,
		StartupTime:       time.Now(),
	}
	if geminiClient != nil {
		a.GeminiClient = geminiClient
	}

	logger.Info().
		Str("version", common.GetVersion()).
		Str("environment", config.Environment).
		Str("storage", config.Storage.Path).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")

	return a, nil
}

// StartScheduler begins the background prune job. Safe to call once.
func (a *App) StartScheduler() error {
	a.scheduler = NewScheduler(a.Logger)
	if err := a.scheduler.AddPruneJob(a.Config.Cache.PruneSchedule, a.QuoteCache, a.Config.Cache.RetentionDays); err != nil {
		return fmt.Errorf("failed to register prune job: %w", err)
	}
	a.scheduler.Start()
	return nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.GeminiClient != nil {
		if err := a.GeminiClient.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Gemini client close failed")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}
