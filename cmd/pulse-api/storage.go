package main

import (
	"context"
	"fmt"

	"github.com/JonnyWalker81/pulse/backend/internal/config"
	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
	"github.com/JonnyWalker81/pulse/backend/internal/repository/sqlite"
	"github.com/JonnyWalker81/pulse/backend/pkg/supabase"
)

// repositories bundles the persistence layer selected by storage.driver
type repositories struct {
	timeSeries  repository.TimeSeriesRepository
	patterns    repository.PatternRepository
	predictions repository.PredictionRepository
	close       func() error
}

func openRepositories(ctx context.Context, cfg *config.Config, client *supabase.Client) (*repositories, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("using sqlite storage", logger.String("path", cfg.Storage.SQLitePath))
		return &repositories{
			timeSeries:  store.TimeSeries(),
			patterns:    store.Patterns(),
			predictions: store.Predictions(),
			close:       store.Close,
		}, nil
	case config.DriverSupabase:
		logger.Info("using supabase storage", logger.String("url", cfg.Supabase.URL))
		return &repositories{
			timeSeries:  repository.NewTimeSeriesRepository(client),
			patterns:    repository.NewPatternRepository(client),
			predictions: repository.NewPredictionRepository(client),
			close:       func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// setupLogger builds the configured logger and installs it as the default
func setupLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:     logger.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Backend:   cfg.Logging.Backend,
		AddSource: cfg.Server.Env != "production",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetDefault(log)
	return log, nil
}
