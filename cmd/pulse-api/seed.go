package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/repository/sqlite"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load fixture samples into the local SQLite store",
	Long: `Load a fixture of the form {"samples": [...], "raw_events": [...]} into
the SQLite store, for local development and demos. Files ending in .yaml or
.yml are read as YAML, anything else as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

var seedUser string

func init() {
	seedCmd.Flags().StringVar(&seedUser, "user", "", "Assign every record to this user ID")
}

type seedFile struct {
	Samples   []models.TimeSeriesSample `json:"samples" yaml:"samples"`
	RawEvents []models.RawEvent         `json:"raw_events" yaml:"raw_events"`
}

// parseFixture decodes raw by the extension of path and applies the user
// override, if any
func parseFixture(path string, raw []byte, userID string) (*seedFile, error) {
	var fixture seedFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &fixture); err != nil {
			return nil, fmt.Errorf("failed to parse yaml fixture: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &fixture); err != nil {
			return nil, fmt.Errorf("failed to parse json fixture: %w", err)
		}
	}

	if userID != "" {
		for i := range fixture.Samples {
			fixture.Samples[i].UserID = userID
		}
		for i := range fixture.RawEvents {
			fixture.RawEvents[i].UserID = userID
		}
	}

	for i, sample := range fixture.Samples {
		if sample.UserID == "" || sample.MetricName == "" {
			return nil, fmt.Errorf("sample %d: user_id and metric_name are required", i)
		}
	}
	for i, event := range fixture.RawEvents {
		if event.UserID == "" || event.Domain == "" {
			return nil, fmt.Errorf("raw event %d: user_id and domain are required", i)
		}
	}
	return &fixture, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadSQLiteConfig()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}
	fixture, err := parseFixture(args[0], raw, seedUser)
	if err != nil {
		return err
	}

	store, err := sqlite.New(cmd.Context(), cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.AppendSamples(cmd.Context(), fixture.Samples); err != nil {
		return fmt.Errorf("failed to load samples: %w", err)
	}
	if err := store.AppendRawEvents(cmd.Context(), fixture.RawEvents); err != nil {
		return fmt.Errorf("failed to load raw events: %w", err)
	}

	logger.Info("fixture loaded",
		logger.String("path", cfg.Storage.SQLitePath),
		logger.Int("samples", len(fixture.Samples)),
		logger.Int("raw_events", len(fixture.RawEvents)),
	)

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "%s loaded %s samples and %s raw events into %s\n",
		green("✓"), cyan(len(fixture.Samples)), cyan(len(fixture.RawEvents)), cfg.Storage.SQLitePath)
	return nil
}
