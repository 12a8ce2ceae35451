package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/askdocs/internal/app"
	"github.com/dshills/askdocs/internal/config"
	"github.com/dshills/askdocs/internal/logger"
)

var (
	configPath string
	verbose    bool
)

// newApp builds the service context. Tests replace it to inject fakes.
var newApp = app.New

var rootCmd = &cobra.Command{
	Use:   "askdocs",
	Short: "Answer questions from a folder of Markdown documents",
	Long: `askdocs indexes the "## " sections of Markdown documents and answers
questions from them. Questions the documents cannot answer go to the
language model, and questions about current events go to web search.
When a backend is down the next strategy in the chain answers instead.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML or TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// stdout carries MCP traffic and command output
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)
}

// loadConfig reads --config, or the default locations when it is unset
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		if err := config.LoadEnv(".env"); err != nil {
			return nil, err
		}
		cfg, err = config.Load(configPath)
	} else {
		var path string
		cfg, path, err = config.LoadDefault()
		if err == nil && path != "" {
			logger.Debug("Loaded config from %s", path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Verbose = true
	}
	logger.SetVerbose(cfg.Verbose)
	return cfg, nil
}

// openApp loads the config and wires the components without contacting any backend
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

// startApp opens the app, waits for the backends and syncs the index
func startApp(ctx context.Context, wait bool) (*app.App, error) {
	a, err := openApp()
	if err != nil {
		return nil, err
	}
	if wait {
		if err := a.WaitForBackends(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	stats, err := a.Indexer.Sync(ctx, false)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to sync index: %w", err)
	}
	if stats.Rebuilt {
		logger.Info("Indexed %d sections from %d documents (%s)", stats.Chunks, stats.Documents, stats.Reason)
	}
	return a, nil
}
