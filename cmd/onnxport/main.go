package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ekisa-team/onnxport/internal/catalog"
	"github.com/ekisa-team/onnxport/internal/config"
	"github.com/ekisa-team/onnxport/internal/env"
	"github.com/ekisa-team/onnxport/internal/logger"
	"github.com/ekisa-team/onnxport/internal/report"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	defaultConfig := filepath.Join(config.DefaultConfigPath(), "config.yaml")

	var (
		flagConfigPath = flag.String("config", defaultConfig, "Path to config file")
		flagSchemaPath = flag.String("schema", "", "Path to schema file (defaults to the embedded schema)")
		flagEnvPath    = flag.String("env", ".env", "Path to .env file")
		flagWatch      = flag.Bool("watch", false, "Re-run the export whenever the config file changes")
		flagList       = flag.Bool("list", false, "Print the supported models and exit")
		flagLogFile    = flag.String("log-file", "logs/onnxport.log", "Path to the JSON log file (empty disables it)")
	)
	flag.Parse()

	if err := loadDotEnv(*flagEnvPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *flagEnvPath, err)
		return exitConfig
	}

	slog.SetDefault(
		logger.New(env.FromEnv(),
			logger.WithLogToFile(*flagLogFile != ""),
			logger.WithLogFile(*flagLogFile),
		),
	)

	if *flagList {
		report.PrintCatalog(os.Stdout, catalog.DefaultAssetsBaseURL)
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := report.NewConsole(os.Stdout)

	if *flagWatch {
		if err := ensureConfigFile(*flagConfigPath, *flagConfigPath == defaultConfig); err != nil {
			slog.Error("Failed to create config file", "config", *flagConfigPath, "error", err)
			return exitConfig
		}
		return watch(ctx, *flagConfigPath, *flagSchemaPath, console)
	}

	cfg, err := loadConfig(*flagConfigPath, *flagSchemaPath, *flagConfigPath == defaultConfig)
	if err != nil {
		slog.Error("Failed to load config", "config", *flagConfigPath, "error", err)
		return exitConfig
	}

	console.Banner(cfg.Export.Format)

	summary, err := newExportRun(cfg, console).execute(ctx)
	if err != nil {
		slog.Error("Export run could not start", "error", err)
		return exitConfig
	}

	return exitCode(summary)
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// loadConfig reads the config at path. When the file is missing and
// fallback is set, the built-in model list is used instead.
func loadConfig(path, schemaPath string, fallback bool) (*config.Config, error) {
	cfg, err := config.LoadAndValidate(path, schemaPath)
	if err == nil {
		slog.Info("Config loaded successfully", "config", path)
		return cfg, nil
	}

	if fallback && errors.Is(err, os.ErrNotExist) {
		slog.Info("No config file found, using built-in model list", "config", path)
		return config.Default(), nil
	}

	return nil, err
}

// ensureConfigFile writes the built-in model list to path when the file is
// missing and fallback is set, so there is a file to watch.
func ensureConfigFile(path string, fallback bool) error {
	if !fallback {
		return nil
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	slog.Info("No config file found, wrote built-in model list", "config", path)

	return nil
}

// watch runs the export once and again after every successful config
// reload, until ctx is canceled.
func watch(ctx context.Context, configPath, schemaPath string, console *report.Console) int {
	var (
		mu      sync.Mutex
		latest  *config.Config
		changed = make(chan struct{}, 1)
	)

	// Only the latest config matters when runs fall behind.
	watcher, err := config.NewWatcher(configPath, schemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			return
		}

		mu.Lock()
		latest = cfg
		mu.Unlock()

		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		slog.Error("Failed to create config watcher", "error", err)
		return exitConfig
	}
	defer watcher.Close()

	cfg := watcher.Snapshot()
	console.Banner(cfg.Export.Format)

	for {
		if _, err := newExportRun(cfg, console).execute(ctx); err != nil {
			slog.Error("Export run could not start", "error", err)
		}

		slog.Info("Waiting for config changes", "config", configPath)

		select {
		case <-ctx.Done():
			return exitInterrupted
		case <-changed:
			mu.Lock()
			cfg = latest
			mu.Unlock()
			slog.Info("Config changed, running export again", "reloads", watcher.ReloadCount())
		}
	}
}
