package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/config"
	"github.com/ekisa-team/onnxport/internal/config/source"
	"github.com/ekisa-team/onnxport/internal/envvar"
	"github.com/ekisa-team/onnxport/internal/onnx"
	"github.com/ekisa-team/onnxport/internal/xfs"
)

// DownloaderResolver picks the downloader for a model source.
type DownloaderResolver interface {
	GetDownloader(t config.SourceType) (source.Downloader, error)
}

// Reporter receives progress events of a run.
type Reporter interface {
	Begin(runID string, total int)
	ModelStarted(r *Result)
	ModelAcquired(r *Result)
	ModelExported(r *Result)
	ModelFailed(r *Result)
	Finish(s *Summary)
}

// Manager drives acquire and export for every enabled model, one at a time,
// in the order they are configured.
type Manager struct {
	sources   DownloaderResolver
	exporters *backend.Registry
	reporter  Reporter
}

// NewManager creates a new Manager instance.
func NewManager(sources DownloaderResolver, exporters *backend.Registry, reporter Reporter) *Manager {
	return &Manager{
		sources:   sources,
		exporters: exporters,
		reporter:  reporter,
	}
}

// ExportFromConfig processes the models of cfg.
// A failing model never stops the run; its error is recorded in the
// summary. An error is returned only when the run cannot start at all.
func (m *Manager) ExportFromConfig(ctx context.Context, cfg *config.Config) (*Summary, error) {
	exporter, err := m.exporters.Get(backend.BackendProvider(cfg.Export.Backend))
	if err != nil {
		return nil, fmt.Errorf("failed to get exporter: %w", err)
	}

	modelsPath := resolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return nil, fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}

	summary := &Summary{
		RunID:      uuid.NewString()[:8],
		StartedAt:  time.Now(),
		InstallDir: resolveInstallPath(cfg),
	}
	log := slog.With("run_id", summary.RunID)

	enabled := cfg.Enabled()
	summary.Disabled = len(cfg.Models) - len(enabled)
	for _, mc := range cfg.Models {
		if !mc.Enabled {
			log.Debug("Skipping disabled model", "model_id", mc.ID)
		}
	}

	log.Info("Starting export run", "models", len(enabled), "disabled", summary.Disabled, "models_dir", modelsPath)
	m.reporter.Begin(summary.RunID, len(enabled))

	for i := range enabled {
		mc := &enabled[i]
		format := backend.Format(cfg.EffectiveFormat(mc))
		result := NewResult(mc, format)
		summary.Results = append(summary.Results, result)

		if err := ctx.Err(); err != nil {
			result.SetStatus(StatusSkipped)
			summary.Canceled = true
			log.Warn("Run canceled, skipping model", "model_id", mc.ID)
			continue
		}

		m.processModel(ctx, log.With("model_id", mc.ID), cfg, mc, exporter, modelsPath, summary.InstallDir, result)
	}

	// An interrupt during the last model leaves nothing to skip.
	if ctx.Err() != nil {
		summary.Canceled = true
	}

	summary.Duration = time.Since(summary.StartedAt)
	log.Info("Export run finished",
		"succeeded", summary.Succeeded(),
		"failed", summary.Failed(),
		"skipped", summary.Count(StatusSkipped),
		"duration", summary.Duration)

	m.reporter.Finish(summary)

	return summary, nil
}

// processModel runs acquire, export, verify and install for one model,
// recording the outcome in result.
func (m *Manager) processModel(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	mc *config.ModelConfig,
	exporter backend.Exporter,
	modelsPath, installDir string,
	result *Result,
) {
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	m.reporter.ModelStarted(result)

	fail := func(stage Stage, err error) {
		result.Fail(stage, err)
		log.Error("Model export failed", "stage", stage, "category", result.Err.Category(), "error", err)
		m.reporter.ModelFailed(result)
	}

	// Acquire
	result.SetStatus(StatusAcquiring)
	downloader, err := m.sources.GetDownloader(result.Source)
	if err != nil {
		fail(StageAcquire, err)
		return
	}

	weights, cached, err := downloader.Download(ctx, mc, modelsPath)
	if err != nil {
		fail(StageAcquire, err)
		return
	}
	result.WeightsPath = weights
	result.Cached = cached
	log.Info("Model acquired", "path", weights, "cached", cached)
	m.reporter.ModelAcquired(result)

	// Export
	result.SetStatus(StatusExporting)
	resp, err := exporter.Export(ctx, &backend.Request{
		ModelPath:  weights,
		Format:     result.Format,
		Parameters: cfg.EffectiveOptions(mc),
	})
	if err != nil {
		fail(StageExport, err)
		return
	}
	result.ExportPath = resp.Path
	if resp.Metadata != nil {
		result.SizeBytes = resp.Metadata.OutputSizeBytes
	}

	// Verify
	if result.Format == backend.FormatONNX {
		info, err := onnx.Inspect(resp.Path)
		if err != nil {
			fail(StageVerify, err)
			return
		}
		result.ONNX = info
		log.Debug("ONNX model verified",
			"ir_version", info.IRVersion,
			"opset", info.DefaultOpset(),
			"producer", info.ProducerName,
			"nodes", info.Graph.Nodes)
	}

	// Install
	if installDir != "" {
		dest := filepath.Join(installDir, filepath.Base(resp.Path))
		if _, err := xfs.CopyPath(resp.Path, dest); err != nil {
			fail(StageInstall, err)
			return
		}
		result.InstallPath = dest
		log.Info("Exported model installed", "path", dest)
	}

	result.SetStatus(StatusExported)
	log.Info("Model exported", "path", resp.Path, "size_bytes", result.SizeBytes)
	m.reporter.ModelExported(result)
}

// resolveModelsPath returns the path to the models directory.
// Precedence:
// 1. ONNXPORT_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func resolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.OnnxportModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}

// resolveInstallPath returns the directory exported files are copied to,
// or an empty string when installing is disabled.
func resolveInstallPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.OnnxportInstallPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	return xfs.ExpandTilde(cfg.Storage.InstallDir)
}
