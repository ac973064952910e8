package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/backend/ultralytics"
	"github.com/ekisa-team/onnxport/internal/config"
	"github.com/ekisa-team/onnxport/internal/config/source"
	"github.com/ekisa-team/onnxport/internal/envvar"
	"github.com/ekisa-team/onnxport/internal/model"
)

// exportRun wires the collaborators of a single pass over the config.
// It is rebuilt per pass so that a reloaded timeout takes effect.
type exportRun struct {
	cfg      *config.Config
	reporter model.Reporter
}

func newExportRun(cfg *config.Config, reporter model.Reporter) *exportRun {
	return &exportRun{cfg: cfg, reporter: reporter}
}

func (r *exportRun) execute(ctx context.Context) (*model.Summary, error) {
	registry := backend.NewRegistry()
	defer func() {
		if err := registry.Close(); err != nil {
			slog.Warn("Failed to close exporters", "error", err)
		}
	}()

	if err := registry.Register(newUltralyticsExporter(r.cfg)); err != nil {
		return nil, err
	}

	manager := model.NewManager(source.DefaultResolver(os.Getenv(envvar.OnnxportHFBin)), registry, r.reporter)

	return manager.ExportFromConfig(ctx, r.cfg)
}

// newUltralyticsExporter returns the yolo exporter. When the binary cannot
// be found the weights are still acquired and each model fails at export.
func newUltralyticsExporter(cfg *config.Config) backend.Exporter {
	exporter, err := ultralytics.NewExporter(os.Getenv(envvar.OnnxportYoloBin), cfg.Export.Timeout)
	if err != nil {
		slog.Warn("Ultralytics exporter unavailable", "error", err)
		return backend.Unavailable(backend.BackendProviderUltralytics, err)
	}
	return exporter
}

// exitCode maps the outcome of a run to the process exit status.
func exitCode(summary *model.Summary) int {
	switch {
	case summary.Canceled:
		return exitInterrupted
	case summary.Failed() > 0:
		return exitFailure
	default:
		return exitOK
	}
}
