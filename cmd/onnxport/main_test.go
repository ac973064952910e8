package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/config"
	"github.com/ekisa-team/onnxport/internal/envvar"
	"github.com/ekisa-team/onnxport/internal/model"
	"github.com/ekisa-team/onnxport/internal/report"
)

func TestExitCode(t *testing.T) {
	ok := &model.Result{Status: model.StatusExported}
	failed := &model.Result{Status: model.StatusFailed}
	skipped := &model.Result{Status: model.StatusSkipped}

	tests := []struct {
		name    string
		summary *model.Summary
		want    int
	}{
		{"all exported", &model.Summary{Results: []*model.Result{ok, ok}}, exitOK},
		{"empty run", &model.Summary{}, exitOK},
		{"one failure", &model.Summary{Results: []*model.Result{ok, failed}}, exitFailure},
		{"interrupted", &model.Summary{Results: []*model.Result{failed, skipped}, Canceled: true}, exitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.summary))
		})
	}
}

func TestLoadConfig_FallsBackToBuiltInList(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := loadConfig(missing, "", true)
	require.NoError(t, err)
	require.Len(t, cfg.Models, 3)
	assert.Equal(t, "yolo11n.pt", cfg.Models[0].ID)

	_, err = loadConfig(missing, "", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadConfig_InvalidFileIsNotReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\nmodels: nope\n"), 0o644))

	_, err := loadConfig(path, "", true)
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, loadDotEnv(""))
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ONNXPORT_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ONNXPORT_TEST_DOTENV") })

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("ONNXPORT_TEST_DOTENV"))
}

func TestEnsureConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onnxport", "config.yaml")

	require.NoError(t, ensureConfigFile(path, false))
	assert.NoFileExists(t, path, "explicit paths are never created")

	require.NoError(t, ensureConfigFile(path, true))
	require.FileExists(t, path)

	cfg, err := loadConfig(path, "", false)
	require.NoError(t, err)
	assert.Equal(t, "yolo11n.pt", cfg.Models[0].ID)

	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))
	require.NoError(t, ensureConfigFile(path, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(data))
}

func TestExportRun_MissingExporterStillReportsEveryModel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envvar.OnnxportYoloBin, filepath.Join(dir, "nonexistent", "yolo"))
	t.Setenv(envvar.OnnxportModelsPath, filepath.Join(dir, "models"))
	t.Setenv(envvar.OnnxportInstallPath, "")

	weights := filepath.Join(dir, "custom.pt")
	require.NoError(t, os.WriteFile(weights, []byte("w"), 0o644))

	cfg := &config.Config{
		Version: "1",
		Models: []config.ModelConfig{
			{ID: "custom.pt", Enabled: true, Source: config.SourceConfig{Local: &config.LocalSource{Path: weights}}},
			{ID: "other.pt", Enabled: true, Source: config.SourceConfig{Local: &config.LocalSource{Path: weights}}},
		},
	}
	cfg.ApplyDefaults()

	var out bytes.Buffer
	summary, err := newExportRun(cfg, report.NewConsole(&out)).execute(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	for _, res := range summary.Results {
		assert.Equal(t, model.StageExport, res.Err.Stage)
		assert.ErrorIs(t, res.Err, backend.ErrExportFailed)
	}
	assert.Equal(t, exitFailure, exitCode(summary))

	console := out.String()
	assert.Contains(t, console, "Model loaded: custom.pt")
	assert.Contains(t, console, "Error (export)")
	assert.Contains(t, console, "Done! Copy the generated .onnx file")
}
