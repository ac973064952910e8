package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/onnxport/internal/catalog"
)

func TestModelConfig_GetSource(t *testing.T) {
	m := ModelConfig{ID: "yolo11n.pt"}

	src, err := m.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeUltralytics, src.Type(), "no source defaults to ultralytics")

	m.Source = SourceConfig{HuggingFace: &HuggingFaceSource{Repo: "Ultralytics/YOLOv8"}}
	src, err = m.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeHuggingFace, src.Type())
	assert.Equal(t, "Ultralytics/YOLOv8", src.(HuggingFaceSource).Repo)

	m.Source = SourceConfig{Local: &LocalSource{Path: "/weights/best.pt"}}
	src, err = m.GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeLocal, src.Type())

	m.Source.Ultralytics = &UltralyticsSource{}
	_, err = m.GetSource()
	assert.ErrorIs(t, err, ErrMultipleSources)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Models: []ModelConfig{
		{ID: "yolo11n.pt", Enabled: true},
		{ID: "yolo99z.pt", Enabled: false},
		{ID: "", Enabled: true},
		{ID: "best.pt", Enabled: true, Source: SourceConfig{Local: &LocalSource{Path: "best.pt"}}},
	}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrUnknownModel)
	assert.ErrorIs(t, err, ErrEmptyID)
	assert.Contains(t, err.Error(), "models[1]")
	assert.NotContains(t, err.Error(), "models[3]", "non-catalog ids are fine for local sources")
}

func TestConfig_EffectiveFormatAndOptions(t *testing.T) {
	cfg := &Config{Export: ExportConfig{
		Format:  "torchscript",
		Options: map[string]any{"imgsz": 640, "opset": 12},
	}}
	m := &ModelConfig{ID: "yolo11n.pt", Options: map[string]any{"imgsz": 320}}

	assert.Equal(t, "torchscript", cfg.EffectiveFormat(m))
	m.Format = "onnx"
	assert.Equal(t, "onnx", cfg.EffectiveFormat(m))
	assert.Equal(t, DefaultFormat, (&Config{}).EffectiveFormat(&ModelConfig{}))

	assert.Equal(t, map[string]any{"imgsz": 320, "opset": 12}, cfg.EffectiveOptions(m))
}

func TestConfig_EnabledKeepsOrder(t *testing.T) {
	cfg := &Config{Models: []ModelConfig{
		{ID: "yolov8n.pt", Enabled: true},
		{ID: "yolo11s.pt"},
		{ID: "yolo11n.pt", Enabled: true},
		{ID: "yolov8n.pt", Enabled: true},
	}}

	var ids []string
	for _, m := range cfg.Enabled() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"yolov8n.pt", "yolo11n.pt", "yolov8n.pt"}, ids)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Models, 3)
	assert.Len(t, cfg.Enabled(), 1)
	assert.Equal(t, "yolo11n.pt", cfg.Enabled()[0].ID)
	assert.Equal(t, DefaultBackend, cfg.Export.Backend)
	assert.Equal(t, DefaultFormat, cfg.Export.Format)
	assert.Equal(t, DefaultTimeout, cfg.Export.Timeout)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{Export: ExportConfig{Format: "openvino", Timeout: time.Minute}}
	cfg.ApplyDefaults()

	assert.Equal(t, "openvino", cfg.Export.Format)
	assert.Equal(t, time.Minute, cfg.Export.Timeout)
	assert.Equal(t, DefaultBackend, cfg.Export.Backend)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onnxport", "config.yaml")

	require.NoError(t, WriteDefault(path))

	cfg, err := LoadAndValidate(path, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.ErrorIs(t, WriteDefault(path), os.ErrExist, "existing files are kept")
}
