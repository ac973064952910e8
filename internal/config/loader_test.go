package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
version: "1"
storage:
  models_dir: ~/.cache/onnxport/models
  install_dir: ./app/Models
export:
  format: onnx
  timeout: 5m
  options:
    imgsz: 640
    opset: 12
    simplify: true
models:
  - id: yolo11n.pt
    enabled: true
  - id: yolo11s.pt
    enabled: false
  - id: custom-detector
    enabled: true
    format: torchscript
    source:
      huggingface:
        repo: Ultralytics/YOLOv8
        include: ["yolov8n.pt"]
  - id: best.pt
    enabled: false
    source:
      local:
        path: ./runs/detect/train/weights/best.pt
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := LoadAndValidate(writeConfig(t, validConfig), "")
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "./app/Models", cfg.Storage.InstallDir)
	assert.Equal(t, 5*time.Minute, cfg.Export.Timeout)
	assert.Equal(t, DefaultBackend, cfg.Export.Backend)
	assert.Equal(t, 640, cfg.Export.Options["imgsz"])

	require.Len(t, cfg.Models, 4)
	assert.Equal(t, []string{"yolo11n.pt", "yolo11s.pt", "custom-detector", "best.pt"},
		[]string{cfg.Models[0].ID, cfg.Models[1].ID, cfg.Models[2].ID, cfg.Models[3].ID})
	assert.False(t, cfg.Models[1].Enabled)

	src, err := cfg.Models[2].GetSource()
	require.NoError(t, err)
	assert.Equal(t, SourceTypeHuggingFace, src.Type())
	assert.Equal(t, "torchscript", cfg.EffectiveFormat(&cfg.Models[2]))
}

func TestLoadAndValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "invalid yaml",
			content: "models: [",
			want:    "invalid YAML",
		},
		{
			name:    "missing enabled flag",
			content: "version: \"1\"\nmodels:\n  - id: yolo11n.pt\n",
			want:    "validation failed",
		},
		{
			name:    "unsupported format",
			content: "version: \"1\"\nexport:\n  format: tflite\nmodels: []\n",
			want:    "validation failed",
		},
		{
			name:    "two sources",
			content: "version: \"1\"\nmodels:\n  - id: a.pt\n    enabled: true\n    source:\n      local: {path: a.pt}\n      ultralytics: {}\n",
			want:    "validation failed",
		},
		{
			name:    "unknown catalog id",
			content: "version: \"1\"\nmodels:\n  - id: yolo99n.pt\n    enabled: true\n",
			want:    "unknown model identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAndValidate(writeConfig(t, tt.content), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	_, err := LoadAndValidate(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAndValidate_SchemaFromPath(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(embeddedSchema), 0o644))

	cfg, err := LoadAndValidate(writeConfig(t, validConfig), schemaPath)
	require.NoError(t, err)
	assert.Len(t, cfg.Models, 4)
}

func TestDefault_PassesSchema(t *testing.T) {
	schema, err := compileSchema("")
	require.NoError(t, err)

	_, err = Parse([]byte("version: \"1\"\nmodels:\n  - id: yolo11n.pt\n    enabled: true\n"), schema)
	assert.NoError(t, err)
}

func TestLoadAndValidate_ExampleConfig(t *testing.T) {
	cfg, err := LoadAndValidate(filepath.Join("..", "..", "config.example.yaml"), "")
	require.NoError(t, err)

	require.Len(t, cfg.Models, 5)
	assert.Equal(t, []string{"yolo11n.pt"}, enabledIDs(cfg))
	assert.Equal(t, 10*time.Minute, cfg.Export.Timeout)
	assert.Equal(t, "openvino", cfg.EffectiveFormat(&cfg.Models[4]))
}

func enabledIDs(cfg *Config) []string {
	var ids []string
	for _, m := range cfg.Enabled() {
		ids = append(ids, m.ID)
	}
	return ids
}
