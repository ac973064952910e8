package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.yaml.in/yaml/v3"
)

const defaultHeader = "# onnxport configuration. Models are processed in the order listed.\n"

// DefaultConfigPath returns the default path for the onnxport config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "onnxport", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "onnxport")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "onnxport")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "onnxport")
		}
		return filepath.Join(home, ".config", "onnxport")
	}
}

// DefaultModelsPath returns the default path for the downloaded weights cache.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "onnxport", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "onnxport", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "onnxport", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "onnxport", "models")
		}
		return filepath.Join(home, ".cache", "onnxport", "models")
	}
}

// Default returns the built-in model list used when no config file exists:
// YOLO11 nano enabled, the small and YOLOv8 nano alternatives disabled.
func Default() *Config {
	cfg := &Config{
		Version: "1",
		Models: []ModelConfig{
			{ID: "yolo11n.pt", Enabled: true},
			{ID: "yolo11s.pt", Enabled: false},
			{ID: "yolov8n.pt", Enabled: false},
		},
	}
	cfg.ApplyDefaults()

	return cfg
}

// WriteDefault writes the built-in model list to path, creating its
// directory. An existing file is never overwritten.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("config: failed to marshal default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("config: failed to create config: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append([]byte(defaultHeader), data...)); err != nil {
		return fmt.Errorf("config: failed to write config: %w", err)
	}

	return nil
}
