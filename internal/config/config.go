package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ekisa-team/onnxport/internal/catalog"
	"github.com/ekisa-team/onnxport/internal/mapsafe"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeUltralytics represents the Ultralytics release assets.
	SourceTypeUltralytics SourceType = "ultralytics"

	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"

	// SourceTypeLocal represents a weights file already on disk.
	SourceTypeLocal SourceType = "local"
)

const (
	DefaultBackend = "ultralytics"
	DefaultFormat  = "onnx"
	DefaultTimeout = 10 * time.Minute
)

var (
	ErrMultipleSources = errors.New("more than one source configured for model")
	ErrEmptyID         = errors.New("model id is empty")
)

// Config holds the main configuration for the application.
type Config struct {
	Version string        `json:"version"           yaml:"version"`
	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
	Export  ExportConfig  `json:"export,omitempty"  yaml:"export,omitempty"`
	Models  []ModelConfig `json:"models"            yaml:"models"`
}

// StorageConfig holds the weights cache and install locations.
type StorageConfig struct {
	ModelsDir  string `json:"models_dir,omitempty"  yaml:"models_dir,omitempty"`
	InstallDir string `json:"install_dir,omitempty" yaml:"install_dir,omitempty"`
}

// ExportConfig holds the settings shared by every model.
type ExportConfig struct {
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Backend string         `json:"backend,omitempty" yaml:"backend,omitempty"`
	Format  string         `json:"format,omitempty"  yaml:"format,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Source  SourceConfig   `json:"source,omitempty"  yaml:"source,omitempty"`
	ID      string         `json:"id"                yaml:"id"`
	Format  string         `json:"format,omitempty"  yaml:"format,omitempty"`
	Enabled bool           `json:"enabled"           yaml:"enabled"`
}

// SourceConfig wraps optional sources (at most one should be set).
// When none is set the model is fetched from the Ultralytics assets.
type SourceConfig struct {
	Ultralytics *UltralyticsSource `json:"ultralytics,omitempty" yaml:"ultralytics,omitempty"`
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
	Local       *LocalSource       `json:"local,omitempty"       yaml:"local,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// UltralyticsSource represents a pretrained weight file from the Ultralytics releases.
type UltralyticsSource struct {
	BaseURL       string `json:"base_url,omitempty"       yaml:"base_url,omitempty"`
	ForceDownload bool   `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Ultralytics source type.
func (u UltralyticsSource) Type() SourceType {
	return SourceTypeUltralytics
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// LocalSource represents a weights file on the local filesystem.
type LocalSource struct {
	Path string `json:"path" yaml:"path"`
}

// Type returns the local source type.
func (l LocalSource) Type() SourceType {
	return SourceTypeLocal
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	var sources []ModelSource
	if m.Source.Ultralytics != nil {
		sources = append(sources, *m.Source.Ultralytics)
	}
	if m.Source.HuggingFace != nil {
		sources = append(sources, *m.Source.HuggingFace)
	}
	if m.Source.Local != nil {
		sources = append(sources, *m.Source.Local)
	}

	switch len(sources) {
	case 0:
		return UltralyticsSource{}, nil
	case 1:
		return sources[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrMultipleSources, m.ID)
	}
}

// EffectiveFormat returns the model's export format, falling back to the global one.
func (c *Config) EffectiveFormat(m *ModelConfig) string {
	if m.Format != "" {
		return m.Format
	}
	if c.Export.Format != "" {
		return c.Export.Format
	}
	return DefaultFormat
}

// EffectiveOptions returns the global export options overridden by the model's.
func (c *Config) EffectiveOptions(m *ModelConfig) map[string]any {
	return mapsafe.Merge(c.Export.Options, m.Options)
}

// Enabled returns the enabled models in written order.
func (c *Config) Enabled() []ModelConfig {
	var out []ModelConfig
	for _, m := range c.Models {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// ApplyDefaults fills unset export settings.
func (c *Config) ApplyDefaults() {
	if c.Export.Backend == "" {
		c.Export.Backend = DefaultBackend
	}
	if c.Export.Format == "" {
		c.Export.Format = DefaultFormat
	}
	if c.Export.Timeout <= 0 {
		c.Export.Timeout = DefaultTimeout
	}
}

// Validate checks constraints the schema cannot express.
// Disabled entries are validated too, so enabling one never surfaces a
// latent mistake.
func (c *Config) Validate() error {
	var errs []error
	for i := range c.Models {
		m := &c.Models[i]
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("models[%d]: %w", i, ErrEmptyID))
			continue
		}

		source, err := m.GetSource()
		if err != nil {
			errs = append(errs, fmt.Errorf("models[%d]: %w", i, err))
			continue
		}

		if source.Type() == SourceTypeUltralytics && !catalog.Has(m.ID) {
			errs = append(errs, fmt.Errorf("models[%d]: %w: %q", i, catalog.ErrUnknownModel, m.ID))
		}
	}

	return errors.Join(errs...)
}
