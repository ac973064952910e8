// Package source materializes model weights on the local filesystem.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/config"
)

// Error definitions for the source package.
var (
	ErrUnknownSource  = errors.New("no downloader registered for source type")
	ErrDownloadFailed = errors.New("download failed")
	ErrNotFound       = errors.New("model weights not found")
)

// Downloader fetches the weights of a model into targetDir.
// It returns the path of the weights file and whether a cached copy was used.
type Downloader interface {
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (path string, cached bool, err error)
}

// Resolver picks the downloader for a source type.
type Resolver struct {
	downloaders map[config.SourceType]Downloader
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{downloaders: make(map[config.SourceType]Downloader)}
}

// DefaultResolver registers the downloaders for every supported source.
func DefaultResolver(hfBinary string) *Resolver {
	return NewResolver().
		Register(config.SourceTypeUltralytics, NewUltralyticsDownloader(nil)).
		Register(config.SourceTypeHuggingFace, NewHuggingFaceDownloader(hfBinary, backend.ExecCommandRunner{})).
		Register(config.SourceTypeLocal, LocalDownloader{})
}

// Register sets the downloader for t, replacing any previous one.
func (r *Resolver) Register(t config.SourceType, d Downloader) *Resolver {
	r.downloaders[t] = d
	return r
}

// GetDownloader returns the downloader for t.
func (r *Resolver) GetDownloader(t config.SourceType) (Downloader, error) {
	d, ok := r.downloaders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, t)
	}
	return d, nil
}

// EnsureModelsDirectory creates the models directory if needed.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	return nil
}
