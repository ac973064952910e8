package source

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ekisa-team/onnxport/internal/config"
	"github.com/ekisa-team/onnxport/internal/xfs"
)

// LocalDownloader resolves weights that already exist on disk.
type LocalDownloader struct{}

// Download returns the absolute path of the configured file. Nothing is copied.
func (LocalDownloader) Download(_ context.Context, modelConfig *config.ModelConfig, _ string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	local, ok := source.(config.LocalSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	path, err := filepath.Abs(xfs.ExpandTilde(local.Path))
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve path: %w", err)
	}

	if !xfs.IsFile(path) {
		return "", false, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return path, true, nil
}
