package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ekisa-team/onnxport/internal/catalog"
	"github.com/ekisa-team/onnxport/internal/config"
	"github.com/ekisa-team/onnxport/internal/xfs"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute

	ultralyticsSubdir = "ultralytics"
)

// statusError is returned for non-200 responses.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.url, e.code, http.StatusText(e.code))
}

// UltralyticsDownloader fetches pretrained weights from the Ultralytics release assets.
type UltralyticsDownloader struct {
	client     *http.Client
	retryDelay time.Duration
	maxRetries int
	timeout    time.Duration
}

// NewUltralyticsDownloader creates a downloader. A nil client selects a default one.
func NewUltralyticsDownloader(client *http.Client) *UltralyticsDownloader {
	if client == nil {
		client = &http.Client{}
	}

	return &UltralyticsDownloader{
		client:     client,
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
		timeout:    defaultTimeout,
	}
}

// Download downloads the weights to <targetDir>/ultralytics/<id>, reusing a cached copy.
func (d *UltralyticsDownloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	ulSource, ok := source.(config.UltralyticsSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	entry, err := catalog.Lookup(modelConfig.ID)
	if err != nil {
		return "", false, err
	}

	dir := filepath.Join(targetDir, ultralyticsSubdir)
	dest := filepath.Join(dir, entry.ID)

	if !ulSource.ForceDownload && xfs.IsFile(dest) {
		slog.Info("Model already downloaded, skipping", "model_id", entry.ID, "path", dest)
		return dest, true, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	baseURL := ulSource.BaseURL
	if baseURL == "" {
		baseURL = catalog.DefaultAssetsBaseURL
	}
	url := entry.URL(baseURL)

	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying download", "model_id", entry.ID, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.retryDelay):
			}
		} else {
			slog.Info("Downloading model", "model_id", entry.ID, "url", url, "path", dest)
		}

		n, err := d.fetch(ctx, url, dest)
		if err == nil {
			slog.Info("Model downloaded successfully", "model_id", entry.ID, "path", dest, "size", humanize.Bytes(uint64(n)), "attempt", attempt+1)
			return dest, false, nil
		}

		lastErr = err
		slog.Error("Failed to download model", "model_id", entry.ID, "url", url, "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
		}

		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests {
			break
		}
	}

	return "", false, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, entry.ID, lastErr)
}

// fetch downloads url into dest through a temporary file.
func (d *UltralyticsDownloader) fetch(ctx context.Context, url, dest string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &statusError{url: url, code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write weights: %w", err)
	}

	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return 0, fmt.Errorf("short download: got %d of %d bytes", n, resp.ContentLength)
	}
	if n == 0 {
		return 0, errors.New("empty download")
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("failed to move weights into place: %w", err)
	}

	return n, nil
}
