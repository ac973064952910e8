package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/config"
)

const (
	// DefaultHFBinary is the Hugging Face command-line entry point.
	DefaultHFBinary = "hf"

	markerFilename = ".onnxport-downloaded"
)

// weightExtensions lists the weight formats the exporter accepts, best first.
var weightExtensions = []string{".pt", ".pth"}

// HuggingFaceDownloader downloads a model from Hugging Face using the hf CLI.
type HuggingFaceDownloader struct {
	executor   *backend.Executor
	retryDelay time.Duration
	maxRetries int
}

// NewHuggingFaceDownloader creates a downloader running binary through runner.
func NewHuggingFaceDownloader(binary string, runner backend.CommandRunner) *HuggingFaceDownloader {
	if binary == "" {
		binary = DefaultHFBinary
	}

	return &HuggingFaceDownloader{
		executor:   backend.NewExecutorWithRunner(binary, defaultTimeout, runner),
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
	}
}

// Download downloads the Hugging Face repository to the local cache and
// returns the path of the weights file inside it.
func (d *HuggingFaceDownloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	source, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	hfSource, ok := source.(config.HuggingFaceSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", source)
	}

	repo := strings.TrimSpace(hfSource.Repo)
	if repo == "" {
		return "", false, fmt.Errorf("invalid repo name: %q", hfSource.Repo)
	}

	fullPath := filepath.Join(targetDir, "huggingface", repo)
	markerPath := filepath.Join(fullPath, markerFilename)
	markerContent := d.markerContent(repo, hfSource)

	if !hfSource.ForceDownload {
		if _, err := os.Stat(markerPath); err == nil && !d.shouldRedownload(markerPath, markerContent) {
			modelPath, err := resolveModelPath(fullPath, modelConfig.ID, hfSource.Include)
			if err == nil {
				slog.Info("Model already downloaded and up-to-date (marker match), skipping", "repo", repo, "path", modelPath)
				return modelPath, true, nil
			}
			slog.Warn("Cached download has no usable weights, downloading again", "repo", repo, "error", err)
		}
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	args := d.buildArgs(repo, fullPath, hfSource)

	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.retryDelay):
			}
		} else {
			slog.Info("Downloading model", "repo", repo, "path", fullPath)
		}

		stdout, stderr, err := d.executor.Execute(ctx, args, nil)
		if err == nil {
			if err := os.WriteFile(markerPath, []byte(markerContent), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			}

			slog.Info("Model downloaded successfully", "repo", repo, "path", fullPath, "attempt", attempt+1)

			modelPath, err := resolveModelPath(fullPath, modelConfig.ID, hfSource.Include)
			if err != nil {
				return "", false, fmt.Errorf("failed to resolve model path: %w", err)
			}

			return modelPath, false, nil
		}

		lastErr = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(stderr)))
		slog.Error("Failed to download model", "repo", repo, "path", fullPath, "attempt", attempt+1, "error", err, "output", string(stdout)+string(stderr))

		if ctx.Err() != nil {
			return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("Download timed out", "repo", repo, "path", fullPath, "attempt", attempt+1)
		}
	}

	return "", false, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, repo, lastErr)
}

func (d *HuggingFaceDownloader) buildArgs(repo, fullPath string, hfSource config.HuggingFaceSource) []string {
	args := []string{
		"download",
		repo,
		"--local-dir", fullPath,
	}

	if hfSource.Revision != "" {
		args = append(args, "--revision", hfSource.Revision)
	}
	if hfSource.RepoType != "" {
		args = append(args, "--repo-type", hfSource.RepoType)
	}
	for _, inc := range hfSource.Include {
		args = append(args, "--include", inc)
	}
	for _, exc := range hfSource.Exclude {
		args = append(args, "--exclude", exc)
	}
	if hfSource.ForceDownload {
		args = append(args, "--force-download")
	}
	if hfSource.Token != "" {
		args = append(args, "--token", hfSource.Token)
	}
	if hfSource.MaxWorkers > 0 {
		args = append(args, "--max-workers", fmt.Sprintf("%d", hfSource.MaxWorkers))
	}

	return args
}

// markerContent generates the expected content of the marker file.
// Used to detect if we need to redownload due to config change.
func (d *HuggingFaceDownloader) markerContent(repo string, hfSource config.HuggingFaceSource) string {
	return fmt.Sprintf("repo: %s\nrevision: %s\ninclude: %s\n", repo, hfSource.Revision, strings.Join(hfSource.Include, ","))
}

// shouldRedownload checks if the model should be redownloaded by comparing marker content.
func (d *HuggingFaceDownloader) shouldRedownload(markerPath, expectedContent string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		slog.Debug("Marker file missing or unreadable", "path", markerPath, "error", err)
		return true
	}

	if string(content) != expectedContent {
		slog.Info("Model config changed (marker mismatch), will redownload", "marker_path", markerPath)
		return true
	}

	return false
}

// resolveModelPath finds the weights file in baseDir. Candidates are the
// files matching the include patterns, or every top-level file when no
// pattern is configured.
func resolveModelPath(baseDir, modelID string, includePatterns []string) (string, error) {
	patterns := includePatterns
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(baseDir, pattern))
		if err != nil {
			slog.Warn("Invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() || filepath.Base(match) == markerFilename {
				continue
			}
			if !slices.Contains(files, match) {
				files = append(files, match)
			}
		}
	}

	if modelFile := findPrimaryModelFile(files, modelID); modelFile != "" {
		slog.Info("Resolved model file", "path", modelFile, "candidates", len(files))
		return modelFile, nil
	}

	return "", fmt.Errorf("%w in %s (patterns %v)", ErrNotFound, baseDir, patterns)
}

// findPrimaryModelFile picks the weights file among candidates: an exact
// name match with the model id wins, then the first file per extension
// priority, then names hinting at a primary checkpoint.
func findPrimaryModelFile(files []string, modelID string) string {
	var weights []string
	for _, ext := range weightExtensions {
		for _, file := range files {
			if strings.EqualFold(filepath.Ext(file), ext) {
				weights = append(weights, file)
			}
		}
	}

	if len(weights) == 0 {
		return ""
	}

	for _, file := range weights {
		if filepath.Base(file) == modelID {
			return file
		}
	}

	if len(weights) == 1 {
		return weights[0]
	}

	for _, pattern := range []string{"best", "model", "checkpoint", "weights"} {
		for _, file := range weights {
			if strings.Contains(strings.ToLower(filepath.Base(file)), pattern) {
				return file
			}
		}
	}

	slog.Warn("Multiple weight files matched, using the first", "count", len(weights), "files", weights)
	return weights[0]
}
