package ultralytics

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/mapsafe"
)

const (
	// DefaultBinary is the Ultralytics command-line entry point.
	DefaultBinary = "yolo"

	// tailLines is how many output lines are kept for error reports.
	tailLines = 20
)

// reservedArgs are set by the exporter and cannot be overridden by options.
var reservedArgs = []string{"model", "format", "mode", "task"}

// savedAsPattern matches the exporter's success line, e.g.
// "ONNX: export success ✅ 1.4s, saved as '/cache/yolo11n.onnx' (10.2 MB)".
var savedAsPattern = regexp.MustCompile(`saved as '([^']+)'`)

// Exporter implements backend.Exporter on top of the `yolo export` command.
type Exporter struct {
	executor *backend.Executor
}

// NewExporter creates an exporter running the yolo binary at binPath (or on PATH).
func NewExporter(binPath string, timeout time.Duration) (*Exporter, error) {
	if binPath == "" {
		binPath = DefaultBinary
	}

	executor, err := backend.NewExecutor(binPath, timeout)
	if err != nil {
		return nil, err
	}

	return NewExporterWithExecutor(executor), nil
}

// NewExporterWithExecutor creates an exporter with a preconfigured executor.
func NewExporterWithExecutor(executor *backend.Executor) *Exporter {
	return &Exporter{executor: executor}
}

// Provider returns the backend provider.
func (e *Exporter) Provider() backend.BackendProvider {
	return backend.BackendProviderUltralytics
}

// Export runs `yolo export` for the weights in req.
// The destination follows the library convention: next to the weights,
// with the stem suffixed by the format's extension.
func (e *Exporter) Export(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	format, err := backend.ParseFormat(string(req.Format))
	if err != nil {
		return nil, err
	}

	modelPath, err := filepath.Abs(req.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("resolve model path: %w", err)
	}

	args := buildArgs(modelPath, format, req.Parameters)
	slog.Debug("Running exporter", "binary", e.executor.BinaryPath(), "args", strings.Join(args, " "))

	start := time.Now()
	ch, err := e.executor.Stream(ctx, args, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrExportFailed, err)
	}

	var (
		reported string
		tail     []string
	)
	for chunk := range ch {
		if chunk.Done {
			if chunk.Error != nil {
				return nil, fmt.Errorf("%w: %w\n%s", backend.ErrExportFailed, chunk.Error, strings.Join(tail, "\n"))
			}
			for _, line := range strings.Split(string(chunk.Data), "\n") {
				if p := parseSavedAs(line); p != "" {
					reported = p
				}
			}
			break
		}

		line := string(chunk.Data)
		slog.Debug("yolo", "line", line)

		if p := parseSavedAs(line); p != "" {
			reported = p
		}

		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}
	}

	outputPath := resolveOutputPath(modelPath, format, reported)
	size, err := pathSize(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", backend.ErrOutputMissing, outputPath, err)
	}

	duration := time.Since(start)

	return &backend.Response{
		Path: outputPath,
		Metadata: &backend.ResponseMetadata{
			Provider:        e.Provider(),
			Model:           modelPath,
			Format:          format,
			Timestamp:       time.Now(),
			DurationSeconds: duration.Seconds(),
			OutputSizeBytes: size,
			BackendSpecific: map[string]any{
				"args":          args,
				"reported_path": reported,
			},
		},
	}, nil
}

// Close cleans up resources. The yolo CLI does not hold any.
func (e *Exporter) Close() error {
	return nil
}

// buildArgs builds yolo command-line arguments. Options are emitted as
// key=value pairs in sorted order so runs are reproducible.
func buildArgs(modelPath string, format backend.Format, params map[string]any) []string {
	args := []string{
		"export",
		"model=" + modelPath,
		"format=" + string(format),
	}

	for _, key := range mapsafe.SortedKeys(params) {
		if slices.Contains(reservedArgs, key) {
			slog.Warn("Ignoring reserved export option", "option", key)
			continue
		}
		args = append(args, key+"="+mapsafe.Format(params[key]))
	}

	// Fixed-size inputs are the common case for downstream runtimes.
	if format == backend.FormatONNX && !mapsafe.Get(params, "dynamic", false) {
		if _, ok := params["imgsz"]; !ok {
			args = append(args, "imgsz=640")
		}
	}

	return args
}

func parseSavedAs(line string) string {
	m := savedAsPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

// resolveOutputPath prefers the path the exporter reported and falls back
// to the conventional location.
func resolveOutputPath(modelPath string, format backend.Format, reported string) string {
	if reported != "" {
		if filepath.IsAbs(reported) {
			return reported
		}
		if abs, err := filepath.Abs(reported); err == nil {
			if _, err := os.Stat(abs); err == nil {
				return abs
			}
		}
		return filepath.Join(filepath.Dir(modelPath), reported)
	}

	stem := strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
	return stem + format.Suffix()
}

// pathSize returns the size of a file, or the total size of a directory.
func pathSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})

	return total, err
}
