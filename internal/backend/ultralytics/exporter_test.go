package ultralytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/onnxport/internal/backend"
)

type scriptedRunner struct {
	onStart func(args []string)
	waitErr error
	stdout  string
	stderr  string
	args    []string
}

func (s *scriptedRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	return nil, nil, errors.New("not used")
}

func (s *scriptedRunner) Start(ctx context.Context, name string, args []string, stdin io.Reader) (io.ReadCloser, io.ReadCloser, func() error, error) {
	s.args = args
	if s.onStart != nil {
		s.onStart(args)
	}
	return io.NopCloser(strings.NewReader(s.stdout)),
		io.NopCloser(strings.NewReader(s.stderr)),
		func() error { return s.waitErr },
		nil
}

func newTestExporter(runner backend.CommandRunner) *Exporter {
	return NewExporterWithExecutor(backend.NewExecutorWithRunner("yolo", time.Minute, runner))
}

func writeWeights(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "yolo11n.pt")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))
	return path
}

func TestExporter_ExportReportedPath(t *testing.T) {
	weights := writeWeights(t)
	out := filepath.Join(filepath.Dir(weights), "exported", "yolo11n.onnx")

	runner := &scriptedRunner{
		stdout: "Ultralytics 8.3.0 🚀 Python-3.11 torch-2.4.0 CPU\n" +
			fmt.Sprintf("ONNX: export success ✅ 1.4s, saved as '%s' (10.2 MB)\n", out),
		onStart: func([]string) {
			require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
			require.NoError(t, os.WriteFile(out, []byte("0123456789"), 0o644))
		},
	}

	resp, err := newTestExporter(runner).Export(context.Background(), &backend.Request{
		ModelPath:  weights,
		Format:     backend.FormatONNX,
		Parameters: map[string]any{"opset": 12, "simplify": true},
	})
	require.NoError(t, err)

	assert.Equal(t, out, resp.Path)
	assert.Equal(t, int64(10), resp.Metadata.OutputSizeBytes)
	assert.Equal(t, backend.BackendProviderUltralytics, resp.Metadata.Provider)
	assert.Equal(t, backend.FormatONNX, resp.Metadata.Format)
	assert.Equal(t, []string{"export", "model=" + weights, "format=onnx", "opset=12", "simplify=True", "imgsz=640"}, runner.args)
}

func TestExporter_ExportConventionalPathFromStderr(t *testing.T) {
	weights := writeWeights(t)
	out := strings.TrimSuffix(weights, ".pt") + ".torchscript"

	runner := &scriptedRunner{
		stderr: "TorchScript: starting export with torch 2.4.0...\n",
		onStart: func([]string) {
			require.NoError(t, os.WriteFile(out, []byte("ts"), 0o644))
		},
	}

	resp, err := newTestExporter(runner).Export(context.Background(), &backend.Request{
		ModelPath: weights,
		Format:    backend.FormatTorchScript,
	})
	require.NoError(t, err)
	assert.Equal(t, out, resp.Path)
	assert.Equal(t, []string{"export", "model=" + weights, "format=torchscript"}, runner.args)
}

func TestExporter_OpenVINODirectorySize(t *testing.T) {
	weights := writeWeights(t)
	out := strings.TrimSuffix(weights, ".pt") + "_openvino_model"

	runner := &scriptedRunner{
		onStart: func([]string) {
			require.NoError(t, os.MkdirAll(out, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(out, "model.xml"), []byte("xml"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(out, "model.bin"), []byte("binary"), 0o644))
		},
	}

	resp, err := newTestExporter(runner).Export(context.Background(), &backend.Request{
		ModelPath: weights,
		Format:    backend.FormatOpenVINO,
	})
	require.NoError(t, err)
	assert.Equal(t, out, resp.Path)
	assert.Equal(t, int64(9), resp.Metadata.OutputSizeBytes)
}

func TestExporter_CommandFailure(t *testing.T) {
	runner := &scriptedRunner{
		stdout:  "ONNX: starting export with onnx 1.16.0 opset 12...\n",
		stderr:  "ONNX: export failure ❌ 0.2s: No module named 'onnxslim'",
		waitErr: errors.New("exit status 1"),
	}

	_, err := newTestExporter(runner).Export(context.Background(), &backend.Request{
		ModelPath: writeWeights(t),
		Format:    backend.FormatONNX,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrExportFailed)
	assert.Contains(t, err.Error(), "onnxslim")
	assert.Contains(t, err.Error(), "starting export")
}

func TestExporter_MissingOutput(t *testing.T) {
	_, err := newTestExporter(&scriptedRunner{}).Export(context.Background(), &backend.Request{
		ModelPath: writeWeights(t),
		Format:    backend.FormatONNX,
	})
	assert.ErrorIs(t, err, backend.ErrOutputMissing)
}

func TestExporter_UnsupportedFormat(t *testing.T) {
	runner := &scriptedRunner{}

	_, err := newTestExporter(runner).Export(context.Background(), &backend.Request{
		ModelPath: writeWeights(t),
		Format:    "tflite",
	})
	assert.ErrorIs(t, err, backend.ErrUnsupportedFormat)
	assert.Nil(t, runner.args, "nothing is run for unsupported formats")
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs("/m/yolo11n.pt", backend.FormatONNX, map[string]any{
		"dynamic": true,
		"format":  "engine",
		"half":    false,
	})

	assert.Equal(t, []string{"export", "model=/m/yolo11n.pt", "format=onnx", "dynamic=True", "half=False"}, args)
}

func TestParseSavedAs(t *testing.T) {
	assert.Equal(t, "/tmp/x.onnx", parseSavedAs("ONNX: export success ✅ 1.0s, saved as '/tmp/x.onnx' (1 MB)"))
	assert.Empty(t, parseSavedAs("Results saved to /tmp"))
}

func TestProvider(t *testing.T) {
	e := newTestExporter(&scriptedRunner{})
	assert.Equal(t, backend.BackendProviderUltralytics, e.Provider())
	assert.NoError(t, e.Close())
}
