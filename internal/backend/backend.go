package backend

import (
	"context"
	"fmt"
	"time"
)

// BackendProvider is a string identifier for an export backend provider.
type BackendProvider string

const (
	BackendProviderUltralytics BackendProvider = "ultralytics"
)

// Format is an interchange format a model can be exported to.
type Format string

const (
	FormatONNX        Format = "onnx"
	FormatTorchScript Format = "torchscript"
	FormatOpenVINO    Format = "openvino"
)

// formatSuffixes maps a format to the suffix the exporter appends to the
// weights file stem. OpenVINO produces a directory.
var formatSuffixes = map[Format]string{
	FormatONNX:        ".onnx",
	FormatTorchScript: ".torchscript",
	FormatOpenVINO:    "_openvino_model",
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if _, ok := formatSuffixes[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// Suffix returns the output suffix of the format.
func (f Format) Suffix() string {
	return formatSuffixes[f]
}

// Exporter defines the core interface for all export backends.
type Exporter interface {
	// Provider returns the backend provider.
	Provider() BackendProvider

	// Export converts the weights in req to req.Format and reports where
	// the result was written.
	Export(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// Request encapsulates all parameters for an export call.
type Request struct {
	// Parameters contains backend-specific export parameters.
	Parameters map[string]any

	// ModelPath is the path to the weights file.
	ModelPath string

	// Format is the target interchange format.
	Format Format
}

// Response contains the result of an export operation.
type Response struct {
	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata

	// Path is where the exporter wrote the result.
	Path string
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Timestamp       time.Time       `json:"timestamp"`
	BackendSpecific map[string]any  `json:"backend_specific,omitempty"`
	Provider        BackendProvider `json:"provider"`
	Model           string          `json:"model"`
	Format          Format          `json:"format"`
	DurationSeconds float64         `json:"export_time_seconds"`
	OutputSizeBytes int64           `json:"output_size_bytes"`
}
