package model

import (
	"time"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/config"
	"github.com/ekisa-team/onnxport/internal/onnx"
)

// Status is the processing state of a model identifier.
type Status string

const (
	// StatusPending indicates that the model has not been processed yet.
	StatusPending Status = "pending"

	// StatusAcquiring indicates that the weights are being fetched.
	StatusAcquiring Status = "acquiring"

	// StatusExporting indicates that the exporter is running.
	StatusExporting Status = "exporting"

	// StatusExported indicates that the export succeeded.
	StatusExported Status = "exported"

	// StatusFailed indicates that one of the stages failed.
	StatusFailed Status = "failed"

	// StatusSkipped indicates that the run stopped before the model was reached.
	StatusSkipped Status = "skipped"
)

// Result is the outcome of processing one identifier.
type Result struct {
	Err         *ExportError      `json:"error,omitempty"`
	ONNX        *onnx.Info        `json:"onnx,omitempty"`
	ID          string            `json:"id"`
	Source      config.SourceType `json:"source"`
	Format      backend.Format    `json:"format"`
	Status      Status            `json:"status"`
	WeightsPath string            `json:"weights_path,omitempty"`
	ExportPath  string            `json:"export_path,omitempty"`
	InstallPath string            `json:"install_path,omitempty"`
	SizeBytes   int64             `json:"size_bytes,omitempty"`
	Duration    time.Duration     `json:"duration"`
	Cached      bool              `json:"cached"`
}

// NewResult creates a pending result for an identifier.
func NewResult(cfg *config.ModelConfig, format backend.Format) *Result {
	r := &Result{
		ID:     cfg.ID,
		Format: format,
		Status: StatusPending,
	}
	if src, err := cfg.GetSource(); err == nil {
		r.Source = src.Type()
	}
	return r
}

// SetStatus sets the status of the result.
func (r *Result) SetStatus(status Status) {
	r.Status = status
}

// Fail marks the result failed at stage with cause err.
func (r *Result) Fail(stage Stage, err error) {
	r.Status = StatusFailed
	r.Err = &ExportError{ModelID: r.ID, Stage: stage, Err: err}
}

// Summary aggregates the results of a run in processing order.
type Summary struct {
	StartedAt  time.Time     `json:"started_at"`
	RunID      string        `json:"run_id"`
	InstallDir string        `json:"install_dir,omitempty"`
	Results    []*Result     `json:"results"`
	Disabled   int           `json:"disabled"`
	Duration   time.Duration `json:"duration"`
	Canceled   bool          `json:"canceled"`
}

// Count returns how many results have the given status.
func (s *Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Succeeded returns the number of exported identifiers.
func (s *Summary) Succeeded() int {
	return s.Count(StatusExported)
}

// Failed returns the number of failed identifiers.
func (s *Summary) Failed() int {
	return s.Count(StatusFailed)
}

// OK reports whether every enabled identifier was exported.
func (s *Summary) OK() bool {
	return !s.Canceled && s.Succeeded() == len(s.Results)
}
