package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/ekisa-team/onnxport/internal/backend"
	"github.com/ekisa-team/onnxport/internal/catalog"
	"github.com/ekisa-team/onnxport/internal/config/source"
	"github.com/ekisa-team/onnxport/internal/onnx"
)

// Stage is the step of the pipeline an identifier failed in.
type Stage string

const (
	StageAcquire Stage = "acquire"
	StageExport  Stage = "export"
	StageVerify  Stage = "verify"
	StageInstall Stage = "install"
)

// Category classifies the cause of an ExportError.
type Category string

const (
	CategoryDownload          Category = "download"
	CategoryNotFound          Category = "not-found"
	CategoryUnsupportedFormat Category = "unsupported-format"
	CategoryExport            Category = "export"
	CategoryInvalidOutput     Category = "invalid-output"
	CategoryInstall           Category = "install"
	CategoryCanceled          Category = "canceled"
	CategoryUnknown           Category = "unknown"
)

// ExportError is the failure outcome of a single identifier.
type ExportError struct {
	Err     error
	ModelID string
	Stage   Stage
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.ModelID, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Category returns the cause category of the error.
func (e *ExportError) Category() Category {
	switch {
	case errors.Is(e.Err, context.Canceled):
		return CategoryCanceled
	case errors.Is(e.Err, source.ErrDownloadFailed):
		return CategoryDownload
	case errors.Is(e.Err, source.ErrNotFound), errors.Is(e.Err, catalog.ErrUnknownModel):
		return CategoryNotFound
	case errors.Is(e.Err, backend.ErrUnsupportedFormat):
		return CategoryUnsupportedFormat
	case errors.Is(e.Err, backend.ErrExportFailed), errors.Is(e.Err, backend.ErrOutputMissing):
		return CategoryExport
	case errors.Is(e.Err, onnx.ErrInvalidModel), errors.Is(e.Err, onnx.ErrNoGraph):
		return CategoryInvalidOutput
	case e.Stage == StageInstall:
		return CategoryInstall
	default:
		return CategoryUnknown
	}
}
