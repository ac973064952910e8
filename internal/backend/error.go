package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound          = errors.New("backend not found in registry")
	ErrAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrExportFailed      = errors.New("export failed")
	ErrOutputMissing     = errors.New("exported file not found")
)
