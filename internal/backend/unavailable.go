package backend

import (
	"context"
	"fmt"
)

// unavailableExporter stands in for a provider whose tool could not be set
// up. Every export fails with the setup error so the run still reports
// each model individually.
type unavailableExporter struct {
	provider BackendProvider
	cause    error
}

// Unavailable returns an Exporter for provider that fails every export
// with ErrExportFailed wrapping cause.
func Unavailable(provider BackendProvider, cause error) Exporter {
	return &unavailableExporter{provider: provider, cause: cause}
}

func (u *unavailableExporter) Provider() BackendProvider {
	return u.provider
}

func (u *unavailableExporter) Export(context.Context, *Request) (*Response, error) {
	return nil, fmt.Errorf("%w: %s: %w", ErrExportFailed, u.provider, u.cause)
}

func (u *unavailableExporter) Close() error {
	return nil
}
