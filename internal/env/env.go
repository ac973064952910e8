package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/onnxport/internal/envvar"
)

// Environment is the runtime environment the tool runs in.
type Environment string

const (
	// Development enables debug logging and colored console output.
	Development Environment = "development"

	// Production logs at info level.
	Production Environment = "production"

	// Test is used by tests.
	Test Environment = "test"
)

// FromEnv reads the environment from ONNXPORT_ENV, defaulting to production.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.OnnxportEnv))
}

// Parse maps a raw value to an Environment.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return Development
	case "test":
		return Test
	default:
		return Production
	}
}

// IsDevelopment reports whether e is the development environment.
func (e Environment) IsDevelopment() bool {
	return e == Development
}
