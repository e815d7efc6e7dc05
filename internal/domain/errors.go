package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSchema signals a collection or record that fails validation.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrCompilation signals a query that cannot be compiled into a backend document.
	ErrCompilation = errors.New("compilation error")
	// ErrConfiguration signals an invalid query parameter (threshold, alpha, beta, metric).
	ErrConfiguration = errors.New("configuration error")
	// ErrOracle signals a structure engine failure while verifying a candidate.
	ErrOracle = errors.New("oracle error")
	// ErrBackend signals a search backend failure.
	ErrBackend = errors.New("backend error")
	// ErrClosedHandle signals access to a closed match stream.
	ErrClosedHandle = errors.New("closed handle")
)

// CompilationError names the value that made compilation fail.
type CompilationError struct {
	Reason string
	Value  any
}

func (e *CompilationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", ErrCompilation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", ErrCompilation.Error(), e.Reason, e.Value)
}

func (e *CompilationError) Unwrap() error { return ErrCompilation }

// NewCompilationError creates a compilation error for the offending value.
func NewCompilationError(reason string, value any) error {
	return &CompilationError{Reason: reason, Value: value}
}

// ConfigurationError names the query parameter that is out of range.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrConfiguration.Error(), e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError creates a configuration error for a query parameter.
func NewConfigurationError(field string, value any, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}
