package schedule

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrConfig classifies malformed interval or schedule construction arguments.
	ErrConfig = errors.New("schedule: invalid configuration")
	// ErrDecoding is returned when a wire-encoded schedule cannot be parsed.
	ErrDecoding = errors.New("schedule: malformed encoding")
	// ErrDisjointUnion is returned when two non-empty intervals without
	// overlap are unioned.
	ErrDisjointUnion = errors.New("schedule: union of disjoint intervals")
)

// ConfigError captures field level problems found while constructing an
// interval.
type ConfigError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e == nil || len(e.FieldErrors) == 0 {
		return ErrConfig.Error()
	}
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.FieldErrors[field])
	}
	return ErrConfig.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrConfig) hold for every ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// HasErrors reports whether any field level issues were recorded.
func (e *ConfigError) HasErrors() bool {
	return e != nil && len(e.FieldErrors) > 0
}

func (e *ConfigError) add(field, message string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string]string)
	}
	e.FieldErrors[field] = message
}
