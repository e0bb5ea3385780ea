// Package apperr defines the error kinds a report request can fail with.
package apperr

import (
	"errors"
	"fmt"
)

// ErrEmptyReport is returned when no vehicle has data inside the requested
// window and empty reports are rejected.
var ErrEmptyReport = errors.New("no vehicle has data in the requested window")

// InputError reports a missing or malformed request field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// LoadError reports an archive or registry source that could not be read.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load wraps err as a LoadError for source. A nil err stays nil and an
// existing LoadError is returned unchanged.
func Load(source string, err error) error {
	if err == nil {
		return nil
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &LoadError{Source: source, Err: err}
}

func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}

// Kind names the error class for logs and metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsInputError(err):
		return "input"
	case IsLoadError(err):
		return "load"
	case errors.Is(err, ErrEmptyReport):
		return "empty"
	default:
		return "internal"
	}
}
