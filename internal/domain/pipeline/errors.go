package pipeline

import (
	"errors"
	"fmt"
)

// InputError means the audio reference could not be used at all. It is raised
// before any stage runs and aborts the run.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("audio file %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// ConfigError means the request itself is invalid (for example
// min-speakers > max-speakers). Rejected before any stage runs.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "invalid configuration: " + e.Reason }

// InvariantError signals an internal consistency violation, such as the build
// stage receiving malformed segments. It indicates a defect and aborts the run.
type InvariantError struct {
	Stage  Stage
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated in %s stage: %s", e.Stage, e.Reason)
}

// transient is implemented by collaborator errors that are worth retrying,
// such as rate limits or upstream 5xx responses.
type transient interface {
	Transient() bool
}

// IsTransient reports whether err (or anything it wraps) marks itself as a
// retryable failure.
func IsTransient(err error) bool {
	var t transient
	return errors.As(err, &t) && t.Transient()
}
