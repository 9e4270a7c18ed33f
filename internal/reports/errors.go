package reports

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult indicates the fetch succeeded but matched no rows.
	ErrEmptyResult = errors.New("reports: empty result")
	// ErrUnknownKind indicates an unsupported report kind.
	ErrUnknownKind = errors.New("reports: unknown report kind")
	// ErrUnknownFormat indicates an unsupported output format.
	ErrUnknownFormat = errors.New("reports: unknown output format")
	// ErrInvalidFilter indicates a filter value that is present but unusable.
	ErrInvalidFilter = errors.New("reports: invalid filter")
)

// MissingFilterError reports a required filter that was not supplied. It is
// returned before any fetch or render is attempted.
type MissingFilterError struct {
	Field string
}

func (e *MissingFilterError) Error() string {
	return fmt.Sprintf("reports: missing required filter %q", e.Field)
}

// Render stages.
const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageBuild     = "build"
	StageRender    = "render"
)

// RenderError wraps any failure inside the generation pipeline. No partial
// artifact accompanies it.
type RenderError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("reports: %s %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsMissingFilter reports whether err carries a MissingFilterError.
func IsMissingFilter(err error) bool {
	var target *MissingFilterError
	return errors.As(err, &target)
}

// IsRenderFailure reports whether err carries a RenderError.
func IsRenderFailure(err error) bool {
	var target *RenderError
	return errors.As(err, &target)
}

// Message is the user facing text for a pipeline error.
func Message(err error) string {
	var missing *MissingFilterError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyResult):
		return "No Data"
	case errors.As(err, &missing):
		return fmt.Sprintf("missing required filter: %s", missing.Field)
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrUnknownFormat), errors.Is(err, ErrInvalidFilter):
		return err.Error()
	}
	return "failed to generate report, try again"
}

// Permanent reports whether retrying the same request cannot succeed.
func Permanent(err error) bool {
	return errors.Is(err, ErrEmptyResult) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrUnknownFormat) ||
		errors.Is(err, ErrInvalidFilter) ||
		IsMissingFilter(err)
}
