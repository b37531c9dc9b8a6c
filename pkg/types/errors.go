package types

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup and decoding errors.
var (
	ErrUnknownStratum = errors.New("unknown stratum")
	ErrUnknownOption  = errors.New("unknown execution option")
)

// Error taxonomy sentinels. A *ProjectionError matches exactly one of these
// under errors.Is.
var (
	// ErrPolygonInput marks bad or incomplete stand data for one stratum.
	ErrPolygonInput = errors.New("polygon input error")
	// ErrStageExecution marks a failed external stage run for one stratum.
	ErrStageExecution = errors.New("stage execution error")
	// ErrInternalExecution marks an I/O or environment failure.
	ErrInternalExecution = errors.New("internal execution error")
	// ErrValidation marks a polygon that cannot be projected at all.
	ErrValidation = errors.New("polygon validation error")
)

// ErrorKind classifies a ProjectionError.
type ErrorKind int

// Error kinds.
const (
	KindPolygonInput ErrorKind = iota
	KindStageExecution
	KindInternalExecution
	KindValidation
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindPolygonInput:
		return ErrPolygonInput
	case KindStageExecution:
		return ErrStageExecution
	case KindInternalExecution:
		return ErrInternalExecution
	default:
		return ErrValidation
	}
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// ProjectionError is a failure raised while projecting a polygon. Stratum
// is StratumUnknown when the error is polygon-scoped.
type ProjectionError struct {
	Kind    ErrorKind
	Polygon string
	Stratum Stratum
	Stage   Stage
	Code    int
	Err     error
}

func (e *ProjectionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": polygon ")
	b.WriteString(e.Polygon)
	if e.Stratum != StratumUnknown {
		fmt.Fprintf(&b, " stratum %s", e.Stratum)
	}
	if e.Kind == KindStageExecution {
		fmt.Fprintf(&b, " stage %s code %d", e.Stage, e.Code)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *ProjectionError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// CallerFault reports whether the error stems from the input data rather than
// the execution environment.
func (e *ProjectionError) CallerFault() bool {
	return e.Kind == KindPolygonInput || e.Kind == KindValidation
}

// StratumScoped reports whether the error affects only one stratum.
func (e *ProjectionError) StratumScoped() bool {
	return e.Kind == KindPolygonInput || e.Kind == KindStageExecution
}

// NewPolygonInputError reports bad stand data for one stratum.
func NewPolygonInputError(polygon string, s Stratum, format string, args ...any) *ProjectionError {
	return &ProjectionError{Kind: KindPolygonInput, Polygon: polygon, Stratum: s, Err: fmt.Errorf(format, args...)}
}

// NewStageExecutionError reports a failed stage run with its return code.
func NewStageExecutionError(polygon string, s Stratum, stage Stage, code int, err error) *ProjectionError {
	return &ProjectionError{Kind: KindStageExecution, Polygon: polygon, Stratum: s, Stage: stage, Code: code, Err: err}
}

// NewInternalExecutionError wraps an environment failure.
func NewInternalExecutionError(polygon string, err error) *ProjectionError {
	return &ProjectionError{Kind: KindInternalExecution, Polygon: polygon, Err: err}
}

// NewValidationError reports a polygon that cannot be projected.
func NewValidationError(polygon string, format string, args ...any) *ProjectionError {
	return &ProjectionError{Kind: KindValidation, Polygon: polygon, Err: fmt.Errorf(format, args...)}
}

// IsCallerFault reports whether err is a ProjectionError caused by input data.
func IsCallerFault(err error) bool {
	var pe *ProjectionError
	if errors.As(err, &pe) {
		return pe.CallerFault()
	}
	return false
}
