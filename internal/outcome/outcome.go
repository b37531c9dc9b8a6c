// Package outcome classifies growth-model return codes.
//
// The engines report a signed integer code. -99 is success without a numeric
// payload, other negative codes are stage-specific failures, positive codes
// are fatal, and 0 means the stage never produced a result. A small set of
// FIP initial-estimate failures instead ask for the stand to be retried under
// VRI; no other stage has a retry set.
package outcome

import (
	"fmt"

	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Return codes with fixed meaning across engines.
const (
	CodeNotRun  = 0
	CodeSuccess = -99
)

// FIP initial-estimate codes that request a VRI retry.
const (
	CodeFIPPrimaryHeightTooLow   = -4
	CodeFIPBreastHeightAgeTooLow = -6
	CodeFIPBasalAreaNonPositive  = -12
	CodeFIPBasalAreaBelowMinimum = -13
)

// Kind is the classification of one stage run.
type Kind int

const (
	// KindUnknown marks a zero Outcome that was never interpreted.
	KindUnknown Kind = iota
	KindSuccess
	KindRetryWithAlternateModel
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryWithAlternateModel:
		return "retry"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Severity grades a failure.
type Severity int

const (
	SeverityNone Severity = iota
	// SeverityStageFailure is a negative code outside any retry set.
	SeverityStageFailure
	// SeverityFatal is a positive code; the stratum's projection must stop.
	SeverityFatal
	// SeverityNotRun is code 0.
	SeverityNotRun
)

func (s Severity) String() string {
	switch s {
	case SeverityStageFailure:
		return "stage-failure"
	case SeverityFatal:
		return "fatal"
	case SeverityNotRun:
		return "not-run"
	default:
		return "none"
	}
}

// Outcome is the interpreted result of a stage run.
type Outcome struct {
	Kind     Kind
	Severity Severity
	Code     int
}

// Success reports whether the stage completed.
func (o Outcome) Success() bool { return o.Kind == KindSuccess }

func (o Outcome) String() string {
	if o.Kind == KindFailure {
		return fmt.Sprintf("%s(%d, %s)", o.Kind, o.Code, o.Severity)
	}
	return fmt.Sprintf("%s(%d)", o.Kind, o.Code)
}

// Succeeded is the outcome of a stage that ran without an engine, such as the
// pass-through Adjust stage or a stubbed run.
func Succeeded() Outcome {
	return Outcome{Kind: KindSuccess, Code: CodeSuccess}
}

type retryKey struct {
	stage types.Stage
	model types.GrowthModel
}

var retrySets = map[retryKey]map[int]bool{
	{types.StageInitial, types.ModelFIP}: {
		CodeFIPPrimaryHeightTooLow:   true,
		CodeFIPBreastHeightAgeTooLow: true,
		CodeFIPBasalAreaNonPositive:  true,
		CodeFIPBasalAreaBelowMinimum: true,
	},
}

// Interpret classifies code as returned by the engine for stage under model.
func Interpret(stage types.Stage, model types.GrowthModel, code int) Outcome {
	switch {
	case code == CodeSuccess:
		return Outcome{Kind: KindSuccess, Code: code}
	case retrySets[retryKey{stage, model}][code]:
		return Outcome{Kind: KindRetryWithAlternateModel, Code: code}
	case code == CodeNotRun:
		return Outcome{Kind: KindFailure, Severity: SeverityNotRun, Code: code}
	case code > 0:
		return Outcome{Kind: KindFailure, Severity: SeverityFatal, Code: code}
	default:
		return Outcome{Kind: KindFailure, Severity: SeverityStageFailure, Code: code}
	}
}
