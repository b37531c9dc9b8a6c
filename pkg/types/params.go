package types

import (
	"errors"
	"fmt"
)

// ExecutionOption toggles one behavior of a projection request.
type ExecutionOption string

// Execution options.
const (
	OptionForwardGrowEnabled     ExecutionOption = "forward_grow_enabled"
	OptionBackGrowEnabled        ExecutionOption = "back_grow_enabled"
	OptionForceReferenceYear     ExecutionOption = "force_reference_year_inclusion"
	OptionForceCurrentYear       ExecutionOption = "force_current_year_inclusion"
	OptionSummarizeByPolygon     ExecutionOption = "summarize_by_polygon"
	OptionSummarizeByLayer       ExecutionOption = "summarize_by_layer"
	OptionIncludeProjectionFiles ExecutionOption = "include_projection_files"
	OptionRetainExecutionFolder  ExecutionOption = "retain_execution_folder"
)

var knownOptions = map[ExecutionOption]bool{
	OptionForwardGrowEnabled:     true,
	OptionBackGrowEnabled:        true,
	OptionForceReferenceYear:     true,
	OptionForceCurrentYear:       true,
	OptionSummarizeByPolygon:     true,
	OptionSummarizeByLayer:       true,
	OptionIncludeProjectionFiles: true,
	OptionRetainExecutionFolder:  true,
}

// DefaultAgeIncrement is the yield-table row spacing used when Parameters
// leaves AgeIncrement at zero.
const DefaultAgeIncrement = 10

// Parameter validation errors.
var (
	ErrNoStartBound = errors.New("no start age, start year, or forced year inclusion given")
	ErrNoEndBound   = errors.New("no end age, end year, or forced year inclusion given")
	ErrAgeRange     = errors.New("age start is after age end")
	ErrYearRange    = errors.New("year start is after year end")
	ErrAgeIncrement = errors.New("age increment must not be negative")
)

// Parameters are the validated settings of one projection request.
type Parameters struct {
	AgeStart     *int              `json:"age_start,omitempty" yaml:"age_start,omitempty"`
	AgeEnd       *int              `json:"age_end,omitempty" yaml:"age_end,omitempty"`
	YearStart    *int              `json:"year_start,omitempty" yaml:"year_start,omitempty"`
	YearEnd      *int              `json:"year_end,omitempty" yaml:"year_end,omitempty"`
	ForceYear    *int              `json:"force_year,omitempty" yaml:"force_year,omitempty"`
	AgeIncrement int               `json:"age_increment,omitempty" yaml:"age_increment,omitempty"`
	Options      []ExecutionOption `json:"options" yaml:"options"`
}

// Has reports whether opt is selected.
func (p Parameters) Has(opt ExecutionOption) bool {
	for _, o := range p.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Increment returns the yield-table age step.
func (p Parameters) Increment() int {
	if p.AgeIncrement <= 0 {
		return DefaultAgeIncrement
	}
	return p.AgeIncrement
}

// Validate checks that a projection window can be derived from p.
func (p Parameters) Validate() error {
	for _, o := range p.Options {
		if !knownOptions[o] {
			return fmt.Errorf("%w: %q", ErrUnknownOption, o)
		}
	}
	forced := p.ForceYear != nil || p.Has(OptionForceReferenceYear) || p.Has(OptionForceCurrentYear)
	if p.AgeStart == nil && p.YearStart == nil && !forced {
		return ErrNoStartBound
	}
	if p.AgeEnd == nil && p.YearEnd == nil && !forced {
		return ErrNoEndBound
	}
	if p.AgeStart != nil && p.AgeEnd != nil && *p.AgeStart > *p.AgeEnd {
		return ErrAgeRange
	}
	if p.YearStart != nil && p.YearEnd != nil && *p.YearStart > *p.YearEnd {
		return ErrYearRange
	}
	if p.AgeIncrement < 0 {
		return ErrAgeIncrement
	}
	return nil
}
