// Package agewindow holds the age and calendar-year arithmetic that feeds the
// growth models. The rounding here reproduces the legacy engine exactly.
package agewindow

import (
	"fmt"
	"math"
)

// MaxYearsToGrow is the longest projection the growth engines accept in
// either direction.
const MaxYearsToGrow = 400

// Window is a (start, end) pair of fractional stand ages.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (w Window) String() string {
	return fmt.Sprintf("[%g, %g]", w.Start, w.End)
}

// Shift moves both bounds by delta years of age.
func (w Window) Shift(delta float64) Window {
	return Window{Start: w.Start + delta, End: w.End + delta}
}

// Single returns a window covering exactly one age.
func Single(age float64) Window {
	return Window{Start: age, End: age}
}

// JavaRound rounds half up, matching java.lang.Math.round on doubles.
func JavaRound(x float64) int {
	return int(math.Floor(x + 0.5))
}

// AdjustMeasurementYear returns the calendar year at which a stand of
// standAge (at year) reaches suppliedAge. A fractional difference is pulled
// half a year toward zero before rounding, so positive differences land on
// the earlier year and negative differences on the later one.
func AdjustMeasurementYear(year int, suppliedAge, standAge float64) int {
	diff := suppliedAge - standAge
	fractional := float64(JavaRound(diff)) != diff
	switch {
	case diff >= 0 && fractional:
		return year + JavaRound(diff-0.5)
	case diff >= 0:
		return year + JavaRound(diff)
	case fractional:
		return year + JavaRound(diff+0.5)
	default:
		return year + JavaRound(diff)
	}
}

// ClampYearsToGrow limits a projection length to [0, MaxYearsToGrow].
func ClampYearsToGrow(years int) int {
	return min(max(years, 0), MaxYearsToGrow)
}

// CombineBound merges an explicitly supplied age with an age derived from a
// supplied year. When both are present the smaller wins; this holds for the
// end bound as well as the start bound.
func CombineBound(suppliedAge *int, yearAge *float64) *float64 {
	switch {
	case suppliedAge != nil && yearAge != nil:
		v := math.Min(*yearAge, float64(*suppliedAge))
		return &v
	case yearAge != nil:
		v := *yearAge
		return &v
	case suppliedAge != nil:
		v := float64(*suppliedAge)
		return &v
	default:
		return nil
	}
}

// Bounds accumulates a possibly incomplete window while forced-inclusion
// ages are folded in.
type Bounds struct {
	Start *float64
	End   *float64
}

// Include widens the bounds so that age is covered. A missing bound takes
// age as its value.
func (b *Bounds) Include(age float64) {
	if b.Start == nil || age < *b.Start {
		v := age
		b.Start = &v
	}
	if b.End == nil || age > *b.End {
		v := age
		b.End = &v
	}
}

// Window returns the completed window, or false if either bound is missing.
func (b Bounds) Window() (Window, bool) {
	if b.Start == nil || b.End == nil {
		return Window{}, false
	}
	return Window{Start: *b.Start, End: *b.End}, true
}
