package yieldtable

import (
	"context"
	"fmt"
	"math"

	"github.com/mesh-intelligence/standproj/internal/agewindow"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Generate writes the yield tables of polygon to sink. Per-stratum tables are
// written when summarizing by layer or when no summary option is chosen; the
// polygon summary follows the primary stratum. Strata with a layer that did
// not complete projection get a LAYER_NOT_PROJECTED message instead.
func Generate(ctx context.Context, params types.Parameters, polygon types.PolygonView, st *state.State, sink Sink) error {
	byPolygon := params.Has(types.OptionSummarizeByPolygon)
	byLayer := params.Has(types.OptionSummarizeByLayer) || !byPolygon

	for _, s := range types.ProjectedStrata {
		if _, ok := polygon.LayerFor(s); !ok {
			continue
		}
		if !tabulated(st, s) {
			polygon.AddMessage(types.Message{
				Severity: types.SeverityWarning,
				Kind:     types.MsgLayerNotProjected,
				Stratum:  s,
				Text:     fmt.Sprintf("layer %s was not projected and has no yield table", s),
			})
			continue
		}
		t, err := stratumTable(params, polygon, st, s)
		if err != nil {
			return err
		}
		if byLayer {
			if err := sink.WriteTable(ctx, t); err != nil {
				return fmt.Errorf("write %s table of polygon %s: %w", s, polygon.ID(), err)
			}
		}
		if byPolygon && s == types.StratumPrimary {
			t.Kind = KindPolygon
			if err := sink.WriteTable(ctx, t); err != nil {
				return fmt.Errorf("write summary table of polygon %s: %w", polygon.ID(), err)
			}
		}
	}
	return nil
}

// tabulated reports whether s reached the projection phase and none of its
// projection stages failed.
func tabulated(st *state.State, s types.Stratum) bool {
	if _, err := st.ProjectionDetails(s); err != nil {
		return false
	}
	for _, r := range st.Results() {
		if r.Stratum == s && r.Stage.IsProjection() && !r.Outcome.Success() {
			return false
		}
	}
	return true
}

func stratumTable(params types.Parameters, polygon types.PolygonView, st *state.State, s types.Stratum) (Table, error) {
	w, err := st.StratumAgeWindow(s)
	if err != nil {
		return Table{}, err
	}
	details, err := st.ProjectionDetails(s)
	if err != nil {
		return Table{}, err
	}
	m, err := st.Model(s)
	if err != nil {
		return Table{}, err
	}
	my := polygon.MeasurementYear()
	standAge, ok := polygon.AgeAtYear(s, my)
	if !ok {
		return Table{}, fmt.Errorf("polygon %s: no age for %s at %d", polygon.ID(), s, my)
	}

	t := Table{PolygonID: polygon.ID(), Kind: KindStratum, Stratum: s, Model: m.Model, Mode: m.Mode}
	if !st.DidRunProjection(s) {
		t.Rows = []Row{{Year: my, Age: standAge, Phase: PhaseMeasurement}}
		return t, nil
	}

	backRan := st.Succeeded(types.StageBack, s)
	forwardRan := st.Succeeded(types.StageForward, s)
	for _, age := range ages(w, params.Increment()) {
		year := agewindow.AdjustMeasurementYear(my, age, standAge)
		var phase Phase
		switch {
		case year < my:
			if !backRan || year < details.ProjectionStartYear {
				continue
			}
			phase = PhaseBack
		case year > my:
			if !forwardRan || year-my > agewindow.MaxYearsToGrow {
				continue
			}
			phase = PhaseForward
		default:
			phase = PhaseMeasurement
		}
		t.Rows = append(t.Rows, Row{Year: year, Age: age, Phase: phase})
	}
	return t, nil
}

// ages steps from w.Start by increment and always ends on w.End.
func ages(w agewindow.Window, increment int) []float64 {
	const eps = 1e-9
	var out []float64
	for a := w.Start; a < w.End-eps; a += float64(increment) {
		out = append(out, a)
	}
	if len(out) == 0 || math.Abs(out[len(out)-1]-w.End) > eps {
		out = append(out, w.End)
	}
	return out
}
