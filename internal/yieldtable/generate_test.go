package yieldtable

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/standproj/internal/agewindow"
	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

func newPolygon(t *testing.T, strata ...types.Stratum) *types.Polygon {
	t.Helper()
	rec := types.PolygonRecord{
		Descriptor:    types.Descriptor{FeatureID: 42},
		ReferenceYear: 2000,
	}
	for _, s := range strata {
		rec.Layers = append(rec.Layers, types.Layer{
			ID:      s.String(),
			Stratum: s,
			Species: []types.Species{{Code: "PL", Percent: 100, TotalAge: 100}},
		})
	}
	p, err := types.NewPolygon(rec)
	require.NoError(t, err)
	return p
}

// projected builds a state in which s ran Forward (and Back when back is
// true) over w.
func projected(t *testing.T, st *state.State, s types.Stratum, w agewindow.Window, back bool) {
	t.Helper()
	if _, err := st.AgeWindow(); err != nil {
		require.NoError(t, st.SetAgeWindow(w))
	}
	require.NoError(t, st.AssignModel(s, types.ModelVRI, types.ModeVRIDefault))
	require.NoError(t, st.UpdateAgeWindow(s, w))
	start := agewindow.AdjustMeasurementYear(2000, w.Start, 100)
	require.NoError(t, st.RecordProjectionDetails(s, state.ProjectionDetails{
		ProjectionStartYear: min(start, 2000),
		FirstRequestedYear:  start,
	}))
	require.NoError(t, st.RecordStageResult(types.StageForward, s, types.ModelVRI, outcome.Succeeded()))
	if back {
		require.NoError(t, st.RecordStageResult(types.StageBack, s, types.ModelVRI, outcome.Succeeded()))
	}
}

func TestGenerateForwardOnly(t *testing.T) {
	p := newPolygon(t, types.StratumPrimary)
	st := state.New(p.ID())
	projected(t, st, types.StratumPrimary, agewindow.Window{Start: 90, End: 150}, false)

	var sink Collector
	require.NoError(t, Generate(context.Background(), types.Parameters{}, p, st, &sink))

	tables := sink.Tables()
	require.Len(t, tables, 1)
	want := Table{
		PolygonID: "42",
		Kind:      KindStratum,
		Stratum:   types.StratumPrimary,
		Model:     types.ModelVRI,
		Mode:      types.ModeVRIDefault,
		Rows: []Row{
			{Year: 2000, Age: 100, Phase: PhaseMeasurement},
			{Year: 2010, Age: 110, Phase: PhaseForward},
			{Year: 2020, Age: 120, Phase: PhaseForward},
			{Year: 2030, Age: 130, Phase: PhaseForward},
			{Year: 2040, Age: 140, Phase: PhaseForward},
			{Year: 2050, Age: 150, Phase: PhaseForward},
		},
	}
	if diff := cmp.Diff(want, tables[0]); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateBackRowsAndEndAge(t *testing.T) {
	p := newPolygon(t, types.StratumPrimary)
	st := state.New(p.ID())
	projected(t, st, types.StratumPrimary, agewindow.Window{Start: 80, End: 112}, true)

	var sink Collector
	params := types.Parameters{AgeIncrement: 10}
	require.NoError(t, Generate(context.Background(), params, p, st, &sink))

	tables := sink.Tables()
	require.Len(t, tables, 1)
	var years []int
	var phases []Phase
	for _, r := range tables[0].Rows {
		years = append(years, r.Year)
		phases = append(phases, r.Phase)
	}
	assert.Equal(t, []int{1980, 1990, 2000, 2010, 2012}, years)
	assert.Equal(t, []Phase{PhaseBack, PhaseBack, PhaseMeasurement, PhaseForward, PhaseForward}, phases)
}

func TestGenerateSummaryOptions(t *testing.T) {
	tests := []struct {
		name    string
		options []types.ExecutionOption
		want    []Kind
	}{
		{name: "default is by layer", want: []Kind{KindStratum, KindStratum}},
		{name: "by polygon only", options: []types.ExecutionOption{types.OptionSummarizeByPolygon}, want: []Kind{KindPolygon}},
		{
			name:    "both",
			options: []types.ExecutionOption{types.OptionSummarizeByPolygon, types.OptionSummarizeByLayer},
			want:    []Kind{KindStratum, KindPolygon, KindStratum},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPolygon(t, types.StratumPrimary, types.StratumVeteran)
			st := state.New(p.ID())
			projected(t, st, types.StratumPrimary, agewindow.Window{Start: 100, End: 120}, false)
			projected(t, st, types.StratumVeteran, agewindow.Window{Start: 100, End: 120}, false)

			var sink Collector
			require.NoError(t, Generate(context.Background(), types.Parameters{Options: tt.options}, p, st, &sink))

			var kinds []Kind
			for _, tbl := range sink.Tables() {
				kinds = append(kinds, tbl.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestGenerateFlagsUnprojectedLayers(t *testing.T) {
	p := newPolygon(t, types.StratumPrimary, types.StratumDead)
	st := state.New(p.ID())
	projected(t, st, types.StratumPrimary, agewindow.Window{Start: 100, End: 110}, false)

	var sink Collector
	require.NoError(t, Generate(context.Background(), types.Parameters{}, p, st, &sink))

	require.Len(t, sink.Tables(), 1)
	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, types.MsgLayerNotProjected, msgs[0].Kind)
	assert.Equal(t, types.StratumDead, msgs[0].Stratum)
}

func TestGenerateSkipsFailedForward(t *testing.T) {
	p := newPolygon(t, types.StratumPrimary)
	st := state.New(p.ID())
	s := types.StratumPrimary
	w := agewindow.Window{Start: 100, End: 130}
	require.NoError(t, st.SetAgeWindow(w))
	require.NoError(t, st.AssignModel(s, types.ModelFIP, types.ModeFIPDefault))
	require.NoError(t, st.UpdateAgeWindow(s, w))
	require.NoError(t, st.RecordProjectionDetails(s, state.ProjectionDetails{ProjectionStartYear: 2000, FirstRequestedYear: 2000}))
	require.NoError(t, st.RecordStageResult(types.StageForward, s, types.ModelFIP,
		outcome.Interpret(types.StageForward, types.ModelFIP, 4)))

	var sink Collector
	require.NoError(t, Generate(context.Background(), types.Parameters{}, p, st, &sink))
	assert.Empty(t, sink.Tables())
	require.Len(t, p.Messages(), 1)
}

func TestGenerateMeasurementRowWhenNothingGrew(t *testing.T) {
	p := newPolygon(t, types.StratumPrimary)
	st := state.New(p.ID())
	s := types.StratumPrimary
	w := agewindow.Window{Start: 95, End: 135}
	require.NoError(t, st.SetAgeWindow(w))
	require.NoError(t, st.AssignModel(s, types.ModelFIP, types.ModeFIPDefault))
	require.NoError(t, st.UpdateAgeWindow(s, w))
	require.NoError(t, st.RecordProjectionDetails(s, state.ProjectionDetails{ProjectionStartYear: 2000, FirstRequestedYear: 1995}))
	require.NoError(t, st.RecordStageResult(types.StageAdjust, s, types.ModelFIP, outcome.Succeeded()))
	require.False(t, st.DidRunProjection(s))

	var sink Collector
	require.NoError(t, Generate(context.Background(), types.Parameters{}, p, st, &sink))

	tables := sink.Tables()
	require.Len(t, tables, 1)
	want := []Row{{Year: 2000, Age: 100, Phase: PhaseMeasurement}}
	if diff := cmp.Diff(want, tables[0].Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, p.Messages())
}

type failingSink struct{}

func (failingSink) WriteTable(context.Context, Table) error { return errors.New("disk full") }

func TestGenerateSinkError(t *testing.T) {
	p := newPolygon(t, types.StratumPrimary)
	st := state.New(p.ID())
	projected(t, st, types.StratumPrimary, agewindow.Window{Start: 100, End: 110}, false)

	err := Generate(context.Background(), types.Parameters{}, p, st, failingSink{})
	assert.ErrorContains(t, err, "disk full")
}

func TestAges(t *testing.T) {
	assert.Equal(t, []float64{55}, ages(agewindow.Single(55), 10))
	assert.Equal(t, []float64{0, 10, 20}, ages(agewindow.Window{Start: 0, End: 20}, 10))
	assert.Equal(t, []float64{0, 10, 15}, ages(agewindow.Window{Start: 0, End: 15}, 10))
}

func TestDiscardSink(t *testing.T) {
	assert.NoError(t, Discard.WriteTable(context.Background(), Table{}))
}
