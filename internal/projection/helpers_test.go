package projection_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/standproj/internal/engine"
	"github.com/mesh-intelligence/standproj/internal/projection"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/internal/yieldtable"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

func ptr(v int) *int { return &v }

func layer(s types.Stratum, age float64) types.Layer {
	return types.Layer{
		ID:      s.String(),
		Stratum: s,
		Species: []types.Species{{Code: "FD", Percent: 80, TotalAge: age, Height: 30, SiteIndex: 25}},
	}
}

// fipRecord is a polygon with a FIP inventory and no basal area, so initial
// processing starts with FIP.
func fipRecord(id int64, layers ...types.Layer) types.PolygonRecord {
	return types.PolygonRecord{
		Descriptor:        types.Descriptor{FeatureID: id},
		ReferenceYear:     2000,
		InventoryStandard: types.InventoryFIP,
		Layers:            layers,
	}
}

func newPolygon(t *testing.T, rec types.PolygonRecord) *types.Polygon {
	t.Helper()
	p, err := types.NewPolygon(rec)
	require.NoError(t, err)
	return p
}

func forwardOnly(ageStart, ageEnd int) types.Parameters {
	return types.Parameters{
		AgeStart: ptr(ageStart),
		AgeEnd:   ptr(ageEnd),
		Options:  []types.ExecutionOption{types.OptionForwardGrowEnabled},
	}
}

func forwardAndBack(ageStart, ageEnd int) types.Parameters {
	p := forwardOnly(ageStart, ageEnd)
	p.Options = append(p.Options, types.OptionBackGrowEnabled)
	return p
}

func newContext(t *testing.T, params types.Parameters, opts ...projection.Option) (*projection.Context, *yieldtable.Collector) {
	t.Helper()
	sink := &yieldtable.Collector{}
	opts = append([]projection.Option{
		projection.WithLogger(zaptest.NewLogger(t)),
		projection.WithYieldSink(sink),
		projection.WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }),
	}, opts...)
	pc, err := projection.NewContext(params, t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, pc.Close()) })
	return pc, sink
}

// project runs one polygon through a fresh orchestrator.
func project(t *testing.T, pc *projection.Context, runner projection.ModelRunner, p *types.Polygon) (*state.State, error) {
	t.Helper()
	st := state.New(p.ID())
	err := projection.NewOrchestrator(pc, runner, p, st).Project(t.Context())
	return st, err
}

func callsFor(stub *engine.Stub, stage types.Stage, s types.Stratum) []engine.Call {
	var out []engine.Call
	for _, c := range stub.Calls() {
		if c.Stage == stage && c.Stratum == s {
			out = append(out, c)
		}
	}
	return out
}

func messageKinds(p types.PolygonView) []types.MessageKind {
	var out []types.MessageKind
	for _, m := range p.Messages() {
		out = append(out, m.Kind)
	}
	return out
}
