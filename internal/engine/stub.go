package engine

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/internal/projection"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/internal/yieldtable"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Call is one stage invocation seen by a Stub.
type Call struct {
	PolygonID   string
	Stage       types.Stage
	Stratum     types.Stratum
	Model       types.GrowthModel
	Mode        types.ProcessingMode
	YearsToGrow int
}

// Handoff is one yield-table request seen by a Stub.
type Handoff struct {
	PolygonID string
	Results   []state.StageResult
}

type scriptKey struct {
	stage   types.Stage
	stratum types.Stratum
	model   types.GrowthModel
}

// Stub is a ModelRunner that never runs an engine. Every stage returns
// CodeSuccess unless scripted otherwise. It is safe for concurrent use.
type Stub struct {
	mu       sync.Mutex
	scripts  map[scriptKey][]int
	calls    []Call
	handoffs []Handoff
}

var _ projection.ModelRunner = (*Stub)(nil)

// NewStub returns a Stub that succeeds at every stage.
func NewStub() *Stub {
	return &Stub{scripts: make(map[scriptKey][]int)}
}

// Script makes stage under model return codes for every stratum. Codes are
// consumed in order and the last one repeats.
func (s *Stub) Script(stage types.Stage, model types.GrowthModel, codes ...int) *Stub {
	return s.ScriptStratum(stage, types.StratumUnknown, model, codes...)
}

// ScriptStratum is Script limited to one stratum. It takes precedence over
// Script.
func (s *Stub) ScriptStratum(stage types.Stage, stratum types.Stratum, model types.GrowthModel, codes ...int) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[scriptKey{stage, stratum, model}] = append([]int(nil), codes...)
	return s
}

// Calls returns the stage invocations in call order.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Handoffs returns the yield-table requests in call order.
func (s *Stub) Handoffs() []Handoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Handoff(nil), s.handoffs...)
}

func (s *Stub) code(stage types.Stage, req projection.StageRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{
		PolygonID:   req.Polygon.ID(),
		Stage:       stage,
		Stratum:     req.Stratum,
		Model:       req.Model,
		Mode:        req.Mode,
		YearsToGrow: req.YearsToGrow,
	})
	for _, key := range []scriptKey{
		{stage, req.Stratum, req.Model},
		{stage, types.StratumUnknown, req.Model},
	} {
		codes, ok := s.scripts[key]
		if !ok || len(codes) == 0 {
			continue
		}
		code := codes[0]
		if len(codes) > 1 {
			s.scripts[key] = codes[1:]
		}
		return code
	}
	return outcome.CodeSuccess
}

func (s *Stub) run(stage types.Stage, req projection.StageRequest) (outcome.Outcome, error) {
	return outcome.Interpret(stage, req.Model, s.code(stage, req)), nil
}

// RunInitial implements projection.ModelRunner.
func (s *Stub) RunInitial(_ context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	return s.run(types.StageInitial, req)
}

// RunAdjust implements projection.ModelRunner.
func (s *Stub) RunAdjust(_ context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	return s.run(types.StageAdjust, req)
}

// RunForward implements projection.ModelRunner.
func (s *Stub) RunForward(_ context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	return s.run(types.StageForward, req)
}

// RunBack implements projection.ModelRunner.
func (s *Stub) RunBack(_ context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	return s.run(types.StageBack, req)
}

// GenerateYieldTables records the handoff and writes the tables to the
// request's sink.
func (s *Stub) GenerateYieldTables(ctx context.Context, pc *projection.Context, polygon types.PolygonView, st *state.State) error {
	s.mu.Lock()
	s.handoffs = append(s.handoffs, Handoff{PolygonID: polygon.ID(), Results: st.Results()})
	s.mu.Unlock()
	return yieldtable.Generate(ctx, pc.Params, polygon, st, pc.Yield)
}
