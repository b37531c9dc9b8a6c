package projection

import (
	"context"

	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// StageRequest is the input to one stage run of one stratum.
type StageRequest struct {
	Context *Context
	Polygon types.PolygonView
	State   *state.State
	Stratum types.Stratum
	Model   types.GrowthModel
	Mode    types.ProcessingMode
	// YearsToGrow is set for Forward and Back only.
	YearsToGrow int
}

// Folder returns the stratum's execution folder.
func (r StageRequest) Folder() (string, error) {
	return r.State.StratumFolder(r.Stratum)
}

// ModelRunner executes the growth-model stages. The returned error is
// reserved for environment and I/O failures; a stage that ran and failed
// reports it through the Outcome.
type ModelRunner interface {
	RunInitial(ctx context.Context, req StageRequest) (outcome.Outcome, error)
	RunAdjust(ctx context.Context, req StageRequest) (outcome.Outcome, error)
	RunForward(ctx context.Context, req StageRequest) (outcome.Outcome, error)
	RunBack(ctx context.Context, req StageRequest) (outcome.Outcome, error)
	GenerateYieldTables(ctx context.Context, pc *Context, polygon types.PolygonView, st *state.State) error
}
