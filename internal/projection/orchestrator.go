package projection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Orchestrator projects a single polygon. It runs synchronously and is used
// once.
type Orchestrator struct {
	pc      *Context
	runner  ModelRunner
	polygon types.PolygonView
	st      *state.State
	log     *zap.Logger
}

// NewOrchestrator binds a polygon and its fresh state to a request.
func NewOrchestrator(pc *Context, runner ModelRunner, polygon types.PolygonView, st *state.State) *Orchestrator {
	return &Orchestrator{
		pc:      pc,
		runner:  runner,
		polygon: polygon,
		st:      st,
		log:     pc.Logger.Named("orchestrator").With(zap.String("polygon", polygon.ID())),
	}
}

// Project runs the six phases in order. Stratum-scoped failures disable the
// stratum and are recorded as polygon messages; the returned error is always
// a *types.ProjectionError of kind Validation or InternalExecution.
func (o *Orchestrator) Project(ctx context.Context) error {
	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"build execution structure", o.buildExecutionStructure},
		{"initial processing", o.performInitialProcessing},
		{"age window", o.determineAgeWindow},
		{"adjust", o.performAdjust},
		{"forward and back", o.performProjection},
		{"yield tables", o.generateYieldTables},
	}
	for _, phase := range phases {
		o.log.Debug("phase", zap.String("name", phase.name))
		if err := phase.run(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) id() string { return o.polygon.ID() }

func (o *Orchestrator) internal(format string, args ...any) *types.ProjectionError {
	return types.NewInternalExecutionError(o.id(), fmt.Errorf(format, args...))
}

// Phase 1.
func (o *Orchestrator) buildExecutionStructure(context.Context) error {
	folder := filepath.Join(o.pc.Root, o.id())
	if err := os.Mkdir(folder, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return o.internal("execution folder %s already exists", folder)
		}
		return o.internal("create execution folder: %w", err)
	}
	if err := o.st.SetExecutionFolder(folder); err != nil {
		return o.internal("%w", err)
	}
	for _, s := range types.ProjectedStrata {
		if _, ok := o.polygon.LayerFor(s); !ok {
			continue
		}
		dir, err := o.st.StratumFolder(s)
		if err != nil {
			return o.internal("%w", err)
		}
		if err := os.Mkdir(dir, 0o755); err != nil {
			return o.internal("create %s folder: %w", s, err)
		}
	}
	return nil
}

// Phase 6.
func (o *Orchestrator) generateYieldTables(ctx context.Context) error {
	if err := o.runner.GenerateYieldTables(ctx, o.pc, o.polygon, o.st); err != nil {
		var pe *types.ProjectionError
		if errors.As(err, &pe) {
			return pe
		}
		return o.internal("generate yield tables: %w", err)
	}
	return nil
}

// request builds the StageRequest for s under its effective model.
func (o *Orchestrator) request(s types.Stratum) (StageRequest, error) {
	m, err := o.st.Model(s)
	if err != nil {
		return StageRequest{}, o.internal("%w", err)
	}
	return StageRequest{
		Context: o.pc,
		Polygon: o.polygon,
		State:   o.st,
		Stratum: s,
		Model:   m.Model,
		Mode:    m.Mode,
	}, nil
}

type stageFunc func(context.Context, StageRequest) (outcome.Outcome, error)

// run executes one stage and records its outcome under the request's model.
func (o *Orchestrator) run(ctx context.Context, stage types.Stage, fn stageFunc, req StageRequest) (outcome.Outcome, error) {
	log := o.log.With(zap.Stringer("stratum", req.Stratum), zap.Stringer("stage", stage), zap.Stringer("model", req.Model))
	log.Debug("running stage", zap.Int("years_to_grow", req.YearsToGrow))
	if stage.IsProjection() {
		o.pc.Metrics.ObserveYearsToGrow(stage.String(), req.YearsToGrow)
	}
	res, err := fn(ctx, req)
	if err != nil {
		return outcome.Outcome{}, o.internal("%s %s stage of %s: %w", req.Model, stage, req.Stratum, err)
	}
	if err := o.st.RecordStageResult(stage, req.Stratum, req.Model, res); err != nil {
		return outcome.Outcome{}, o.internal("%w", err)
	}
	o.pc.Metrics.ObserveStage(stage.String(), req.Model.String(), res.Kind.String())
	log.Debug("stage finished", zap.Stringer("outcome", res))
	return res, nil
}

// reject disables s and records err against the polygon.
func (o *Orchestrator) reject(s types.Stratum, kind types.MessageKind, err *types.ProjectionError) {
	o.polygon.DisableStratum(s)
	sev := types.SeverityWarning
	if err.Kind == types.KindStageExecution {
		sev = types.SeverityError
	}
	o.polygon.AddMessage(types.Message{Severity: sev, Kind: kind, Stratum: s, Text: err.Error()})
	o.log.Warn("stratum disabled", zap.Stringer("stratum", s), zap.Error(err))
}

// handleStratumError disables s for a stratum-scoped error and passes every
// other error through.
func (o *Orchestrator) handleStratumError(s types.Stratum, err error) error {
	var pe *types.ProjectionError
	if !errors.As(err, &pe) || !pe.StratumScoped() {
		return err
	}
	kind := types.MsgStratumNotProjected
	if pe.Kind == types.KindStageExecution {
		kind = types.MsgStageFailed
	}
	o.reject(s, kind, pe)
	return nil
}

func (o *Orchestrator) stageFailure(s types.Stratum, stage types.Stage, res outcome.Outcome) *types.ProjectionError {
	return types.NewStageExecutionError(o.id(), s, stage, res.Code, fmt.Errorf("%s", res))
}
