package projection

import (
	"context"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/standproj/internal/agewindow"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// primaryAgeAt returns the primary stratum's age at year, or nil.
func (o *Orchestrator) primaryAgeAt(year *int) *float64 {
	if year == nil {
		return nil
	}
	age, ok := o.polygon.AgeAtYear(types.StratumPrimary, *year)
	if !ok {
		return nil
	}
	return &age
}

// Phase 3.
func (o *Orchestrator) determineAgeWindow(context.Context) error {
	params := o.pc.Params
	b := agewindow.Bounds{
		Start: agewindow.CombineBound(params.AgeStart, o.primaryAgeAt(params.YearStart)),
		End:   agewindow.CombineBound(params.AgeEnd, o.primaryAgeAt(params.YearEnd)),
	}

	if params.Has(types.OptionForceReferenceYear) {
		my := o.polygon.MeasurementYear()
		if age := o.primaryAgeAt(&my); age != nil {
			b.Include(float64(agewindow.JavaRound(*age)))
		}
	}
	if params.Has(types.OptionForceCurrentYear) {
		year := o.pc.CurrentYear()
		if age := o.primaryAgeAt(&year); age != nil {
			b.Include(*age)
		}
	}
	if age := o.primaryAgeAt(params.ForceYear); age != nil {
		b.Include(*age)
	}

	w, ok := b.Window()
	if !ok {
		return types.NewValidationError(o.id(), "cannot determine the projection age window")
	}
	if err := o.st.SetAgeWindow(w); err != nil {
		return o.internal("%w", err)
	}
	o.log.Debug("age window", zap.Stringer("window", w))
	return nil
}

// Phase 5.
func (o *Orchestrator) performProjection(ctx context.Context) error {
	w, err := o.st.AgeWindow()
	if err != nil {
		return o.internal("%w", err)
	}
	for _, s := range types.ProjectedStrata {
		layer, ok := o.polygon.LayerFor(s)
		if !ok {
			continue
		}
		if !o.polygon.IsStratumAllowed(s) {
			o.log.Debug("stratum not projected", zap.Stringer("stratum", s))
			continue
		}
		if err := o.projectStratum(ctx, s, layer, w); err != nil {
			if err := o.handleStratumError(s, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// stratumWindow derives the window of s from the polygon window. PRIMARY is
// unshifted; DEAD collapses to its age at death; the others shift by their
// age offset from PRIMARY at the reference year.
func (o *Orchestrator) stratumWindow(s types.Stratum, layer *types.Layer, w agewindow.Window) (agewindow.Window, error) {
	ref := o.polygon.ReferenceYear()
	switch s {
	case types.StratumPrimary:
		return w, nil
	case types.StratumDead:
		if layer.AgeAtDeath != nil {
			return agewindow.Single(*layer.AgeAtDeath), nil
		}
		age, ok := o.polygon.AgeAtYear(s, ref)
		if !ok {
			return agewindow.Window{}, types.NewPolygonInputError(o.id(), s, "no age at death and no age at reference year %d", ref)
		}
		return agewindow.Single(age), nil
	default:
		primaryAge, ok := o.polygon.AgeAtYear(types.StratumPrimary, ref)
		if !ok {
			return agewindow.Window{}, types.NewPolygonInputError(o.id(), s, "%s age at reference year %d is unknown", types.StratumPrimary, ref)
		}
		age, ok := o.polygon.AgeAtYear(s, ref)
		if !ok {
			return agewindow.Window{}, types.NewPolygonInputError(o.id(), s, "age at reference year %d is unknown", ref)
		}
		return w.Shift(age - primaryAge), nil
	}
}

func (o *Orchestrator) projectStratum(ctx context.Context, s types.Stratum, layer *types.Layer, w agewindow.Window) error {
	sw, err := o.stratumWindow(s, layer, w)
	if err != nil {
		return err
	}
	if err := o.st.UpdateAgeWindow(s, sw); err != nil {
		return o.internal("%w", err)
	}

	my := o.polygon.MeasurementYear()
	standAge, ok := o.polygon.AgeAtYear(s, my)
	if !ok {
		return types.NewPolygonInputError(o.id(), s, "stand age at measurement year %d is unknown", my)
	}
	startYear := agewindow.AdjustMeasurementYear(my, sw.Start, standAge)
	endYear := agewindow.AdjustMeasurementYear(my, sw.End, standAge)
	forward := agewindow.ClampYearsToGrow(endYear - my)
	back := agewindow.ClampYearsToGrow(my - startYear)

	details := state.ProjectionDetails{ProjectionStartYear: my - back, FirstRequestedYear: startYear}
	if err := o.st.RecordProjectionDetails(s, details); err != nil {
		return o.internal("%w", err)
	}

	req, err := o.request(s)
	if err != nil {
		return err
	}
	log := o.log.With(zap.Stringer("stratum", s), zap.Stringer("window", sw))

	switch {
	case !o.pc.Params.Has(types.OptionForwardGrowEnabled):
		log.Debug("forward growth disabled")
	case forward == 0:
		log.Debug("no forward years to grow")
	default:
		req.YearsToGrow = forward
		res, err := o.run(ctx, types.StageForward, o.runner.RunForward, req)
		if err != nil {
			return err
		}
		if !res.Success() {
			return o.stageFailure(s, types.StageForward, res)
		}
	}

	switch {
	case !o.pc.Params.Has(types.OptionBackGrowEnabled):
		log.Debug("back growth disabled")
	case req.Model == types.ModelVRI && req.Mode == types.ModeVRIYoung:
		log.Debug("back growth not run in VRI young-stand mode")
	case back == 0:
		log.Debug("no back years to grow")
	default:
		req.YearsToGrow = back
		res, err := o.run(ctx, types.StageBack, o.runner.RunBack, req)
		if err != nil {
			return err
		}
		if !res.Success() {
			return o.stageFailure(s, types.StageBack, res)
		}
	}
	return nil
}
