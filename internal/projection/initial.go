package projection

import (
	"context"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// initialModel picks the starting model of every stratum from the primary
// layer.
func (o *Orchestrator) initialModel() (types.GrowthModel, types.ProcessingMode, error) {
	primary, ok := o.polygon.LayerFor(types.StratumPrimary)
	if !ok {
		return 0, 0, types.NewValidationError(o.id(), "polygon has no %s layer", types.StratumPrimary)
	}
	if _, ok := primary.LeadingSpecies(); !ok {
		if !o.polygon.IsNonProductive() || len(primary.Species) > 0 {
			return 0, 0, types.NewValidationError(o.id(), "%s layer %q has no leading species", types.StratumPrimary, primary.ID)
		}
	}

	switch {
	case o.polygon.InventoryStandard() == types.InventorySilviculture:
		return types.ModelFIP, types.ModeFIPDefault, nil
	case primary.BasalArea > 0 && primary.TreesPerHectare > 0:
		return types.ModelVRI, types.ModeVRIDefault, nil
	case o.polygon.InventoryStandard() == types.InventoryFIP:
		return types.ModelFIP, types.ModeFIPDefault, nil
	default:
		return types.ModelVRI, types.ModeVRIDefault, nil
	}
}

// Phase 2.
func (o *Orchestrator) performInitialProcessing(ctx context.Context) error {
	model, mode, err := o.initialModel()
	if err != nil {
		return err
	}
	o.log.Debug("initial model", zap.Stringer("model", model), zap.Stringer("mode", mode))

	for _, s := range types.ProjectedStrata {
		layer, ok := o.polygon.LayerFor(s)
		if !ok {
			continue
		}
		if err := o.st.AssignModel(s, model, mode); err != nil {
			return o.internal("%w", err)
		}
		if err := o.initialFor(ctx, s, layer); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) initialFor(ctx context.Context, s types.Stratum, layer *types.Layer) error {
	if o.polygon.IsNonProductive() && len(layer.Species) == 0 {
		o.reject(s, types.MsgNonProductiveNoSpecies,
			types.NewPolygonInputError(o.id(), s, "non-productive layer %q has no species", layer.ID))
		return nil
	}
	if _, ok := layer.LeadingSpecies(); !ok {
		o.reject(s, types.MsgNoLeadingSpecies,
			types.NewPolygonInputError(o.id(), s, "layer %q has no leading species", layer.ID))
		return nil
	}

	req, err := o.request(s)
	if err != nil {
		return err
	}
	res, err := o.run(ctx, types.StageInitial, o.runner.RunInitial, req)
	if err != nil {
		return err
	}

	// At most one fallback per stratum.
	if next := outcome.NextInitialAction(req.Model, res); next.Retry && !o.st.ModelModified(s) {
		if err := o.st.ModifyModel(s, next.Model, next.Mode); err != nil {
			return o.internal("%w", err)
		}
		o.polygon.AddMessage(types.Message{
			Severity: types.SeverityInfo,
			Kind:     types.MsgModelFallback,
			Stratum:  s,
			Text:     "FIP initial estimate returned " + res.String() + "; retrying with VRI young-stand mode",
		})
		o.log.Info("falling back to VRI", zap.Stringer("stratum", s), zap.Int("code", res.Code))
		if req, err = o.request(s); err != nil {
			return err
		}
		if res, err = o.run(ctx, types.StageInitial, o.runner.RunInitial, req); err != nil {
			return err
		}
	}

	if !res.Success() {
		o.reject(s, types.MsgStageFailed, o.stageFailure(s, types.StageInitial, res))
	}
	return nil
}

// Phase 4. Adjust runs for the strata whose initial estimate succeeded; a
// stratum disabled earlier gets no Adjust result.
func (o *Orchestrator) performAdjust(ctx context.Context) error {
	for _, s := range types.ProjectedStrata {
		if _, ok := o.polygon.LayerFor(s); !ok || !o.polygon.IsStratumAllowed(s) {
			continue
		}
		if !o.st.Succeeded(types.StageInitial, s) {
			continue
		}
		req, err := o.request(s)
		if err != nil {
			return err
		}
		res, err := o.run(ctx, types.StageAdjust, o.runner.RunAdjust, req)
		if err != nil {
			return err
		}
		if !res.Success() {
			o.reject(s, types.MsgStageFailed, o.stageFailure(s, types.StageAdjust, res))
		}
	}
	return nil
}
