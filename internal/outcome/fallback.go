package outcome

import "github.com/mesh-intelligence/standproj/pkg/types"

// Action is the step that follows an Initial-stage run.
type Action struct {
	Retry bool
	Model types.GrowthModel
	Mode  types.ProcessingMode
}

// Done ends initial processing for the stratum.
var Done = Action{}

// NextInitialAction decides whether an Initial-stage outcome under model is
// retried. The only retry is FIP to VRI in young-stand mode; a VRI outcome
// is always final.
func NextInitialAction(model types.GrowthModel, o Outcome) Action {
	if model == types.ModelFIP && o.Kind == KindRetryWithAlternateModel {
		return Action{Retry: true, Model: types.ModelVRI, Mode: types.ModeVRIYoung}
	}
	return Done
}
