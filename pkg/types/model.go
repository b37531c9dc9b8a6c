package types

import "fmt"

// GrowthModel selects the initial-condition estimation model for a stratum.
type GrowthModel int

// Growth models. ModelUnknown is the zero value of an unassigned stratum.
const (
	ModelUnknown GrowthModel = iota
	ModelFIP
	ModelVRI
)

// ModelCount is the number of GrowthModel values.
const ModelCount = int(ModelVRI) + 1

func (m GrowthModel) String() string {
	switch m {
	case ModelUnknown:
		return "UNKNOWN"
	case ModelFIP:
		return "FIP"
	case ModelVRI:
		return "VRI"
	default:
		return fmt.Sprintf("GrowthModel(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m GrowthModel) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ProcessingMode is the model-specific sub-mode a stratum runs under.
type ProcessingMode int

// Processing modes.
const (
	ModeUnknown ProcessingMode = iota
	ModeFIPDefault
	ModeVRIDefault
	// ModeVRIYoung is the VRI young-stand mode entered on FIP fallback.
	// Back growth never runs in this mode.
	ModeVRIYoung
)

func (m ProcessingMode) String() string {
	switch m {
	case ModeUnknown:
		return "UNKNOWN"
	case ModeFIPDefault:
		return "FIP_Default"
	case ModeVRIDefault:
		return "VRI_Default"
	case ModeVRIYoung:
		return "VRI_VriYoung"
	default:
		return fmt.Sprintf("ProcessingMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ProcessingMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Stage is one step of the per-stratum projection pipeline.
type Stage int

// Processing stages, in pipeline order.
const (
	StageInitial Stage = iota
	StageAdjust
	StageForward
	StageBack
)

// StageCount is the number of Stage values.
const StageCount = int(StageBack) + 1

func (s Stage) String() string {
	switch s {
	case StageInitial:
		return "Initial"
	case StageAdjust:
		return "Adjust"
	case StageForward:
		return "Forward"
	case StageBack:
		return "Back"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// IsProjection reports whether s grows the stand through time.
func (s Stage) IsProjection() bool {
	return s == StageForward || s == StageBack
}

// InventoryStandard names the inventory the polygon data was collected under.
type InventoryStandard string

// Inventory standards recognized by initial model selection.
const (
	InventoryVRI          InventoryStandard = "VRI"
	InventoryFIP          InventoryStandard = "FIP"
	InventorySilviculture InventoryStandard = "Silviculture"
)
