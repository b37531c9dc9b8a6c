package types

import (
	"fmt"
	"strings"
)

// Stratum identifies one vertical layer classification of a stand.
type Stratum int

// Stratum values. Unknown and Spanning are lookup markers and are never
// projected.
const (
	StratumUnknown Stratum = iota
	StratumPrimary
	StratumVeteran
	StratumResidual
	StratumRegeneration
	StratumDead
	StratumSpanning
)

// StrataCount is the number of Stratum values, pseudo-values included.
const StrataCount = int(StratumSpanning) + 1

// ProjectedStrata lists the projectable strata in processing order.
var ProjectedStrata = []Stratum{
	StratumPrimary,
	StratumVeteran,
	StratumResidual,
	StratumRegeneration,
	StratumDead,
}

var stratumNames = [...]string{
	StratumUnknown:      "UNKNOWN",
	StratumPrimary:      "PRIMARY",
	StratumVeteran:      "VETERAN",
	StratumResidual:     "RESIDUAL",
	StratumRegeneration: "REGENERATION",
	StratumDead:         "DEAD",
	StratumSpanning:     "SPANNING",
}

// String returns the stratum name. Stratum subfolders of an execution folder
// are named with it.
func (s Stratum) String() string {
	if s < 0 || int(s) >= len(stratumNames) {
		return fmt.Sprintf("Stratum(%d)", int(s))
	}
	return stratumNames[s]
}

// IsProjectable reports whether s is one of ProjectedStrata.
func (s Stratum) IsProjectable() bool {
	return s >= StratumPrimary && s <= StratumDead
}

// ParseStratum converts a stratum name (case-insensitive) to a Stratum.
// Returns ErrUnknownStratum for unrecognized names.
func ParseStratum(name string) (Stratum, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range stratumNames {
		if n == upper {
			return Stratum(i), nil
		}
	}
	return StratumUnknown, fmt.Errorf("%w: %q", ErrUnknownStratum, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stratum) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stratum) UnmarshalText(text []byte) error {
	v, err := ParseStratum(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
