package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Polygon construction errors.
var (
	ErrDuplicateStratum   = errors.New("more than one layer for stratum")
	ErrReferenceYear      = errors.New("reference year must be positive")
	ErrUnprojectableLayer = errors.New("layer stratum cannot be projected")
)

// PolygonView is the read/query contract the projection engine consumes.
// Disabling strata and adding messages are the only mutations it allows.
type PolygonView interface {
	ID() string
	Descriptor() Descriptor
	ReferenceYear() int
	MeasurementYear() int
	InventoryStandard() InventoryStandard
	IsNonProductive() bool
	SkipProjection() bool

	// LayerFor returns the layer assigned to s, if any.
	LayerFor(s Stratum) (*Layer, bool)
	// AgeAtYear returns the total age of the layer for s at a calendar year.
	AgeAtYear(s Stratum, year int) (float64, bool)
	// LeadingSpecies returns the species with the largest share of s.
	LeadingSpecies(s Stratum) (Species, bool)

	DisableStratum(s Stratum)
	IsStratumAllowed(s Stratum) bool

	AddMessage(m Message)
	Messages() []Message
}

// Descriptor identifies a polygon in engine input files and reports.
type Descriptor struct {
	FeatureID     int64  `json:"feature_id" yaml:"feature_id"`
	MapSheet      string `json:"map_sheet" yaml:"map_sheet"`
	PolygonNumber int64  `json:"polygon_number" yaml:"polygon_number"`
	District      string `json:"district" yaml:"district"`
}

// Species is one species component of a layer. TotalAge is measured at the
// polygon's reference year.
type Species struct {
	Code                string  `json:"code" yaml:"code"`
	Percent             float64 `json:"percent" yaml:"percent"`
	TotalAge            float64 `json:"total_age" yaml:"total_age"`
	Height              float64 `json:"height" yaml:"height"`
	SiteIndex           float64 `json:"site_index" yaml:"site_index"`
	YearsToBreastHeight float64 `json:"years_to_breast_height" yaml:"years_to_breast_height"`
}

// Layer is the stand data for one stratum.
type Layer struct {
	ID              string    `json:"id" yaml:"id"`
	Stratum         Stratum   `json:"stratum" yaml:"stratum"`
	BasalArea       float64   `json:"basal_area" yaml:"basal_area"`
	TreesPerHectare float64   `json:"trees_per_hectare" yaml:"trees_per_hectare"`
	CrownClosure    float64   `json:"crown_closure" yaml:"crown_closure"`
	AgeAtDeath      *float64  `json:"age_at_death,omitempty" yaml:"age_at_death,omitempty"`
	Species         []Species `json:"species" yaml:"species"`
}

// LeadingSpecies returns the species with the highest percentage. Ties go to
// the species listed first; species with no share are ignored.
func (l *Layer) LeadingSpecies() (Species, bool) {
	var (
		lead  Species
		found bool
	)
	for _, sp := range l.Species {
		if sp.Percent <= 0 {
			continue
		}
		if !found || sp.Percent > lead.Percent {
			lead = sp
			found = true
		}
	}
	return lead, found
}

// PolygonRecord is the decoded form of one polygon in projection input.
type PolygonRecord struct {
	Descriptor              `yaml:",inline"`
	ReferenceYear           int               `json:"reference_year" yaml:"reference_year"`
	MeasurementYear         int               `json:"measurement_year,omitempty" yaml:"measurement_year,omitempty"`
	InventoryStandard       InventoryStandard `json:"inventory_standard" yaml:"inventory_standard"`
	NonProductiveDescriptor string            `json:"non_productive,omitempty" yaml:"non_productive,omitempty"`
	SkipProjection          bool              `json:"skip_projection,omitempty" yaml:"skip_projection,omitempty"`
	Layers                  []Layer           `json:"layers" yaml:"layers"`
}

// Polygon is the in-memory PolygonView built from a PolygonRecord. A Polygon
// is owned by one projection at a time and is not safe for concurrent use.
type Polygon struct {
	rec      PolygonRecord
	layers   [StrataCount]*Layer
	disabled [StrataCount]bool
	messages []Message
}

var _ PolygonView = (*Polygon)(nil)

// NewPolygon indexes the record's layers by stratum. A zero measurement year
// defaults to the reference year.
func NewPolygon(rec PolygonRecord) (*Polygon, error) {
	if rec.ReferenceYear <= 0 {
		return nil, fmt.Errorf("polygon %s: %w", rec.Descriptor.id(), ErrReferenceYear)
	}
	if rec.MeasurementYear == 0 {
		rec.MeasurementYear = rec.ReferenceYear
	}
	p := &Polygon{rec: rec}
	for i := range p.rec.Layers {
		l := &p.rec.Layers[i]
		if !l.Stratum.IsProjectable() {
			return nil, fmt.Errorf("polygon %s layer %q: %w: %s", p.ID(), l.ID, ErrUnprojectableLayer, l.Stratum)
		}
		if p.layers[l.Stratum] != nil {
			return nil, fmt.Errorf("polygon %s: %w %s", p.ID(), ErrDuplicateStratum, l.Stratum)
		}
		p.layers[l.Stratum] = l
	}
	return p, nil
}

func (d Descriptor) id() string {
	if d.FeatureID > 0 {
		return strconv.FormatInt(d.FeatureID, 10)
	}
	sheet := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '_'
		}
		return r
	}, strings.TrimSpace(d.MapSheet))
	return sheet + "-" + strconv.FormatInt(d.PolygonNumber, 10)
}

// ID returns a filesystem-safe identifier for the polygon.
func (p *Polygon) ID() string { return p.rec.Descriptor.id() }

func (p *Polygon) String() string {
	return fmt.Sprintf("%s %d (%d)", p.rec.MapSheet, p.rec.PolygonNumber, p.rec.FeatureID)
}

func (p *Polygon) Descriptor() Descriptor               { return p.rec.Descriptor }
func (p *Polygon) ReferenceYear() int                   { return p.rec.ReferenceYear }
func (p *Polygon) MeasurementYear() int                 { return p.rec.MeasurementYear }
func (p *Polygon) InventoryStandard() InventoryStandard { return p.rec.InventoryStandard }
func (p *Polygon) IsNonProductive() bool                { return p.rec.NonProductiveDescriptor != "" }
func (p *Polygon) SkipProjection() bool                 { return p.rec.SkipProjection }
func (p *Polygon) Messages() []Message                  { return append([]Message(nil), p.messages...) }
func (p *Polygon) AddMessage(m Message)                 { p.messages = append(p.messages, m) }
func (p *Polygon) IsStratumAllowed(s Stratum) bool      { return p.valid(s) && !p.disabled[s] }
func (p *Polygon) valid(s Stratum) bool                 { return s >= 0 && int(s) < StrataCount }

func (p *Polygon) LayerFor(s Stratum) (*Layer, bool) {
	if !p.valid(s) || p.layers[s] == nil {
		return nil, false
	}
	return p.layers[s], true
}

func (p *Polygon) LeadingSpecies(s Stratum) (Species, bool) {
	l, ok := p.LayerFor(s)
	if !ok {
		return Species{}, false
	}
	return l.LeadingSpecies()
}

// AgeAtYear projects the leading species' total age from the reference year
// to year.
func (p *Polygon) AgeAtYear(s Stratum, year int) (float64, bool) {
	lead, ok := p.LeadingSpecies(s)
	if !ok {
		return 0, false
	}
	return lead.TotalAge + float64(year-p.rec.ReferenceYear), true
}

// DisableStratum stops s from being projected. Idempotent.
func (p *Polygon) DisableStratum(s Stratum) {
	if p.valid(s) {
		p.disabled[s] = true
	}
}
