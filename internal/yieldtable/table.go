// Package yieldtable turns a completed projection state into yield-table
// rows and hands them to a Sink.
package yieldtable

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Kind distinguishes per-stratum tables from the polygon summary.
type Kind string

// Table kinds.
const (
	KindStratum Kind = "stratum"
	KindPolygon Kind = "polygon"
)

// Phase names the part of the projection a row falls in.
type Phase string

// Row phases.
const (
	PhaseBack        Phase = "back"
	PhaseMeasurement Phase = "measurement"
	PhaseForward     Phase = "forward"
)

// Row is one age/year line of a yield table.
type Row struct {
	Year  int     `json:"year"`
	Age   float64 `json:"age"`
	Phase Phase   `json:"phase"`
}

// Table is the yield table of one stratum, or the polygon summary.
type Table struct {
	PolygonID string               `json:"polygon_id"`
	Kind      Kind                 `json:"kind"`
	Stratum   types.Stratum        `json:"stratum"`
	Model     types.GrowthModel    `json:"model"`
	Mode      types.ProcessingMode `json:"mode"`
	Rows      []Row                `json:"rows"`
}

// Sink receives generated tables. Implementations must be safe for
// concurrent use when polygons are projected in parallel.
type Sink interface {
	WriteTable(ctx context.Context, t Table) error
}

// Collector is an in-memory Sink.
type Collector struct {
	mu     sync.Mutex
	tables []Table
}

// WriteTable implements Sink.
func (c *Collector) WriteTable(_ context.Context, t Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = append(c.tables, t)
	return nil
}

// Tables returns the collected tables in arrival order.
func (c *Collector) Tables() []Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Table(nil), c.tables...)
}

// Discard is a Sink that drops every table.
var Discard Sink = discard{}

type discard struct{}

func (discard) WriteTable(context.Context, Table) error { return nil }
