// Package projection orchestrates the growth-model stages of each polygon in
// a projection request.
//
// A request is described by a Context. For each polygon an Orchestrator
// drives the strata through Initial, Adjust, Forward and Back via a
// ModelRunner, recording every outcome in a state.State, and finally hands
// the state to the runner for yield-table generation. Runner projects many
// polygons in parallel.
package projection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/standproj/internal/blob"
	"github.com/mesh-intelligence/standproj/internal/logging"
	"github.com/mesh-intelligence/standproj/internal/metrics"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/internal/yieldtable"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Ledger records the outcome of each projected polygon.
type Ledger interface {
	BeginProjection(ctx context.Context, projectionID string, params types.Parameters) error
	RecordPolygon(ctx context.Context, projectionID string, polygon types.PolygonView, results []state.StageResult) error
}

// Context is the per-request environment shared by every polygon. It is
// read-only once built, apart from the message logs.
type Context struct {
	ID     string
	Params types.Parameters
	// Root is the request's execution folder; each polygon gets a
	// subfolder named by its ID.
	Root string

	Progress *logging.MessageLog
	Errors   *logging.MessageLog
	Yield    yieldtable.Sink
	Ledger   Ledger
	Archive  blob.Store
	Metrics  *metrics.Recorder
	Logger   *zap.Logger

	now func() time.Time
}

// Option configures a Context.
type Option func(*Context)

// WithID overrides the generated request ID.
func WithID(id string) Option { return func(c *Context) { c.ID = id } }

// WithLogger sets the logger; progress and error logs mirror to it.
func WithLogger(l *zap.Logger) Option { return func(c *Context) { c.Logger = l } }

// WithYieldSink sets where yield tables are written.
func WithYieldSink(s yieldtable.Sink) Option { return func(c *Context) { c.Yield = s } }

// WithLedger sets the results ledger.
func WithLedger(l Ledger) Option { return func(c *Context) { c.Ledger = l } }

// WithArchive sets the store that receives projection files.
func WithArchive(s blob.Store) Option { return func(c *Context) { c.Archive = s } }

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option { return func(c *Context) { c.Metrics = r } }

// WithClock replaces time.Now, which decides the current year.
func WithClock(now func() time.Time) Option { return func(c *Context) { c.now = now } }

// NewContext validates params and creates the request's execution folder
// under workDir.
func NewContext(params types.Parameters, workDir string, opts ...Option) (*Context, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("projection parameters: %w", err)
	}
	c := &Context{Params: params, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate projection id: %w", err)
		}
		c.ID = id.String()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	c.Logger = c.Logger.With(zap.String("projection", c.ID))
	if c.Yield == nil {
		c.Yield = yieldtable.Discard
	}
	c.Progress = logging.NewMessageLog("progress", zapcore.InfoLevel, c.Logger)
	c.Errors = logging.NewMessageLog("errors", zapcore.WarnLevel, c.Logger)

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	c.Root = filepath.Join(workDir, c.ID)
	if err := os.Mkdir(c.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create execution folder: %w", err)
	}
	return c, nil
}

// CurrentYear returns the calendar year of the request clock.
func (c *Context) CurrentYear() int {
	return c.now().Year()
}

// Close removes the execution folder unless the request asked to retain it.
func (c *Context) Close() error {
	if c.Params.Has(types.OptionRetainExecutionFolder) {
		c.Logger.Info("execution folder retained", zap.String("root", c.Root))
		return nil
	}
	if err := os.RemoveAll(c.Root); err != nil {
		return fmt.Errorf("remove execution folder: %w", err)
	}
	return nil
}
