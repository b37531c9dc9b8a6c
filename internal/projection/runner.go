package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Polygon results reported to metrics and the ledger.
const (
	ResultProjected = "projected"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// Report is the outcome of one polygon in a request.
type Report struct {
	PolygonID string
	Result    string
	Err       error
	Messages  []types.Message
	Results   []state.StageResult
	Duration  time.Duration
}

// Summary totals a request.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Archived  int
	Reports   []Report
}

// Seen is the number of polygons the request looked at.
func (s Summary) Seen() int { return s.Processed + s.Skipped }

func (s Summary) String() string {
	return fmt.Sprintf("%d polygons processed + %d skipped = %d seen", s.Processed, s.Skipped, s.Seen())
}

// Runner projects the polygons of one request with a bounded number of
// concurrent orchestrators. Polygon failures never stop the request.
type Runner struct {
	pc      *Context
	models  ModelRunner
	workers int
}

// NewRunner returns a Runner that projects up to workers polygons at once.
func NewRunner(pc *Context, models ModelRunner, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{pc: pc, models: models, workers: workers}
}

// Run projects polygons and returns one report per polygon in input order.
// The error is non-nil only when ctx is cancelled or the ledger cannot open
// the request; cancellation takes effect between polygons.
func (r *Runner) Run(ctx context.Context, polygons []types.PolygonView) (Summary, error) {
	if r.pc.Ledger != nil {
		if err := r.pc.Ledger.BeginProjection(ctx, r.pc.ID, r.pc.Params); err != nil {
			return Summary{}, fmt.Errorf("begin projection: %w", err)
		}
	}

	reports := make([]Report, len(polygons))
	done := make([]bool, len(polygons))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, p := range polygons {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = r.projectOne(gctx, p)
			done[i] = true
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	var sum Summary
	for i, rep := range reports {
		if !done[i] {
			continue
		}
		switch rep.Result {
		case ResultSkipped:
			sum.Skipped++
		case ResultFailed:
			sum.Processed++
			sum.Failed++
		default:
			sum.Processed++
		}
		sum.Reports = append(sum.Reports, rep)
	}

	if err == nil && r.pc.Archive != nil && r.pc.Params.Has(types.OptionIncludeProjectionFiles) {
		n, aerr := CollectProjectionFiles(ctx, r.pc.Archive, r.pc.ID, r.pc.Root)
		sum.Archived = n
		if aerr != nil {
			r.pc.Errors.Addf("archive projection files: %v", aerr)
		}
	}
	r.pc.Progress.Add(sum.String())
	return sum, err
}

func (r *Runner) projectOne(ctx context.Context, p types.PolygonView) Report {
	start := time.Now()
	id := p.ID()
	rep := Report{PolygonID: id}

	if p.SkipProjection() {
		p.AddMessage(types.Message{Severity: types.SeverityInfo, Kind: types.MsgProjectionSkipped, Text: "projection not requested"})
		rep.Result = ResultSkipped
		r.pc.Progress.Addf("polygon %s: projection skipped", id)
	} else {
		st := state.New(id)
		rep.Err = NewOrchestrator(r.pc, r.models, p, st).Project(ctx)
		rep.Results = st.Results()
		if rep.Err != nil {
			rep.Result = ResultFailed
			p.AddMessage(types.Message{Severity: types.SeverityError, Kind: types.MsgPolygonFailed, Text: rep.Err.Error()})
			r.pc.Errors.Addf("polygon %s: %v", id, rep.Err)
			r.pc.Progress.Addf("polygon %s: projection failed", id)
		} else {
			rep.Result = ResultProjected
			r.pc.Progress.Addf("polygon %s: projection complete", id)
		}
	}

	if r.pc.Ledger != nil {
		if err := r.pc.Ledger.RecordPolygon(ctx, r.pc.ID, p, rep.Results); err != nil {
			lerr := types.NewInternalExecutionError(id, fmt.Errorf("record results: %w", err))
			r.pc.Errors.Addf("polygon %s: %v", id, lerr)
			rep.Err = errors.Join(rep.Err, lerr)
		}
	}

	rep.Messages = p.Messages()
	rep.Duration = time.Since(start)
	r.pc.Metrics.ObservePolygon(rep.Result, rep.Duration)
	r.pc.Logger.Debug("polygon finished",
		zap.String("polygon", id),
		zap.String("result", rep.Result),
		zap.Duration("duration", rep.Duration))
	return rep
}
