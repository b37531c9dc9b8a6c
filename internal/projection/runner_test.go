package projection_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/standproj/internal/blob"
	"github.com/mesh-intelligence/standproj/internal/engine"
	"github.com/mesh-intelligence/standproj/internal/metrics"
	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/internal/projection"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

type recordedPolygon struct {
	projectionID string
	polygonID    string
	results      int
	messages     int
}

type fakeLedger struct {
	mu       sync.Mutex
	begun    []string
	polygons []recordedPolygon
	failOn   string
}

func (l *fakeLedger) BeginProjection(_ context.Context, id string, _ types.Parameters) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.begun = append(l.begun, id)
	return nil
}

func (l *fakeLedger) RecordPolygon(_ context.Context, projectionID string, p types.PolygonView, results []state.StageResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.ID() == l.failOn {
		return errors.New("database is locked")
	}
	l.polygons = append(l.polygons, recordedPolygon{projectionID, p.ID(), len(results), len(p.Messages())})
	return nil
}

func views(ps ...*types.Polygon) []types.PolygonView {
	out := make([]types.PolygonView, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

func TestRunnerDuplicatePolygonIDs(t *testing.T) {
	pc, _ := newContext(t, forwardOnly(100, 150))
	polygons := views(
		newPolygon(t, fipRecord(42, layer(types.StratumPrimary, 100))),
		newPolygon(t, fipRecord(42, layer(types.StratumPrimary, 120))),
	)

	sum, err := projection.NewRunner(pc, engine.NewStub(), 1).Run(t.Context(), polygons)
	require.NoError(t, err)

	require.Len(t, sum.Reports, 2)
	assert.Equal(t, projection.ResultProjected, sum.Reports[0].Result)
	assert.NoError(t, sum.Reports[0].Err)
	assert.Equal(t, projection.ResultFailed, sum.Reports[1].Result)
	assert.ErrorIs(t, sum.Reports[1].Err, types.ErrInternalExecution)
	assert.Empty(t, sum.Reports[1].Results)
	assert.Equal(t, 1, sum.Failed)
}

func TestRunnerMixedBatch(t *testing.T) {
	ledger := &fakeLedger{}
	rec := metrics.NewRecorder()
	pc, sink := newContext(t, forwardOnly(100, 150), projection.WithLedger(ledger), projection.WithMetrics(rec))

	skipped := fipRecord(2, layer(types.StratumPrimary, 100))
	skipped.SkipProjection = true
	polygons := views(
		newPolygon(t, fipRecord(1, layer(types.StratumPrimary, 100))),
		newPolygon(t, skipped),
		newPolygon(t, fipRecord(3, layer(types.StratumVeteran, 100))),
	)

	sum, err := projection.NewRunner(pc, engine.NewStub(), 2).Run(t.Context(), polygons)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 3, sum.Seen())
	assert.Equal(t, "2 polygons processed + 1 skipped = 3 seen", sum.String())

	require.Len(t, sum.Reports, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{sum.Reports[0].PolygonID, sum.Reports[1].PolygonID, sum.Reports[2].PolygonID})
	assert.Equal(t, projection.ResultProjected, sum.Reports[0].Result)
	assert.Equal(t, projection.ResultSkipped, sum.Reports[1].Result)
	assert.Equal(t, projection.ResultFailed, sum.Reports[2].Result)
	assert.ErrorIs(t, sum.Reports[2].Err, types.ErrValidation)
	assert.NoError(t, sum.Reports[0].Err)

	progress := pc.Progress.Messages()
	assert.Contains(t, progress, "polygon 1: projection complete")
	assert.Contains(t, progress, "polygon 2: projection skipped")
	assert.Contains(t, progress, "polygon 3: projection failed")
	assert.Equal(t, sum.String(), progress[len(progress)-1])
	require.Len(t, pc.Errors.Messages(), 1)
	assert.Contains(t, pc.Errors.Messages()[0], "polygon 3")

	assert.Equal(t, []string{pc.ID}, ledger.begun)
	assert.Len(t, ledger.polygons, 3)
	assert.Len(t, sink.Tables(), 1)

	count, err := testutil.GatherAndCount(rec.Registry(), "standproj_polygons_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per result")
}

func TestRunnerParallel(t *testing.T) {
	pc, sink := newContext(t, forwardOnly(100, 150))
	stub := engine.NewStub()
	var ps []*types.Polygon
	for i := range 24 {
		ps = append(ps, newPolygon(t, fipRecord(int64(100+i), layer(types.StratumPrimary, 100), layer(types.StratumVeteran, 140))))
	}

	sum, err := projection.NewRunner(pc, stub, 4).Run(t.Context(), views(ps...))
	require.NoError(t, err)
	assert.Equal(t, 24, sum.Processed)
	assert.Zero(t, sum.Failed)
	assert.Len(t, sink.Tables(), 48)
	assert.Len(t, stub.Handoffs(), 24)
	for i, rep := range sum.Reports {
		assert.Equal(t, fmt.Sprint(100+i), rep.PolygonID)
	}
}

func TestRunnerCancelled(t *testing.T) {
	pc, _ := newContext(t, forwardOnly(100, 150))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	sum, err := projection.NewRunner(pc, engine.NewStub(), 1).Run(ctx, views(newPolygon(t, fipRecord(1, layer(types.StratumPrimary, 100)))))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Seen())
}

func TestRunnerLedgerFailure(t *testing.T) {
	ledger := &fakeLedger{failOn: "1"}
	pc, _ := newContext(t, forwardOnly(100, 150), projection.WithLedger(ledger))

	sum, err := projection.NewRunner(pc, engine.NewStub(), 1).Run(t.Context(), views(newPolygon(t, fipRecord(1, layer(types.StratumPrimary, 100)))))
	require.NoError(t, err)
	require.Len(t, sum.Reports, 1)
	assert.ErrorIs(t, sum.Reports[0].Err, types.ErrInternalExecution)
	assert.ErrorContains(t, sum.Reports[0].Err, "database is locked")
}

// fileWritingRunner writes the forward output files the real engines
// produce.
type fileWritingRunner struct {
	*engine.Stub
}

func (r fileWritingRunner) RunForward(ctx context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	dir, err := req.Folder()
	if err != nil {
		return outcome.Outcome{}, err
	}
	for _, name := range []string{"vp_grow.dat", "vs_grow.dat"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			return outcome.Outcome{}, err
		}
	}
	return r.Stub.RunForward(ctx, req)
}

func TestRunnerArchivesProjectionFiles(t *testing.T) {
	store := blob.NewMemory()
	params := forwardOnly(100, 150)
	params.Options = append(params.Options, types.OptionIncludeProjectionFiles)
	pc, _ := newContext(t, params, projection.WithArchive(store), projection.WithID("req-1"))

	sum, err := projection.NewRunner(pc, fileWritingRunner{engine.NewStub()}, 1).Run(t.Context(),
		views(newPolygon(t, fipRecord(1, layer(types.StratumPrimary, 100), layer(types.StratumVeteran, 120)))))
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Archived)

	infos, err := store.List(t.Context(), "req-1/1/PRIMARY/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "req-1/1/PRIMARY/vp_grow.dat", infos[0].Key)
}

func TestRunnerSkipsArchiveWithoutOption(t *testing.T) {
	store := blob.NewMemory()
	pc, _ := newContext(t, forwardOnly(100, 150), projection.WithArchive(store))

	_, err := projection.NewRunner(pc, fileWritingRunner{engine.NewStub()}, 1).Run(t.Context(),
		views(newPolygon(t, fipRecord(1, layer(types.StratumPrimary, 100)))))
	require.NoError(t, err)

	infos, err := store.List(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, infos)
}
