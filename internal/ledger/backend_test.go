package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/internal/yieldtable"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

func attach(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend(zaptest.NewLogger(t))
	require.NoError(t, b.Attach(t.Context(), types.LedgerConfig{Driver: types.LedgerSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { require.NoError(t, b.Detach()) })
	return b
}

func polygon(t *testing.T, featureID int64) *types.Polygon {
	t.Helper()
	p, err := types.NewPolygon(types.PolygonRecord{
		Descriptor:    types.Descriptor{FeatureID: featureID, MapSheet: "082G055", PolygonNumber: 1234, District: "DCR"},
		ReferenceYear: 2000,
		Layers: []types.Layer{{
			ID:      "1",
			Stratum: types.StratumPrimary,
			Species: []types.Species{{Code: "FD", Percent: 100, TotalAge: 80}},
		}},
	})
	require.NoError(t, err)
	return p
}

func TestRebind(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"WHERE a = ?", "WHERE a = $1"},
		{"VALUES (?, ?, ?)", "VALUES ($1, $2, $3)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rebind(tt.in))
	}
}

func TestAttachLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := types.LedgerConfig{Driver: types.LedgerSQLite, DataDir: filepath.Join(dir, "nested")}
	b := NewBackend(nil)

	require.NoError(t, b.Attach(t.Context(), cfg))
	assert.FileExists(t, filepath.Join(dir, "nested", DatabaseFile))
	assert.ErrorIs(t, b.Attach(t.Context(), cfg), ErrAlreadyAttached)

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach is idempotent")
	assert.ErrorIs(t, b.BeginProjection(t.Context(), "p", types.Parameters{}), ErrDetached)
	_, err := b.Projections(t.Context())
	assert.ErrorIs(t, err, ErrDetached)

	require.NoError(t, b.Attach(t.Context(), cfg), "reattach keeps the schema")
	require.NoError(t, b.Detach())
}

func TestAttachRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.LedgerConfig
		want error
	}{
		{name: "empty driver", cfg: types.LedgerConfig{}, want: types.ErrLedgerDriverEmpty},
		{name: "unknown driver", cfg: types.LedgerConfig{Driver: "mysql"}, want: types.ErrLedgerDriverUnknown},
		{name: "postgres without dsn", cfg: types.LedgerConfig{Driver: types.LedgerPostgres}, want: types.ErrLedgerDSNEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, NewBackend(nil).Attach(t.Context(), tt.cfg), tt.want)
		})
	}
}

func TestDataSource(t *testing.T) {
	driver, dsn, err := dataSource(types.LedgerConfig{Driver: types.LedgerPostgres, DSN: "postgres://db/standproj"})
	require.NoError(t, err)
	assert.Equal(t, "pgx", driver)
	assert.Equal(t, "postgres://db/standproj", dsn)

	driver, dsn, err = dataSource(types.LedgerConfig{Driver: types.LedgerSQLite, DSN: "file::memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", driver)
	assert.Equal(t, "file::memory:", dsn)
}

func TestRecordPolygon(t *testing.T) {
	b := attach(t)
	ctx := t.Context()
	require.NoError(t, b.BeginProjection(ctx, "req-1", types.Parameters{AgeIncrement: 5}))
	assert.Error(t, b.BeginProjection(ctx, "req-1", types.Parameters{}), "projection ids are unique")

	p := polygon(t, 42)
	p.AddMessage(types.Message{Severity: types.SeverityInfo, Kind: types.MsgModelFallback, Stratum: types.StratumPrimary, Text: "FIP to VRI"})
	results := []state.StageResult{
		{Stage: types.StageInitial, Stratum: types.StratumPrimary, Model: types.ModelFIP,
			Outcome: outcome.Interpret(types.StageInitial, types.ModelFIP, outcome.CodeFIPBasalAreaBelowMinimum)},
		{Stage: types.StageInitial, Stratum: types.StratumPrimary, Model: types.ModelVRI, Outcome: outcome.Succeeded()},
	}
	require.NoError(t, b.RecordPolygon(ctx, "req-1", p, results))
	assert.Error(t, b.RecordPolygon(ctx, "req-1", p, nil), "a polygon is recorded once per projection")

	stages, err := b.StageResults(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "42", stages[0].PolygonID)
	assert.Equal(t, "FIP", stages[0].Model)
	assert.Equal(t, outcome.CodeFIPBasalAreaBelowMinimum, stages[0].Code)
	assert.Equal(t, "VRI", stages[1].Model)
	assert.Equal(t, outcome.KindSuccess.String(), stages[1].Outcome)

	msgs, err := b.Messages(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, []MessageEntry{{
		PolygonID: "42",
		Severity:  types.SeverityInfo.String(),
		Kind:      string(types.MsgModelFallback),
		Stratum:   "PRIMARY",
		Text:      "FIP to VRI",
	}}, msgs)

	ids, err := b.Projections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1"}, ids)
}

func TestRecordPolygonRollsBack(t *testing.T) {
	b := attach(t)
	ctx := t.Context()
	require.NoError(t, b.BeginProjection(ctx, "req-1", types.Parameters{}))

	p := polygon(t, 7)
	p.AddMessage(types.Message{Kind: types.MsgLayerNotProjected, Text: "first"})
	require.NoError(t, b.RecordPolygon(ctx, "req-1", p, nil))

	ctx2, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, b.RecordPolygon(ctx2, "req-1", polygon(t, 8), nil))

	msgs, err := b.Messages(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func table(polygonID string, s types.Stratum, years ...int) yieldtable.Table {
	t := yieldtable.Table{PolygonID: polygonID, Kind: yieldtable.KindStratum, Stratum: s, Model: types.ModelVRI, Mode: types.ModeVRIDefault}
	for i, y := range years {
		t.Rows = append(t.Rows, yieldtable.Row{Year: y, Age: float64(80 + 10*i), Phase: yieldtable.PhaseForward})
	}
	return t
}

func TestSinkStoresRows(t *testing.T) {
	b := attach(t)
	ctx := t.Context()
	sink := b.Sink("req-1")

	require.NoError(t, sink.WriteTable(ctx, table("42", types.StratumPrimary, 2000, 2010, 2020)))
	require.NoError(t, sink.WriteTable(ctx, table("42", types.StratumVeteran, 2000)))
	require.NoError(t, b.Sink("req-2").WriteTable(ctx, table("42", types.StratumPrimary, 2000)))

	rows, err := b.YieldRows(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, YieldRow{PolygonID: "42", Kind: "stratum", Stratum: "PRIMARY", Model: "VRI", Mode: "VRI_Default",
		Year: 2000, Age: 80, Phase: "forward"}, rows[0])
	assert.Equal(t, 2020, rows[2].Year)
	assert.Equal(t, "VETERAN", rows[3].Stratum)
}

func TestSinkConcurrentWriters(t *testing.T) {
	b := attach(t)
	sink := b.Sink("req-1")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- sink.WriteTable(t.Context(), table(string(rune('a'+i)), types.StratumPrimary, 2000, 2010))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := b.YieldRows(t.Context(), "req-1")
	require.NoError(t, err)
	assert.Len(t, rows, 32)
}

func TestExportYieldRows(t *testing.T) {
	b := attach(t)
	ctx := t.Context()
	require.NoError(t, b.Sink("req-1").WriteTable(ctx, table("42", types.StratumPrimary, 2000, 2010)))

	path := filepath.Join(t.TempDir(), "yield.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	n, err := b.ExportYieldRows(ctx, "req-1", path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var got []YieldRow
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r YieldRow
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		got = append(got, r)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 2)
	assert.Equal(t, 2010, got[1].Year)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestExportYieldRowsMissingDir(t *testing.T) {
	b := attach(t)
	_, err := b.ExportYieldRows(t.Context(), "req-1", filepath.Join(t.TempDir(), "missing", "yield.jsonl"))
	assert.ErrorContains(t, err, "creating temp file")
}
