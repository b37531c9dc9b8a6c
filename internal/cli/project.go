package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/standproj/internal/blob"
	"github.com/mesh-intelligence/standproj/internal/engine"
	"github.com/mesh-intelligence/standproj/internal/logging"
	"github.com/mesh-intelligence/standproj/internal/metrics"
	"github.com/mesh-intelligence/standproj/internal/paths"
	"github.com/mesh-intelligence/standproj/internal/projection"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

type projectFlags struct {
	input       string
	trial       bool
	out         string
	metricsFile string
	logDir      string
	parallelism int
}

func newProjectCmd(a *app) *cobra.Command {
	var f projectFlags
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project the polygons of an input file",
		Long: "Read parameters and polygons from a YAML input file, project every polygon,\n" +
			"and record stage results, messages, and yield tables in the ledger.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.project(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "projection input YAML (- for stdin)")
	cmd.Flags().BoolVar(&f.trial, "trial", false, "run against the stub engines instead of the configured executables")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write yield rows to this JSONL file")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write metrics in Prometheus textfile format")
	cmd.Flags().StringVar(&f.logDir, "log-dir", "", "write progress.log, and errors.log when errors occurred, to this directory")
	cmd.Flags().IntVarP(&f.parallelism, "parallelism", "p", 0, "polygons projected at once (default: config, then GOMAXPROCS)")
	return cmd
}

var errNoInput = errors.New("--input is required")

func (a *app) project(cmd *cobra.Command, f projectFlags) error {
	if f.input == "" {
		return userError{errNoInput}
	}
	ctx := cmd.Context()
	cfg := a.config
	if f.trial {
		cfg.TrialRun = true
	}
	if f.parallelism > 0 {
		cfg.Parallelism = f.parallelism
	}
	if err := cfg.Validate(); err != nil {
		return userError{fmt.Errorf("config: %w", err)}
	}

	params, polygons, err := readInput(f.input, cmd.InOrStdin())
	if err != nil {
		return userError{err}
	}
	workDir, err := paths.ResolveWorkDir(a.flags.workDir, cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}

	backend, err := a.attachLedger(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Detach(); err != nil {
			a.logger.Warn("detach ledger", zap.Error(err))
		}
	}()

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate projection id: %w", err)
	}
	rec := metrics.NewRecorder()
	opts := []projection.Option{
		projection.WithID(id.String()),
		projection.WithLogger(a.logger),
		projection.WithLedger(backend),
		projection.WithYieldSink(backend.Sink(id.String())),
		projection.WithMetrics(rec),
	}
	if cfg.Archive {
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		opts = append(opts, projection.WithArchive(store))
	}

	pc, err := projection.NewContext(params, workDir, opts...)
	if err != nil {
		return userError{err}
	}
	defer func() {
		if err := pc.Close(); err != nil {
			a.logger.Warn("close projection", zap.Error(err))
		}
	}()

	var models projection.ModelRunner = engine.NewReal(cfg.Engines, a.logger)
	if cfg.TrialRun {
		a.logger.Info("trial run: using stub engines")
		models = engine.NewStub()
	}

	sum, err := projection.NewRunner(pc, models, cfg.Workers()).Run(ctx, polygons)
	if err != nil {
		return err
	}

	if f.out != "" {
		n, err := backend.ExportYieldRows(ctx, pc.ID, f.out)
		if err != nil {
			return fmt.Errorf("export yield rows: %w", err)
		}
		a.logger.Info("yield rows exported", zap.String("path", f.out), zap.Int("rows", n))
	}
	if f.metricsFile != "" {
		if err := rec.WriteTextfile(f.metricsFile); err != nil {
			return err
		}
	}
	if f.logDir != "" {
		if err := writeLogs(f.logDir, pc); err != nil {
			return err
		}
	}

	if a.flags.jsonMode {
		return writeSummaryJSON(cmd.OutOrStdout(), pc.ID, sum)
	}
	writeSummaryText(cmd.OutOrStdout(), pc.ID, sum)
	return nil
}

// writeLogs writes the request's progress log and, when it has entries, its
// error log to dir.
func writeLogs(dir string, pc *projection.Context) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if err := writeLog(filepath.Join(dir, "progress.log"), pc.Progress); err != nil {
		return err
	}
	if pc.Errors.Len() == 0 {
		return nil
	}
	return writeLog(filepath.Join(dir, "errors.log"), pc.Errors)
}

func writeLog(path string, log *logging.MessageLog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := log.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func openArchive(cmd *cobra.Command) (blob.Store, error) {
	bcfg, err := blob.ConfigFromEnv()
	if err != nil {
		return nil, userError{err}
	}
	store, err := blob.Open(cmd.Context(), bcfg)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return store, nil
}

type polygonSummary struct {
	ID       string          `json:"id"`
	Result   string          `json:"result"`
	Error    string          `json:"error,omitempty"`
	Messages []types.Message `json:"messages,omitempty"`
}

type requestSummary struct {
	ProjectionID string           `json:"projection_id"`
	Processed    int              `json:"processed"`
	Skipped      int              `json:"skipped"`
	Failed       int              `json:"failed"`
	Archived     int              `json:"archived"`
	Polygons     []polygonSummary `json:"polygons"`
}

func writeSummaryJSON(w io.Writer, id string, sum projection.Summary) error {
	out := requestSummary{
		ProjectionID: id,
		Processed:    sum.Processed,
		Skipped:      sum.Skipped,
		Failed:       sum.Failed,
		Archived:     sum.Archived,
	}
	for _, rep := range sum.Reports {
		ps := polygonSummary{ID: rep.PolygonID, Result: rep.Result, Messages: rep.Messages}
		if rep.Err != nil {
			ps.Error = rep.Err.Error()
		}
		out.Polygons = append(out.Polygons, ps)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeSummaryText(w io.Writer, id string, sum projection.Summary) {
	for _, rep := range sum.Reports {
		fmt.Fprintf(w, "polygon %s: %s\n", rep.PolygonID, rep.Result)
		for _, m := range rep.Messages {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
	fmt.Fprintln(w, sum)
	fmt.Fprintln(w, "projection", id)
}
