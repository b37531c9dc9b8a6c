// Package engine provides the ModelRunner implementations: Real, which runs
// the external growth-model executables in each stratum folder, and Stub,
// which scripts their return codes for tests and trial runs.
package engine

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/magefile/mage/sh"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/internal/projection"
	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/internal/yieldtable"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

//go:embed templates/*.ctl
var templates embed.FS

// Engine names. Each names its control template, return-code file and log.
const (
	EngineFIPStart = "fipstart"
	EngineVRIStart = "vristart"
	EngineAdjust   = "adjust"
	EngineForward  = "forward"
	EngineBack     = "back"
)

// ErrUnknownModel is returned for a stage request with no growth model.
var ErrUnknownModel = errors.New("no initial engine for growth model")

// Real runs the configured engine executables. Each engine is invoked with
// the absolute path of its control file and writes its return code to
// "<engine>.rc" beside it.
type Real struct {
	engines types.EngineConfig
	log     *zap.Logger
}

var _ projection.ModelRunner = (*Real)(nil)

// NewReal returns a runner for the given executables.
func NewReal(engines types.EngineConfig, logger *zap.Logger) *Real {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Real{engines: engines, log: logger.Named("engine")}
}

// RunInitial writes the model's input files and runs FIPSTART or VRISTART.
func (r *Real) RunInitial(ctx context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	dir, err := req.Folder()
	if err != nil {
		return outcome.Outcome{}, err
	}
	layer, ok := req.Polygon.LayerFor(req.Stratum)
	if !ok {
		return outcome.Outcome{}, fmt.Errorf("polygon %s has no %s layer", req.Polygon.ID(), req.Stratum)
	}
	switch req.Model {
	case types.ModelFIP:
		if err := writeFIPInput(dir, req.Polygon, layer); err != nil {
			return outcome.Outcome{}, err
		}
		return r.execute(ctx, types.StageInitial, EngineFIPStart, r.engines.FIPStart, req, 0)
	case types.ModelVRI:
		if err := writeVRIInput(dir, req.Polygon, layer, req.Mode); err != nil {
			return outcome.Outcome{}, err
		}
		return r.execute(ctx, types.StageInitial, EngineVRIStart, r.engines.VRIStart, req, 0)
	default:
		return outcome.Outcome{}, fmt.Errorf("%w %s", ErrUnknownModel, req.Model)
	}
}

// RunAdjust runs the adjust engine when one is configured and otherwise
// copies the Initial outputs through.
func (r *Real) RunAdjust(ctx context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	if r.engines.Adjust != "" {
		return r.execute(ctx, types.StageAdjust, EngineAdjust, r.engines.Adjust, req, 0)
	}
	dir, err := req.Folder()
	if err != nil {
		return outcome.Outcome{}, err
	}
	if err := copyAdjustFiles(dir); err != nil {
		return outcome.Outcome{}, err
	}
	r.log.Debug("adjust is a pass-through", zap.String("polygon", req.Polygon.ID()), zap.Stringer("stratum", req.Stratum))
	return outcome.Succeeded(), nil
}

// RunForward writes the grow-to year and runs FORWARD.
func (r *Real) RunForward(ctx context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	dir, err := req.Folder()
	if err != nil {
		return outcome.Outcome{}, err
	}
	if err := writeGrowToYear(dir, req.Polygon, req.Polygon.MeasurementYear()+req.YearsToGrow); err != nil {
		return outcome.Outcome{}, err
	}
	return r.execute(ctx, types.StageForward, EngineForward, r.engines.Forward, req, 0)
}

// RunBack runs BACK with the years to grow back written into its control
// file.
func (r *Real) RunBack(ctx context.Context, req projection.StageRequest) (outcome.Outcome, error) {
	return r.execute(ctx, types.StageBack, EngineBack, r.engines.Back, req, req.YearsToGrow)
}

// GenerateYieldTables writes the polygon's tables to the request's sink.
func (r *Real) GenerateYieldTables(ctx context.Context, pc *projection.Context, polygon types.PolygonView, st *state.State) error {
	return yieldtable.Generate(ctx, pc.Params, polygon, st, pc.Yield)
}

func (r *Real) execute(ctx context.Context, stage types.Stage, name, binary string, req projection.StageRequest, yearsBack int) (outcome.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome.Outcome{}, err
	}
	if binary == "" {
		return outcome.Outcome{}, fmt.Errorf("%w: %s", types.ErrEngineMissing, name)
	}
	dir, err := req.Folder()
	if err != nil {
		return outcome.Outcome{}, err
	}
	ctl, err := writeControlFile(dir, name, yearsBack)
	if err != nil {
		return outcome.Outcome{}, err
	}
	rcPath := filepath.Join(dir, name+".rc")
	if err := os.Remove(rcPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return outcome.Outcome{}, err
	}
	logFile, err := os.Create(filepath.Join(dir, name+".log"))
	if err != nil {
		return outcome.Outcome{}, err
	}
	defer logFile.Close()

	log := r.log.With(zap.String("engine", name), zap.String("polygon", req.Polygon.ID()), zap.Stringer("stratum", req.Stratum))
	log.Debug("running engine", zap.String("binary", binary), zap.String("control", ctl))
	ran, runErr := sh.Exec(map[string]string{"STANDPROJ_STRATUM_DIR": dir}, logFile, logFile, binary, ctl)
	if !ran {
		return outcome.Outcome{}, fmt.Errorf("start %s: %w", name, runErr)
	}

	code, ok, err := readReturnCode(rcPath)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if !ok {
		code = int(int8(sh.ExitStatus(runErr)))
	}
	res := outcome.Interpret(stage, req.Model, code)
	log.Debug("engine finished", zap.Stringer("outcome", res))
	return res, nil
}

// writeControlFile renders the engine's template into dir and returns its
// absolute path.
func writeControlFile(dir, name string, yearsBack int) (string, error) {
	b, err := templates.ReadFile("templates/" + name + ".ctl")
	if err != nil {
		return "", fmt.Errorf("control template %s: %w", name, err)
	}
	text := strings.ReplaceAll(string(b), "%YR%", fmt.Sprintf("%4d", yearsBack))
	path, err := filepath.Abs(filepath.Join(dir, name+".ctl"))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write control file: %w", err)
	}
	return path, nil
}

// readReturnCode parses the engine's return-code file. ok is false when the
// engine did not write one.
func readReturnCode(path string) (code int, ok bool, err error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	code, err = strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return code, true, nil
}
