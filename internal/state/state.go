// Package state records the progress of one polygon's projection.
//
// A State is created per polygon and owned by exactly one orchestrator run.
// Every field is write-once; model assignments may be modified exactly once
// more (the FIP to VRI fallback). Reading a field before it is written
// returns ErrNotSet so that phase-ordering mistakes surface at once.
package state

import (
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/standproj/internal/agewindow"
	"github.com/mesh-intelligence/standproj/internal/outcome"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// ModelAssignment is the growth model and processing mode of a stratum.
type ModelAssignment struct {
	Model types.GrowthModel
	Mode  types.ProcessingMode
}

// StageResult is one recorded stage run, keyed by the model it ran under.
type StageResult struct {
	Stage   types.Stage
	Stratum types.Stratum
	Model   types.GrowthModel
	Outcome outcome.Outcome
}

// ProjectionDetails are the first projected year and first requested year
// of a stratum, used to lay out its yield table.
type ProjectionDetails struct {
	ProjectionStartYear int
	FirstRequestedYear  int
}

// State is the per-polygon projection record. It is not safe for concurrent
// use.
type State struct {
	polygon string

	folder         slot[string]
	models         [types.StrataCount]slot[ModelAssignment]
	window         slot[agewindow.Window]
	stratumWindows [types.StrataCount]slot[agewindow.Window]
	details        [types.StrataCount]slot[ProjectionDetails]
	results        [types.StageCount][types.StrataCount][types.ModelCount]slot[outcome.Outcome]
	order          []StageResult
}

// New returns an empty State for the given polygon.
func New(polygonID string) *State {
	return &State{polygon: polygonID}
}

// PolygonID returns the polygon the state belongs to.
func (st *State) PolygonID() string { return st.polygon }

func (st *State) errorf(field string, err error) error {
	return fmt.Errorf("polygon %s: %s: %w", st.polygon, field, err)
}

func validStratum(s types.Stratum) error {
	if !s.IsProjectable() {
		return fmt.Errorf("%w: %s", types.ErrUnknownStratum, s)
	}
	return nil
}

func validKey(stage types.Stage, s types.Stratum, model types.GrowthModel) error {
	if stage < 0 || int(stage) >= types.StageCount {
		return fmt.Errorf("invalid %s", stage)
	}
	if model < 0 || int(model) >= types.ModelCount {
		return fmt.Errorf("invalid %s", model)
	}
	return validStratum(s)
}

// SetExecutionFolder records the polygon's working folder.
func (st *State) SetExecutionFolder(path string) error {
	if err := st.folder.set(path); err != nil {
		return st.errorf("execution folder", err)
	}
	return nil
}

// ExecutionFolder returns the polygon's working folder.
func (st *State) ExecutionFolder() (string, error) {
	v, err := st.folder.get()
	if err != nil {
		return "", st.errorf("execution folder", err)
	}
	return v, nil
}

// StratumFolder returns the subfolder of the execution folder for s.
func (st *State) StratumFolder(s types.Stratum) (string, error) {
	root, err := st.ExecutionFolder()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, s.String()), nil
}

// AssignModel sets the starting model of s. It fails on a second call.
func (st *State) AssignModel(s types.Stratum, model types.GrowthModel, mode types.ProcessingMode) error {
	if err := validStratum(s); err != nil {
		return st.errorf("assign model", err)
	}
	if err := st.models[s].set(ModelAssignment{Model: model, Mode: mode}); err != nil {
		return st.errorf(fmt.Sprintf("model of %s", s), err)
	}
	return nil
}

// ModifyModel replaces the model of s. It requires a prior AssignModel and
// succeeds at most once.
func (st *State) ModifyModel(s types.Stratum, model types.GrowthModel, mode types.ProcessingMode) error {
	if err := validStratum(s); err != nil {
		return st.errorf("modify model", err)
	}
	if err := st.models[s].modify(ModelAssignment{Model: model, Mode: mode}); err != nil {
		return st.errorf(fmt.Sprintf("model of %s", s), err)
	}
	return nil
}

// Model returns the effective model assignment of s.
func (st *State) Model(s types.Stratum) (ModelAssignment, error) {
	if err := validStratum(s); err != nil {
		return ModelAssignment{}, st.errorf("model", err)
	}
	v, err := st.models[s].get()
	if err != nil {
		return ModelAssignment{}, st.errorf(fmt.Sprintf("model of %s", s), err)
	}
	return v, nil
}

// ModelModified reports whether the model of s was replaced after assignment.
func (st *State) ModelModified(s types.Stratum) bool {
	return s.IsProjectable() && st.models[s].phase == modified
}

// RecordStageResult stores the outcome of running stage for s under model.
// model must be the stratum's effective model at the time of the run, and
// each (stage, stratum, model) key is written once.
func (st *State) RecordStageResult(stage types.Stage, s types.Stratum, model types.GrowthModel, o outcome.Outcome) error {
	field := fmt.Sprintf("%s result of %s under %s", stage, s, model)
	if err := validKey(stage, s, model); err != nil {
		return st.errorf(field, err)
	}
	current, err := st.Model(s)
	if err != nil {
		return err
	}
	if current.Model != model {
		return st.errorf(field, ErrModelMismatch)
	}
	if err := st.results[stage][s][model].set(o); err != nil {
		return st.errorf(field, err)
	}
	st.order = append(st.order, StageResult{Stage: stage, Stratum: s, Model: model, Outcome: o})
	return nil
}

// StageResult returns the result of stage for s under its effective model.
func (st *State) StageResult(stage types.Stage, s types.Stratum) (StageResult, error) {
	current, err := st.Model(s)
	if err != nil {
		return StageResult{}, err
	}
	o, err := st.StageResultFor(stage, s, current.Model)
	if err != nil {
		return StageResult{}, err
	}
	return StageResult{Stage: stage, Stratum: s, Model: current.Model, Outcome: o}, nil
}

// StageResultFor returns the result of stage for s under a specific model.
func (st *State) StageResultFor(stage types.Stage, s types.Stratum, model types.GrowthModel) (outcome.Outcome, error) {
	if err := validKey(stage, s, model); err != nil {
		return outcome.Outcome{}, st.errorf("stage result", err)
	}
	o, err := st.results[stage][s][model].get()
	if err != nil {
		return outcome.Outcome{}, st.errorf(fmt.Sprintf("%s of %s under %s", stage, s, model), ErrNotRecorded)
	}
	return o, nil
}

// Succeeded reports whether stage completed successfully for s under its
// effective model. Unlike the getters it never fails.
func (st *State) Succeeded(stage types.Stage, s types.Stratum) bool {
	r, err := st.StageResult(stage, s)
	return err == nil && r.Outcome.Success()
}

// DidRunProjection reports whether Forward or Back completed for s.
func (st *State) DidRunProjection(s types.Stratum) bool {
	return st.Succeeded(types.StageForward, s) || st.Succeeded(types.StageBack, s)
}

// Results returns every recorded stage result in recording order.
func (st *State) Results() []StageResult {
	return append([]StageResult(nil), st.order...)
}

// SetAgeWindow records the polygon-wide age window.
func (st *State) SetAgeWindow(w agewindow.Window) error {
	if err := st.window.set(w); err != nil {
		return st.errorf("age window", err)
	}
	return nil
}

// AgeWindow returns the polygon-wide age window.
func (st *State) AgeWindow() (agewindow.Window, error) {
	w, err := st.window.get()
	if err != nil {
		return agewindow.Window{}, st.errorf("age window", err)
	}
	return w, nil
}

// UpdateAgeWindow records the window of s derived from the polygon-wide
// window. The polygon-wide window must already be set.
func (st *State) UpdateAgeWindow(s types.Stratum, w agewindow.Window) error {
	if err := validStratum(s); err != nil {
		return st.errorf("update age window", err)
	}
	if !st.window.ok() {
		return st.errorf("age window", ErrNotSet)
	}
	if err := st.stratumWindows[s].set(w); err != nil {
		return st.errorf(fmt.Sprintf("age window of %s", s), err)
	}
	return nil
}

// StratumAgeWindow returns the window recorded for s by UpdateAgeWindow.
func (st *State) StratumAgeWindow(s types.Stratum) (agewindow.Window, error) {
	if err := validStratum(s); err != nil {
		return agewindow.Window{}, st.errorf("age window", err)
	}
	w, err := st.stratumWindows[s].get()
	if err != nil {
		return agewindow.Window{}, st.errorf(fmt.Sprintf("age window of %s", s), err)
	}
	return w, nil
}

// RecordProjectionDetails stores the year layout of s once.
func (st *State) RecordProjectionDetails(s types.Stratum, d ProjectionDetails) error {
	if err := validStratum(s); err != nil {
		return st.errorf("projection details", err)
	}
	if err := st.details[s].set(d); err != nil {
		return st.errorf(fmt.Sprintf("projection details of %s", s), err)
	}
	return nil
}

// ProjectionDetails returns the year layout of s.
func (st *State) ProjectionDetails(s types.Stratum) (ProjectionDetails, error) {
	if err := validStratum(s); err != nil {
		return ProjectionDetails{}, st.errorf("projection details", err)
	}
	d, err := st.details[s].get()
	if err != nil {
		return ProjectionDetails{}, st.errorf(fmt.Sprintf("projection details of %s", s), err)
	}
	return d, nil
}
