package types

import (
	"errors"
	"fmt"
	"runtime"
)

// Config holds the runtime settings of the standproj CLI, decoded from
// config.yaml.
type Config struct {
	WorkDir     string       `json:"work_dir" yaml:"work_dir" mapstructure:"work_dir"`
	Parallelism int          `json:"parallelism" yaml:"parallelism" mapstructure:"parallelism"`
	TrialRun    bool         `json:"trial_run" yaml:"trial_run" mapstructure:"trial_run"`
	Archive     bool         `json:"archive" yaml:"archive" mapstructure:"archive"`
	Ledger      LedgerConfig `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Engines     EngineConfig `json:"engines" yaml:"engines" mapstructure:"engines"`
}

// LedgerConfig selects the database that records projection results.
type LedgerConfig struct {
	Driver  string `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn"`
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty" mapstructure:"data_dir"`
}

// EngineConfig locates the external growth-model executables. Adjust is
// optional; without it the Adjust stage copies Initial outputs through.
type EngineConfig struct {
	FIPStart string `json:"fipstart" yaml:"fipstart" mapstructure:"fipstart"`
	VRIStart string `json:"vristart" yaml:"vristart" mapstructure:"vristart"`
	Forward  string `json:"forward" yaml:"forward" mapstructure:"forward"`
	Back     string `json:"back" yaml:"back" mapstructure:"back"`
	Adjust   string `json:"adjust,omitempty" yaml:"adjust,omitempty" mapstructure:"adjust"`
}

// Supported ledger drivers.
const (
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// Config validation errors.
var (
	ErrLedgerDriverEmpty   = errors.New("ledger driver must not be empty")
	ErrLedgerDriverUnknown = errors.New("unknown ledger driver")
	ErrLedgerDSNEmpty      = errors.New("ledger dsn must not be empty for postgres")
	ErrParallelismInvalid  = errors.New("parallelism must not be negative")
	ErrEngineMissing       = errors.New("engine executable not configured")
)

var knownLedgers = map[string]bool{
	LedgerSQLite:   true,
	LedgerPostgres: true,
}

// Validate checks that the Config is well-formed. Engine paths are only
// required outside trial runs.
func (c Config) Validate() error {
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if c.Parallelism < 0 {
		return ErrParallelismInvalid
	}
	if c.TrialRun {
		return nil
	}
	for name, path := range map[string]string{
		"fipstart": c.Engines.FIPStart,
		"vristart": c.Engines.VRIStart,
		"forward":  c.Engines.Forward,
		"back":     c.Engines.Back,
	} {
		if path == "" {
			return fmt.Errorf("%w: %s", ErrEngineMissing, name)
		}
	}
	return nil
}

// Validate checks the ledger driver and its connection settings.
func (c LedgerConfig) Validate() error {
	if c.Driver == "" {
		return ErrLedgerDriverEmpty
	}
	if !knownLedgers[c.Driver] {
		return ErrLedgerDriverUnknown
	}
	if c.Driver == LedgerPostgres && c.DSN == "" {
		return ErrLedgerDSNEmpty
	}
	return nil
}

// Workers returns the number of polygons to project concurrently.
func (c Config) Workers() int {
	if c.Parallelism == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Parallelism
}
