package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/standproj/internal/ledger"
	"github.com/mesh-intelligence/standproj/internal/paths"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file and the results ledger",
		Long:  "Write a default config.yaml if none exists, then create the ledger database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := writeConfigIfMissing(a.configDir, defaultConfig())
			if err != nil {
				return err
			}
			if written {
				if a.config, err = loadConfig(a.configDir); err != nil {
					return userError{err}
				}
			}

			backend, err := a.attachLedger(cmd)
			if err != nil {
				return err
			}
			if err := backend.Detach(); err != nil {
				return fmt.Errorf("finalize ledger: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "standproj initialized")
			fmt.Fprintln(out, "  config:", a.configDir)
			fmt.Fprintln(out, "  ledger:", a.config.Ledger.Driver)
			return nil
		},
	}
}

// attachLedger opens the configured ledger. The sqlite data directory is
// resolved against STANDPROJ_DATA_DIR and the platform default.
func (a *app) attachLedger(cmd *cobra.Command) (*ledger.Backend, error) {
	cfg := a.config.Ledger
	if cfg.Driver == "" {
		cfg.Driver = defaultConfig().Ledger.Driver
	}
	if err := cfg.Validate(); err != nil {
		return nil, userError{err}
	}
	if cfg.Driver == types.LedgerSQLite && cfg.DSN == "" {
		dir, err := paths.ResolveDataDir(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	backend := ledger.NewBackend(a.logger)
	if err := backend.Attach(cmd.Context(), cfg); err != nil {
		return nil, fmt.Errorf("attach ledger: %w", err)
	}
	return backend, nil
}
