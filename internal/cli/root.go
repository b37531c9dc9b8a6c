// Package cli implements the standproj command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/standproj/internal/logging"
	"github.com/mesh-intelligence/standproj/internal/paths"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	workDir   string
	verbose   bool
	jsonMode  bool
}

// app is the state shared by subcommands once the root pre-run has loaded
// the configuration.
type app struct {
	flags     rootFlags
	configDir string
	config    types.Config
	logger    *zap.Logger
}

// userError marks a failure caused by bad input rather than the system.
type userError struct{ err error }

func (e userError) Error() string { return e.err.Error() }
func (e userError) Unwrap() error { return e.err }

// NewRootCmd creates the top-level "standproj" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "standproj",
		Short: "Project forest stand polygons through the growth models",
		Long: "standproj runs polygons through initial-condition estimation, forward and\n" +
			"back growth, and yield-table generation, recording results in a ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/standproj)")
	root.PersistentFlags().StringVar(&a.flags.workDir, "work-dir", "", "directory for execution folders (default: $TMPDIR/standproj)")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "JSON logs and output")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newProjectCmd(a))
	root.AddCommand(newReportCmd(a))
	return root
}

func (a *app) load() error {
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return userError{err}
	}
	logger, err := logging.New(logging.Options{Verbose: a.flags.verbose, JSON: a.flags.jsonMode})
	if err != nil {
		return err
	}
	a.configDir, a.config, a.logger = dir, cfg, logger
	logger.Debug("config loaded", zap.String("dir", dir))
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, NewRootCmd(), os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(root.ErrOrStderr(), "standproj:", err)
	var ue userError
	if errors.As(err, &ue) || types.IsCallerFault(err) {
		return exitUserError
	}
	return exitSysError
}
