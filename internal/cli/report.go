package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/standproj/internal/ledger"
)

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report [projection-id]",
		Short: "Show recorded projections",
		Long:  "Without an argument, list recorded projections. With a projection id, show its stage results and messages.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachLedger(cmd)
			if err != nil {
				return err
			}
			defer backend.Detach()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				ids, err := backend.Projections(ctx)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return json.NewEncoder(out).Encode(ids)
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			stages, err := backend.StageResults(ctx, args[0])
			if err != nil {
				return err
			}
			msgs, err := backend.Messages(ctx, args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return json.NewEncoder(out).Encode(struct {
					Stages   []ledger.StageEntry   `json:"stages"`
					Messages []ledger.MessageEntry `json:"messages"`
				}{stages, msgs})
			}
			return writeReport(out, stages, msgs)
		},
	}
}

func writeReport(w io.Writer, stages []ledger.StageEntry, msgs []ledger.MessageEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POLYGON\tSTAGE\tSTRATUM\tMODEL\tOUTCOME\tCODE")
	for _, s := range stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", s.PolygonID, s.Stage, s.Stratum, s.Model, s.Outcome, s.Code)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	for _, m := range msgs {
		fmt.Fprintf(w, "%s %s %s %s: %s\n", m.PolygonID, m.Severity, m.Kind, m.Stratum, m.Text)
	}
	return nil
}
