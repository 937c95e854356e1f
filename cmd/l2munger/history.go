package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [ID]",
		Short: "Show runs recorded in the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.openLedger()
			if err != nil {
				return err
			}
			if l == nil {
				return fmt.Errorf("no ledger configured")
			}
			defer l.Close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := l.Get(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			runs, err := l.List(limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tCOMMAND\tSITE\tTARGET\tSPEED\tPACKETS\tSTATUS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%dx\t%d\t%s\n", r.ID,
					r.Started.Format("2006-01-02 15:04:05"), r.Command, r.Site,
					r.Target.Format("2006-01-02 15:04:05"), r.Speed, r.Packets, r.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show (0 for all)")
	return cmd
}
