package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/l2munger/internal/polling"
)

func newDirListCommand(a *app) *cobra.Command {
	var (
		at         string
		initialize int
	)
	cmd := &cobra.Command{
		Use:   "dirlist DIR",
		Short: "Write the dir.list index of a polling directory",
		Long: `dirlist lists every *.gz volume in DIR whose name time is before --at
(default: now) into DIR/dir.list. With --initialize N only the first N
volumes are listed, whatever their time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				entries []polling.Entry
				err     error
			)
			if cmd.Flags().Changed("initialize") {
				entries, err = polling.Initialize(args[0], initialize)
			} else {
				clock := polling.NewClock(time.Time{}, 1)
				if at != "" {
					t, perr := parseClock(at)
					if perr != nil {
						return perr
					}
					clock = polling.NewClock(t, 1)
				}
				entries, err = polling.Update(args[0], clock.Now())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d volumes listed\n", args[0], len(entries))
			return polling.Format(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", `list volumes before this time "YYYY-MM-DD HH:MM:SS"`)
	cmd.Flags().IntVar(&initialize, "initialize", polling.DefaultInitialFiles, "list only the first N volumes")
	return cmd
}
