package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/l2munger/internal/munge"
)

func newUndoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo MUNGED AUDIT OUT",
		Short: "Restore the original bytes of a munged archive from its audit log",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := munge.Undo(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d fields restored)\n", args[0], args[2], n)
			return nil
		},
	}
}
