package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/l2munger/internal/manifest"
)

func newManifestCommand(a *app) *cobra.Command {
	var (
		out    string
		verify string
	)
	cmd := &cobra.Command{
		Use:   "manifest [FILE...]",
		Short: "Write or verify a sha256 manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if verify != "" {
				m, err := manifest.Load(verify)
				if err != nil {
					return err
				}
				bad, err := manifest.Verify(m)
				if err != nil {
					return err
				}
				for _, mm := range bad {
					fmt.Fprintf(w, "%s: %s\n", mm.Path, mm.Reason)
				}
				if len(bad) > 0 {
					return fmt.Errorf("%d of %d files do not match %s", len(bad), len(m.Items), verify)
				}
				fmt.Fprintf(w, "%d files verified\n", len(m.Items))
				return nil
			}
			if out == "" || len(args) == 0 {
				return fmt.Errorf("need --out and at least one file, or --verify")
			}
			m, err := manifest.Build(args)
			if err != nil {
				return err
			}
			if err := manifest.Save(m, out); err != nil {
				return err
			}
			fmt.Fprintf(w, "%d files -> %s\n", len(m.Items), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "manifest file to write")
	cmd.Flags().StringVar(&verify, "verify", "", "manifest file to check")
	return cmd
}
