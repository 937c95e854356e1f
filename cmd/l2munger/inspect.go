package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"example.com/l2munger/internal/common"
	"example.com/l2munger/internal/munge"
)

func newInspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Describe archives without modifying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				src, err := munge.OpenSource(path)
				if err != nil {
					return err
				}
				s, err := munge.Inspect(src)
				src.Close()
				if err != nil {
					common.Errorf("%s: %v", path, err)
					failed++
					continue
				}
				encs := make([]string, 0, len(src.Encoding))
				for _, e := range src.Encoding {
					encs = append(encs, string(e))
				}
				fmt.Fprintf(w, "%s (%s)\n", path, strings.Join(encs, "+"))
				fmt.Fprintf(w, "  %s site %s volume %s\n", s.Filename, s.Site, s.Volume.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(w, "  %d packets [%s], %s\n", s.Packets, common.FormatTypeCounts(s.ByType), common.FormatBytes(s.Bytes))
				if s.Packets > 0 {
					fmt.Fprintf(w, "  packets %s .. %s\n", s.FirstPacket.Format("15:04:05"), s.LastPacket.Format("15:04:05"))
				}
				if s.Err != nil {
					fmt.Fprintf(w, "  truncated: %v\n", s.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d archives could not be read", failed, len(args))
			}
			return nil
		},
	}
}
