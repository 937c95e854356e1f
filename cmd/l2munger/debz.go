package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"example.com/l2munger/internal/common"
	"example.com/l2munger/internal/ldm"
)

func newDebzCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debz IN OUT",
		Short: "Expand an LDM-compressed archive into a plain Level-II file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, records, err := debz(args[0], args[1])
			if err != nil {
				return err
			}
			common.Logf("debz %s: %d records expanded", args[0], records)
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d records, %s)\n", args[0], args[1], records, common.FormatBytes(n))
			return nil
		},
	}
}

func debz(in, out string) (int64, int, error) {
	f, err := os.Open(in)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	br := bufio.NewReaderSize(f, 64*1024)
	if !ldm.Peek(br) {
		return 0, 0, fmt.Errorf("%s: not an LDM-compressed archive", in)
	}
	dst, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, 0, err
	}
	zr := ldm.NewReader(br)
	n, err := io.Copy(dst, zr)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return n, zr.Records(), fmt.Errorf("%s: %w", in, err)
	}
	return n, zr.Records(), nil
}
