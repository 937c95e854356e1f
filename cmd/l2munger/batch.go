package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/l2munger/internal/common"
	"example.com/l2munger/internal/ledger"
	"example.com/l2munger/internal/munge"
	"example.com/l2munger/internal/polling"
)

func newBatchCommand(a *app) *cobra.Command {
	var (
		site      string
		start     string
		shift     int64
		speed     int
		outDir    string
		gzip      bool
		audit     bool
		keepGoing bool
		dirList   bool
		progress  bool
	)
	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Munge every archive in a directory into a polling directory",
		Long: `batch rewrites every archive in DIR whose name starts with SSSSYYYYMMDD_HHMMSS.
The first volume moves to --start (or every volume moves by --shift seconds)
and later volumes keep their spacing, divided by --speed. Without either
flag the first volume starts two hours before now.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := munge.BatchOptions{
				Site:      strings.TrimSpace(site),
				Shift:     time.Duration(shift) * time.Second,
				Speed:     speed,
				Gzip:      gzip || (!cmd.Flags().Changed("gzip") && a.cfg.Gzip),
				Audit:     audit || a.cfg.Audit,
				RunID:     ledger.NewRunID(),
				Metrics:   common.NewMetrics(),
				KeepGoing: keepGoing,
			}
			if opts.Site == "" {
				opts.Site = a.cfg.Site
			}
			if !cmd.Flags().Changed("speed") {
				opts.Speed = a.cfg.Speed
			}
			if start != "" {
				t, err := parseClock(start)
				if err != nil {
					return err
				}
				opts.Start = t
			}
			if !opts.Start.IsZero() && shift != 0 {
				return fmt.Errorf("--start and --shift cannot be used together")
			}
			if opts.Start.IsZero() && !cmd.Flags().Changed("shift") {
				opts.Start = defaultPlaybackStart(time.Now())
			}

			items, err := munge.ScanDir(args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("no archives found in %s", args[0])
			}
			targetSite := opts.Site
			if targetSite == "" {
				targetSite = items[0].Site
			}
			opts.OutDir = outDir
			if opts.OutDir == "" {
				opts.OutDir = filepath.Join(a.cfg.PollingDir, strings.ToUpper(targetSite))
			}

			stop := func() {}
			if progress {
				stop = common.StartProgressPrinter(cmd.ErrOrStderr(), opts.Metrics, time.Second)
			}
			results, runErr := munge.Batch(args[0], opts)
			stop()

			w := cmd.OutOrStdout()
			for _, res := range results {
				a.record(ledgerRun(opts.RunID, "batch", res.Config, res.File, res.Err))
				status := "ok"
				if res.Err != nil {
					status = "FAILED: " + res.Err.Error()
				}
				fmt.Fprintf(w, "%s -> %s %s\n", filepath.Base(res.Item.Path), filepath.Base(res.File.Output), status)
			}
			if runErr != nil {
				return runErr
			}
			if dirList && opts.Gzip {
				entries, err := polling.Initialize(opts.OutDir, a.cfg.Server.InitialFiles)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "dir.list initialised with %d volumes\n", len(entries))
			}
			snap := opts.Metrics.Snapshot()
			fmt.Fprintf(w, "%d archives, %d packets [%s], %s in %s\n", len(results), snap.Packets,
				snap.TypeSummary(), common.FormatBytes(snap.Bytes), snap.Duration.Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&site, "site", "", "new site id (default: keep each file's site)")
	f.StringVar(&start, "start", "", `playback start "YYYY/MM/DD HH:MM:SS" for the first volume (default now - 2h)`)
	f.Int64Var(&shift, "shift", 0, "seconds to shift every volume by")
	f.IntVar(&speed, "speed", 1, "integer playback speed factor")
	f.StringVar(&outDir, "out-dir", "", "output directory (default <pollingDir>/<SITE>)")
	f.BoolVar(&gzip, "gzip", false, "gzip outputs")
	f.BoolVar(&audit, "audit", false, "write an audit log per archive")
	f.BoolVar(&keepGoing, "keep-going", false, "continue after a failed archive")
	f.BoolVar(&dirList, "dirlist", false, "initialise dir.list in the output directory")
	f.BoolVar(&progress, "progress", false, "display progress updates")
	return cmd
}

// defaultPlaybackStart places the first volume two hours before now.
func defaultPlaybackStart(now time.Time) time.Time {
	return now.UTC().Add(-2 * time.Hour).Truncate(time.Second)
}

// parseClock accepts "YYYY/MM/DD HH:MM:SS" and "YYYY-MM-DD HH:MM:SS", with an
// optional " UTC" suffix.
func parseClock(v string) (time.Time, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), " UTC")
	for _, layout := range []string{"2006/1/2 15:4:5", "2006-1-2 15:4:5"} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q must look like YYYY/MM/DD HH:MM:SS", munge.ErrConfiguration, v)
}
