package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"example.com/l2munger/internal/common"
	"example.com/l2munger/internal/config"
	"example.com/l2munger/internal/ledger"
	"example.com/l2munger/internal/manifest"
	"example.com/l2munger/internal/munge"
	"example.com/l2munger/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	logLevelOptionName = "log-level"
	configOptionName   = "config"
)

// app holds state shared by every subcommand once the persistent flags
// have been applied.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
	logCloser  io.Closer
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "l2munger: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{}
	opts := &mungeOptions{}
	cmd := &cobra.Command{
		Use:   "l2munger SSSS YYYY/MM/DD HH:MM:SS X SOURCE",
		Short: "Rewrite the times and site of a NEXRAD Level-II archive",
		Long: `l2munger shifts every timestamp of a Level-II archive so the volume starts
at a new time, optionally compressing playback by an integer speed factor X,
and stamps a new 4-character site id into the volume header. The output is
written to SSSSYYYYMMDD_HHMMSS and is never overwritten.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		Args:          cobra.RangeArgs(0, 5),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				a.logCloser.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			if len(args) != 5 {
				return fmt.Errorf("expected SSSS YYYY/MM/DD HH:MM:SS X SOURCE, got %d arguments", len(args))
			}
			return a.runMunge(cmd, args, opts)
		},
	}
	cmd.SetOut(out)
	opts.bind(cmd)
	cmd.PersistentFlags().StringVar(&a.configPath, configOptionName, "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.logLevel, logLevelOptionName, "", fmt.Sprintf("Log level. %s", common.HelpLevels))

	cmd.AddCommand(newBatchCommand(a))
	cmd.AddCommand(newDebzCommand(a))
	cmd.AddCommand(newDirListCommand(a))
	cmd.AddCommand(newUndoCommand(a))
	cmd.AddCommand(newHistoryCommand(a))
	cmd.AddCommand(newInspectCommand(a))
	cmd.AddCommand(newManifestCommand(a))
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logs.Level = a.logLevel
	}
	closer, err := common.SetupLogging(cmd.ErrOrStderr(), cfg.Logs)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logCloser = closer
	return nil
}

// openLedger returns nil when no ledger is configured.
func (a *app) openLedger() (*ledger.Ledger, error) {
	if a.cfg.Ledger == "" {
		return nil, nil
	}
	return ledger.Open(a.cfg.Ledger)
}

func (a *app) record(run *ledger.Run) {
	l, err := a.openLedger()
	if err != nil {
		common.Warnf("ledger: %v", err)
		return
	}
	if l == nil {
		return
	}
	defer l.Close()
	if err := l.Record(run); err != nil {
		common.Warnf("ledger: %v", err)
	}
}

type mungeOptions struct {
	outDir    string
	gzip      bool
	audit     bool
	auditPath string
	reportJS  bool
	reportPDF bool
	manifest  string
	progress  bool
}

func (o *mungeOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.outDir, "out-dir", "", "directory for the rewritten archive (default from config)")
	f.BoolVar(&o.gzip, "gzip", false, "gzip the output")
	f.BoolVar(&o.audit, "audit", false, "write a JSONL audit log next to the output")
	f.StringVar(&o.auditPath, "audit-file", "", "audit log path (implies --audit)")
	f.BoolVar(&o.reportJS, "report-json", false, "write a JSON conversion report")
	f.BoolVar(&o.reportPDF, "report-pdf", false, "write a PDF conversion report")
	f.StringVar(&o.manifest, "manifest", "", "write a sha256 manifest of the produced files")
	f.BoolVar(&o.progress, "progress", false, "display progress updates")
}

func (a *app) runMunge(cmd *cobra.Command, args []string, o *mungeOptions) error {
	speed, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("%w: speed factor %q is not an integer", munge.ErrConfiguration, args[3])
	}
	cfg, err := munge.ParseConfig(args[0], args[1], args[2], speed)
	if err != nil {
		return err
	}
	src := args[4]

	outDir := o.outDir
	if outDir == "" {
		outDir = a.cfg.OutputDir
	}
	gz := o.gzip || (!cmd.Flags().Changed("gzip") && a.cfg.Gzip)
	runID := ledger.NewRunID()
	fopts := munge.FileOptions{OutDir: outDir, Gzip: gz, RunID: runID, Metrics: common.NewMetrics()}
	if o.auditPath != "" {
		fopts.AuditPath = o.auditPath
	} else if o.audit || a.cfg.Audit {
		fopts.AuditPath = munge.OutputPath(outDir, cfg, false) + ".audit.jsonl"
	}

	stop := func() {}
	if o.progress {
		stop = common.StartProgressPrinter(cmd.ErrOrStderr(), fopts.Metrics, time.Second)
	}
	fr, runErr := munge.MungeFile(src, cfg, fopts)
	stop()

	a.record(ledgerRun(runID, "munge", cfg, fr, runErr))
	if errors.Is(runErr, munge.ErrOutputExists) {
		return runErr
	}
	rep := report.FromFileResult(runID, cfg, fr, runErr)
	produced := []string{}
	if fr.Output != "" && common.FileExists(fr.Output) && runErr == nil {
		produced = append(produced, fr.Output)
	}
	if fr.Audit != "" {
		produced = append(produced, fr.Audit)
	}
	base := munge.OutputPath(outDir, cfg, false)
	if o.reportJS || a.cfg.Report.JSON {
		path := base + ".report.json"
		if err := report.SaveJSON(rep, path); err != nil {
			common.Warnf("json report: %v", err)
		} else {
			produced = append(produced, path)
		}
	}
	if o.reportPDF || a.cfg.Report.PDF {
		path := base + ".report.pdf"
		if err := report.SavePDF(rep, path); err != nil {
			common.Warnf("pdf report: %v", err)
		} else {
			produced = append(produced, path)
		}
	}
	if runErr != nil {
		return runErr
	}
	if o.manifest != "" {
		m, err := manifest.Build(produced)
		if err != nil {
			return err
		}
		m.RunID = runID
		if err := manifest.Save(m, o.manifest); err != nil {
			return err
		}
	}
	printResult(cmd.OutOrStdout(), fr)
	return nil
}

func printResult(w io.Writer, fr munge.FileResult) {
	fmt.Fprintf(w, "%s -> %s\n", fr.Source, fr.Output)
	fmt.Fprintf(w, "  site %s, volume %s -> %s (speed %dx)\n", fr.SourceSite,
		fr.Reference.Format("2006-01-02 15:04:05"), fr.Target.Format("2006-01-02 15:04:05"), fr.Speed)
	fmt.Fprintf(w, "  %d packets [%s], %d fields rewritten, %d skipped, %s\n",
		fr.Packets, common.FormatTypeCounts(fr.ByType), fr.Remapped, fr.Skipped, common.FormatBytes(fr.BytesWritten))
	fmt.Fprintf(w, "  sha256 %s\n", fr.Sha256)
}

func ledgerRun(runID, command string, cfg munge.Config, fr munge.FileResult, runErr error) *ledger.Run {
	run := &ledger.Run{
		ID:        runID,
		Command:   command,
		Started:   fr.Started,
		ElapsedMs: fr.Elapsed.Milliseconds(),
		Source:    fr.Source,
		Output:    fr.Output,
		Audit:     fr.Audit,
		Site:      string(cfg.Site[:]),
		Reference: fr.Reference,
		Target:    cfg.Target,
		Speed:     cfg.Speed,
		Packets:   fr.Packets,
		Remapped:  fr.Remapped,
		Skipped:   fr.Skipped,
		ByType:    fr.ByType,
		Bytes:     fr.BytesWritten,
		Sha256:    fr.Sha256,
		Status:    ledger.StatusOK,
	}
	if runErr != nil {
		run.Status = ledger.StatusFailed
		run.Error = runErr.Error()
	}
	return run
}
