package munge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"example.com/l2munger/internal/common"
)

var ErrOutputExists = errors.New("output already exists")

// FileOptions controls where and how MungeFile writes its output.
type FileOptions struct {
	OutDir    string
	Gzip      bool
	AuditPath string
	RunID     string
	Metrics   *common.Metrics

	// batch is set by Batch, which owns the metrics totals.
	batch bool
}

// FileResult extends Result with what MungeFile did on disk.
type FileResult struct {
	Result
	Source         string
	SourceEncoding []Encoding
	Output         string
	// Sha256 covers the rewritten archive bytes before any gzip layer.
	Sha256  string
	Audit   string
	Started time.Time
	Elapsed time.Duration
}

// OutputPath returns where MungeFile writes cfg's archive inside dir.
func OutputPath(dir string, cfg Config, gz bool) string {
	name := cfg.OutputName()
	if gz {
		name += ".gz"
	}
	return filepath.Join(dir, name)
}

// MungeFile rewrites the archive at srcPath into a new file named after the
// target site and time. An existing output is never overwritten. On a
// failed plain run the output is cut back to the records written in full.
func MungeFile(srcPath string, cfg Config, opts FileOptions) (FileResult, error) {
	fr := FileResult{Source: srcPath, Started: time.Now().UTC()}
	if err := cfg.Validate(); err != nil {
		return fr, err
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fr, err
	}
	fr.Output = OutputPath(outDir, cfg, opts.Gzip)

	src, err := OpenSource(srcPath)
	if err != nil {
		return fr, err
	}
	defer src.Close()
	fr.SourceEncoding = src.Encoding
	if opts.Metrics != nil && !opts.batch && !src.Compressed() {
		opts.Metrics.SetTotalBytes(src.Size)
	}

	out, err := os.OpenFile(fr.Output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fr, fmt.Errorf("%w: %s", ErrOutputExists, fr.Output)
		}
		return fr, err
	}

	var audit *common.PatchLog
	if opts.AuditPath != "" {
		audit, err = common.NewPatchLog(opts.AuditPath, opts.RunID)
		if err != nil {
			out.Close()
			os.Remove(fr.Output)
			return fr, err
		}
		fr.Audit = opts.AuditPath
	}

	var sink io.Writer = out
	var zw *gzip.Writer
	if opts.Gzip {
		zw = gzip.NewWriter(out)
		zw.Name = cfg.OutputName()
		zw.ModTime = cfg.Target.UTC()
		sink = zw
	}
	hw := common.NewHashWriter(sink)

	res, runErr := Run(src, hw, cfg, Options{Metrics: opts.Metrics, Audit: audit})
	fr.Result = res
	fr.Sha256 = hw.Sum()

	if audit != nil {
		if err := audit.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	if zw != nil {
		if err := zw.Close(); err != nil && runErr == nil {
			runErr = &StageError{Stage: StageWrite, Packet: res.Packets, Offset: res.BytesWritten, Err: fmt.Errorf("%w: %w", ErrWrite, err)}
		}
	}
	if runErr != nil && zw == nil && errors.Is(runErr, ErrWrite) {
		if err := out.Truncate(res.BytesWritten); err != nil {
			common.Warnf("truncate %s to %d bytes: %v", fr.Output, res.BytesWritten, err)
		}
	}
	if err := out.Sync(); err != nil && runErr == nil {
		runErr = err
	}
	if err := out.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil && res.BytesWritten == 0 {
		// Nothing reached the output; an empty file would block a rerun.
		if err := os.Remove(fr.Output); err != nil {
			common.Warnf("remove %s: %v", fr.Output, err)
		}
		if fr.Audit != "" {
			os.Remove(fr.Audit)
			fr.Audit = ""
		}
	}
	fr.Elapsed = time.Since(fr.Started)
	if runErr != nil {
		return fr, runErr
	}
	common.Logf("wrote %s (%s, %d packets) in %s", fr.Output, common.FormatBytes(res.BytesWritten), res.Packets, fr.Elapsed.Round(time.Millisecond))
	return fr, nil
}
