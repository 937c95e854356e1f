package munge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"example.com/l2munger/internal/archive2"
	"example.com/l2munger/internal/common"
)

// BatchOptions describes a directory munge. Either Start or Shift places
// the event in time: Start moves the first archive to that instant, Shift
// moves every archive by the same amount. Site may be left empty to keep
// the site of each source file.
type BatchOptions struct {
	Site      string
	Start     time.Time
	Shift     time.Duration
	Speed     int
	OutDir    string
	Gzip      bool
	Audit     bool
	RunID     string
	Metrics   *common.Metrics
	KeepGoing bool
}

// BatchItem is one archive found in the source directory.
type BatchItem struct {
	Path   string
	Site   string
	Volume time.Time
}

// BatchResult pairs each processed archive with its outcome.
type BatchResult struct {
	Item   BatchItem
	File   FileResult
	Config Config
	Err    error
}

// ScanDir lists the archives in dir whose names carry a site and volume
// time, oldest first. Audit logs and hidden files are ignored.
func ScanDir(dir string) ([]BatchItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var items []BatchItem
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".jsonl") {
			continue
		}
		site, t, err := archive2.ParseFileName(name)
		if err != nil {
			common.Debugf("batch: skipping %s: %v", name, err)
			continue
		}
		items = append(items, BatchItem{Path: filepath.Join(dir, name), Site: site, Volume: t})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Volume.Equal(items[j].Volume) {
			return items[i].Path < items[j].Path
		}
		return items[i].Volume.Before(items[j].Volume)
	})
	return items, nil
}

// PlanBatch works out the rewrite for each item. With a speed factor above
// one the spacing between volumes shrinks the same way the packet times
// inside each volume do.
func PlanBatch(items []BatchItem, opts BatchOptions) ([]Config, error) {
	if len(items) == 0 {
		return nil, nil
	}
	speed := opts.Speed
	if speed == 0 {
		speed = 1
	}
	first := items[0].Volume
	start := first.Add(opts.Shift)
	if !opts.Start.IsZero() {
		start = opts.Start
	}
	configs := make([]Config, 0, len(items))
	for _, item := range items {
		siteName := opts.Site
		if siteName == "" {
			siteName = item.Site
		}
		site, err := ParseSite(siteName)
		if err != nil {
			return nil, err
		}
		elapsed := int64(item.Volume.Sub(first) / time.Second)
		cfg := Config{
			Site:   site,
			Target: start.Add(time.Duration(elapsed/int64(speed)) * time.Second).UTC(),
			Speed:  speed,
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", item.Path, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Batch munges every archive in dir. Unless KeepGoing is set the first
// failure stops the batch.
func Batch(dir string, opts BatchOptions) ([]BatchResult, error) {
	items, err := ScanDir(dir)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no archives found in %s", dir)
	}
	configs, err := PlanBatch(items, opts)
	if err != nil {
		return nil, err
	}
	if m := opts.Metrics; m != nil {
		m.SetTotalBytes(plainBytes(items))
		m.Start()
		defer m.Stop()
	}
	results := make([]BatchResult, 0, len(items))
	var failed int
	for i, item := range items {
		cfg := configs[i]
		fopts := FileOptions{
			OutDir:  opts.OutDir,
			Gzip:    opts.Gzip,
			RunID:   opts.RunID,
			Metrics: opts.Metrics,
			batch:   true,
		}
		if opts.Audit {
			fopts.AuditPath = OutputPath(opts.OutDir, cfg, false) + ".audit.jsonl"
		}
		common.Logf("batch %d/%d: %s -> %s", i+1, len(items), filepath.Base(item.Path), cfg.OutputName())
		fr, err := MungeFile(item.Path, cfg, fopts)
		results = append(results, BatchResult{Item: item, File: fr, Config: cfg, Err: err})
		if err != nil {
			failed++
			common.Errorf("batch: %s: %v", item.Path, err)
			if !opts.KeepGoing {
				return results, err
			}
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d archives failed", failed, len(items))
	}
	return results, nil
}

// plainBytes is the total input size of a batch, or 0 when any archive is
// compressed and the decoded size is unknown.
func plainBytes(items []BatchItem) int64 {
	var total int64
	for _, item := range items {
		switch strings.ToLower(filepath.Ext(item.Path)) {
		case ".gz", ".bz2":
			return 0
		}
		info, err := os.Stat(item.Path)
		if err != nil {
			return 0
		}
		total += info.Size()
	}
	return total
}
