package report

import (
	"encoding/json"
	"os"
	"time"

	"example.com/l2munger/internal/munge"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Conversion is the summary written next to a rewritten archive.
type Conversion struct {
	RunID          string          `json:"runId,omitempty"`
	Generated      time.Time       `json:"generated"`
	Source         string          `json:"source"`
	SourceEncoding []string        `json:"sourceEncoding,omitempty"`
	Output         string          `json:"output"`
	Audit          string          `json:"audit,omitempty"`
	SourceSite     string          `json:"sourceSite"`
	Site           string          `json:"site"`
	Reference      time.Time       `json:"reference"`
	Target         time.Time       `json:"target"`
	Speed          int             `json:"speed"`
	Packets        int64           `json:"packets"`
	Remapped       int64           `json:"remapped"`
	Skipped        int64           `json:"skipped"`
	ByType         map[uint8]int64 `json:"byType"`
	BytesRead      int64           `json:"bytesRead"`
	BytesWritten   int64           `json:"bytesWritten"`
	Sha256         string          `json:"sha256,omitempty"`
	ElapsedMs      int64           `json:"elapsedMs"`
	Status         string          `json:"status"`
	Error          string          `json:"error,omitempty"`
}

// FromFileResult summarises one MungeFile call. runErr is the error it
// returned, if any.
func FromFileResult(runID string, cfg munge.Config, fr munge.FileResult, runErr error) Conversion {
	rep := Conversion{
		RunID:        runID,
		Generated:    time.Now().UTC(),
		Source:       fr.Source,
		Output:       fr.Output,
		Audit:        fr.Audit,
		SourceSite:   fr.SourceSite,
		Site:         string(cfg.Site[:]),
		Reference:    fr.Reference,
		Target:       cfg.Target.UTC(),
		Speed:        cfg.Speed,
		Packets:      fr.Packets,
		Remapped:     fr.Remapped,
		Skipped:      fr.Skipped,
		ByType:       fr.ByType,
		BytesRead:    fr.BytesRead,
		BytesWritten: fr.BytesWritten,
		Sha256:       fr.Sha256,
		ElapsedMs:    fr.Elapsed.Milliseconds(),
		Status:       StatusOK,
	}
	for _, e := range fr.SourceEncoding {
		rep.SourceEncoding = append(rep.SourceEncoding, string(e))
	}
	if runErr != nil {
		rep.Status = StatusFailed
		rep.Error = runErr.Error()
	}
	return rep
}

func SaveJSON(rep Conversion, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func LoadJSON(path string) (Conversion, error) {
	var rep Conversion
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
