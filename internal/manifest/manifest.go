// Package manifest records sha256 digests of the files a run produced.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/l2munger/internal/archive2"
	"example.com/l2munger/internal/common"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	RunID     string    `json:"runId,omitempty"`
	ShaAlgo   string    `json:"shaAlgo"`
	Items     []Item    `json:"items"`
}

// Mismatch describes a file that no longer matches its manifest entry.
type Mismatch struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func classify(p string) string {
	base := filepath.Base(p)
	switch {
	case strings.HasSuffix(base, ".audit.jsonl"):
		return "audit"
	case base == "dir.list":
		return "dirlist"
	case hasExt(base, ".json"):
		return "json"
	case hasExt(base, ".pdf"):
		return "pdf"
	}
	if _, _, err := archive2.ParseFileName(base); err == nil {
		if hasExt(base, ".gz") {
			return "archive-gz"
		}
		return "archive"
	}
	return "other"
}

func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		hex, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: hex, Type: classify(p)})
	}
	return m, nil
}

func hasExt(path string, exts ...string) bool {
	for _, e := range exts {
		if strings.HasSuffix(path, e) {
			return true
		}
	}
	return false
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}

// Verify rehashes every item and reports the ones that changed or vanished.
func Verify(m Manifest) ([]Mismatch, error) {
	var out []Mismatch
	for _, item := range m.Items {
		if !common.FileExists(item.Path) {
			out = append(out, Mismatch{Path: item.Path, Reason: "missing"})
			continue
		}
		hex, sz, err := common.Sha256OfFile(item.Path)
		if err != nil {
			return out, err
		}
		switch {
		case sz != item.Size:
			out = append(out, Mismatch{Path: item.Path, Reason: fmt.Sprintf("size %d, manifest says %d", sz, item.Size)})
		case hex != item.Sha256:
			out = append(out, Mismatch{Path: item.Path, Reason: "sha256 differs"})
		}
	}
	return out, nil
}
