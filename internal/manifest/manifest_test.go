package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildClassifiesAndVerifies(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"KTLX20240601_125151":             "archive",
		"KTLX20240601_125151.gz":          "archive-gz",
		"KTLX20240601_125151.audit.jsonl": "audit",
		"report.json":                     "json",
		"report.pdf":                      "pdf",
		"dir.list":                        "dirlist",
		"notes.txt":                       "other",
	}
	var paths []string
	for name := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, p)
	}
	m, err := Build(paths)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, item := range m.Items {
		want := files[filepath.Base(item.Path)]
		if item.Type != want {
			t.Fatalf("%s classified as %s, want %s", item.Path, item.Type, want)
		}
		if len(item.Sha256) != 64 {
			t.Fatalf("%s has digest %q", item.Path, item.Sha256)
		}
	}

	out := filepath.Join(dir, "manifest.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	bad, err := Verify(loaded)
	if err != nil || len(bad) != 0 {
		t.Fatalf("Verify on untouched files: %v %v", bad, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "report.json"), []byte("REPORT.JSON"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	bad, err = Verify(loaded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(bad) != 2 {
		t.Fatalf("expected 2 mismatches, got %v", bad)
	}
}
