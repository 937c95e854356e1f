// Package polling maintains the dir.list index that radar display clients
// poll to discover new volumes.
package polling

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"example.com/l2munger/internal/archive2"
)

const (
	DirListName = "dir.list"
	// DefaultInitialFiles is how many volumes an initialised list exposes.
	DefaultInitialFiles = 3
)

// Entry is one volume in a polling directory.
type Entry struct {
	Name   string    `json:"name"`
	Size   int64     `json:"size"`
	Site   string    `json:"site"`
	Volume time.Time `json:"volume"`
}

// Scan lists the gzip volumes in dir, ordered by name. Names that do not
// carry a site and time are ignored.
func Scan(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".gz") {
			continue
		}
		site, t, err := archive2.ParseFileName(name)
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: name, Size: info.Size(), Site: site, Volume: t})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Before keeps the entries whose volume time is strictly before now.
func Before(entries []Entry, now time.Time) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Volume.Before(now) {
			out = append(out, e)
		}
	}
	return out
}

// First keeps at most n entries.
func First(entries []Entry, n int) []Entry {
	if n < 0 {
		n = 0
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Format writes entries in dir.list form, one "<size> <name>" per line.
func Format(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%d %s\n", e.Size, e.Name); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Write replaces dir/dir.list with entries. The file is renamed into place
// so pollers never see a partial list.
func Write(dir string, entries []Entry) error {
	var buf bytes.Buffer
	if err := Format(&buf, entries); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dir.list-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, DirListName))
}

// Update rewrites dir.list with every volume older than now.
func Update(dir string, now time.Time) ([]Entry, error) {
	entries, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	entries = Before(entries, now)
	return entries, Write(dir, entries)
}

// Initialize rewrites dir.list with the first n volumes so clients have
// something to load before the playback clock reaches the event.
func Initialize(dir string, n int) ([]Entry, error) {
	entries, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	entries = First(entries, n)
	return entries, Write(dir, entries)
}
