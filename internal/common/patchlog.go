package common

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PatchEntry captures one rewritten byte range of the output archive.
// Offsets are absolute file offsets; since munging never resizes a record
// they are valid in both the source and the output.
type PatchEntry struct {
	RunID     string    `json:"runId,omitempty"`
	Field     string    `json:"field"`
	Packet    int64     `json:"packet"`
	Offset    int64     `json:"offset"`
	BeforeHex string    `json:"beforeHex"`
	AfterHex  string    `json:"afterHex"`
	Note      string    `json:"note,omitempty"`
	Ts        time.Time `json:"ts"`
}

// BeforeBytes decodes the bytes present in the source archive.
func (p PatchEntry) BeforeBytes() ([]byte, error) {
	if strings.TrimSpace(p.BeforeHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(p.BeforeHex)
}

// AfterBytes decodes the bytes written to the output archive.
func (p PatchEntry) AfterBytes() ([]byte, error) {
	if strings.TrimSpace(p.AfterHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(p.AfterHex)
}

// PatchLog is an append-only JSONL audit log. A munge run appends several
// entries per packet, so the file is opened once and buffered; Close
// flushes and syncs it.
type PatchLog struct {
	path  string
	runID string
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
}

// NewPatchLog creates (truncating) the log at path.
func NewPatchLog(path, runID string) (*PatchLog, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &PatchLog{path: path, runID: runID, f: f, w: bufio.NewWriter(f)}, nil
}

// Path returns the backing file path for the log.
func (p *PatchLog) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}

// Record appends an entry built from the before and after bytes of a range.
func (p *PatchLog) Record(field string, packet, offset int64, before, after []byte) error {
	return p.Append(PatchEntry{
		Field:     field,
		Packet:    packet,
		Offset:    offset,
		BeforeHex: hex.EncodeToString(before),
		AfterHex:  hex.EncodeToString(after),
	})
}

func (p *PatchLog) Append(entry PatchEntry) error {
	if p == nil {
		return errors.New("nil patch log")
	}
	if entry.Field == "" {
		return errors.New("patch entry missing field")
	}
	if entry.RunID == "" {
		entry.RunID = p.runID
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return errors.New("patch log closed")
	}
	if _, err := p.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (p *PatchLog) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return nil
	}
	err := p.w.Flush()
	if syncErr := p.f.Sync(); err == nil {
		err = syncErr
	}
	if closeErr := p.f.Close(); err == nil {
		err = closeErr
	}
	p.w = nil
	p.f = nil
	return err
}

// ReadPatchLog loads every entry from the supplied JSONL file.
func ReadPatchLog(path string) ([]PatchEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []PatchEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry PatchEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode patch entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
