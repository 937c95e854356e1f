package munge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"example.com/l2munger/internal/common"
)

var ErrAuditMismatch = errors.New("archive does not match audit log")

// PatchEdit is an in-place overwrite of len(Data) bytes at Offset.
type PatchEdit struct {
	Offset int64
	Data   []byte
}

// ApplyPatch applies the provided edits to path. Each edit must stay within
// the bounds of the file and does not change its length.
func ApplyPatch(path string, edits []PatchEdit) error {
	if len(edits) == 0 {
		return nil
	}
	ordered := make([]PatchEdit, 0, len(edits))
	for _, e := range edits {
		if len(e.Data) == 0 {
			continue
		}
		ordered = append(ordered, PatchEdit{Offset: e.Offset, Data: append([]byte(nil), e.Data...)})
	}
	if len(ordered) == 0 {
		return nil
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Offset < ordered[j].Offset
	})

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	for _, edit := range ordered {
		if edit.Offset < 0 {
			return fmt.Errorf("negative patch offset %d", edit.Offset)
		}
		end := edit.Offset + int64(len(edit.Data))
		if end > size {
			return fmt.Errorf("patch at %d with length %d exceeds file size %d", edit.Offset, len(edit.Data), size)
		}
		if _, err := f.WriteAt(edit.Data, edit.Offset); err != nil {
			return err
		}
	}
	return f.Sync()
}

// RestoreEdits turns audit entries back into edits that put the source
// bytes back.
func RestoreEdits(entries []common.PatchEntry) ([]PatchEdit, error) {
	edits := make([]PatchEdit, 0, len(entries))
	for _, entry := range entries {
		before, err := entry.BeforeBytes()
		if err != nil {
			return nil, fmt.Errorf("%s packet %d: %w", entry.Field, entry.Packet, err)
		}
		edits = append(edits, PatchEdit{Offset: entry.Offset, Data: before})
	}
	return edits, nil
}

// VerifyAudit checks that every range recorded in entries still holds the
// bytes the run wrote.
func VerifyAudit(r io.ReaderAt, entries []common.PatchEntry) error {
	for _, entry := range entries {
		after, err := entry.AfterBytes()
		if err != nil {
			return fmt.Errorf("%s packet %d: %w", entry.Field, entry.Packet, err)
		}
		got := make([]byte, len(after))
		if _, err := r.ReadAt(got, entry.Offset); err != nil {
			return fmt.Errorf("%w: %s packet %d at offset %d: %v", ErrAuditMismatch, entry.Field, entry.Packet, entry.Offset, err)
		}
		if !bytes.Equal(got, after) {
			return fmt.Errorf("%w: %s packet %d at offset %d holds %x, audit wrote %x",
				ErrAuditMismatch, entry.Field, entry.Packet, entry.Offset, got, after)
		}
	}
	return nil
}

// Undo writes to outPath the archive that produced mungedPath, using the
// audit log recorded by that run. A gzip output is expanded first.
func Undo(mungedPath, auditPath, outPath string) (int, error) {
	entries, err := common.ReadPatchLog(auditPath)
	if err != nil {
		return 0, err
	}
	edits, err := RestoreEdits(entries)
	if err != nil {
		return 0, err
	}
	src, err := OpenSource(mungedPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrOutputExists, outPath)
		}
		return 0, err
	}
	_, err = io.Copy(out, src)
	if err == nil {
		err = VerifyAudit(out, entries)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outPath)
		return 0, err
	}
	if err := ApplyPatch(outPath, edits); err != nil {
		return 0, err
	}
	common.Logf("restored %d ranges from %s into %s", len(edits), auditPath, outPath)
	return len(edits), nil
}
