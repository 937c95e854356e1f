package main

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/l2munger/internal/archive2"
)

// 2013-05-07 21:45:00 UTC
const (
	srcDay    = 15833
	srcMillis = 78_300_000
)

func testArchive(site string) []byte {
	var buf bytes.Buffer
	vh := make([]byte, archive2.VolumeHeaderSize)
	copy(vh[0:12], "AR2V0006.001")
	binary.BigEndian.PutUint32(vh[12:16], srcDay)
	binary.BigEndian.PutUint32(vh[16:20], srcMillis)
	copy(vh[20:24], site)
	buf.Write(vh)

	for i, size := range []int{120, 200} {
		millis := uint32(srcMillis + (i+1)*10_000)
		hdr := make([]byte, archive2.PacketHeaderSize)
		binary.BigEndian.PutUint16(hdr[12:14], uint16((size+archive2.PacketHeaderSize-archive2.LegacyCTMHeaderLength)/2))
		hdr[15] = archive2.MessageTypeGenericData
		binary.BigEndian.PutUint16(hdr[18:20], srcDay)
		binary.BigEndian.PutUint32(hdr[20:24], millis)
		payload := make([]byte, size)
		for j := range payload {
			payload[j] = byte(j)
		}
		copy(payload[0:4], site)
		binary.BigEndian.PutUint32(payload[4:8], millis)
		binary.BigEndian.PutUint16(payload[8:10], srcDay)
		buf.Write(hdr)
		buf.Write(payload)
	}
	return buf.Bytes()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "l2munger.yaml")
	body := "outputDir: out\nledger: runs.db\naudit: true\nlogs:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0o755))
	return path
}

func TestMungeUndoHistory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	src := filepath.Join(dir, "KGRR20130507_214500")
	original := testArchive("KGRR")
	require.NoError(t, os.WriteFile(src, original, 0o644))

	out, err := execute(t, "--config", cfgPath, "KTLX", "2024/06/01", "12:51:51", "2", src)
	require.NoError(t, err)
	require.Contains(t, out, "KTLX20240601_125151")
	require.Contains(t, out, "2 packets")

	munged := filepath.Join(dir, "out", "KTLX20240601_125151")
	data, err := os.ReadFile(munged)
	require.NoError(t, err)
	require.Len(t, data, len(original))
	require.Equal(t, "KTLX", string(data[20:24]))

	_, err = execute(t, "--config", cfgPath, "KTLX", "2024/06/01", "12:51:51", "2", src)
	require.Error(t, err, "existing output must not be overwritten")

	restored := filepath.Join(dir, "restored")
	out, err = execute(t, "--config", cfgPath, "undo", munged, munged+".audit.jsonl", restored)
	require.NoError(t, err)
	require.Contains(t, out, "fields restored")
	back, err := os.ReadFile(restored)
	require.NoError(t, err)
	require.Equal(t, original, back)

	out, err = execute(t, "--config", cfgPath, "history")
	require.NoError(t, err)
	require.Contains(t, out, "STATUS")
	var ok, failed int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		switch {
		case strings.HasSuffix(line, " ok"):
			ok++
		case strings.HasSuffix(line, " failed"):
			failed++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, failed)
}

func TestMungeRejectsBadArguments(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in")
	require.NoError(t, os.WriteFile(src, testArchive("KGRR"), 0o644))

	for _, args := range [][]string{
		{"KTL", "2024/06/01", "12:51:51", "1", src},
		{"KTLX", "2024-06-01", "12:51:51", "1", src},
		{"KTLX", "2024/06/01", "12:51:51", "0", src},
		{"KTLX", "2024/06/01", "12:51:51", "fast", src},
		{"KTLX", "2024/06/01", "12:51:51"},
	} {
		_, err := execute(t, append([]string{"--out-dir", dir}, args...)...)
		require.Error(t, err, "args %v", args)
	}
}

func TestBatchAndDirList(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	outDir := filepath.Join(dir, "poll", "KTLX")
	require.NoError(t, os.MkdirAll(in, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "KGRR20130507_214500"), testArchive("KGRR"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "KGRR20130507_215500"), testArchive("KGRR"), 0o644))

	out, err := execute(t, "batch", in, "--site", "KTLX", "--start", "2024/06/01 12:00:00",
		"--speed", "2", "--gzip", "--out-dir", outDir, "--dirlist")
	require.NoError(t, err)
	require.Contains(t, out, "2 archives")

	require.FileExists(t, filepath.Join(outDir, "KTLX20240601_120000.gz"))
	require.FileExists(t, filepath.Join(outDir, "KTLX20240601_120500.gz"))
	list, err := os.ReadFile(filepath.Join(outDir, "dir.list"))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(list), "\n"))

	_, err = execute(t, "dirlist", outDir, "--at", "2024-06-01 12:03:00")
	require.NoError(t, err)
	list, err = os.ReadFile(filepath.Join(outDir, "dir.list"))
	require.NoError(t, err)
	require.Contains(t, string(list), "KTLX20240601_120000.gz")
	require.NotContains(t, string(list), "KTLX20240601_120500.gz")

	out, err = execute(t, "inspect", filepath.Join(outDir, "KTLX20240601_120500.gz"))
	require.NoError(t, err)
	require.Contains(t, out, "site KTLX volume 2024-06-01 12:05:00")
	require.Contains(t, out, "(gzip)")
}

func TestBatchDefaultsToTwoHoursAgo(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(in, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "KGRR20130507_214500"), testArchive("KGRR"), 0o644))

	before := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	_, err := execute(t, "batch", in, "--out-dir", outDir)
	require.NoError(t, err)
	after := time.Now().UTC().Add(-2 * time.Hour)

	names, err := filepath.Glob(filepath.Join(outDir, "KGRR*"))
	require.NoError(t, err)
	require.Len(t, names, 1)
	_, vol, err := archive2.ParseFileName(filepath.Base(names[0]))
	require.NoError(t, err)
	require.False(t, vol.Before(before), "volume %s before %s", vol, before)
	require.False(t, vol.After(after), "volume %s after %s", vol, after)

	// an explicit zero shift keeps the recorded times
	keep := filepath.Join(dir, "keep")
	_, err = execute(t, "batch", in, "--out-dir", keep, "--shift", "0")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(keep, "KGRR20130507_214500"))
}

func TestManifestCommand(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "KTLX20240601_120000")
	require.NoError(t, os.WriteFile(a, testArchive("KTLX"), 0o644))
	m := filepath.Join(dir, "manifest.json")

	_, err := execute(t, "manifest", "--out", m, a)
	require.NoError(t, err)
	out, err := execute(t, "manifest", "--verify", m)
	require.NoError(t, err)
	require.Contains(t, out, "1 files verified")

	require.NoError(t, os.WriteFile(a, []byte("changed"), 0o644))
	out, err = execute(t, "manifest", "--verify", m)
	require.Error(t, err)
	require.Contains(t, out, a)
}

func TestDebzRejectsPlainArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(src, testArchive("KTLX"), 0o644))
	_, err := execute(t, "debz", src, filepath.Join(dir, "out"))
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(dir, "out"))
}
