package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndGet(t *testing.T) {
	l := openTemp(t)
	run := &Run{
		Command: "munge",
		Source:  "KGRR20130507_214500_V06",
		Output:  "KTLX20240601_125151",
		Site:    "KTLX",
		Target:  time.Date(2024, 6, 1, 12, 51, 51, 0, time.UTC),
		Speed:   2,
		Packets: 7200,
		ByType:  map[uint8]int64{31: 7200},
	}
	require.NoError(t, l.Record(run))
	require.NotEmpty(t, run.ID)
	require.Equal(t, StatusOK, run.Status)

	got, err := l.Get(run.ID)
	require.NoError(t, err)
	require.Equal(t, run.Output, got.Output)
	require.Equal(t, int64(7200), got.ByType[31])
	require.True(t, got.Target.Equal(run.Target))
}

func TestGetMissing(t *testing.T) {
	l := openTemp(t)
	_, err := l.Get(ksuid.New().String())
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = l.Get("not-a-ksuid")
	require.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	l := openTemp(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := ksuid.NewRandomWithTime(base.Add(time.Duration(i) * time.Minute))
		require.NoError(t, err)
		run := &Run{ID: id.String(), Command: "munge", Packets: int64(i)}
		require.NoError(t, l.Record(run))
		ids = append(ids, run.ID)
	}

	runs, err := l.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, ids[2], runs[0].ID)
	require.Equal(t, ids[0], runs[2].ID)

	runs, err = l.List(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, int64(2), runs[0].Packets)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	l, err := Open(path)
	require.NoError(t, err)
	run := &Run{Command: "batch", Status: StatusFailed, Error: "truncated packet"}
	require.NoError(t, l.Record(run))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	got, err := l.Get(run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, "truncated packet", got.Error)
}
