package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/l2munger/internal/ledger"
	"example.com/l2munger/internal/polling"
)

func newTestServer(t *testing.T, clockStart time.Time, l *ledger.Ledger) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	siteDir := filepath.Join(root, "KTLX")
	require.NoError(t, os.MkdirAll(siteDir, 0o755))
	for i, name := range []string{"KTLX20240601_120000.gz", "KTLX20240601_120500.gz", "KTLX20240601_121000.gz"} {
		require.NoError(t, os.WriteFile(filepath.Join(siteDir, name), make([]byte, 100*(i+1)), 0o644))
	}
	srv, err := NewServer(Options{
		PollingDir:   root,
		Clock:        polling.NewClock(clockStart, 1),
		InitialFiles: 1,
		Ledger:       l,
	})
	require.NoError(t, err)
	router, err := NewRouter(srv)
	require.NoError(t, err)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, root
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestDirListFollowsClock(t *testing.T) {
	ts, _ := newTestServer(t, time.Date(2024, 6, 1, 12, 7, 0, 0, time.UTC), nil)

	resp, body := get(t, ts.URL+"/KTLX/dir.list")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "100 KTLX20240601_120000.gz\n200 KTLX20240601_120500.gz\n", body)

	resp, _ = get(t, ts.URL+"/ktlx/dir.list")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/KABX/dir.list")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDirListBeforeEventShowsInitialFiles(t *testing.T) {
	ts, _ := newTestServer(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), nil)
	_, body := get(t, ts.URL+"/KTLX/dir.list")
	require.Equal(t, "100 KTLX20240601_120000.gz\n", body)
}

func TestVolumeServedOnlyWhenPublished(t *testing.T) {
	ts, _ := newTestServer(t, time.Date(2024, 6, 1, 12, 7, 0, 0, time.UTC), nil)

	resp, body := get(t, ts.URL+"/KTLX/KTLX20240601_120500.gz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body, 200)

	resp, _ = get(t, ts.URL+"/KTLX/KTLX20240601_121000.gz")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/KTLX/..%2Fsecret")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndSites(t *testing.T) {
	ts, _ := newTestServer(t, time.Date(2024, 6, 1, 12, 7, 0, 0, time.UTC), nil)

	resp, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `"status": "ok"`)

	resp, body = get(t, ts.URL+"/api/sites")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc struct {
		Sites []siteInfo `json:"sites"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	require.Len(t, doc.Sites, 1)
	require.Equal(t, "KTLX", doc.Sites[0].Site)
	require.Equal(t, 3, doc.Sites[0].Volumes)
	require.Equal(t, 2, doc.Sites[0].Published)
}

func TestRunsEndpoint(t *testing.T) {
	l, err := ledger.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer l.Close()
	first := &ledger.Run{Command: "munge", Site: "KTLX", Packets: 10}
	require.NoError(t, l.Record(first))
	require.NoError(t, l.Record(&ledger.Run{Command: "batch", Site: "KTLX", Packets: 20}))

	ts, _ := newTestServer(t, time.Now(), l)

	resp, body := get(t, ts.URL+"/api/runs?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	var lines int
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var run ledger.Run
		require.NoError(t, json.Unmarshal(sc.Bytes(), &run))
		lines++
	}
	require.Equal(t, 2, lines)

	resp, body = get(t, ts.URL+"/api/runs/"+first.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, first.ID)

	resp, _ = get(t, ts.URL+"/api/runs?limit=abc")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunsWithoutLedger(t *testing.T) {
	ts, _ := newTestServer(t, time.Now(), nil)
	resp, _ := get(t, ts.URL+"/api/runs")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
