package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "l2munger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadResolvesPathsAndDefaults(t *testing.T) {
	path := writeConfig(t, `
site: KTLX
speed: 2
outputDir: out
pollingDir: /srv/polling
ledger: state/runs.db
gzip: true
report:
  json: true
logs:
  directory: logs
  level: debug
server:
  port: 9090
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	require.Equal(t, "KTLX", cfg.Site)
	require.Equal(t, 2, cfg.Speed)
	require.Equal(t, filepath.Join(base, "out"), cfg.OutputDir)
	require.Equal(t, "/srv/polling", cfg.PollingDir)
	require.Equal(t, filepath.Join(base, "state", "runs.db"), cfg.Ledger)
	require.Equal(t, filepath.Join(base, "logs"), cfg.Logs.Directory)
	require.True(t, cfg.Gzip)
	require.True(t, cfg.Report.JSON)
	require.False(t, cfg.Report.PDF)
	require.Equal(t, "l2munger.log", cfg.Logs.Filename)
	require.Equal(t, 25, cfg.Logs.MaxSizeMB)
	require.Equal(t, 3, cfg.Server.InitialFiles)
	require.Equal(t, ":9090", cfg.ListenAddr())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"site":          "site: KTLXX\n",
		"log level":     "logs:\n  level: loud\n",
		"unknown field": "sight: KTLX\n",
		"port":          "server:\n  port: 70000\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Speed)
	require.Equal(t, ".", cfg.OutputDir)
	require.Equal(t, ":8080", cfg.ListenAddr())

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestServerClock(t *testing.T) {
	s := ServerConfig{PlaybackStart: "2024-06-01 12:00:00 UTC", PlaybackSpeed: 1}
	clock, err := s.Clock()
	require.NoError(t, err)
	now := clock.Now()
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.False(t, now.Before(start))
	require.True(t, now.Before(start.Add(time.Minute)))

	_, err = ServerConfig{PlaybackStart: "June 1st"}.Clock()
	require.Error(t, err)
}
