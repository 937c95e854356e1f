package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"example.com/l2munger/internal/common"
	"example.com/l2munger/internal/ledger"
	"example.com/l2munger/internal/polling"
)

// Server publishes a polling directory laid out as <root>/<SITE>/<volume>.
// Each site's dir.list is computed per request from the playback clock, so
// volumes appear as their displaced time arrives.
type Server struct {
	root         string
	clock        *polling.Clock
	initialFiles int
	ledger       *ledger.Ledger
	started      time.Time
}

// Options configures server creation.
type Options struct {
	PollingDir string
	Clock      *polling.Clock
	// InitialFiles volumes are listed while the clock is still before the
	// first volume of a site, so clients have data to load.
	InitialFiles int
	Ledger       *ledger.Ledger
}

func NewServer(opts Options) (*Server, error) {
	if strings.TrimSpace(opts.PollingDir) == "" {
		return nil, errors.New("polling directory is empty")
	}
	if err := os.MkdirAll(opts.PollingDir, 0o755); err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = &polling.Clock{}
	}
	return &Server{
		root:         opts.PollingDir,
		clock:        clock,
		initialFiles: opts.InitialFiles,
		ledger:       opts.Ledger,
		started:      time.Now().UTC(),
	}, nil
}

// Close is a no-op; the ledger belongs to the caller.
func (s *Server) Close() error { return nil }

type siteInfo struct {
	Site      string    `json:"site"`
	Volumes   int       `json:"volumes"`
	Published int       `json:"published"`
	First     time.Time `json:"first,omitempty"`
	Last      time.Time `json:"last,omitempty"`
}

func (s *Server) siteDir(site string) string {
	return filepath.Join(s.root, strings.ToUpper(site))
}

// published returns the entries a client may see right now.
func (s *Server) published(site string) ([]polling.Entry, error) {
	entries, err := polling.Scan(s.siteDir(site))
	if err != nil {
		return nil, err
	}
	visible := polling.Before(entries, s.clock.Now())
	if len(visible) == 0 && s.initialFiles > 0 {
		visible = polling.First(entries, s.initialFiles)
	}
	return visible, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clock":   s.clock.Now().Format(time.RFC3339),
		"speed":   s.clock.Speed(),
		"started": s.started.Format(time.RFC3339),
	})
}

func (s *Server) handleDirList(w http.ResponseWriter, r *http.Request) {
	site := mux.Vars(r)["site"]
	entries, err := s.published(site)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, fmt.Sprintf("site %s not found", site), http.StatusNotFound)
			return
		}
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	var buf bytes.Buffer
	if err := polling.Format(&buf, entries); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleVolume serves a volume only once it is listed in dir.list.
func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	site, name := vars["site"], vars["name"]
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	entries, err := s.published(site)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	for _, e := range entries {
		if e.Name == name {
			w.Header().Set("Content-Type", "application/octet-stream")
			http.ServeFile(w, r, filepath.Join(s.siteDir(site), name))
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	des, err := os.ReadDir(s.root)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	now := s.clock.Now()
	sites := make([]siteInfo, 0, len(des))
	for _, de := range des {
		if !de.IsDir() || len(de.Name()) != 4 {
			continue
		}
		entries, err := polling.Scan(filepath.Join(s.root, de.Name()))
		if err != nil {
			common.Warnf("scan site %s: %v", de.Name(), err)
			continue
		}
		info := siteInfo{Site: de.Name(), Volumes: len(entries), Published: len(polling.Before(entries, now))}
		if len(entries) > 0 {
			info.First = entries[0].Volume
			info.Last = entries[len(entries)-1].Volume
		}
		sites = append(sites, info)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Site < sites[j].Site })
	writeJSON(w, http.StatusOK, map[string]any{"clock": now.Format(time.RFC3339), "sites": sites})
}

// handleRuns streams ledger records as NDJSON, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "run ledger not configured", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.ledger.List(limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	nd := NewNDJSONWriter(w)
	for _, run := range runs {
		if err := nd.WriteObject(run); err != nil {
			common.Warnf("stream runs: %v", err)
			return
		}
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "run ledger not configured", http.StatusNotFound)
		return
	}
	run, err := s.ledger.Get(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		httpError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		common.Warnf("write response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	common.Errorf("http %d: %v", status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
