package server

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"example.com/l2munger/internal/common"
)

const sitePattern = "{site:[A-Za-z0-9]{4}}"

// NewRouter wires HTTP routes to the server's handlers. Requests are
// logged in combined log format to the process log.
func NewRouter(s *Server) (http.Handler, error) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sites", s.handleSites).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleRun).Methods(http.MethodGet)

	r.HandleFunc("/"+sitePattern+"/dir.list", s.handleDirList).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/"+sitePattern+"/{name}", s.handleVolume).Methods(http.MethodGet, http.MethodHead)

	var h http.Handler = r
	h = handlers.CORS(handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead}))(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	h = handlers.CombinedLoggingHandler(common.Writer(), h)
	return h, nil
}
