// Package api exposes the control surface of a monitoring run over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"turbidity-monitor/internal/acquisition"
	"turbidity-monitor/internal/errs"
	"turbidity-monitor/internal/monitor"
	"turbidity-monitor/internal/region"
	"turbidity-monitor/internal/series"
	"turbidity-monitor/internal/store"
	"turbidity-monitor/internal/version"
)

// maxBodySize caps request bodies; region definitions are small.
const maxBodySize = 1 << 20

// Controller starts and stops acquisition. *acquisition.Loop implements it.
type Controller interface {
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Phase() acquisition.Phase
	Err() error
}

// RunLog reads the samples and state changes recorded for a run.
// *store.DB implements it.
type RunLog interface {
	Samples(runID string) ([]series.Sample, error)
	Transitions(runID string) ([]store.Transition, error)
}

// Server serves one run.
type Server struct {
	mon    *monitor.Monitor
	ctl    Controller
	runLog RunLog
	runID  string
	log    *slog.Logger
}

// NewServer builds a server. runLog may be nil.
func NewServer(mon *monitor.Monitor, ctl Controller, runLog RunLog, runID string) *Server {
	return &Server{
		mon:    mon,
		ctl:    ctl,
		runLog: runLog,
		runID:  runID,
		log:    slog.Default().With("component", "api"),
	}
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/state", s.handleState).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/series", s.handleSeries).Methods("GET")
	r.HandleFunc("/series.csv", s.handleSeriesCSV).Methods("GET")
	r.HandleFunc("/regions", s.handleRegions).Methods("GET")
	r.HandleFunc("/transitions", s.handleTransitions).Methods("GET")

	r.HandleFunc("/start", s.handleStart).Methods("POST")
	r.HandleFunc("/pause", s.control(s.ctl.Pause)).Methods("POST")
	r.HandleFunc("/resume", s.control(s.ctl.Resume)).Methods("POST")
	r.HandleFunc("/stop", s.control(s.ctl.Stop)).Methods("POST")

	r.Path("/metrics").Handler(promhttp.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version.String(),
	})
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	State     monitor.State     `json:"state"`
	LastState monitor.State     `json:"last_state"`
	Changed   bool              `json:"changed"`
	Samples   int               `json:"samples"`
	Phase     acquisition.Phase `json:"phase"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.mon.Status()
	resp := StateResponse{
		State:     st.State,
		LastState: st.LastState,
		Changed:   st.Changed,
		Samples:   st.Samples,
		Phase:     s.ctl.Phase(),
	}
	if err := s.ctl.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Status())
}

// handleSeries returns the in-memory series, or with ?source=db the samples
// recorded in the run log.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("source") {
	case "", "memory":
		writeJSON(w, http.StatusOK, s.mon.Samples())
	case "db":
		if s.runLog == nil {
			http.Error(w, "run log disabled", http.StatusNotFound)
			return
		}
		samples, err := s.runLog.Samples(s.runID)
		if err != nil {
			s.log.Error("could not list samples", "error", err)
			http.Error(w, "could not list samples", http.StatusInternalServerError)
			return
		}
		if samples == nil {
			samples = []series.Sample{}
		}
		writeJSON(w, http.StatusOK, samples)
	default:
		http.Error(w, "unknown series source", http.StatusBadRequest)
	}
}

func (s *Server) handleSeriesCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="turbidity_data.csv"`)
	if err := s.mon.WriteCSV(w); err != nil {
		s.log.Warn("csv export failed", "error", err)
	}
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Regions())
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	if s.runLog == nil {
		http.Error(w, "run log disabled", http.StatusNotFound)
		return
	}
	var want monitor.State
	if to := r.URL.Query().Get("to"); to != "" {
		st, err := monitor.ParseState(to)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		want = st
	}
	all, err := s.runLog.Transitions(s.runID)
	if err != nil {
		s.log.Error("could not list transitions", "error", err)
		http.Error(w, "could not list transitions", http.StatusInternalServerError)
		return
	}
	out := make([]store.Transition, 0, len(all))
	for _, t := range all {
		if want == "" || t.To == string(want) {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStart starts acquisition. An optional body of the form
// {"rois": {...}} installs regions first.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if phase := s.ctl.Phase(); phase != acquisition.Idle {
		http.Error(w, "cannot start while "+string(phase), http.StatusConflict)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}
	if len(body) > 0 {
		regions := region.NewStore()
		if err := json.Unmarshal(body, regions); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, name := range regions.Names() {
			reg, _ := regions.Get(name)
			if err := s.mon.SetRegion(reg); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		s.log.Info("regions installed", "count", regions.Len())
	}
	s.control(s.ctl.Start)(w, r)
}

func (s *Server) control(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, acquisition.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrConfiguration):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
