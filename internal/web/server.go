// Package web provides the HTTP operator panel for the plant-nanny daemon.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sweeney/plant-nanny/internal/history"
	"github.com/sweeney/plant-nanny/internal/logger"
	"github.com/sweeney/plant-nanny/internal/logic"
	"github.com/sweeney/plant-nanny/internal/status"
)

// historyLimit is how many cycles the panel and /history.json show.
const historyLimit = 20

// SelectionEditor changes the operator selection.
type SelectionEditor interface {
	Selection() logic.Selection
	Set(sel logic.Selection) error
	NextDelay() logic.Selection
	NextMoisture() logic.Selection
}

// Aborter cancels an in-flight watering cycle.
type Aborter interface {
	Abort() bool
}

// HistorySource lists recent watering cycles, newest first.
type HistorySource interface {
	Recent(limit int) ([]history.Entry, error)
}

// Controls are the panel's optional write and history hooks. A nil field
// disables the matching endpoint.
type Controls struct {
	Selection SelectionEditor
	Aborter   Aborter
	History   HistorySource
}

// Server serves the operator panel over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	controls   Controls
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, controls Controls) *Server {
	s := &Server{tracker: tracker, controls: controls}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/history.json", s.handleHistory)
	mux.HandleFunc("/selection", s.handleSelection)
	mux.HandleFunc("/abort", s.handleAbort)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.recent(), s.controls)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.controls.History == nil {
		http.NotFound(w, r)
		return
	}
	entries, err := s.controls.History.Recent(historyLimit)
	if err != nil {
		logger.Error("read history", "err", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	data, _ := json.MarshalIndent(entries, "", "  ")
	w.Write(data)
}

// handleSelection accepts either explicit indices (delay, water) or a
// single step (action=next-delay or action=next-water).
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controls.Selection == nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var sel logic.Selection
	switch r.Form.Get("action") {
	case "next-delay":
		sel = s.controls.Selection.NextDelay()
	case "next-water":
		sel = s.controls.Selection.NextMoisture()
	case "":
		sel = s.controls.Selection.Selection()
		var err error
		if sel.DelayIndex, err = formIndex(r, "delay", sel.DelayIndex); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if sel.MoistureIndex, err = formIndex(r, "water", sel.MoistureIndex); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.controls.Selection.Set(sel); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	logger.Info("selection changed", "source", "http",
		"delay", sel.Delay().String(), "target", sel.Target().String())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controls.Aborter == nil {
		http.NotFound(w, r)
		return
	}
	if !s.controls.Aborter.Abort() {
		http.Error(w, "no watering cycle in progress", http.StatusConflict)
		return
	}
	logger.Warn("watering cycle aborted", "source", "http")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) recent() []history.Entry {
	if s.controls.History == nil {
		return nil
	}
	entries, err := s.controls.History.Recent(historyLimit)
	if err != nil {
		logger.Warn("read history for panel", "err", err)
		return nil
	}
	return entries
}

// formIndex returns the integer form value for key, or def when absent.
func formIndex(r *http.Request, key string, def int) (int, error) {
	raw := r.Form.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return n, nil
}
