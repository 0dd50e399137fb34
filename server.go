package triptracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ibi-group/otp-middleware-sub001/journey"
)

// Server exposes the tracking operations over HTTP.
type Server struct {
	tracker *Tracker
	httpSrv *http.Server
}

// NewServer builds the HTTP server over the tracker. metricsHandler may be
// nil to leave /metrics unregistered.
func NewServer(cfg ServerConfig, tracker *Tracker, metricsHandler http.Handler) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/tracking/start", s.handleStart)
	mux.HandleFunc("/api/tracking/update", s.handleUpdate)
	mux.HandleFunc("/api/tracking/track", s.handleTrack)
	mux.HandleFunc("/api/tracking/end", s.handleEnd)
	mux.HandleFunc("/api/tracking/forciblyend", s.handleForceEnd)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("server listening on %s", s.httpSrv.Addr)
}

// HandleGracefulShutdown blocks until SIGINT or SIGTERM, then drains the
// server.
func (s *Server) HandleGracefulShutdown() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Printf("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	} else {
		log.Printf("server shut down successfully")
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	journeyID, err := s.tracker.Start(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"journeyId": journeyID})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	result, err := s.tracker.Update(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TripID   string                  `json:"tripId"`
		Profile  journey.MobilityProfile `json:"profile"`
		Location journey.TrackedLocation `json:"location"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	result, err := s.tracker.Track(r.Context(), req.TripID, req.Profile, req.Location)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JourneyID string `json:"journeyId"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := s.tracker.End(r.Context(), req.JourneyID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (s *Server) handleForceEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TripID string `json:"tripId"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := s.tracker.ForceEnd(r.Context(), req.TripID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, journey.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, journey.ErrEnded), errors.Is(err, ErrAlreadyTracking):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
