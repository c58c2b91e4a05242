package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/rainbowrelax/relax-cli/internal/exercise"
	"github.com/rainbowrelax/relax-cli/internal/models"
	"github.com/rainbowrelax/relax-cli/internal/session"
)

// ExerciseSummary is one entry of the exercise listing
type ExerciseSummary struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
	CycleDurationSeconds float64  `json:"cycle_duration_seconds"`
	Phases               []string `json:"phases"`
}

// ExerciseResponse is the resolved definition for a requested id
type ExerciseResponse struct {
	Requested string               `json:"requested"`
	Fallback  bool                 `json:"fallback"`
	Exercise  *exercise.Definition `json:"exercise"`
}

// StartRequest is the body of POST /v1/session
type StartRequest struct {
	Exercise string `json:"exercise"`
	Minutes  int    `json:"minutes"`
}

// ChangeRequest is the body of PATCH /v1/session. Empty fields are left as
// they are.
type ChangeRequest struct {
	Exercise string `json:"exercise,omitempty"`
	Minutes  int    `json:"minutes,omitempty"`
}

// SessionResponse describes the hosted session
type SessionResponse struct {
	RunID    string       `json:"run_id"`
	Exercise string       `json:"exercise"`
	Minutes  int          `json:"minutes"`
	Fallback bool         `json:"fallback,omitempty"`
	Replayed bool         `json:"replayed,omitempty"`
	Frame    models.Frame `json:"frame"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":   "relax",
		"version":   s.config.Version,
		"exercises": "/v1/exercises",
		"session":   "/v1/session",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	ids := s.exercises.List()
	list := make([]ExerciseSummary, 0, len(ids))
	for _, id := range ids {
		def, err := s.exercises.Get(id)
		if err != nil {
			continue
		}
		list = append(list, summarize(def))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	def, fallback, err := s.exercises.Resolve(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ExerciseResponse{Requested: id, Fallback: fallback, Exercise: def})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := readBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Minutes < 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}
	if req.Minutes == 0 {
		req.Minutes = s.config.DefaultMinutes
	}
	if req.Exercise == "" {
		req.Exercise = exercise.DefaultID
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if runID, ok := s.idempotent.Lookup(key); ok {
			if sess := s.controller.Current(); sess != nil && sess.RunID() == runID {
				writeJSON(w, http.StatusOK, sessionResponse(sess, false, true))
				return
			}
		}
	}

	def, fallback, err := s.exercises.Resolve(req.Exercise)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess, err := s.controller.Start(def, req.Minutes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if key != "" {
		s.idempotent.Mark(key, sess.RunID())
	}

	writeJSON(w, http.StatusCreated, sessionResponse(sess, fallback, false))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.controller.Current()
	if sess == nil {
		writeError(w, http.StatusNotFound, session.ErrNoSession.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess, false, false))
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	if err := s.controller.Do(action); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := s.controller.Current()
	if sess == nil {
		writeError(w, http.StatusNotFound, session.ErrNoSession.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess, false, false))
}

func (s *Server) handleChangeSession(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	if err := readBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Minutes < 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}
	if s.controller.Current() == nil {
		writeError(w, http.StatusNotFound, session.ErrNoSession.Error())
		return
	}

	var def *exercise.Definition
	fallback := false
	if req.Exercise != "" {
		var err error
		def, fallback, err = s.exercises.Resolve(req.Exercise)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	sess, err := s.controller.Change(def, req.Minutes)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess, fallback, false))
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	report, err := s.controller.Stop()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func summarize(def *exercise.Definition) ExerciseSummary {
	phases := make([]string, 0, len(def.Phases))
	for _, p := range def.Phases {
		phases = append(phases, p.Name)
	}
	return ExerciseSummary{
		ID:                   def.ID,
		Name:                 def.Name,
		Description:          def.Description,
		Aliases:              def.Aliases,
		CycleDurationSeconds: def.CycleDurationSeconds,
		Phases:               phases,
	}
}

func sessionResponse(sess *session.Session, fallback, replayed bool) SessionResponse {
	frame := sess.Tick()
	return SessionResponse{
		RunID:    frame.Session.RunID,
		Exercise: frame.Session.Exercise,
		Minutes:  frame.Session.Minutes,
		Fallback: fallback,
		Replayed: replayed,
		Frame:    frame,
	}
}

// readBody decodes a JSON body into v; an empty body leaves v untouched
func readBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
