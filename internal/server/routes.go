package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gtotrainer/internal/game"
	"gtotrainer/internal/session"
)

type createSessionRequest struct {
	TreeFile string `json:"tree_file"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type newHandRequest struct {
	HeroSeat    string `json:"hero_seat"`
	VillainSeat string `json:"villain_seat"`
}

type actionRequest struct {
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

type opponentActionResponse struct {
	ActionTaken *session.TakenAction `json:"action_taken"`
	State       *session.State       `json:"state"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/hands", s.handleNewHand)
			r.Get("/state", s.handleState)
			r.Post("/actions", s.handleAction)
			r.Post("/opponent-action", s.handleOpponentAction)
			r.Delete("/", s.handleCloseSession)
			r.Get("/watch", s.handleWatch)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.sessions.Create(req.TreeFile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID()})
}

func (s *Server) handleNewHand(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req newHandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hero, err := game.ParseSeat(req.HeroSeat)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("hero_seat: %v", err))
		return
	}
	villain, err := game.ParseSeat(req.VillainSeat)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("villain_seat: %v", err))
		return
	}

	st, err := sess.NewHand(hero, villain)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.hub.Broadcast(sess.ID(), st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st := sess.State()
	if st == nil {
		writeError(w, http.StatusNotFound, session.ErrNoHand.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := game.ParseActionKind(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := sess.SubmitAction(kind, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.hub.Broadcast(sess.ID(), st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleOpponentAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	taken, st, err := sess.OpponentAction()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if taken != nil {
		s.hub.Broadcast(sess.ID(), st)
	}
	writeJSON(w, http.StatusOK, opponentActionResponse{ActionTaken: taken, State: st})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Close(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.CloseSession(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.hub.ServeWS(w, r, sess.ID())
	// Seed the stream so a new watcher sees the table immediately
	// instead of waiting for the next action.
	s.hub.Broadcast(sess.ID(), sess.State())
}

// lookup resolves the session named in the URL, answering 404 itself
// when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s", session.ErrNotFound, id))
		return nil, false
	}
	return sess, true
}

// decodeBody parses an optional JSON body; an empty body decodes to
// the zero request.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid request body: %v", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
