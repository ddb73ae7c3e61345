package server

import (
	"net/http"
	"strconv"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/templatediff"
	"github.com/google/uuid"
)

// mutation is the response of every session command: what the command
// reported plus the resulting state.
type mutation struct {
	Result any          `json:"result"`
	State  session.View `json:"state"`
}

// mutate runs fn under the session lock and answers with its result and
// the new state.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(n *session.Navigator) any) {
	var result any
	err := s.sessions.With(r.Context(), func(n *session.Navigator) error {
		result = fn(n)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, r, result)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, result any) {
	v, err := s.sessions.View(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutation{Result: result, State: v})
}

type startRequest struct {
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	var (
		v   session.View
		err error
	)
	if req.TemplateID != nil {
		v, err = s.sessions.Start(r.Context(), *req.TemplateID)
	} else {
		v, err = s.sessions.StartFreestyle(r.Context(), req.Name)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	v, err := s.sessions.View(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Cancel(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePendingChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := s.sessions.PendingChanges(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if changes == nil {
		changes = []templatediff.Change{}
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	var req session.FinishRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	res, err := s.sessions.Finish(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Navigation

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	step, err := s.sessions.Advance(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(n *session.Navigator) any { return n.GoToPreviousExercise() })
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any { return n.MoveToExercise(req.Index) })
}

func (s *Server) handleSkipExercise(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(n *session.Navigator) any { return n.SkipExercise() })
}

func (s *Server) handleSkipModule(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(n *session.Navigator) any { return n.SkipModule() })
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var c session.Cursor
	if !decodeBody(w, r, &c) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any {
		n.SetPosition(c.Module, c.Exercise, c.SetGroup, c.Set)
		return n.Cursor()
	})
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SetGroup int `json:"set_group"`
		Set      int `json:"set"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any {
		n.JumpToSet(req.SetGroup, req.Set)
		return n.Cursor()
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(n *session.Navigator) any {
		n.Refresh()
		return n.Cursor()
	})
}

// Sets

type logRequest struct {
	Ref   session.SetRef    `json:"ref"`
	Input session.SetInput  `json:"input"`
	Raw   map[string]string `json:"raw,omitempty"`
}

// handleLogSet logs a set. Values may come typed in input or as raw form
// strings in raw; raw wins when present.
func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := req.Input
	if len(req.Raw) > 0 {
		in = session.ParseSetInput(req.Raw)
	}
	res, err := s.sessions.LogSet(r.Context(), req.Ref, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type refRequest struct {
	Ref session.SetRef `json:"ref"`
}

func (s *Server) handleUncheckSet(w http.ResponseWriter, r *http.Request) {
	var req refRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any { return n.UncheckSet(req.Ref) })
}

type exerciseRequest struct {
	Module   int `json:"module"`
	Exercise int `json:"exercise"`
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any { return n.AddSet(req.Module, req.Exercise) })
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	var req refRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any { return n.DeleteSet(req.Ref) })
}

func (s *Server) handlePrefill(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var ref session.SetRef
	for key, dst := range map[string]*int{
		"module": &ref.Module, "exercise": &ref.Exercise, "set_group": &ref.SetGroup, "set": &ref.Set,
	} {
		v, err := strconv.Atoi(q.Get(key))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": key + " must be an integer"})
			return
		}
		*dst = v
	}
	res, err := s.sessions.Prefill(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref        session.SetRef `json:"ref"`
		Field      models.Field   `json:"field,omitempty"`
		Measurable string         `json:"measurable,omitempty"`
		Value      string         `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if (req.Field == "") == (req.Measurable == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exactly one of field or measurable is required"})
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any {
		if req.Measurable != "" {
			return n.EditDraftMeasurable(req.Ref, req.Measurable, req.Value)
		}
		return n.EditDraft(req.Ref, req.Field, req.Value)
	})
}

// Exercises

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Module   int                   `json:"module"`
		Exercise session.AdHocExercise `json:"exercise"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var added bool
	index := -1
	err := s.sessions.With(r.Context(), func(n *session.Navigator) error {
		added = n.AddExercise(req.Module, req.Exercise)
		if added {
			index = len(n.Session().Modules[req.Module].Exercises) - 1
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if added {
		if err := s.sessions.LoadHistory(r.Context(), req.Module, index); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.respond(w, r, added)
}

func (s *Server) handleReorderExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Module int `json:"module"`
		From   int `json:"from"`
		To     int `json:"to"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any { return n.ReorderExercise(req.Module, req.From, req.To) })
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any { return n.DeleteExercise(req.Module, req.Exercise) })
}

func (s *Server) handleSubstituteExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		exerciseRequest
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var ok bool
	err := s.sessions.With(r.Context(), func(n *session.Navigator) error {
		ok = n.SubstituteExercise(req.Module, req.Exercise, req.Name)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ok {
		if err := s.sessions.LoadHistory(r.Context(), req.Module, req.Exercise); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.respond(w, r, ok)
}

func (s *Server) handleUpdateScheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		exerciseRequest
		Edit session.SchemeEdit `json:"edit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any {
		return n.UpdateExerciseScheme(req.Module, req.Exercise, req.Edit)
	})
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		exerciseRequest
		Recommendation models.Recommendation `json:"recommendation"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Recommendation.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown recommendation"})
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any {
		return n.SetRecommendation(req.Module, req.Exercise, req.Recommendation)
	})
}

// Timers

func (s *Server) handleStartRest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	v, err := s.sessions.StartRest(r.Context(), req.Seconds)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePollRest(w http.ResponseWriter, r *http.Request) {
	p, err := s.sessions.PollRest(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStopRest(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(n *session.Navigator) any {
		n.StopRestTimer()
		return nil
	})
}

func (s *Server) handleStartExerciseTimer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int       `json:"seconds"`
		SetID   uuid.UUID `json:"set_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, r, func(n *session.Navigator) any { return n.StartExerciseTimer(req.Seconds, req.SetID) })
}

func (s *Server) handleStopExerciseTimer(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(n *session.Navigator) any { return n.StopExerciseTimer() })
}
