package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/opendeck-core/internal/action"
)

// createInstanceRequest is the body of POST /instances.
type createInstanceRequest struct {
	Action string      `json:"action"`
	Slot   action.Slot `json:"slot"`
}

// moveInstanceRequest is the body of POST /instances/move. Retain copies
// instead of moving.
type moveInstanceRequest struct {
	Source      action.Slot `json:"source"`
	Destination action.Slot `json:"destination"`
	Retain      bool        `json:"retain"`
}

// handleCreateInstance binds an action to a slot, or adds a child when the
// slot holds a composite.
func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Action == "" {
		writeBadRequest(w, "action is required")
		return
	}

	inst, err := s.router.CreateInstance(r.Context(), req.Action, req.Slot)
	if inst == nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err != nil {
		s.logger.Warn("instance created but plugin notification failed", "context", inst.Context.String(), "error", err)
	}
	writeJSON(w, http.StatusCreated, inst)
}

// handleGetInstance returns one instance by context.
func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	c, err := action.ParseContext(chi.URLParam(r, "context"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	inst, err := s.router.Instance(c)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// handleDeleteInstance removes an instance and any children.
func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	c, err := action.ParseContext(chi.URLParam(r, "context"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !s.applied(w, r, s.router.RemoveInstance(r.Context(), c)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveInstance moves or copies a slot binding.
func (s *Server) handleMoveInstance(w http.ResponseWriter, r *http.Request) {
	var req moveInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	root, err := s.router.MoveInstance(r.Context(), req.Source, req.Destination, req.Retain)
	if root == nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err != nil {
		s.logger.Warn("instance moved but plugin notification failed", "context", root.Context.String(), "error", err)
	}
	writeJSON(w, http.StatusOK, root)
}
