package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDevices returns every registered device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.router.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleListProfiles returns the profile ids of a device and the one it
// shows.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profiles, err := s.router.Profiles(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	selected, err := s.router.SelectedProfile(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": profiles,
		"selected": selected,
		"count":    len(profiles),
	})
}

// handleGetSelectedProfile returns the profile a device shows.
func (s *Server) handleGetSelectedProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	selected, err := s.router.SelectedProfile(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	p, err := s.router.Profile(id, selected)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// switchProfileRequest is the body of PUT /devices/{id}/profile.
type switchProfileRequest struct {
	ID string `json:"id"`
}

// handleSwitchProfile changes the profile a device shows.
func (s *Server) handleSwitchProfile(w http.ResponseWriter, r *http.Request) {
	var req switchProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.ID == "" {
		writeBadRequest(w, "id is required")
		return
	}

	id := chi.URLParam(r, "id")
	if !s.applied(w, r, s.router.SwitchProfile(r.Context(), id, req.ID)) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device": id, "selected": req.ID})
}

// handleGetProfile returns one stored profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.router.Profile(chi.URLParam(r, "id"), chi.URLParam(r, "*"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProfile removes a profile that is not being shown.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "*")
	if profileID == "" {
		writeBadRequest(w, "profile id is required")
		return
	}
	if !s.applied(w, r, s.router.DeleteProfile(r.Context(), chi.URLParam(r, "id"), profileID)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renameProfileRequest is the body of POST /devices/{id}/profiles/rename.
type renameProfileRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// handleRenameProfile moves a profile to a new id.
func (s *Server) handleRenameProfile(w http.ResponseWriter, r *http.Request) {
	var req renameProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.From == "" || req.To == "" {
		writeBadRequest(w, "from and to are required")
		return
	}

	id := chi.URLParam(r, "id")
	if !s.applied(w, r, s.router.RenameProfile(r.Context(), id, req.From, req.To)) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device": id, "id": req.To})
}
