package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcphub/mcphub/pkg/protocol"
)

// decodeBody reads a JSON request body of at most s.maxBody bytes. On failure
// it writes the error response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSONError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	writeJSONError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
	return false
}

// handleHealth reports liveness and the host connection state.
// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"host":   s.host.State().String(),
	})
}

// handleMessage relays a raw protocol message, answering with the same
// {success, data, error} envelope the extension uses.
// POST /api/message
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg map[string]any
	if !s.decodeBody(w, r, &msg) {
		return
	}
	writeJSON(w, s.relay.Handle(r.Context(), msg))
}

// handleGetConfig returns the desktop config.
// GET /api/config
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.host.GetConfig(r.Context())
	if err != nil {
		s.writeHostError(w, err)
		return
	}
	writeJSON(w, cfg)
}

// configUpdate is the body of POST /api/config.
type configUpdate struct {
	Config *protocol.Config `json:"config"`
}

// handleUpdateConfig replaces the desktop config.
// POST /api/config
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var body configUpdate
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Config == nil {
		writeJSONError(w, "config is required", http.StatusBadRequest)
		return
	}
	if err := s.host.UpdateConfig(r.Context(), body.Config); err != nil {
		s.writeHostError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

// handleInstall installs a server and registers it in the config.
// POST /api/install
func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var desc protocol.ServerDescriptor
	if !s.decodeBody(w, r, &desc) {
		return
	}
	s.install(w, r, &desc)
}

func (s *Server) install(w http.ResponseWriter, r *http.Request, desc *protocol.ServerDescriptor) {
	if err := desc.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.host.InstallAndRegister(r.Context(), desc); err != nil {
		s.writeHostError(w, err)
		return
	}
	s.logger.Info("server installed", "name", desc.Name, "runtime", desc.Runtime)
	writeJSON(w, map[string]string{"status": "success"})
}

// handleUninstall removes a server package and its config entry.
// DELETE /api/uninstall/{name}
func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := s.host.RemoveServer(r.Context(), name); err != nil {
		s.writeHostError(w, err)
		return
	}
	s.logger.Info("server uninstalled", "name", name)
	writeJSON(w, map[string]string{"status": "success"})
}
