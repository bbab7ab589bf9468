package api

import (
	"net/http"
	"strings"

	"github.com/mcphub/mcphub/pkg/protocol"
	"github.com/mcphub/mcphub/pkg/registry"
)

// handleRegistry routes all /api/registry/ requests.
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/registry/")

	if s.catalog == nil {
		writeJSONError(w, "Registry not available", http.StatusServiceUnavailable)
		return
	}

	switch {
	case path == "servers":
		s.handleRegistryList(w, r)
	case strings.HasPrefix(path, "servers/"):
		s.handleRegistryServerAction(w, r, strings.TrimPrefix(path, "servers/"))
	default:
		http.NotFound(w, r)
	}
}

// handleRegistryList lists catalog entries, optionally narrowed by a search
// query and a name glob.
// GET /api/registry/servers?q=github&match=github-*&refresh=true
func (s *Server) handleRegistryList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	reg, err := s.catalog.Load(r.Context(), query.Get("refresh") == "true")
	if err != nil {
		writeJSONError(w, "Failed to load registry: "+err.Error(), http.StatusBadGateway)
		return
	}

	servers := reg.Search(query.Get("q"))
	if pattern := query.Get("match"); pattern != "" {
		filtered, err := (&registry.Registry{Servers: servers}).Filter(pattern)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		servers = filtered
	}
	if servers == nil {
		servers = []protocol.ServerDescriptor{}
	}
	writeJSON(w, servers)
}

// handleRegistryServerAction handles a single catalog entry.
// GET  /api/registry/servers/{name}
// POST /api/registry/servers/{name}/install
func (s *Server) handleRegistryServerAction(w http.ResponseWriter, r *http.Request, subpath string) {
	name, action, _ := strings.Cut(subpath, "/")

	reg, err := s.catalog.Load(r.Context(), false)
	if err != nil {
		writeJSONError(w, "Failed to load registry: "+err.Error(), http.StatusBadGateway)
		return
	}
	desc, ok := reg.Lookup(name)
	if !ok {
		writeJSONError(w, "Server not found in registry: "+name, http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		writeJSON(w, desc)
	case action == "install" && r.Method == http.MethodPost:
		s.install(w, r, desc)
	case action == "" || action == "install":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}
