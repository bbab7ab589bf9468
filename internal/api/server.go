// Package api exposes the native host over a localhost HTTP endpoint for web
// pages that cannot use the browser extension.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcphub/mcphub/pkg/client"
	"github.com/mcphub/mcphub/pkg/nativemsg"
	"github.com/mcphub/mcphub/pkg/protocol"
	"github.com/mcphub/mcphub/pkg/registry"
	"github.com/mcphub/mcphub/pkg/relay"
)

// DefaultAddr is where the API listens unless configured otherwise.
const DefaultAddr = "localhost:3000"

// DefaultAllowedOrigins are the web UIs allowed to call the API.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "https://mcphub.io"}

// HostClient is the subset of *client.Client the API needs.
type HostClient interface {
	GetConfig(ctx context.Context) (*protocol.Config, error)
	UpdateConfig(ctx context.Context, cfg *protocol.Config) error
	InstallAndRegister(ctx context.Context, desc *protocol.ServerDescriptor) (*protocol.Config, error)
	RemoveServer(ctx context.Context, name string) (*protocol.Config, error)
	State() client.State
}

// Catalog supplies the server registry.
type Catalog interface {
	Load(ctx context.Context, force bool) (*registry.Registry, error)
}

// Server is the HTTP API.
type Server struct {
	host    HostClient
	relay   *relay.Relay
	catalog Catalog
	origins map[string]bool
	logger  *slog.Logger
	maxBody int64
}

// NewServer creates an API server. rel answers /api/message and translates
// host errors for the REST endpoints.
func NewServer(host HostClient, rel *relay.Relay) *Server {
	s := &Server{
		host:   host,
		relay:  rel,
		logger:  slog.New(slog.DiscardHandler),
		maxBody: nativemsg.DefaultMaxMessageSize,
	}
	s.SetAllowedOrigins(DefaultAllowedOrigins)
	return s
}

// SetCatalog enables the /api/registry endpoints.
func (s *Server) SetCatalog(c Catalog) {
	s.catalog = c
}

// SetAllowedOrigins replaces the CORS allow list.
func (s *Server) SetAllowedOrigins(origins []string) {
	s.origins = make(map[string]bool, len(origins))
	for _, o := range origins {
		s.origins[strings.TrimRight(o, "/")] = true
	}
}

// SetMaxBodyBytes bounds request bodies. The default matches the native
// message size limit.
func (s *Server) SetMaxBodyBytes(n int64) {
	s.maxBody = n
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Handler returns the API routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/message", s.handleMessage)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleUpdateConfig)
	mux.HandleFunc("POST /api/install", s.handleInstall)
	mux.HandleFunc("DELETE /api/uninstall/{name}", s.handleUninstall)
	mux.HandleFunc("/api/registry/", s.handleRegistry)
	return s.cors(mux)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("api listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.origins[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !s.origins[origin] {
				writeJSONError(w, "Origin not allowed", http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeHostError reports a failed host call with the message the relay
// would give and a matching status.
func (s *Server) writeHostError(w http.ResponseWriter, err error) {
	msg := s.relay.Explain(err)
	status := http.StatusInternalServerError
	switch {
	case msg == protocol.MsgHostUnavailable:
		status = http.StatusServiceUnavailable
	case msg == protocol.MsgServerNotFound:
		status = http.StatusNotFound
	case errors.Is(err, client.ErrRequestTimeout):
		status = http.StatusGatewayTimeout
	}
	writeJSONError(w, msg, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("writing response", "error", err)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}
