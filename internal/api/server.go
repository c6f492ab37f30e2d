// Package api serves a small read-only HTTP view of the bot: health, plugin
// enablement per room, and recent handler invocations.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roombot/internal/storage"
	"roombot/internal/trace"
	"roombot/pkg/plugin"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const defaultInvocationLimit = 50

// Server provides HTTP API endpoints for the bot
type Server struct {
	registry *plugin.Registry
	store    storage.Store
	recorder *trace.Recorder
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(registry *plugin.Registry, store storage.Store, recorder *trace.Recorder, logger *zap.Logger, port int) *Server {
	s := &Server{
		registry: registry,
		store:    store,
		recorder: recorder,
		logger:   logger.Named("api"),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/plugins", s.handlePlugins)
	mux.HandleFunc("/api/invocations", s.handleInvocations)
	return mux
}

// PluginStatus is one plugin's enablement in a room
type PluginStatus struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Enabled     bool                  `json:"enabled"`
	Endpoints   []plugin.EndpointInfo `json:"endpoints"`
}

// PluginsResponse represents the JSON response for the plugins endpoint
type PluginsResponse struct {
	Room     string         `json:"room"`
	Plugins  []PluginStatus `json:"plugins"`
	BuiltIns []string       `json:"builtins"`
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		http.Error(w, "room query parameter is required", http.StatusBadRequest)
		return
	}

	st := plugin.BindStore(r.Context(), s.store)
	response := PluginsResponse{
		Room:     room,
		Plugins:  make([]PluginStatus, 0),
		BuiltIns: make([]string, 0),
	}

	for _, p := range s.registry.List() {
		enabled, err := s.registry.IsEnabledForRoom(st, p.Name(), room)
		if err != nil {
			s.logger.Error("Failed to read plugin enablement",
				zap.String("plugin", p.Name()),
				zap.String("room", room),
				zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		endpoints, err := s.registry.EndpointsForRoom(st, p.Name(), room)
		if err != nil {
			s.logger.Error("Failed to read plugin endpoints",
				zap.String("plugin", p.Name()),
				zap.String("room", room),
				zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		response.Plugins = append(response.Plugins, PluginStatus{
			Name:        p.Name(),
			Description: p.Description(),
			Enabled:     enabled,
			Endpoints:   endpoints,
		})
	}
	for _, b := range s.registry.BuiltIns() {
		response.BuiltIns = append(response.BuiltIns, b.Name)
	}

	s.writeJSON(w, response)
}

// InvocationView is an invocation with a human-readable age
type InvocationView struct {
	trace.Invocation
	DurationMS int64  `json:"duration_ms"`
	Age        string `json:"age"`
}

// InvocationsResponse represents the JSON response for the invocations endpoint
type InvocationsResponse struct {
	Invocations []InvocationView              `json:"invocations"`
	Stats       map[string]trace.HandlerStats `json:"stats"`
}

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultInvocationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	now := s.recorder.Now()
	recent := s.recorder.Recent(limit)
	response := InvocationsResponse{
		Invocations: make([]InvocationView, 0, len(recent)),
		Stats:       s.recorder.Stats(),
	}
	for _, inv := range recent {
		response.Invocations = append(response.Invocations, InvocationView{
			Invocation: inv,
			DurationMS: inv.Duration().Milliseconds(),
			Age:        humanize.RelTime(inv.FinishedAt, now, "ago", "from now"),
		})
	}

	s.writeJSON(w, response)
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, map[string]string{
		"status": "ok",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
	{Path: "/health", Method: "GET", Description: `Health check endpoint - returns {"status": "ok"}`},
	{Path: "/api/plugins?room=<id>", Method: "GET", Description: "Plugins with their enablement and verb mapping in a room"},
	{Path: "/api/invocations?limit=<n>", Method: "GET", Description: "Most recent handler runs, newest first, plus per-handler totals"},
}

// handleSitemap lists the available endpoints as plain text
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "roombot API\n")
	fmt.Fprintf(w, "===========\n\n")
	fmt.Fprintf(w, "Available endpoints:\n\n")
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %-6s %-28s %s\n", ep.Method, ep.Path, ep.Description)
	}
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
