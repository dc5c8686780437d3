// Package server composes the workspace, its persistence and the HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/geo-workspace/internal/api"
	"github.com/joeblew999/geo-workspace/internal/crs"
	"github.com/joeblew999/geo-workspace/internal/geomath"
	"github.com/joeblew999/geo-workspace/internal/service"
	"github.com/joeblew999/geo-workspace/internal/store"
	"github.com/joeblew999/geo-workspace/internal/workspace"
)

// DefaultProjTimeout bounds a projection-service lookup when Config leaves
// ProjTimeout unset.
const DefaultProjTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	Store   string // file, memory, duckdb or sqlite

	ProjService string // projection service base URL; empty stays offline
	ProjTimeout time.Duration
	ProjDefs    string // optional YAML definitions file

	Distance string // geodesic or planar
}

// Server is the geo workspace HTTP server.
type Server struct {
	config    Config
	mux       *http.ServeMux
	humaAPI   huma.API
	workspace *workspace.Workspace
}

// NewResolver builds the CRS resolver described by cfg: the built-in table,
// extended by ProjDefs, backed by ProjService when set.
func NewResolver(cfg Config) (*crs.Resolver, error) {
	table := crs.NewTable()
	if cfg.ProjDefs != "" {
		if _, err := table.LoadDefinitions(cfg.ProjDefs); err != nil {
			return nil, err
		}
	}
	var source crs.DefinitionSource
	if cfg.ProjService != "" {
		timeout := cfg.ProjTimeout
		if timeout <= 0 {
			timeout = DefaultProjTimeout
		}
		source = crs.NewHTTPSource(cfg.ProjService, timeout)
	}
	return crs.NewResolver(table, source), nil
}

// New creates a new geo server. The workspace state is restored from the
// configured store.
func New(cfg Config) (*Server, error) {
	ctx := context.Background()

	mode, err := geomath.ParseMode(cfg.Distance)
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	ws := workspace.New(ctx, workspace.Options{
		Store:    st,
		Resolver: resolver,
		Mode:     mode,
	})

	mux := http.NewServeMux()

	links := api.NewLinks()
	humaConfig := huma.DefaultConfig("geo-workspace API", api.Version)
	humaConfig.Info.Description = "Map workspace API: layers, CRS-resolved raster bounds and measurements."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	storeKind := cfg.Store
	if storeKind == "" {
		storeKind = store.KindFile
	}
	api.RegisterRoutes(humaAPI, &api.Services{
		Workspace: ws,
		Source:    service.NewSourceService(cfg.DataDir),
		Store:     st,
		StoreKind: storeKind,
		DataDir:   cfg.DataDir,
	})
	links.Build(humaAPI)

	s := &Server{
		config:    cfg,
		mux:       mux,
		humaAPI:   humaAPI,
		workspace: ws,
	}
	mux.HandleFunc("/", s.handleRoot)
	return s, nil
}

// OpenAPI returns the OpenAPI description of the API.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Workspace returns the workspace the server operates on.
func (s *Server) Workspace() *workspace.Workspace {
	return s.workspace
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close releases the workspace and its store.
func (s *Server) Close() error {
	return s.workspace.Close()
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Link", `</health>; rel="start"`)
	json.NewEncoder(w).Encode(map[string]string{
		"service": "geo-workspace",
		"status":  "running",
	})
}
