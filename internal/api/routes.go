// Package api defines the Huma API routes and handlers over the map
// workspace.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-workspace/internal/service"
	"github.com/joeblew999/geo-workspace/internal/store"
	"github.com/joeblew999/geo-workspace/internal/workspace"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Workspace *workspace.Workspace
	Source    *service.SourceService
	Store     store.Store
	StoreKind string
	DataDir   string
}

// RegisterRoutes registers every REST and SSE route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(svc).RegisterRoutes(api)
	NewStoreHandler(svc.Store, svc.StoreKind).RegisterRoutes(api)
	NewEventHandler(svc.Workspace).RegisterRoutes(api)
}

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type VisibleInput struct {
	Body struct {
		Visible bool `json:"visible" doc:"Whether it is drawn"`
	}
}

type StateOutput struct {
	Body workspace.State
}

// APIHandler holds the REST handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterWorkspace registers the workspace snapshot routes.
func (h *APIHandler) RegisterWorkspace(api huma.API) {
	huma.Get(api, "/api/v1/workspace", h.GetWorkspace, huma.OperationTags("workspace"))
	huma.Put(api, "/api/v1/workspace/basemap", h.PutBaseMap, huma.OperationTags("workspace"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetWorkspace(ctx context.Context, input *struct{}) (*StateOutput, error) {
	return &StateOutput{Body: h.svc.Workspace.State()}, nil
}

func (h *APIHandler) PutBaseMap(ctx context.Context, input *VisibleInput) (*StateOutput, error) {
	h.svc.Workspace.SetBaseMap(ctx, input.Body.Visible)
	return &StateOutput{Body: h.svc.Workspace.State()}, nil
}
