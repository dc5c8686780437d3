package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-workspace/internal/store"
)

// StoreHandler exposes what the persistence backend holds.
type StoreHandler struct {
	store store.Store
	kind  string
}

// NewStoreHandler creates a new store handler.
func NewStoreHandler(s store.Store, kind string) *StoreHandler {
	return &StoreHandler{store: s, kind: kind}
}

// RegisterRoutes registers store routes with Huma.
func (h *StoreHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/store", h.GetStore, huma.OperationTags("health"))
}

// StoreOutput is the response for the store summary.
type StoreOutput struct {
	Body struct {
		Kind string   `json:"kind" doc:"Backend kind" example:"sqlite"`
		Keys []string `json:"keys" doc:"Saved keys"`
	}
}

// GetStore lists the saved keys.
func (h *StoreHandler) GetStore(ctx context.Context, input *struct{}) (*StoreOutput, error) {
	if h.store == nil {
		return nil, huma.Error503ServiceUnavailable("Store not available")
	}
	keys, err := h.store.Keys(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list keys", err)
	}
	if keys == nil {
		keys = []string{}
	}

	out := &StoreOutput{}
	out.Body.Kind = h.kind
	out.Body.Keys = keys
	return out, nil
}
