package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-workspace/internal/humastar"
	"github.com/joeblew999/geo-workspace/internal/workspace"
)

// EventHandler streams workspace change events to Datastar clients via SSE.
type EventHandler struct {
	ws *workspace.Workspace
}

// NewEventHandler creates a new event handler.
func NewEventHandler(ws *workspace.Workspace) *EventHandler {
	return &EventHandler{ws: ws}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events,
		huma.OperationTags("events"),
	)
}

// Events sends a signal snapshot on connect and after every change, each
// change followed by a resource-changed DOM event.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return humastar.Stream(func(sse humastar.SSE) {
		bus := h.ws.Bus()
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		sse.Signals(h.snapshot())
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				sse.Signals(h.snapshot())
				sse.DispatchCustomEvent("resource-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"id":       ev.ID,
				})
			}
		}
	}), nil
}

func (h *EventHandler) snapshot() map[string]any {
	st := h.ws.State()
	return map[string]any{
		"layerCount":        len(st.Layers),
		"showBaseMap":       st.ShowBaseMap,
		"tool":              h.ws.Tool(),
		"navigationEnabled": h.ws.NavigationEnabled(),
		"measurementCount":  len(h.ws.Measurements(h.ws.Units())),
		"canUndo":           h.ws.CanUndo(),
	}
}
