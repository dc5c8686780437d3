package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-workspace/internal/geomath"
	"github.com/joeblew999/geo-workspace/internal/measure"
)

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string        `json:"name" doc:"Service name"`
	Version  string        `json:"version" doc:"Service version"`
	DataDir  string        `json:"data_dir" doc:"Data directory path"`
	Store    string        `json:"store" doc:"Persistence backend" example:"file"`
	Distance geomath.Mode  `json:"distance" doc:"How measurements are computed" example:"geodesic"`
	Units    measure.Units `json:"units" doc:"Default display units"`
	Features []string      `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	ws := h.svc.Workspace
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "geo-workspace",
		Version:  Version,
		DataDir:  h.svc.DataDir,
		Store:    h.svc.StoreKind,
		Distance: ws.Mode(),
		Units:    ws.Units(),
		Features: []string{"geojson", "flatgeobuf", "crs-resolution", "measurements", "sse"},
	}}, nil
}
