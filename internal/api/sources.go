package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-workspace/internal/ingest"
	"github.com/joeblew999/geo-workspace/internal/service"
)

type SourceNameInput struct {
	Name string `path:"name" doc:"Source file name" example:"roads.geojson"`
}

type SaveSourceInput struct {
	SourceNameInput
	RawBody []byte
}

type ImportSourceInput struct {
	SourceNameInput
	Layer string `query:"layer" doc:"Layer name; defaults to the file name without extension"`
}

// RegisterSources registers the source file routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	tags := huma.OperationTags("sources")
	huma.Get(api, "/api/v1/sources", h.GetSources, tags)
	huma.Put(api, "/api/v1/sources/{name}", h.SaveSource, tags)
	huma.Post(api, "/api/v1/sources/{name}/import", h.ImportSource, tags)
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	sources, err := h.svc.Source.List()
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

func (h *APIHandler) SaveSource(ctx context.Context, input *SaveSourceInput) (*struct{ Body service.SourceFile }, error) {
	if len(input.RawBody) == 0 {
		return nil, huma.Error400BadRequest("empty upload")
	}
	file, err := h.svc.Source.Save(input.Name, input.RawBody)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body service.SourceFile }{Body: file}, nil
}

// ImportSource decodes a saved source file and adds it as a layer.
func (h *APIHandler) ImportSource(ctx context.Context, input *ImportSourceInput) (*AddLayersOutput, error) {
	data, err := h.svc.Source.Read(input.Name)
	if err != nil {
		return nil, problem(err)
	}
	name := input.Layer
	if name == "" {
		name = ingest.LayerName(input.Name)
	}
	return h.addLayers(ctx, []service.Descriptor{ingest.Decode(name, data, ingest.FormatAuto)}, ""), nil
}
