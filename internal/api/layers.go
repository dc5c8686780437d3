package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-workspace/internal/fgb"
	"github.com/joeblew999/geo-workspace/internal/geomath"
	"github.com/joeblew999/geo-workspace/internal/ingest"
	"github.com/joeblew999/geo-workspace/internal/service"
)

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"roads-1"`
}

type LayerOutput struct {
	Body service.Layer
}

type LayersOutput struct {
	Body []service.Layer
}

// DescriptorBody is the wire form of service.Descriptor. GeoJSON is any
// JSON value here so it is documented as an object, not a byte string.
type DescriptorBody struct {
	Type    service.Kind        `json:"type" enum:"vector,raster" doc:"Layer kind"`
	Name    string              `json:"name" doc:"Layer name" example:"roads"`
	Success *bool               `json:"success,omitempty" doc:"Decoder outcome; omitted means success"`
	Error   string              `json:"error,omitempty" doc:"Decoder error message"`
	Color   string              `json:"color,omitempty" doc:"Layer color (CSS); generated when empty" example:"#3388ff"`
	GeoJSON any                 `json:"geojson,omitempty" doc:"FeatureCollection for vector layers"`
	Data    *service.RasterData `json:"data,omitempty" doc:"Pixel handle for raster layers"`
	Bounds  *[2][2]float64      `json:"bounds,omitempty" doc:"Raster bounds [[minLat,minLng],[maxLat,maxLng]] in the source CRS"`
	CRS     string              `json:"crs,omitempty" doc:"Source CRS identifier" example:"EPSG:32636"`
}

func (d DescriptorBody) descriptor() (service.Descriptor, error) {
	out := service.Descriptor{
		Type:    d.Type,
		Name:    d.Name,
		Success: d.Success,
		Error:   d.Error,
		Color:   d.Color,
		Data:    d.Data,
		Bounds:  d.Bounds,
		CRS:     d.CRS,
	}
	if d.GeoJSON != nil {
		raw, err := json.Marshal(d.GeoJSON)
		if err != nil {
			return out, err
		}
		out.GeoJSON = raw
	}
	return out, nil
}

type AddLayersInput struct {
	Body struct {
		Descriptors []DescriptorBody `json:"descriptors" minItems:"1" doc:"Decoded uploads"`
		Name        string           `json:"name,omitempty" doc:"Name override, applied when exactly one descriptor is given"`
	}
}

// AddLayersBody reports each descriptor as added or failed.
type AddLayersBody struct {
	Layers   []service.Layer   `json:"layers" doc:"Layers added, in insertion order"`
	Failures []service.Failure `json:"failures" doc:"Descriptors that were skipped"`
}

type AddLayersOutput struct {
	Body AddLayersBody
}

type UploadInput struct {
	Name    string `query:"name" doc:"Upload file name; the layer is named after it" example:"roads.geojson"`
	Format  string `query:"format" doc:"auto, geojson or fgb" example:"auto"`
	RawBody []byte
}

type ReorderInput struct {
	Body struct {
		From int `json:"from" doc:"Current index" example:"0"`
		To   int `json:"to" doc:"Target index" example:"2"`
	}
}

type LayerVisibilityInput struct {
	IDInput
	Body struct {
		Visible bool `json:"visible" doc:"Whether the layer is drawn"`
	}
}

type LayerStyleInput struct {
	IDInput
	Body service.StylePatch
}

type LayerNameInput struct {
	IDInput
	Body struct {
		Name string `json:"name" minLength:"1" doc:"New display name"`
	}
}

type LayerFeaturesInput struct {
	IDInput
	Body any `doc:"Replacement GeoJSON FeatureCollection"`
}

type BoundsBody struct {
	Bounds geomath.LatLngBounds `json:"bounds" doc:"[[minLat,minLng],[maxLat,maxLng]]"`
}

type BoundsOutput struct {
	Body BoundsBody
}

type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// RegisterLayers registers layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	tags := huma.OperationTags("layers")
	huma.Get(api, "/api/v1/layers", h.GetLayers, tags)
	huma.Post(api, "/api/v1/layers", h.AddLayers, tags)
	huma.Post(api, "/api/v1/layers/upload", h.UploadLayer, tags)
	huma.Get(api, "/api/v1/layers/bounds", h.GetVisibleBounds, tags)
	huma.Post(api, "/api/v1/layers/reorder", h.ReorderLayers, tags)
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, tags)
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, tags)
	huma.Put(api, "/api/v1/layers/{id}/visibility", h.PutVisibility, tags)
	huma.Patch(api, "/api/v1/layers/{id}/style", h.PatchStyle, tags)
	huma.Put(api, "/api/v1/layers/{id}/name", h.PutName, tags)
	huma.Put(api, "/api/v1/layers/{id}/geojson", h.PutFeatures, tags)
	huma.Get(api, "/api/v1/layers/{id}/bounds", h.GetLayerBounds, tags)
	huma.Get(api, "/api/v1/layers/{id}/export.fgb", h.ExportLayer, tags)
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	return &LayersOutput{Body: h.svc.Workspace.Layers()}, nil
}

func (h *APIHandler) AddLayers(ctx context.Context, input *AddLayersInput) (*AddLayersOutput, error) {
	descs := make([]service.Descriptor, 0, len(input.Body.Descriptors))
	for i, d := range input.Body.Descriptors {
		desc, err := d.descriptor()
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("descriptor %d: %v", i, err))
		}
		descs = append(descs, desc)
	}
	return h.addLayers(ctx, descs, input.Body.Name), nil
}

func (h *APIHandler) UploadLayer(ctx context.Context, input *UploadInput) (*AddLayersOutput, error) {
	format, err := ingest.ParseFormat(input.Format)
	if err != nil {
		return nil, problem(err)
	}
	if len(input.RawBody) == 0 {
		return nil, huma.Error400BadRequest("empty upload")
	}
	name := "upload"
	if input.Name != "" {
		name = ingest.LayerName(input.Name)
	}
	desc := ingest.Decode(name, input.RawBody, format)
	return h.addLayers(ctx, []service.Descriptor{desc}, ""), nil
}

func (h *APIHandler) addLayers(ctx context.Context, descs []service.Descriptor, name string) *AddLayersOutput {
	added, failures := h.svc.Workspace.AddLayers(ctx, descs, name)
	if added == nil {
		added = []service.Layer{}
	}
	if failures == nil {
		failures = []service.Failure{}
	}
	return &AddLayersOutput{Body: AddLayersBody{Layers: added, Failures: failures}}
}

func (h *APIHandler) GetVisibleBounds(ctx context.Context, input *struct{}) (*BoundsOutput, error) {
	b, ok := h.svc.Workspace.VisibleBounds()
	if !ok {
		return nil, huma.Error404NotFound("no visible layer has bounds")
	}
	return &BoundsOutput{Body: BoundsBody{Bounds: geomath.FromBound(b)}}, nil
}

func (h *APIHandler) ReorderLayers(ctx context.Context, input *ReorderInput) (*LayersOutput, error) {
	if err := h.svc.Workspace.Reorder(ctx, input.Body.From, input.Body.To); err != nil {
		return nil, problem(err)
	}
	return &LayersOutput{Body: h.svc.Workspace.Layers()}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	layer, ok := h.svc.Workspace.Layer(input.ID)
	if !ok {
		return nil, layerNotFound(input.ID)
	}
	return &LayerOutput{Body: layer}, nil
}

func (h *APIHandler) DeleteLayer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if !h.svc.Workspace.RemoveLayer(ctx, input.ID) {
		return nil, layerNotFound(input.ID)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layer deleted"}}, nil
}

func (h *APIHandler) PutVisibility(ctx context.Context, input *LayerVisibilityInput) (*LayerOutput, error) {
	return h.updated(input.ID, h.svc.Workspace.SetVisibility(ctx, input.ID, input.Body.Visible))
}

func (h *APIHandler) PatchStyle(ctx context.Context, input *LayerStyleInput) (*LayerOutput, error) {
	return h.updated(input.ID, h.svc.Workspace.SetStyle(ctx, input.ID, input.Body))
}

func (h *APIHandler) PutName(ctx context.Context, input *LayerNameInput) (*LayerOutput, error) {
	return h.updated(input.ID, h.svc.Workspace.Rename(ctx, input.ID, input.Body.Name))
}

func (h *APIHandler) PutFeatures(ctx context.Context, input *LayerFeaturesInput) (*LayerOutput, error) {
	raw, err := json.Marshal(input.Body)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if err := h.svc.Workspace.SetFeatures(ctx, input.ID, raw); err != nil {
		return nil, problem(err)
	}
	return h.updated(input.ID, true)
}

func (h *APIHandler) updated(id string, ok bool) (*LayerOutput, error) {
	layer, found := h.svc.Workspace.Layer(id)
	if !ok || !found {
		return nil, layerNotFound(id)
	}
	return &LayerOutput{Body: layer}, nil
}

func (h *APIHandler) GetLayerBounds(ctx context.Context, input *IDInput) (*BoundsOutput, error) {
	if _, ok := h.svc.Workspace.Layer(input.ID); !ok {
		return nil, layerNotFound(input.ID)
	}
	b, ok := h.svc.Workspace.LayerBounds(input.ID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q has no bounds", input.ID))
	}
	return &BoundsOutput{Body: BoundsBody{Bounds: geomath.FromBound(b)}}, nil
}

func (h *APIHandler) ExportLayer(ctx context.Context, input *IDInput) (*ExportOutput, error) {
	layer, ok := h.svc.Workspace.Layer(input.ID)
	if !ok {
		return nil, layerNotFound(input.ID)
	}
	if layer.Kind != service.Vector || layer.Features == nil {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("layer %q has no vector features", input.ID))
	}
	var buf bytes.Buffer
	if err := fgb.Encode(&buf, layer.Features, fgb.Options{Name: layer.Name, CRSCode: 4326}); err != nil {
		return nil, problem(err)
	}
	return &ExportOutput{
		ContentType:        "application/flatgeobuf",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", layer.ID+".fgb"),
		Body:               buf.Bytes(),
	}, nil
}
