package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/geo-workspace/internal/geomath"
	"github.com/joeblew999/geo-workspace/internal/humastar"
	"github.com/joeblew999/geo-workspace/internal/measure"
	"github.com/joeblew999/geo-workspace/internal/workspace"
)

type ToolBody struct {
	Tool              workspace.Tool `json:"tool" doc:"Active tool: navigate or measure" example:"measure"`
	NavigationEnabled bool           `json:"navigationEnabled" doc:"Whether map panning and zooming are enabled"`
}

type ToolOutput struct {
	Body ToolBody
}

type ToolInput struct {
	Body struct {
		Tool string `json:"tool" doc:"navigate or measure" example:"measure"`
	}
}

// UnitsInput selects display units; empty values use the workspace units.
type UnitsInput struct {
	Length string `query:"length" doc:"Length unit: m, km, ft or mi" example:"km"`
	Area   string `query:"area" doc:"Area unit: m2, km2, ha, ac, ft2 or mi2" example:"ha"`
}

func (in UnitsInput) units(def measure.Units) (measure.Units, error) {
	u := def
	if in.Length != "" {
		l, err := geomath.ParseLengthUnit(in.Length)
		if err != nil {
			return u, huma.Error400BadRequest(err.Error())
		}
		u.Length = l
	}
	if in.Area != "" {
		a, err := geomath.ParseAreaUnit(in.Area)
		if err != nil {
			return u, huma.Error400BadRequest(err.Error())
		}
		u.Area = a
	}
	return u, nil
}

type PointBody struct {
	Lon float64 `json:"lon" doc:"Longitude, or x in planar mode" example:"34.78"`
	Lat float64 `json:"lat" doc:"Latitude, or y in planar mode" example:"32.08"`
}

func (p PointBody) point() orb.Point { return orb.Point{p.Lon, p.Lat} }

type MeasurementIDInput struct {
	ID string `path:"id" doc:"Measurement ID"`
}

type PointIndexInput struct {
	MeasurementIDInput
	Index int `path:"index" doc:"Point index in drawing order"`
	UnitsInput
}

// MeasurementsBody lists every measurement.
type MeasurementsBody struct {
	Measurements []measure.Display `json:"measurements"`
	CanUndo      bool              `json:"canUndo" doc:"Whether the last edit can be reversed"`
}

func (b MeasurementsBody) Actions() []humastar.Action {
	var actions []humastar.Action
	if b.CanUndo {
		actions = append(actions, undoAction)
	}
	if len(b.Measurements) > 0 {
		actions = append(actions, humastar.Action{
			Rel: "reset", Href: "/api/v1/measurements", Method: "DELETE", Title: "Delete all measurements",
		})
	}
	return actions
}

// MeasurementBody is the outcome of one measurement edit.
type MeasurementBody struct {
	Changed     bool             `json:"changed" doc:"Whether the edit changed anything"`
	Measurement *measure.Display `json:"measurement,omitempty" doc:"The affected measurement"`
	CanUndo     bool             `json:"canUndo" doc:"Whether the last edit can be reversed"`
}

func (b MeasurementBody) Actions() []humastar.Action {
	var actions []humastar.Action
	if b.CanUndo {
		actions = append(actions, undoAction)
	}
	if b.Measurement != nil && !b.Measurement.Finished {
		actions = append(actions, humastar.Action{
			Rel: "finish", Href: "/api/v1/measurements/finish", Method: "POST", Title: "Finish measurement",
		})
	}
	return actions
}

var undoAction = humastar.Action{
	Rel: "undo", Href: "/api/v1/measurements/undo", Method: "POST", Title: "Undo last edit",
}

type MeasurementsOutput struct {
	Body MeasurementsBody
}

type MeasurementOutput struct {
	Body MeasurementBody
}

// RegisterTool registers the tool switch.
func (h *APIHandler) RegisterTool(api huma.API) {
	huma.Get(api, "/api/v1/tool", h.GetTool, huma.OperationTags("tool"))
	huma.Put(api, "/api/v1/tool", h.PutTool, huma.OperationTags("tool"))
}

// RegisterMeasurements registers measurement routes.
func (h *APIHandler) RegisterMeasurements(api huma.API) {
	tags := huma.OperationTags("measurements")
	huma.Get(api, "/api/v1/measurements", h.GetMeasurements, tags)
	huma.Delete(api, "/api/v1/measurements", h.ResetMeasurements, tags)
	huma.Post(api, "/api/v1/measurements/points", h.AddPoint, tags)
	huma.Post(api, "/api/v1/measurements/finish", h.Finish, tags)
	huma.Post(api, "/api/v1/measurements/undo-point", h.UndoPoint, tags)
	huma.Post(api, "/api/v1/measurements/undo", h.UndoEdit, tags)
	huma.Delete(api, "/api/v1/measurements/{id}", h.DeleteMeasurement, tags)
	huma.Put(api, "/api/v1/measurements/{id}/points/{index}", h.MovePoint, tags)
	huma.Delete(api, "/api/v1/measurements/{id}/points/{index}", h.RemovePoint, tags)
}

func (h *APIHandler) GetTool(ctx context.Context, input *struct{}) (*ToolOutput, error) {
	return h.tool(), nil
}

func (h *APIHandler) PutTool(ctx context.Context, input *ToolInput) (*ToolOutput, error) {
	if err := h.svc.Workspace.SetTool(workspace.Tool(input.Body.Tool)); err != nil {
		return nil, problem(err)
	}
	return h.tool(), nil
}

func (h *APIHandler) tool() *ToolOutput {
	ws := h.svc.Workspace
	return &ToolOutput{Body: ToolBody{Tool: ws.Tool(), NavigationEnabled: ws.NavigationEnabled()}}
}

func (h *APIHandler) GetMeasurements(ctx context.Context, input *UnitsInput) (*MeasurementsOutput, error) {
	u, err := input.units(h.svc.Workspace.Units())
	if err != nil {
		return nil, err
	}
	return h.measurements(u), nil
}

func (h *APIHandler) ResetMeasurements(ctx context.Context, input *struct{}) (*MeasurementsOutput, error) {
	h.svc.Workspace.ResetMeasurements()
	return h.measurements(h.svc.Workspace.Units()), nil
}

func (h *APIHandler) measurements(u measure.Units) *MeasurementsOutput {
	list := h.svc.Workspace.Measurements(u)
	if list == nil {
		list = []measure.Display{}
	}
	return &MeasurementsOutput{Body: MeasurementsBody{Measurements: list, CanUndo: h.svc.Workspace.CanUndo()}}
}

func (h *APIHandler) AddPoint(ctx context.Context, input *struct {
	UnitsInput
	Body PointBody
}) (*MeasurementOutput, error) {
	u, err := input.units(h.svc.Workspace.Units())
	if err != nil {
		return nil, err
	}
	m, err := h.svc.Workspace.AddPoint(input.Body.point())
	if err != nil {
		return nil, problem(err)
	}
	return h.result(m, true, u), nil
}

func (h *APIHandler) Finish(ctx context.Context, input *UnitsInput) (*MeasurementOutput, error) {
	return h.edit(input, h.svc.Workspace.FinishCurrent)
}

func (h *APIHandler) UndoPoint(ctx context.Context, input *UnitsInput) (*MeasurementOutput, error) {
	return h.edit(input, h.svc.Workspace.UndoLastPoint)
}

func (h *APIHandler) UndoEdit(ctx context.Context, input *UnitsInput) (*MeasurementOutput, error) {
	return h.edit(input, h.svc.Workspace.UndoLastEdit)
}

// edit runs an operation that may have nothing to act on; that is reported
// as changed=false, not as an error.
func (h *APIHandler) edit(input *UnitsInput, op func() (measure.Measurement, bool)) (*MeasurementOutput, error) {
	u, err := input.units(h.svc.Workspace.Units())
	if err != nil {
		return nil, err
	}
	m, ok := op()
	return h.result(m, ok, u), nil
}

func (h *APIHandler) DeleteMeasurement(ctx context.Context, input *MeasurementIDInput) (*struct{ Body MessageBody }, error) {
	if !h.svc.Workspace.DeleteMeasurement(input.ID) {
		return nil, huma.Error404NotFound(fmt.Sprintf("measurement %q not found", input.ID))
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Measurement deleted"}}, nil
}

func (h *APIHandler) MovePoint(ctx context.Context, input *struct {
	PointIndexInput
	Body PointBody
}) (*MeasurementOutput, error) {
	u, err := input.units(h.svc.Workspace.Units())
	if err != nil {
		return nil, err
	}
	m, err := h.svc.Workspace.MovePoint(input.ID, input.Index, input.Body.point())
	if err != nil {
		return nil, problem(err)
	}
	return h.result(m, true, u), nil
}

func (h *APIHandler) RemovePoint(ctx context.Context, input *PointIndexInput) (*MeasurementOutput, error) {
	u, err := input.units(h.svc.Workspace.Units())
	if err != nil {
		return nil, err
	}
	m, err := h.svc.Workspace.RemovePoint(input.ID, input.Index)
	if err != nil {
		return nil, problem(err)
	}
	return h.result(m, true, u), nil
}

func (h *APIHandler) result(m measure.Measurement, changed bool, u measure.Units) *MeasurementOutput {
	body := MeasurementBody{Changed: changed, CanUndo: h.svc.Workspace.CanUndo()}
	if changed {
		d := m.Display(u)
		body.Measurement = &d
	}
	return &MeasurementOutput{Body: body}
}
