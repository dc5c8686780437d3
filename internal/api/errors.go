package api

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-workspace/internal/fgb"
	"github.com/joeblew999/geo-workspace/internal/ingest"
	"github.com/joeblew999/geo-workspace/internal/measure"
	"github.com/joeblew999/geo-workspace/internal/service"
	"github.com/joeblew999/geo-workspace/internal/workspace"
)

// problem maps a domain error to its HTTP status.
func problem(err error) error {
	switch {
	case errors.Is(err, measure.ErrNotFound), errors.Is(err, service.ErrLayerNotFound),
		errors.Is(err, fs.ErrNotExist):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrIndexOutOfRange), errors.Is(err, measure.ErrIndexOutOfRange),
		errors.Is(err, fgb.ErrEmpty), errors.Is(err, service.ErrNotVector):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, measure.ErrInactive), errors.Is(err, workspace.ErrGestureBusy):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, measure.ErrInvalidPoint), errors.Is(err, workspace.ErrUnknownTool),
		errors.Is(err, ingest.ErrUnknownFormat), errors.Is(err, service.ErrInvalidSourceName),
		errors.Is(err, service.ErrInvalidGeometry):
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}

func layerNotFound(id string) error {
	return huma.Error404NotFound(fmt.Sprintf("layer %q not found", id))
}
