package api

import "github.com/joeblew999/geo-workspace/internal/humastar"

// related links sibling resources the path hierarchy does not connect.
var related = []struct{ from, to, rel string }{
	{"/api/v1/layers", "/api/v1/sources", "sources"},
	{"/api/v1/layers", "/api/v1/workspace", "workspace"},
	{"/api/v1/sources", "/api/v1/layers", "layers"},
	{"/api/v1/workspace", "/api/v1/layers", "layers"},
	{"/api/v1/workspace", "/api/v1/tool", "tool"},
	{"/api/v1/tool", "/api/v1/measurements", "measurements"},
	{"/api/v1/measurements", "/api/v1/tool", "tool"},
	{"/api/v1/info", "/api/v1/store", "store"},
}

// NewLinks returns the link table for the API with the sibling relations
// recorded. Call Build on it once the routes are registered.
func NewLinks() *humastar.Links {
	l := humastar.NewLinks()
	for _, r := range related {
		l.Relate(r.from, r.to, r.rel)
	}
	return l
}
