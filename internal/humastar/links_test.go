package humastar

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID     string `json:"id"`
	Locked bool   `json:"locked"`
}

func (w widget) Actions() []Action {
	if w.Locked {
		return nil
	}
	return []Action{{Rel: "lock", Href: "/widgets/" + w.ID + "/lock", Method: "POST"}}
}

func newLinkedAPI(t *testing.T) (humatest.TestAPI, *Links) {
	t.Helper()
	links := NewLinks()
	cfg := huma.DefaultConfig("links test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	_, api := humatest.New(t, cfg)

	ok := func(ctx context.Context, _ *struct{}) (*struct{ Body string }, error) {
		return &struct{ Body string }{Body: "ok"}, nil
	}
	huma.Get(api, EntryPoint, ok)
	huma.Get(api, "/widgets", ok)
	huma.Get(api, "/widgets/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body widget }, error) {
		return &struct{ Body widget }{Body: widget{ID: in.ID, Locked: in.ID == "locked"}}, nil
	})
	huma.Get(api, "/widgets/{id}/parts", ok)
	huma.Get(api, "/gadgets", ok)

	links.Relate("/widgets", "/gadgets", "gadgets")
	links.Build(api)
	return api, links
}

func TestBuildDerivesHierarchy(t *testing.T) {
	_, links := newLinkedAPI(t)

	assert.ElementsMatch(t, []string{
		`</gadgets>; rel="gadgets"`,
		`</widgets>; rel="widgets"`,
		`</openapi.json>; rel="service-desc"`,
		`</docs>; rel="service-doc"`,
	}, links.For(EntryPoint))
	assert.ElementsMatch(t, []string{
		`</health>; rel="start"`,
		`</widgets/{id}>; rel="item"`,
		`</gadgets>; rel="gadgets"`,
	}, links.For("/widgets"))
	assert.ElementsMatch(t, []string{
		`</widgets>; rel="collection"`,
		`</widgets/{id}/parts>; rel="parts"`,
	}, links.For("/widgets/{id}"))
	assert.Equal(t, []string{`</widgets/{id}>; rel="up"`}, links.For("/widgets/{id}/parts"))
}

func TestBuildRecordsResponseLinks(t *testing.T) {
	api, _ := newLinkedAPI(t)
	op := api.OpenAPI().Paths["/widgets/{id}"].Get
	resp := op.Responses["200"]
	require.NotNil(t, resp)
	assert.Contains(t, resp.Links, "collection")
}

func TestTransformerAddsSelfAndActions(t *testing.T) {
	api, _ := newLinkedAPI(t)

	resp := api.Get("/widgets/w1")
	require.Equal(t, http.StatusOK, resp.Code)
	got := resp.Header().Values("Link")
	assert.Contains(t, got, `</widgets>; rel="collection"`)
	assert.Contains(t, got, `</widgets/w1>; rel="self"`)
	assert.Contains(t, got, `</widgets/w1/lock>; rel="lock"; method="POST"`)

	resp = api.Get("/widgets/locked")
	for _, l := range resp.Header().Values("Link") {
		assert.NotContains(t, l, `rel="lock"`)
	}

	resp = api.Get("/widgets")
	for _, l := range resp.Header().Values("Link") {
		assert.NotContains(t, l, `rel="self"`)
	}
}

func TestActionLinkHeader(t *testing.T) {
	a := Action{Rel: "undo", Href: "/undo", Method: "POST", Title: "Undo"}
	assert.Equal(t, `</undo>; rel="undo"; method="POST"; title="Undo"`, a.LinkHeader())
	assert.Equal(t, `</x>; rel="next"`, Action{Rel: "next", Href: "/x"}.LinkHeader())
}
