package humastar

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// EntryPoint is the path that links to every top-level resource.
const EntryPoint = "/health"

// Action is a state-dependent hypermedia action link.
//
//	<url>; rel="undo"; method="POST"; title="Undo last edit"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies that offer actions depending on
// their current state.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value with
// method and title extension parameters.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	return h
}

// Links holds the RFC 8288 Link header values of each operation path.
type Links struct {
	mu      sync.RWMutex
	byPath  map[string][]string
	related []relation
}

type relation struct{ from, to, rel string }

// NewLinks returns an empty link table. Its Transformer can be installed
// before the routes exist; Build fills the table once they do.
func NewLinks() *Links {
	return &Links{byPath: map[string][]string{}}
}

// Build derives links from the registered paths:
//   - a path and its parent path link to each other ("collection"/"item"
//     for templated children, "up"/<last segment> otherwise)
//   - the entry point links to every top-level path and to the OpenAPI
//     description
//
// The links are also recorded on the operations' success responses so the
// OpenAPI document carries them.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	paths := make([]string, 0, len(oapi.Paths))
	for p := range oapi.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byPath = map[string][]string{}

	for _, p := range paths {
		if p == EntryPoint {
			continue
		}
		parent := path.Dir(p)
		if _, ok := oapi.Paths[parent]; !ok {
			l.add(EntryPoint, p, lastSegment(p))
			l.add(p, EntryPoint, "start")
			continue
		}
		if templated(lastSegment(p)) {
			l.add(p, parent, "collection")
			l.add(parent, p, "item")
		} else {
			l.add(p, parent, "up")
			l.add(parent, p, lastSegment(p))
		}
	}
	for _, r := range l.related {
		l.add(r.from, r.to, r.rel)
	}
	l.add(EntryPoint, "/openapi.json", "service-desc")
	l.add(EntryPoint, "/docs", "service-doc")

	for p, pi := range oapi.Paths {
		for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete} {
			if op != nil {
				injectResponseLinks(op, l.byPath[p])
			}
		}
	}
}

// Relate records a link between two paths that Build cannot derive from
// the path hierarchy, such as sibling collections.
func (l *Links) Relate(from, to, rel string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.related = append(l.related, relation{from, to, rel})
	l.add(from, to, rel)
}

// For returns the Link header values of an operation path.
func (l *Links) For(p string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.byPath[p]...)
}

// Transformer returns a Huma Transformer that writes the Link headers of
// the matched operation, a self link for templated paths and the actions
// of Actor bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func (l *Links) add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	for _, existing := range l.byPath[from] {
		if existing == val {
			return
		}
	}
	l.byPath[from] = append(l.byPath[from], val)
}

func templated(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

// injectResponseLinks adds OpenAPI Link objects to the operation's success
// response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil || len(headers) == 0 {
		return
	}
	codes := make([]string, 0, len(op.Responses))
	for code := range op.Responses {
		if strings.HasPrefix(code, "2") {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return
	}
	sort.Strings(codes)
	resp := op.Responses[codes[0]]
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func parseLinkHeader(h string) (rel, href string) {
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
