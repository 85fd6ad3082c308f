package lazysearch

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/query"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
)

// Search is a lazy cursor. Builder methods return a new cursor and never
// modify the receiver; nothing is sent to the engine until a realizing
// method (Result, All, Objects, Len, At, Count, Facets, RawFacets, Raw) is
// called. The first realization is cached on the cursor.
type Search[T any] struct {
	client  *Client
	mapping string
	resolve result.ResolveFunc[T]
	req     request.Request

	mu    sync.Mutex
	set   *ResultSet[T]
	built *request.Built
}

func newSearch[T any](c *Client, mapping string, resolve result.ResolveFunc[T]) *Search[T] {
	req := request.New(c.idField).WithQueryFields(c.queryFields[mapping]...)
	return &Search[T]{client: c, mapping: mapping, resolve: resolve, req: req}
}

func (s *Search[T]) with(req request.Request) *Search[T] {
	return &Search[T]{client: s.client, mapping: s.mapping, resolve: s.resolve, req: req}
}

// Mapping returns the document type the cursor searches.
func (s *Search[T]) Mapping() string { return s.mapping }

// Values projects hits onto tuples of the id field followed by fields. With
// no fields the tuple holds every stored field in engine order.
func (s *Search[T]) Values(fields ...string) *Search[T] {
	return s.with(s.req.With(request.Values(fields...)))
}

// ValuesDict projects hits onto field maps. With no fields the map holds
// every stored field.
func (s *Search[T]) ValuesDict(fields ...string) *Search[T] {
	return s.with(s.req.With(request.ValuesDict(fields...)))
}

// OrderBy sorts by keys; a leading "-" sorts descending. The last call wins.
func (s *Search[T]) OrderBy(keys ...string) *Search[T] {
	return s.with(s.req.With(request.OrderBy(keys...)))
}

// Query adds query clauses. Pass either a free-text term, expanded over the
// cursor's query fields, or field__op keys with "or_" holding a nested Q of
// should clauses. Passing both or neither fails with ErrInvalidQuery.
func (s *Search[T]) Query(text string, kw Q) (*Search[T], error) {
	switch {
	case text != "" && len(kw) > 0, text == "" && len(kw) == 0:
		return nil, ErrInvalidQuery
	case text != "":
		return s.with(s.req.With(request.QueryDefault(text))), nil
	}
	if _, err := query.NewBuilder(s.req.Weights()).Clauses(kw); err != nil {
		return nil, err
	}
	return s.with(s.req.With(request.Query(kw))), nil
}

// QueryFields adds fields a free-text Query expands against.
func (s *Search[T]) QueryFields(fields ...string) *Search[T] {
	return s.with(s.req.WithQueryFields(fields...))
}

// Weight sets per-field boosts for query clauses.
func (s *Search[T]) Weight(w map[string]float64) *Search[T] {
	return s.with(s.req.WithWeights(w))
}

// Filter adds filter expressions. Filters of successive calls combine with
// AND.
func (s *Search[T]) Filter(exprs ...Filter) *Search[T] {
	return s.with(s.req.With(request.Filter(exprs...)))
}

// FilterBy adds a filter built from field[__op] keys.
func (s *Search[T]) FilterBy(kw Q) (*Search[T], error) {
	f, err := F(kw)
	if err != nil {
		return nil, err
	}
	return s.Filter(f), nil
}

// Facet adds named facets. A facet without its own facet_filter inherits the
// cursor's filters.
func (s *Search[T]) Facet(specs map[string]FacetSpec) *Search[T] {
	return s.with(s.req.With(request.Facet(specs)))
}

// FacetTerms adds a terms facet per field, named after the field.
func (s *Search[T]) FacetTerms(fields ...string) *Search[T] {
	specs := make(map[string]FacetSpec, len(fields))
	for _, f := range fields {
		specs[f] = FacetSpec{"terms": map[string]any{"field": f}}
	}
	return s.Facet(specs)
}

// HighlightOption configures Highlight.
type HighlightOption func(*request.Highlight)

// BeforeMatch sets the marker inserted before each match.
func BeforeMatch(tag string) HighlightOption {
	return func(h *request.Highlight) { h.BeforeMatch = tag }
}

// AfterMatch sets the marker inserted after each match.
func AfterMatch(tag string) HighlightOption {
	return func(h *request.Highlight) { h.AfterMatch = tag }
}

// Highlight requests highlighted fragments for fields. The last call wins.
func (s *Search[T]) Highlight(fields []string, opts ...HighlightOption) *Search[T] {
	h := request.Highlight{Fields: fields}
	for _, o := range opts {
		o(&h)
	}
	return s.with(s.req.With(request.HighlightStep(h)))
}

// Slice restricts the cursor to hits [start, stop).
func (s *Search[T]) Slice(start, stop int) *Search[T] {
	return s.with(s.req.Slice(start, stop))
}

// From restricts the cursor to hits from start on.
func (s *Search[T]) From(start int) *Search[T] {
	return s.with(s.req.From(start))
}

// Build folds the cursor into the document it would send. It does not
// contact the engine.
func (s *Search[T]) Build() (*Document, error) {
	b, err := s.req.Build()
	if err != nil {
		return nil, err
	}
	return &b.Document, nil
}

// Result realizes the cursor and returns the cached result set.
func (s *Search[T]) Result(ctx context.Context) (*ResultSet[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set != nil {
		return s.set, nil
	}

	built, err := s.req.Build()
	if err != nil {
		return nil, err
	}
	var caller string
	if s.client.svc.Disabled() {
		caller = callerName()
	}
	resp, err := s.client.svc.Execute(ctx, caller, s.mapping, &built.Document)
	if err != nil {
		return nil, err
	}
	set, err := result.Materialize(ctx, built.Shape, built.Fields, resp, s.resolve)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", s.mapping, err)
	}
	s.set, s.built = set, &built
	return set, nil
}

// All returns the realized items.
func (s *Search[T]) All(ctx context.Context) ([]Item[T], error) {
	set, err := s.Result(ctx)
	if err != nil {
		return nil, err
	}
	return set.Items, nil
}

// Objects returns the resolved objects of a cursor without a projection.
func (s *Search[T]) Objects(ctx context.Context) ([]T, error) {
	items, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i := range items {
		out[i] = items[i].Object
	}
	return out, nil
}

// Len returns the number of realized items.
func (s *Search[T]) Len(ctx context.Context) (int, error) {
	items, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// At fetches the single hit at absolute position i, ignoring the cursor's
// window.
func (s *Search[T]) At(ctx context.Context, i int) (Item[T], error) {
	if i < 0 {
		return Item[T]{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	items, err := s.Slice(i, i+1).All(ctx)
	if err != nil {
		return Item[T]{}, err
	}
	if len(items) == 0 {
		return Item[T]{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return items[0], nil
}

// Count returns the total number of matches. A realized cursor answers from
// its cache; otherwise a zero-size request is sent.
func (s *Search[T]) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	set := s.set
	s.mu.Unlock()
	if set != nil {
		return set.Total, nil
	}

	set, err := s.Slice(0, 0).Result(ctx)
	if err != nil {
		return 0, err
	}
	return set.Total, nil
}

// Facets returns the realized terms and range facets as name to entries.
// Facets of any other type are left out; RawFacets has them.
func (s *Search[T]) Facets(ctx context.Context) (map[string][]FacetEntry, error) {
	raw, err := s.RawFacets(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]FacetEntry, len(raw))
	for name, f := range raw {
		switch f.Type {
		case "terms":
			out[name] = nonNil(f.Terms)
		case "range":
			out[name] = nonNil(f.Ranges)
		}
	}
	return out, nil
}

func nonNil(entries []FacetEntry) []FacetEntry {
	if entries == nil {
		return []FacetEntry{}
	}
	return entries
}

// RawFacets returns the facet section of the response as sent by the engine.
func (s *Search[T]) RawFacets(ctx context.Context) (map[string]Facet, error) {
	resp, err := s.Raw(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Facets == nil {
		return map[string]Facet{}, nil
	}
	return resp.Facets, nil
}

// Raw returns the engine response.
func (s *Search[T]) Raw(ctx context.Context) (*Response, error) {
	set, err := s.Result(ctx)
	if err != nil {
		return nil, err
	}
	return set.Response, nil
}

// Excerpt returns the highlighted fragments of item, one list per
// highlighted field in request order. Fields without a match yield an empty
// list. The cursor must have been realized.
func (s *Search[T]) Excerpt(item Item[T]) ([][]string, error) {
	s.mu.Lock()
	built := s.built
	s.mu.Unlock()
	if built == nil {
		return nil, ErrExcerptBeforeFetch
	}
	out := make([][]string, len(built.Highlight.Fields))
	for i, f := range built.Highlight.Fields {
		out[i] = item.Highlights.Fragments(f)
	}
	return out, nil
}
