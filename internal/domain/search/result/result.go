package result

import (
	"context"
	"fmt"
	"maps"

	"github.com/kailas-cloud/lazysearch/internal/domain"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
)

// Highlights maps a field name to its highlighted text fragments.
type Highlights map[string][]string

// Fragments returns the fragments for field, or an empty list.
func (h Highlights) Fragments(field string) []string {
	if f, ok := h[field]; ok {
		return f
	}
	return []string{}
}

// Item is one materialized hit. Exactly one of Object, Values and Fields is
// populated, according to the shape of the set it belongs to.
type Item[T any] struct {
	ID         string
	Object     T
	Values     []any
	Fields     map[string]any
	Highlights Highlights
}

// Set is a materialized response.
type Set[T any] struct {
	Shape      request.Shape
	Took       int
	Total      int
	Items      []Item[T]
	Unresolved []string // ids returned by the engine that did not resolve
	Response   *Response
}

// ResolveFunc looks up domain objects for ids in one round trip. The result
// is keyed by id; ids without an object are simply absent.
type ResolveFunc[T any] func(ctx context.Context, ids []string) (map[string]T, error)

// Materialize converts resp into a Set of the given shape. fields is the
// requested projection; nil means all stored fields.
func Materialize[T any](
	ctx context.Context, shape request.Shape, fields []string,
	resp *Response, resolve ResolveFunc[T],
) (*Set[T], error) {
	if resp == nil {
		resp = &Response{}
	}
	set := &Set[T]{
		Shape:    shape,
		Took:     resp.Took,
		Total:    int(resp.Hits.Total),
		Response: resp,
	}

	hits := resp.Hits.Hits
	switch shape {
	case request.ShapeObjects:
		return materializeObjects(ctx, set, hits, resolve)
	case request.ShapeTuples:
		set.Items = make([]Item[T], len(hits))
		for i := range hits {
			set.Items[i] = Item[T]{
				ID:         hits[i].ID,
				Values:     tupleOf(&hits[i], fields),
				Highlights: highlightsOf(&hits[i]),
			}
		}
	case request.ShapeMaps:
		set.Items = make([]Item[T], len(hits))
		for i := range hits {
			set.Items[i] = Item[T]{
				ID:         hits[i].ID,
				Fields:     mapOf(&hits[i], fields),
				Highlights: highlightsOf(&hits[i]),
			}
		}
	default:
		return nil, fmt.Errorf("materialize: unsupported shape %s", shape)
	}
	return set, nil
}

func materializeObjects[T any](
	ctx context.Context, set *Set[T], hits []Hit, resolve ResolveFunc[T],
) (*Set[T], error) {
	if len(hits) == 0 {
		return set, nil
	}
	if resolve == nil {
		return nil, domain.ErrNoResolver
	}

	ids := make([]string, len(hits))
	for i := range hits {
		ids[i] = hits[i].ID
	}
	objs, err := resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve %d ids: %w", len(ids), err)
	}

	set.Items = make([]Item[T], 0, len(hits))
	for i := range hits {
		obj, ok := objs[hits[i].ID]
		if !ok {
			// Deleted since indexing; dropped rather than failing the page.
			set.Unresolved = append(set.Unresolved, hits[i].ID)
			continue
		}
		set.Items = append(set.Items, Item[T]{
			ID:         hits[i].ID,
			Object:     obj,
			Highlights: highlightsOf(&hits[i]),
		})
	}
	return set, nil
}

func tupleOf(h *Hit, fields []string) []any {
	if len(fields) == 0 {
		return h.Source.Values()
	}
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = h.Fields[f]
	}
	return out
}

func mapOf(h *Hit, fields []string) map[string]any {
	if len(fields) == 0 {
		return h.Source.Map()
	}
	out := maps.Clone(h.Fields)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func highlightsOf(h *Hit) Highlights {
	if h.Highlight == nil {
		return Highlights{}
	}
	return Highlights(h.Highlight)
}
