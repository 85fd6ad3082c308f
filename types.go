package lazysearch

import (
	"context"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/lazysearch/internal/usecase/search"
)

// Q maps field[__op] keys to values. Operators: in, gt, gte, lt, lte,
// startswith, text, fuzzy. The key "or_" holds a nested Q combined as a
// disjunction.
type Q = map[string]any

// FacetSpec is the engine-level definition of one facet.
type FacetSpec = map[string]any

// Result shapes.
type Shape = request.Shape

// Result shapes.
const (
	ShapeObjects = request.ShapeObjects
	ShapeTuples  = request.ShapeTuples
	ShapeMaps    = request.ShapeMaps
)

type (
	// Document is the request body sent to the engine.
	Document = request.Document
	// Response is the raw engine response.
	Response = result.Response
	// Highlights maps a field to its highlighted fragments.
	Highlights = result.Highlights
	// Facet is one facet section of a response.
	Facet = result.Facet
	// FacetEntry is one bucket of a terms or range facet.
	FacetEntry = result.FacetEntry
	// Transport executes a request document against an index and type.
	Transport = searchuc.Transport
)

// Item is one materialized hit.
type Item[T any] = result.Item[T]

// ResultSet is a realized response.
type ResultSet[T any] = result.Set[T]

// Identified is implemented by objects a Resolver returns.
type Identified interface {
	SearchID() string
}

// Resolver loads domain objects for hit ids in one round trip. Objects that
// no longer exist are simply left out.
type Resolver[T Identified] interface {
	ResolveMany(ctx context.Context, ids []string) ([]T, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc[T Identified] func(ctx context.Context, ids []string) ([]T, error)

// ResolveMany calls f.
func (f ResolverFunc[T]) ResolveMany(ctx context.Context, ids []string) ([]T, error) {
	return f(ctx, ids)
}

// Ref is the object type of cursors created by Client.Search: the hit id
// without a lookup.
type Ref struct {
	ID string
}

// SearchID implements Identified.
func (r Ref) SearchID() string { return r.ID }

func resolveWith[T Identified](r Resolver[T]) result.ResolveFunc[T] {
	if r == nil {
		return nil
	}
	return func(ctx context.Context, ids []string) (map[string]T, error) {
		objs, err := r.ResolveMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make(map[string]T, len(objs))
		for _, o := range objs {
			out[o.SearchID()] = o
		}
		return out, nil
	}
}

func resolveRefs(_ context.Context, ids []string) (map[string]Ref, error) {
	out := make(map[string]Ref, len(ids))
	for _, id := range ids {
		out[id] = Ref{ID: id}
	}
	return out, nil
}
