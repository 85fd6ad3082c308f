// Package query turns "field[__op]" maps into engine query clauses.
package query

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/lazysearch/internal/domain"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/filter"
)

// Clause kinds emitted for non-range operators.
var clauseKinds = map[filter.Op]string{
	filter.OpNone:       "term",
	filter.OpIn:         "terms",
	filter.OpStartsWith: "prefix",
	filter.OpText:       "match",
	filter.OpFuzzy:      "fuzzy",
}

// Builder renders query clauses, boosting fields listed in its weights.
// Weights are keyed by bare field name.
type Builder struct {
	weights map[string]float64
}

// NewBuilder creates a Builder over the given weights. The map is not copied
// and must not be modified afterwards.
func NewBuilder(weights map[string]float64) Builder {
	return Builder{weights: weights}
}

// Clauses renders kw into an ordered list of clauses. Keys are processed in
// sorted order; the or_ group, if any, is appended last as a bool/should.
func (b Builder) Clauses(kw map[string]any) ([]map[string]any, error) {
	nested, hasOr := kw[filter.OrKey]

	keys := make([]string, 0, len(kw))
	for k := range kw {
		if k != filter.OrKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]map[string]any, 0, len(keys)+1)
	for _, key := range keys {
		field, op := filter.SplitKey(key)
		if op.IsRange() {
			out = append(out, map[string]any{
				"range": b.weighted(field, op, map[string]any{string(op): kw[key]}),
			})
			continue
		}
		kind, ok := clauseKinds[op]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidQuery, op)
		}
		out = append(out, map[string]any{kind: b.weighted(field, op, kw[key])})
	}

	if hasOr {
		m, ok := nested.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a map, got %T", domain.ErrInvalidQuery, filter.OrKey, nested)
		}
		should, err := b.Clauses(m)
		if err != nil {
			return nil, err
		}
		if len(should) > 0 {
			out = append(out, map[string]any{"bool": map[string]any{"should": should}})
		}
	}
	return out, nil
}

func (b Builder) weighted(field string, op filter.Op, value any) map[string]any {
	w, ok := b.weights[field]
	if !ok {
		return map[string]any{field: value}
	}
	valueKey := "value"
	if op == filter.OpText {
		valueKey = "query"
	}
	return map[string]any{field: map[string]any{"boost": w, valueKey: value}}
}

// DefaultFields expands a free-text term against fields into the equivalent
// explicit map: an or_ group with one entry per field.
func DefaultFields(fields []string, text string) map[string]any {
	group := make(map[string]any, len(fields))
	for _, f := range fields {
		group[f] = text
	}
	return map[string]any{filter.OrKey: group}
}
