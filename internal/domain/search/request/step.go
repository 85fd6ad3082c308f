package request

import (
	"maps"
	"slices"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/filter"
)

// StepKind discriminates the builder steps.
type StepKind uint8

// Step kinds, one per builder call that records a step.
const (
	StepValues StepKind = iota + 1
	StepValuesDict
	StepOrderBy
	StepQuery
	StepQueryDefault
	StepFilter
	StepFacet
	StepHighlight
)

// Step is one recorded builder call. Steps are immutable once created.
type Step struct {
	kind      StepKind
	fields    []string
	query     map[string]any
	text      string
	filters   []filter.Expression
	facets    map[string]map[string]any
	highlight Highlight
}

// Kind returns the step kind.
func (s Step) Kind() StepKind { return s.kind }

// Highlight configures excerpting. BeforeMatch and AfterMatch are optional
// markers around each highlighted portion.
type Highlight struct {
	Fields      []string
	BeforeMatch string
	AfterMatch  string
}

// Values projects results as tuples of the id field followed by fields. No
// fields means every stored field in engine order.
func Values(fields ...string) Step {
	return Step{kind: StepValues, fields: slices.Clone(fields)}
}

// ValuesDict projects results as field maps. No fields means all stored fields.
func ValuesDict(fields ...string) Step {
	return Step{kind: StepValuesDict, fields: slices.Clone(fields)}
}

// OrderBy replaces the sort order. A leading "-" sorts descending.
func OrderBy(keys ...string) Step {
	return Step{kind: StepOrderBy, fields: slices.Clone(keys)}
}

// Query adds clauses rendered from a "field[__op]" map.
func Query(kw map[string]any) Step {
	return Step{kind: StepQuery, query: maps.Clone(kw)}
}

// QueryDefault adds a free-text query against the default query fields.
func QueryDefault(text string) Step {
	return Step{kind: StepQueryDefault, text: text}
}

// Filter adds filter expressions.
func Filter(exprs ...filter.Expression) Step {
	return Step{kind: StepFilter, filters: slices.Clone(exprs)}
}

// Facet adds named facet specs, overriding earlier facets with the same name.
func Facet(facets map[string]map[string]any) Step {
	cp := make(map[string]map[string]any, len(facets))
	for name, spec := range facets {
		cp[name] = maps.Clone(spec)
	}
	return Step{kind: StepFacet, facets: cp}
}

// HighlightStep replaces the highlight configuration.
func HighlightStep(h Highlight) Step {
	h.Fields = slices.Clone(h.Fields)
	return Step{kind: StepHighlight, highlight: h}
}
