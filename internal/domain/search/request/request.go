package request

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/kailas-cloud/lazysearch/internal/domain"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/filter"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/query"
)

// DefaultIDField is the field holding document identifiers.
const DefaultIDField = "id"

// Shape is the projection mode of a result set.
type Shape uint8

// Result shapes.
const (
	ShapeObjects Shape = iota
	ShapeTuples
	ShapeMaps
)

func (s Shape) String() string {
	switch s {
	case ShapeObjects:
		return "objects"
	case ShapeTuples:
		return "tuples"
	case ShapeMaps:
		return "maps"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// Document is the request body sent to the engine.
type Document struct {
	Query     map[string]any            `json:"query,omitempty"`
	Filter    map[string]any            `json:"filter,omitempty"`
	Fields    []string                  `json:"fields,omitempty"`
	Sort      []any                     `json:"sort,omitempty"`
	Facets    map[string]map[string]any `json:"facets,omitempty"`
	Highlight *HighlightSpec            `json:"highlight,omitempty"`
	From      int                       `json:"from,omitempty"`
	Size      *int                      `json:"size,omitempty"`
}

// HighlightSpec is the highlight section of a Document.
type HighlightSpec struct {
	Fields   map[string]map[string]any `json:"fields"`
	PreTags  []string                  `json:"pre_tags,omitempty"`
	PostTags []string                  `json:"post_tags,omitempty"`
}

// Built is a folded request: the document plus the projection metadata the
// materializer needs.
type Built struct {
	Document  Document
	Shape     Shape
	Fields    []string // nil requests all stored fields
	Highlight Highlight
}

// Request is an immutable, ordered list of steps plus the pagination window,
// default query fields and field weights. Every With* method returns a copy;
// the receiver is never modified.
type Request struct {
	steps       []Step
	start       int
	stop        int
	bounded     bool
	queryFields []string
	weights     map[string]float64
	idField     string
}

// New creates an empty request. An empty idField falls back to DefaultIDField.
func New(idField string) Request {
	if idField == "" {
		idField = DefaultIDField
	}
	return Request{idField: idField}
}

// With appends a step. Steps are shared between copies; Clip forces the
// append onto a fresh backing array.
func (r Request) With(s Step) Request {
	r.steps = append(slices.Clip(r.steps), s)
	return r
}

// Steps returns a copy of the recorded steps.
func (r Request) Steps() []Step { return slices.Clone(r.steps) }

// Slice sets the window to [start, stop).
func (r Request) Slice(start, stop int) Request {
	r.start, r.stop, r.bounded = max(start, 0), max(stop, 0), true
	return r
}

// From sets the window to [start, ∞).
func (r Request) From(start int) Request {
	r.start, r.stop, r.bounded = max(start, 0), 0, false
	return r
}

// Window returns the window start, stop, and whether stop is set.
func (r Request) Window() (start, stop int, bounded bool) {
	return r.start, r.stop, r.bounded
}

// WithQueryFields adds fields to the set a free-text query expands against.
func (r Request) WithQueryFields(fields ...string) Request {
	set := slices.Clone(r.queryFields)
	for _, f := range fields {
		if !slices.Contains(set, f) {
			set = append(set, f)
		}
	}
	sort.Strings(set)
	r.queryFields = set
	return r
}

// QueryFields returns the default query fields in sorted order.
func (r Request) QueryFields() []string { return slices.Clone(r.queryFields) }

// WithWeights merges boosts into the weight map. Keys may carry an operator
// suffix; weights always apply to the bare field.
func (r Request) WithWeights(w map[string]float64) Request {
	merged := maps.Clone(r.weights)
	if merged == nil {
		merged = make(map[string]float64, len(w))
	}
	for k, v := range w {
		field, _ := filter.SplitKey(k)
		merged[field] = v
	}
	r.weights = merged
	return r
}

// Weights returns a copy of the weight map.
func (r Request) Weights() map[string]float64 { return maps.Clone(r.weights) }

// IDField returns the identifier field name.
func (r Request) IDField() string { return r.idField }

// Build folds the steps into a Document.
func (r Request) Build() (Built, error) {
	var (
		filters []any
		queries []any
		sortBy  []any
		facets  map[string]map[string]any
		hl      Highlight
	)
	shape := ShapeObjects
	fields := []string{r.idField}
	qb := query.NewBuilder(r.weights)

	for _, s := range r.steps {
		switch s.kind {
		case StepValues, StepValuesDict:
			if len(s.fields) == 0 {
				fields = nil
			} else {
				fields = append([]string{r.idField}, s.fields...)
			}
			shape = ShapeTuples
			if s.kind == StepValuesDict {
				shape = ShapeMaps
			}
		case StepOrderBy:
			sortBy = sortClauses(s.fields)
		case StepQuery:
			clauses, err := qb.Clauses(s.query)
			if err != nil {
				return Built{}, fmt.Errorf("build query: %w", err)
			}
			queries = appendClauses(queries, clauses)
		case StepQueryDefault:
			clauses, err := qb.Clauses(query.DefaultFields(r.queryFields, s.text))
			if err != nil {
				return Built{}, fmt.Errorf("build default query: %w", err)
			}
			queries = appendClauses(queries, clauses)
		case StepFilter:
			for _, f := range s.filters {
				if c := f.Clause(); c != nil {
					filters = append(filters, c)
				}
			}
		case StepFacet:
			if facets == nil {
				facets = make(map[string]map[string]any, len(s.facets))
			}
			for name, spec := range s.facets {
				facets[name] = maps.Clone(spec)
			}
		case StepHighlight:
			hl = s.highlight
		default:
			return Built{}, fmt.Errorf("%w: kind %d", domain.ErrUnknownStep, s.kind)
		}
	}

	var doc Document
	switch len(filters) {
	case 0:
	case 1:
		doc.Filter = filters[0].(map[string]any)
	default:
		doc.Filter = map[string]any{"and": filters}
	}
	switch len(queries) {
	case 0:
	case 1:
		doc.Query = queries[0].(map[string]any)
	default:
		doc.Query = map[string]any{"bool": map[string]any{"must": queries}}
	}
	doc.Fields = fields
	doc.Sort = sortBy

	if len(facets) > 0 {
		for _, spec := range facets {
			if _, ok := spec["facet_filter"]; !ok && doc.Filter != nil {
				spec["facet_filter"] = doc.Filter
			}
		}
		doc.Facets = facets
	}

	if r.start != 0 {
		doc.From = r.start
	}
	if r.bounded {
		size := max(r.stop-r.start, 0)
		doc.Size = &size
	}

	if len(hl.Fields) > 0 {
		doc.Highlight = highlightSpec(hl)
	}

	return Built{Document: doc, Shape: shape, Fields: fields, Highlight: hl}, nil
}

func appendClauses(dst []any, clauses []map[string]any) []any {
	for _, c := range clauses {
		dst = append(dst, c)
	}
	return dst
}

func sortClauses(keys []string) []any {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if field, ok := strings.CutPrefix(k, "-"); ok {
			out = append(out, map[string]any{field: "desc"})
		} else {
			out = append(out, k)
		}
	}
	return out
}

func highlightSpec(h Highlight) *HighlightSpec {
	spec := &HighlightSpec{Fields: make(map[string]map[string]any, len(h.Fields))}
	for _, f := range h.Fields {
		spec.Fields[f] = map[string]any{}
	}
	if h.BeforeMatch != "" {
		spec.PreTags = []string{h.BeforeMatch}
	}
	if h.AfterMatch != "" {
		spec.PostTags = []string{h.AfterMatch}
	}
	return spec
}
