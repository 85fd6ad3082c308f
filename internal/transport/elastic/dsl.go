package elastic

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
)

// ErrUnsupported is returned for request parts with no 6.x/7.x equivalent.
var ErrUnsupported = errors.New("unsupported by elasticsearch transport")

// facetAgg records how a facet was rendered so its aggregation can be read
// back.
type facetAgg struct {
	kind     string // "terms" or "range"
	filtered bool   // wrapped in a filter aggregation named after the facet
}

// body is a request document rendered in the current query DSL.
type body struct {
	doc    map[string]any
	facets map[string]facetAgg
	fields []string
}

// translate renders doc for Elasticsearch 6.x and 7.x. The top-level filter
// becomes post_filter so it narrows hits without touching aggregations, the
// way filters and facets interact in the legacy DSL. Facets become
// aggregations and fields become _source filtering.
func translate(doc *request.Document) (*body, error) {
	out := map[string]any{"track_total_hits": true}
	b := &body{doc: out}
	if doc == nil {
		return b, nil
	}

	if doc.Query != nil {
		out["query"] = doc.Query
	}
	if doc.Filter != nil {
		f, err := translateFilter(doc.Filter)
		if err != nil {
			return nil, err
		}
		out["post_filter"] = f
	}
	if doc.Fields != nil {
		out["_source"] = doc.Fields
		b.fields = doc.Fields
	}
	if len(doc.Sort) > 0 {
		out["sort"] = doc.Sort
	}
	if doc.Highlight != nil {
		out["highlight"] = doc.Highlight
	}
	if doc.From != 0 {
		out["from"] = doc.From
	}
	if doc.Size != nil {
		out["size"] = *doc.Size
	}

	if len(doc.Facets) > 0 {
		aggs := make(map[string]any, len(doc.Facets))
		b.facets = make(map[string]facetAgg, len(doc.Facets))
		for name, spec := range doc.Facets {
			agg, meta, err := translateFacet(name, spec)
			if err != nil {
				return nil, err
			}
			aggs[name] = agg
			b.facets[name] = meta
		}
		out["aggs"] = aggs
	}
	return b, nil
}

// translateFilter rewrites a legacy filter clause into bool queries.
func translateFilter(clause map[string]any) (map[string]any, error) {
	if len(clause) != 1 {
		return nil, fmt.Errorf("%w: filter %v", ErrUnsupported, clause)
	}
	for kind, arg := range clause {
		switch kind {
		case "term", "range":
			return clause, nil
		case "in":
			return map[string]any{"terms": arg}, nil
		case "and", "or":
			ops, ok := arg.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects a list", ErrUnsupported, kind)
			}
			subs, err := translateAll(ops)
			if err != nil {
				return nil, err
			}
			if kind == "and" {
				return map[string]any{"bool": map[string]any{"filter": subs}}, nil
			}
			return map[string]any{"bool": map[string]any{"should": subs, "minimum_should_match": 1}}, nil
		case "not":
			m, ok := arg.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: not expects a filter", ErrUnsupported)
			}
			inner, ok := m["filter"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: not expects a filter", ErrUnsupported)
			}
			sub, err := translateFilter(inner)
			if err != nil {
				return nil, err
			}
			return map[string]any{"bool": map[string]any{"must_not": []any{sub}}}, nil
		}
		return nil, fmt.Errorf("%w: filter type %q", ErrUnsupported, kind)
	}
	return nil, nil
}

func translateAll(ops []any) ([]any, error) {
	out := make([]any, 0, len(ops))
	for _, o := range ops {
		m, ok := o.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: filter %v", ErrUnsupported, o)
		}
		sub, err := translateFilter(m)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// translateFacet renders a terms or range facet as an aggregation. A
// facet_filter wraps it in a filter aggregation holding one sub-aggregation
// of the same name.
func translateFacet(name string, spec map[string]any) (map[string]any, facetAgg, error) {
	var (
		agg  map[string]any
		meta facetAgg
	)
	switch {
	case spec["terms"] != nil:
		args, ok := spec["terms"].(map[string]any)
		if !ok {
			return nil, meta, fmt.Errorf("%w: terms facet %q", ErrUnsupported, name)
		}
		terms := map[string]any{"field": args["field"]}
		if size, ok := args["size"]; ok {
			terms["size"] = size
		}
		agg, meta.kind = map[string]any{"terms": terms}, "terms"
	case spec["range"] != nil:
		args, ok := spec["range"].(map[string]any)
		if !ok {
			return nil, meta, fmt.Errorf("%w: range facet %q", ErrUnsupported, name)
		}
		agg = map[string]any{"range": map[string]any{"field": args["field"], "ranges": args["ranges"]}}
		meta.kind = "range"
	default:
		return nil, meta, fmt.Errorf("%w: facet %q has no terms or range section", ErrUnsupported, name)
	}

	ff, has := spec["facet_filter"].(map[string]any)
	if !has {
		return agg, meta, nil
	}
	f, err := translateFilter(ff)
	if err != nil {
		return nil, meta, fmt.Errorf("facet %q: %w", name, err)
	}
	meta.filtered = true
	return map[string]any{"filter": f, "aggs": map[string]any{name: agg}}, meta, nil
}

// searchResponse is a 6.x/7.x search response.
type searchResponse struct {
	result.Response
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

type bucket struct {
	Key      any      `json:"key"`
	From     *float64 `json:"from"`
	To       *float64 `json:"to"`
	DocCount int      `json:"doc_count"`
}

// convert reads the aggregations back as facets and projects the requested
// fields out of _source.
func (b *body) convert(raw *searchResponse) (*result.Response, error) {
	resp := raw.Response

	if len(b.facets) > 0 {
		resp.Facets = make(map[string]result.Facet, len(b.facets))
		for name, meta := range b.facets {
			f, err := readFacet(name, meta, raw.Aggregations[name])
			if err != nil {
				return nil, err
			}
			resp.Facets[name] = f
		}
	}

	if b.fields != nil {
		for i := range resp.Hits.Hits {
			h := &resp.Hits.Hits[i]
			fields := make(map[string]any, len(b.fields))
			for _, f := range b.fields {
				if v, ok := h.Source.Get(f); ok {
					fields[f] = v
				}
			}
			h.Fields, h.Source = fields, nil
		}
	}
	return &resp, nil
}

func readFacet(name string, meta facetAgg, raw json.RawMessage) (result.Facet, error) {
	f := result.Facet{Type: meta.kind}
	if len(raw) == 0 {
		return f, nil
	}
	if meta.filtered {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return f, fmt.Errorf("decode aggregation %q: %w", name, err)
		}
		raw = wrapper[name]
		if len(raw) == 0 {
			return f, nil
		}
	}

	var agg struct {
		Buckets []bucket `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		return f, fmt.Errorf("decode aggregation %q: %w", name, err)
	}
	entries := make([]result.FacetEntry, len(agg.Buckets))
	for i, bk := range agg.Buckets {
		entries[i] = result.FacetEntry{Count: bk.DocCount}
		if meta.kind == "range" {
			entries[i].From, entries[i].To = bk.From, bk.To
		} else {
			entries[i].Term = bk.Key
		}
	}
	if meta.kind == "range" {
		f.Ranges = entries
	} else {
		f.Terms = entries
	}
	return f, nil
}
