package memory

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
)

const defaultFacetSize = 10

// facets computes every requested facet over the query-matched records. A
// facet_filter narrows the records of its own facet only.
func facets(specs any, queried []candidate) (map[string]result.Facet, error) {
	m, ok := specs.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: facets %v", ErrUnsupported, specs)
	}

	out := make(map[string]result.Facet, len(m))
	for name, raw := range m {
		spec, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: facet %q", ErrUnsupported, name)
		}

		recs := make([]map[string]any, 0, len(queried))
		for _, c := range queried {
			if ff, has := spec["facet_filter"]; has {
				ok, err := matchFilter(ff, c.rec.fields)
				if err != nil {
					return nil, fmt.Errorf("facet %q: %w", name, err)
				}
				if !ok {
					continue
				}
			}
			recs = append(recs, c.rec.fields)
		}

		var (
			f   result.Facet
			err error
		)
		switch {
		case spec["terms"] != nil:
			f, err = termsFacet(spec["terms"], recs)
		case spec["range"] != nil:
			f, err = rangeFacet(spec["range"], recs)
		default:
			err = fmt.Errorf("%w: facet %q has no known type", ErrUnsupported, name)
		}
		if err != nil {
			return nil, err
		}
		out[name] = f
	}
	return out, nil
}

func termsFacet(spec any, recs []map[string]any) (result.Facet, error) {
	m, ok := spec.(map[string]any)
	if !ok {
		return result.Facet{}, fmt.Errorf("%w: terms facet %v", ErrUnsupported, spec)
	}
	field, _ := m["field"].(string)
	size := defaultFacetSize
	if v, ok := toFloat(m["size"]); ok {
		size = int(v)
	}

	type bucket struct {
		term  any
		count int
	}
	var buckets []bucket
	for _, rec := range recs {
		for _, v := range list(rec[field]) {
			if v == nil {
				continue
			}
			i := slices.IndexFunc(buckets, func(b bucket) bool { return equal(b.term, v) })
			if i < 0 {
				buckets = append(buckets, bucket{term: v})
				i = len(buckets) - 1
			}
			buckets[i].count++
		}
	}
	slices.SortStableFunc(buckets, func(a, b bucket) int {
		if a.count != b.count {
			return b.count - a.count
		}
		return compare(a.term, b.term)
	})
	if len(buckets) > size {
		buckets = buckets[:size]
	}

	f := result.Facet{Type: "terms", Terms: make([]result.FacetEntry, len(buckets))}
	for i, b := range buckets {
		f.Terms[i] = result.FacetEntry{Term: b.term, Count: b.count}
	}
	return f, nil
}

func rangeFacet(spec any, recs []map[string]any) (result.Facet, error) {
	m, ok := spec.(map[string]any)
	if !ok {
		return result.Facet{}, fmt.Errorf("%w: range facet %v", ErrUnsupported, spec)
	}
	field, _ := m["field"].(string)

	f := result.Facet{Type: "range"}
	for _, r := range list(m["ranges"]) {
		bounds, ok := r.(map[string]any)
		if !ok {
			return result.Facet{}, fmt.Errorf("%w: range %v", ErrUnsupported, r)
		}
		entry := result.FacetEntry{}
		if v, ok := toFloat(bounds["from"]); ok {
			entry.From = &v
		}
		if v, ok := toFloat(bounds["to"]); ok {
			entry.To = &v
		}
		for _, rec := range recs {
			if within(rec[field], entry.From, entry.To) {
				entry.Count++
			}
		}
		f.Ranges = append(f.Ranges, entry)
	}
	return f, nil
}

// within checks from <= v < to with open ends for nil bounds.
func within(v any, from, to *float64) bool {
	x, ok := toFloat(v)
	if !ok {
		return false
	}
	if from != nil && x < *from {
		return false
	}
	if to != nil && x >= *to {
		return false
	}
	return true
}
