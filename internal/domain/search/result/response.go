package result

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Response is the raw engine response.
type Response struct {
	Took   int              `json:"took"`
	Hits   Hits             `json:"hits"`
	Facets map[string]Facet `json:"facets,omitempty"`
}

// Hits holds the total match count and the returned page of hits.
type Hits struct {
	Total Total `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Total accepts both the legacy integer form and the {"value": n} form.
type Total int

// UnmarshalJSON implements json.Unmarshaler.
func (t *Total) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*t = Total(n)
		return nil
	}
	var obj struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("hits.total: %w", err)
	}
	*t = Total(obj.Value)
	return nil
}

// Hit is a single matched document.
type Hit struct {
	ID        string              `json:"_id"`
	Source    *Source             `json:"_source,omitempty"`
	Fields    map[string]any      `json:"fields,omitempty"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// Facet is a facet section of the response.
type Facet struct {
	Type   string       `json:"_type"`
	Terms  []FacetEntry `json:"terms,omitempty"`
	Ranges []FacetEntry `json:"ranges,omitempty"`
}

// FacetEntry is one bucket of a terms or range facet.
type FacetEntry struct {
	Term  any      `json:"term,omitempty"`
	From  *float64 `json:"from,omitempty"`
	To    *float64 `json:"to,omitempty"`
	Count int      `json:"count"`
}

// Source is a stored document that keeps the engine's key order.
type Source struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewSource creates a Source with keys in the given order. Keys missing from
// values are ignored.
func NewSource(keys []string, values map[string]any) *Source {
	s := &Source{fields: orderedmap.New[string, any](len(keys))}
	for _, k := range keys {
		if v, ok := values[k]; ok {
			s.fields.Set(k, v)
		}
	}
	return s
}

// Keys returns the field names in engine order.
func (s *Source) Keys() []string {
	if s == nil || s.fields == nil {
		return nil
	}
	out := make([]string, 0, s.fields.Len())
	for p := s.fields.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Values returns the field values in engine order.
func (s *Source) Values() []any {
	if s == nil || s.fields == nil {
		return nil
	}
	out := make([]any, 0, s.fields.Len())
	for p := s.fields.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}
	return out
}

// Map returns a copy of the fields as a map.
func (s *Source) Map() map[string]any {
	if s == nil || s.fields == nil {
		return map[string]any{}
	}
	out := make(map[string]any, s.fields.Len())
	for p := s.fields.Oldest(); p != nil; p = p.Next() {
		out[p.Key] = p.Value
	}
	return out
}

// Get returns a single field value.
func (s *Source) Get(key string) (any, bool) {
	if s == nil || s.fields == nil {
		return nil, false
	}
	return s.fields.Get(key)
}

// UnmarshalJSON decodes an object while recording key order. A repeated key
// keeps its first position and its last value.
func (s *Source) UnmarshalJSON(b []byte) error {
	fields := orderedmap.New[string, any]()
	if trimmed := bytes.TrimSpace(b); !bytes.Equal(trimmed, []byte("null")) {
		if err := fields.UnmarshalJSON(trimmed); err != nil {
			return fmt.Errorf("_source: %w", err)
		}
	}
	s.fields = fields
	return nil
}

// MarshalJSON encodes the fields in engine order.
func (s *Source) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	if s.fields == nil {
		return []byte("{}"), nil
	}
	out, err := s.fields.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("_source: %w", err)
	}
	return out, nil
}
