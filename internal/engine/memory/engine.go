// Package memory is an in-process search engine that evaluates request
// documents over a small set of stored records. It serves tests and local
// development in place of a real cluster.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
)

// DefaultSize is the page size used when a request sets none.
const DefaultSize = 10

// ErrUnsupported is returned for request constructs the engine cannot evaluate.
var ErrUnsupported = errors.New("memory: unsupported construct")

type record struct {
	id     string
	source *result.Source
	fields map[string]any
}

// Engine stores records per index and document type.
type Engine struct {
	mu   sync.RWMutex
	docs map[string][]record
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{docs: make(map[string][]record)}
}

func bucket(index, docType string) string { return index + "/" + docType }

// Put stores src under id, replacing any record with the same id. Values are
// normalized through JSON so they compare the way decoded responses do.
func (e *Engine) Put(index, docType, id string, src *result.Source) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	norm := &result.Source{}
	if err := json.Unmarshal(raw, norm); err != nil {
		return fmt.Errorf("decode %s: %w", id, err)
	}
	rec := record{id: id, source: norm, fields: norm.Map()}

	e.mu.Lock()
	defer e.mu.Unlock()
	key := bucket(index, docType)
	recs := e.docs[key]
	if i := slices.IndexFunc(recs, func(r record) bool { return r.id == id }); i >= 0 {
		recs[i] = rec
		return nil
	}
	e.docs[key] = append(recs, rec)
	return nil
}

// Entry is one record of a seed file.
type Entry struct {
	Index  string         `json:"_index"`
	Type   string         `json:"_type"`
	ID     string         `json:"_id"`
	Source *result.Source `json:"_source"`
}

// Load stores every entry of a JSON array read from r.
func (e *Engine) Load(r io.Reader) (int, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}
	for _, en := range entries {
		if err := e.Put(en.Index, en.Type, en.ID, en.Source); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// LoadFile is Load over the file at path.
func (e *Engine) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return e.Load(f)
}

type candidate struct {
	rec     record
	score   float64
	matched map[string]map[string]struct{}
}

// Execute evaluates doc against the records of index/docType.
func (e *Engine) Execute(
	ctx context.Context, doc *request.Document, index, docType string,
) (*result.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	body, err := normalize(doc)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	recs := slices.Clone(e.docs[bucket(index, docType)])
	e.mu.RUnlock()

	// Query-matched records feed both the hits and the facets.
	queried := make([]candidate, 0, len(recs))
	for _, rec := range recs {
		s := newScorer(rec.fields)
		ok := true
		if q, has := body["query"]; has {
			if ok, err = s.eval(q); err != nil {
				return nil, err
			}
		} else {
			s.score = 1
		}
		if ok {
			queried = append(queried, candidate{rec: rec, score: s.score, matched: s.matched})
		}
	}

	hits := make([]candidate, 0, len(queried))
	for _, c := range queried {
		if f, has := body["filter"]; has {
			ok, err := matchFilter(f, c.rec.fields)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		hits = append(hits, c)
	}

	if err := sortHits(hits, body["sort"]); err != nil {
		return nil, err
	}

	resp := &result.Response{}
	resp.Hits.Total = result.Total(len(hits))
	page := window(hits, body)

	fields, projected := body["fields"]
	hl, err := parseHighlight(body["highlight"])
	if err != nil {
		return nil, err
	}
	resp.Hits.Hits = make([]result.Hit, len(page))
	for i, c := range page {
		h := result.Hit{ID: c.rec.id}
		if projected {
			h.Fields = project(c.rec.fields, fields)
		} else {
			h.Source = c.rec.source
		}
		h.Highlight = hl.apply(c.rec.fields, c.matched)
		resp.Hits.Hits[i] = h
	}

	if specs, has := body["facets"]; has {
		if resp.Facets, err = facets(specs, queried); err != nil {
			return nil, err
		}
	}

	resp.Took = int(time.Since(start).Milliseconds())
	return resp, nil
}

// normalize round-trips doc through JSON so every clause is a plain
// map[string]any / []any tree.
func normalize(doc *request.Document) (map[string]any, error) {
	if doc == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return body, nil
}

func window(hits []candidate, body map[string]any) []candidate {
	from, size := 0, DefaultSize
	if v, ok := toFloat(body["from"]); ok {
		from = max(int(v), 0)
	}
	if v, ok := toFloat(body["size"]); ok {
		size = max(int(v), 0)
	}
	if from >= len(hits) {
		return nil
	}
	return hits[from:min(from+size, len(hits))]
}

func project(src map[string]any, fields any) map[string]any {
	out := make(map[string]any)
	for _, f := range list(fields) {
		name, ok := f.(string)
		if !ok {
			continue
		}
		if v, ok := src[name]; ok {
			out[name] = v
		}
	}
	return out
}

type sortKey struct {
	field string
	desc  bool
}

func sortHits(hits []candidate, spec any) error {
	if spec == nil {
		slices.SortStableFunc(hits, func(a, b candidate) int {
			return compare(b.score, a.score)
		})
		return nil
	}

	var keys []sortKey
	for _, s := range list(spec) {
		switch v := s.(type) {
		case string:
			keys = append(keys, sortKey{field: v})
		case map[string]any:
			field, order, err := single(v)
			if err != nil {
				return fmt.Errorf("sort: %w", err)
			}
			if m, ok := order.(map[string]any); ok {
				order = m["order"]
			}
			keys = append(keys, sortKey{field: field, desc: order == "desc"})
		default:
			return fmt.Errorf("%w: sort key %v", ErrUnsupported, s)
		}
	}

	slices.SortStableFunc(hits, func(a, b candidate) int {
		for _, k := range keys {
			var av, bv any
			if k.field == "_score" {
				av, bv = a.score, b.score
			} else {
				av, bv = a.rec.fields[k.field], b.rec.fields[k.field]
			}
			// Missing values sort last in either direction.
			switch {
			case av == nil && bv == nil:
				continue
			case av == nil:
				return 1
			case bv == nil:
				return -1
			}
			c := compare(av, bv)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return nil
}

// Ping reports the engine as available while ctx is live.
func (e *Engine) Ping(ctx context.Context) error {
	return ctx.Err()
}
