package memory

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
)

const (
	testIndex = "test"
	testType  = "fakemodel"
)

const seed = `[
 {"_index":"test","_type":"fakemodel","_id":"1","_source":{"id":1,"foo":"bar","tag":"awesome","width":2}},
 {"_index":"test","_type":"fakemodel","_id":"2","_source":{"id":2,"foo":"barf","tag":"boring","width":7}},
 {"_index":"test","_type":"fakemodel","_id":"3","_source":{"id":3,"foo":"car","tag":"awesome","width":5}},
 {"_index":"test","_type":"fakemodel","_id":"4","_source":{"id":4,"foo":"duck","tag":"boat","width":11}},
 {"_index":"test","_type":"fakemodel","_id":"5","_source":{"id":5,"foo":"train car","tag":"awesome","width":7}}
]`

func seeded(t *testing.T) *Engine {
	t.Helper()
	e := New()
	n, err := e.Load(strings.NewReader(seed))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 5 {
		t.Fatalf("loaded %d records", n)
	}
	return e
}

func run(t *testing.T, e *Engine, doc *request.Document) *result.Response {
	t.Helper()
	resp, err := e.Execute(context.Background(), doc, testIndex, testType)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return resp
}

func ids(resp *result.Response) []string {
	out := make([]string, len(resp.Hits.Hits))
	for i, h := range resp.Hits.Hits {
		out[i] = h.ID
	}
	return out
}

func term(field string, v any) map[string]any {
	return map[string]any{"term": map[string]any{field: v}}
}

func TestExecute_NoClausesReturnsAll(t *testing.T) {
	resp := run(t, seeded(t), &request.Document{})
	if resp.Hits.Total != 5 || len(resp.Hits.Hits) != 5 {
		t.Fatalf("total=%d hits=%d", resp.Hits.Total, len(resp.Hits.Hits))
	}
	if got := resp.Hits.Hits[0].Source.Keys(); !reflect.DeepEqual(got, []string{"id", "foo", "tag", "width"}) {
		t.Errorf("source order = %v", got)
	}
}

func TestExecute_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter map[string]any
		want   int
	}{
		{"term", term("tag", "awesome"), 3},
		{"not", map[string]any{"not": map[string]any{"filter": term("tag", "awesome")}}, 2},
		{"or", map[string]any{"or": []any{term("tag", "awesome"), term("tag", "boat")}}, 4},
		{"and", map[string]any{"and": []any{term("tag", "awesome"), term("width", 7)}}, 1},
		{"in", map[string]any{"in": map[string]any{"foo": []any{"bar", "duck"}}}, 2},
		{"range", map[string]any{"range": map[string]any{"width": map[string]any{"gte": 5, "lt": 11}}}, 3},
		{"token", term("foo", "car"), 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := run(t, seeded(t), &request.Document{Filter: tc.filter})
			if int(resp.Hits.Total) != tc.want {
				t.Errorf("total = %d, want %d", resp.Hits.Total, tc.want)
			}
		})
	}
}

func TestExecute_Queries(t *testing.T) {
	tests := []struct {
		name  string
		query map[string]any
		want  int
	}{
		{"term exact", map[string]any{"term": map[string]any{"foo": "bar"}}, 1},
		{"term token", map[string]any{"term": map[string]any{"foo": "car"}}, 2},
		{"prefix", map[string]any{"prefix": map[string]any{"foo": "ba"}}, 2},
		{"match", map[string]any{"match": map[string]any{"foo": "train duck"}}, 2},
		{"fuzzy", map[string]any{"fuzzy": map[string]any{"foo": "tran"}}, 1},
		{"boosted", map[string]any{"match": map[string]any{"foo": map[string]any{"boost": 2, "query": "car"}}}, 2},
		{"should", map[string]any{"bool": map[string]any{"should": []any{
			term("foo", "bar"), term("tag", "boat"),
		}}}, 2},
		{"must", map[string]any{"bool": map[string]any{"must": []any{
			term("tag", "awesome"), term("foo", "car"),
		}}}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := run(t, seeded(t), &request.Document{Query: tc.query})
			if int(resp.Hits.Total) != tc.want {
				t.Errorf("total = %d, want %d (%v)", resp.Hits.Total, tc.want, ids(resp))
			}
		})
	}
}

func TestExecute_SortAndWindow(t *testing.T) {
	e := seeded(t)
	doc := &request.Document{
		Filter: term("tag", "awesome"),
		Sort:   []any{map[string]any{"width": "desc"}},
	}
	if got := ids(run(t, e, doc)); !reflect.DeepEqual(got, []string{"5", "3", "1"}) {
		t.Errorf("desc = %v", got)
	}

	size := 1
	doc.From, doc.Size = 1, &size
	resp := run(t, e, doc)
	if got := ids(resp); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("window = %v", got)
	}
	if resp.Hits.Total != 3 {
		t.Errorf("total counts the full match, got %d", resp.Hits.Total)
	}
}

func TestExecute_ZeroSize(t *testing.T) {
	size := 0
	resp := run(t, seeded(t), &request.Document{Size: &size})
	if resp.Hits.Total != 5 || len(resp.Hits.Hits) != 0 {
		t.Errorf("total=%d hits=%d", resp.Hits.Total, len(resp.Hits.Hits))
	}
}

func TestExecute_FieldsProjection(t *testing.T) {
	resp := run(t, seeded(t), &request.Document{Filter: term("id", 4), Fields: []string{"id", "foo"}})
	h := resp.Hits.Hits[0]
	if h.Source != nil {
		t.Error("projected hit should not carry _source")
	}
	if !reflect.DeepEqual(h.Fields, map[string]any{"id": float64(4), "foo": "duck"}) {
		t.Errorf("fields = %v", h.Fields)
	}
}

func TestExecute_Highlight(t *testing.T) {
	doc := &request.Document{
		Query:  map[string]any{"match": map[string]any{"foo": "car"}},
		Filter: term("id", 5),
		Highlight: &request.HighlightSpec{
			Fields: map[string]map[string]any{"tag": {}, "foo": {}},
		},
	}
	resp := run(t, seeded(t), doc)
	if got := resp.Hits.Hits[0].Highlight; !reflect.DeepEqual(got, map[string][]string{"foo": {"train <em>car</em>"}}) {
		t.Errorf("highlight = %v", got)
	}

	doc.Highlight.PreTags, doc.Highlight.PostTags = []string{"<b>"}, []string{"</b>"}
	resp = run(t, seeded(t), doc)
	if got := resp.Hits.Hits[0].Highlight["foo"]; !reflect.DeepEqual(got, []string{"train <b>car</b>"}) {
		t.Errorf("custom tags = %v", got)
	}
}

func TestExecute_Facets(t *testing.T) {
	doc := &request.Document{
		Facets: map[string]map[string]any{
			"tag": {"terms": map[string]any{"field": "tag"}},
			"awesome_widths": {
				"range":        map[string]any{"field": "width", "ranges": []any{map[string]any{"to": 5}, map[string]any{"from": 5}}},
				"facet_filter": term("tag", "awesome"),
			},
		},
	}
	resp := run(t, seeded(t), doc)

	terms := resp.Facets["tag"].Terms
	got := map[any]int{}
	for _, e := range terms {
		got[e.Term] = e.Count
	}
	if !reflect.DeepEqual(got, map[any]int{"awesome": 3, "boring": 1, "boat": 1}) {
		t.Errorf("terms = %v", got)
	}
	if terms[0].Term != "awesome" {
		t.Errorf("terms not ordered by count: %v", terms)
	}

	ranges := resp.Facets["awesome_widths"].Ranges
	if len(ranges) != 2 || ranges[0].Count != 1 || ranges[1].Count != 2 {
		t.Errorf("ranges = %+v", ranges)
	}
}

func TestExecute_Unsupported(t *testing.T) {
	_, err := seeded(t).Execute(context.Background(),
		&request.Document{Filter: map[string]any{"geo_distance": map[string]any{"loc": 1}}}, testIndex, testType)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := seeded(t).Execute(ctx, &request.Document{}, testIndex, testType); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPut_Replaces(t *testing.T) {
	e := seeded(t)
	if err := e.Put(testIndex, testType, "4", result.NewSource([]string{"id", "tag"}, map[string]any{"id": 4, "tag": "awesome"})); err != nil {
		t.Fatalf("Put: %v", err)
	}
	resp := run(t, e, &request.Document{Filter: term("tag", "awesome")})
	if resp.Hits.Total != 4 {
		t.Errorf("total = %d", resp.Hits.Total)
	}
	if all := run(t, e, &request.Document{}); all.Hits.Total != 5 {
		t.Errorf("replace should not add: %d", all.Hits.Total)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"car", "car", 0},
		{"tran", "train", 1},
		{"kitten", "sitting", 3},
	}
	for _, tc := range tests {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
