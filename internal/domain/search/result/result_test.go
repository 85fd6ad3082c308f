package result

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/lazysearch/internal/domain"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
)

const rawResponse = `{
  "took": 3,
  "hits": {
    "total": 3,
    "hits": [
      {"_id": "5", "_source": {"foo": "train car", "tag": "awesome", "id": 5},
       "fields": {"id": 5, "foo": "train car"},
       "highlight": {"foo": ["train <em>car</em>"]}},
      {"_id": "3", "_source": {"foo": "car", "tag": "awesome", "id": 3},
       "fields": {"id": 3, "foo": "car"}},
      {"_id": "9", "_source": {"foo": "gone", "tag": "boring", "id": 9},
       "fields": {"id": 9, "foo": "gone"}}
    ]
  },
  "facets": {"tags": {"_type": "terms", "terms": [{"term": "awesome", "count": 2}]}}
}`

func decode(t *testing.T) *Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal([]byte(rawResponse), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &resp
}

type model struct {
	id   string
	name string
}

func resolverOf(objs ...model) (ResolveFunc[model], *int) {
	calls := 0
	return func(_ context.Context, ids []string) (map[string]model, error) {
		calls++
		out := make(map[string]model)
		for _, o := range objs {
			for _, id := range ids {
				if o.id == id {
					out[id] = o
				}
			}
		}
		return out, nil
	}, &calls
}

func TestResponse_Decode(t *testing.T) {
	resp := decode(t)
	if resp.Took != 3 || resp.Hits.Total != 3 || len(resp.Hits.Hits) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := resp.Hits.Hits[0].Source.Keys(); !reflect.DeepEqual(got, []string{"foo", "tag", "id"}) {
		t.Errorf("source keys out of order: %v", got)
	}
	if resp.Facets["tags"].Terms[0].Count != 2 {
		t.Errorf("facet not decoded: %+v", resp.Facets)
	}
}

func TestTotal_ObjectForm(t *testing.T) {
	var h Hits
	if err := json.Unmarshal([]byte(`{"total":{"value":42,"relation":"eq"},"hits":[]}`), &h); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.Total != 42 {
		t.Errorf("expected 42, got %d", h.Total)
	}
}

func TestSource_RoundTrip(t *testing.T) {
	src := NewSource([]string{"b", "a", "missing"}, map[string]any{"a": 1, "b": "x"})
	out, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"b":"x","a":1}` {
		t.Errorf("got %s", out)
	}
}

func TestMaterialize_Objects(t *testing.T) {
	resolve, calls := resolverOf(model{"3", "three"}, model{"5", "five"})
	set, err := Materialize(context.Background(), request.ShapeObjects, []string{"id"}, decode(t), resolve)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected one bulk resolve, got %d", *calls)
	}
	if len(set.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(set.Items))
	}
	if set.Items[0].Object.name != "five" || set.Items[1].Object.name != "three" {
		t.Errorf("response order not kept: %+v", set.Items)
	}
	if !reflect.DeepEqual(set.Unresolved, []string{"9"}) {
		t.Errorf("unresolved = %v", set.Unresolved)
	}
	if set.Total != 3 || set.Took != 3 {
		t.Errorf("total/took = %d/%d", set.Total, set.Took)
	}
}

func TestMaterialize_ObjectsWithoutResolver(t *testing.T) {
	_, err := Materialize[model](context.Background(), request.ShapeObjects, nil, decode(t), nil)
	if !errors.Is(err, domain.ErrNoResolver) {
		t.Fatalf("expected ErrNoResolver, got %v", err)
	}
}

func TestMaterialize_ObjectsEmptySkipsResolve(t *testing.T) {
	resolve, calls := resolverOf()
	set, err := Materialize(context.Background(), request.ShapeObjects, nil, &Response{}, resolve)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if *calls != 0 || len(set.Items) != 0 {
		t.Errorf("calls=%d items=%d", *calls, len(set.Items))
	}
}

func TestMaterialize_ResolveError(t *testing.T) {
	boom := errors.New("db down")
	resolve := func(context.Context, []string) (map[string]model, error) { return nil, boom }
	_, err := Materialize(context.Background(), request.ShapeObjects, nil, decode(t), resolve)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped resolver error, got %v", err)
	}
}

func TestMaterialize_Tuples(t *testing.T) {
	set, err := Materialize[model](context.Background(), request.ShapeTuples, []string{"id", "foo"}, decode(t), nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(set.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(set.Items))
	}
	if !reflect.DeepEqual(set.Items[0].Values, []any{float64(5), "train car"}) {
		t.Errorf("tuple = %v", set.Items[0].Values)
	}
}

func TestMaterialize_TuplesWildcard(t *testing.T) {
	set, err := Materialize[model](context.Background(), request.ShapeTuples, nil, decode(t), nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if !reflect.DeepEqual(set.Items[1].Values, []any{"car", "awesome", float64(3)}) {
		t.Errorf("tuple = %v", set.Items[1].Values)
	}
}

func TestMaterialize_Maps(t *testing.T) {
	explicit, err := Materialize[model](context.Background(), request.ShapeMaps, []string{"id", "foo"}, decode(t), nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if explicit.Items[1].Fields["foo"] != "car" {
		t.Errorf("map = %v", explicit.Items[1].Fields)
	}

	wildcard, err := Materialize[model](context.Background(), request.ShapeMaps, nil, decode(t), nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if wildcard.Items[2].Fields["tag"] != "boring" {
		t.Errorf("map = %v", wildcard.Items[2].Fields)
	}
}

func TestMaterialize_HighlightsOnEveryShape(t *testing.T) {
	resolve, _ := resolverOf(model{"3", "three"}, model{"5", "five"})
	for _, shape := range []request.Shape{request.ShapeObjects, request.ShapeTuples, request.ShapeMaps} {
		t.Run(shape.String(), func(t *testing.T) {
			set, err := Materialize(context.Background(), shape, []string{"id"}, decode(t), resolve)
			if err != nil {
				t.Fatalf("Materialize: %v", err)
			}
			first := set.Items[0].Highlights.Fragments("foo")
			if !reflect.DeepEqual(first, []string{"train <em>car</em>"}) {
				t.Errorf("fragments = %v", first)
			}
			if got := set.Items[1].Highlights.Fragments("foo"); got == nil || len(got) != 0 {
				t.Errorf("expected empty fragment list, got %#v", got)
			}
		})
	}
}

func TestSource_DuplicateKeysAndNull(t *testing.T) {
	var src Source
	if err := json.Unmarshal([]byte(`{"b":1,"a":{"x":[1,2]},"b":3}`), &src); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := src.Keys(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("keys = %v", got)
	}
	if v, _ := src.Get("b"); v != float64(3) {
		t.Errorf("b = %v", v)
	}
	if v, _ := src.Get("a"); !reflect.DeepEqual(v, map[string]any{"x": []any{float64(1), float64(2)}}) {
		t.Errorf("a = %#v", v)
	}

	var hit Hit
	if err := json.Unmarshal([]byte(`{"_id":"1","_source":null}`), &hit); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if len(hit.Source.Keys()) != 0 {
		t.Errorf("null source keys = %v", hit.Source.Keys())
	}
}
