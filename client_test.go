package lazysearch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/lazysearch"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	return nil
}

func TestClient_IndexFor(t *testing.T) {
	c, _ := newClient(t, lazysearch.WithIndexes(map[string]string{"book": "library"}))

	idx, err := c.IndexFor("book")
	require.NoError(t, err)
	assert.Equal(t, "library", idx)

	idx, err = c.IndexFor("other")
	require.NoError(t, err)
	assert.Equal(t, "test", idx)
}

func TestClient_ResponseCache(t *testing.T) {
	kv := &memKV{}
	c, tr := newClient(t, lazysearch.WithResponseCache(kv, time.Minute, "t:"))
	ctx := context.Background()

	for range 2 {
		n, err := c.Search(mapping).Filter(lazysearch.Term("tag", "awesome")).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	assert.Equal(t, 1, tr.Calls(), "second cursor must be served from the cache")
	assert.Len(t, kv.data, 1)
}

type flakyTransport struct {
	inner    lazysearch.Transport
	failures int
	calls    int
}

func (f *flakyTransport) Execute(
	ctx context.Context, doc *lazysearch.Document, index, docType string,
) (*lazysearch.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, context.DeadlineExceeded
	}
	return f.inner.Execute(ctx, doc, index, docType)
}

func TestClient_RetryOnTimeout(t *testing.T) {
	tr := &flakyTransport{inner: newEngine(t), failures: 2}
	c, err := lazysearch.New(
		lazysearch.WithTransport(tr),
		lazysearch.WithIndexes(map[string]string{"default": "test"}),
		lazysearch.WithRetry(3, time.Millisecond),
	)
	require.NoError(t, err)

	n, err := c.Search(mapping).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, tr.calls)
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newClient(t, lazysearch.WithMetrics(reg))

	_, err := c.Search(mapping).All(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["lazysearch_search_requests_total"], "got %v", names)
	assert.True(t, names["lazysearch_search_request_duration_seconds"], "got %v", names)
}

func TestClient_MetricsClientsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, _ := newClient(t, lazysearch.WithMetrics(reg))
	eng := newEngine(t)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := first.Search(mapping).Count(context.Background())
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := lazysearch.New(
				lazysearch.WithTransport(eng),
				lazysearch.WithIndexes(map[string]string{"default": "test"}),
				lazysearch.WithMetrics(reg),
			)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != "lazysearch_search_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(4), total)
}

func TestNewRedisResolver(t *testing.T) {
	ctrl := gomock.NewController(t)
	rc := mock.NewClient(ctrl)
	rc.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("GET", "p:fakemodel:5"),
			mock.Match("GET", "p:fakemodel:3"),
			mock.Match("GET", "p:fakemodel:1"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString(`{"ID":"5","Name":"five"}`)),
			mock.Result(mock.RedisNil()),
			mock.Result(mock.RedisString(`{"ID":"1","Name":"one"}`)),
		})

	c, _ := newClient(t)
	s := lazysearch.NewSearch(c, mapping, lazysearch.NewRedisResolver[model](rc, "p:", mapping)).
		Filter(lazysearch.Term("tag", "awesome")).
		OrderBy("-id")

	objs, err := s.Objects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model{{"5", "five"}, {"1", "one"}}, objs)
}
