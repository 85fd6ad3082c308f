package instrumented

import (
	"context"
	"time"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
	"github.com/kailas-cloud/lazysearch/internal/metrics"
)

// transport is the consumer interface (ISP).
type transport interface {
	Execute(ctx context.Context, doc *request.Document, index, docType string) (*result.Response, error)
}

// Transport records request metrics around an inner transport.
type Transport struct {
	inner   transport
	metrics *metrics.Search
}

// New wraps inner with metrics recorded into m.
func New(inner transport, m *metrics.Search) *Transport {
	return &Transport{inner: inner, metrics: m}
}

// Execute delegates to the inner transport and records count, duration and
// engine-reported took.
func (t *Transport) Execute(
	ctx context.Context, doc *request.Document, index, docType string,
) (*result.Response, error) {
	start := time.Now()
	resp, err := t.inner.Execute(ctx, doc, index, docType)

	var took time.Duration
	if resp != nil {
		took = time.Duration(resp.Took) * time.Millisecond
	}
	t.metrics.ObserveRequest(docType, time.Since(start), took, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
