package search

import (
	"context"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
)

// Transport executes one request document against the engine.
type Transport interface {
	Execute(
		ctx context.Context, doc *request.Document, index, docType string,
	) (*result.Response, error)
}
