// Package lazysearch builds search requests through immutable cursor steps,
// sends them only when results are consumed, and materializes the hits as
// resolved objects, field tuples or field maps.
package lazysearch

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/lazysearch/internal/db/redis"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/metrics"
	"github.com/kailas-cloud/lazysearch/internal/repository/object"
	"github.com/kailas-cloud/lazysearch/internal/transport/cache"
	"github.com/kailas-cloud/lazysearch/internal/transport/elastic"
	"github.com/kailas-cloud/lazysearch/internal/transport/instrumented"
	"github.com/kailas-cloud/lazysearch/internal/transport/retry"
	searchuc "github.com/kailas-cloud/lazysearch/internal/usecase/search"
)

const pkgPath = "github.com/kailas-cloud/lazysearch"

// Client holds the execution context shared by cursors: transport, index
// configuration and logging.
type Client struct {
	svc         *searchuc.Service
	idField     string
	queryFields map[string][]string
	logger      *zap.Logger
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{idField: request.DefaultIDField}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	tr, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	svc := searchuc.New(tr, searchuc.Settings{
		Indexes:  cfg.indexes,
		Timeout:  cfg.timeout,
		Disabled: cfg.disabled,
	}, cfg.logger)

	return &Client{
		svc:         svc,
		idField:     cfg.idField,
		queryFields: cfg.queryFields,
		logger:      cfg.logger,
	}, nil
}

// buildTransport layers retry, cache and metrics over the base transport,
// innermost first.
func buildTransport(cfg *clientConfig) (Transport, error) {
	tr := cfg.transport
	if tr == nil && len(cfg.esAddrs) > 0 {
		es, err := elastic.New(elastic.Config{
			Addrs:    cfg.esAddrs,
			Username: cfg.esUser,
			Password: cfg.esPass,
		})
		if err != nil {
			return nil, fmt.Errorf("lazysearch: %w", err)
		}
		tr = es
	}
	if tr == nil {
		if cfg.disabled {
			return nil, nil
		}
		return nil, errors.New("lazysearch: transport required (use WithTransport or WithElasticsearch)")
	}

	var m *metrics.Search
	if cfg.metricsReg != nil {
		var err error
		if m, err = metrics.RegisterSearch(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("lazysearch: %w", err)
		}
	}

	if cfg.retry {
		tr = retry.New(tr, retry.Config{
			MaxRetries: cfg.maxRetries,
			Wait:       cfg.retryWait,
			Metrics:    m,
		}, cfg.logger)
	}
	if cfg.cache != nil {
		tr = cache.New(tr, cfg.cache, cache.Config{
			TTL:       cfg.cacheTTL,
			KeyPrefix: cfg.cachePrefix,
			Metrics:   m,
		}, cfg.logger)
	}
	if m != nil {
		tr = instrumented.New(tr, m)
	}
	return tr, nil
}

// Search returns a cursor over mapping whose objects are bare Refs.
func (c *Client) Search(mapping string) *Search[Ref] {
	return newSearch(c, mapping, resolveRefs)
}

// Disabled reports whether searches are switched off.
func (c *Client) Disabled() bool { return c.svc.Disabled() }

// IndexFor returns the index requests for mapping are sent to.
func (c *Client) IndexFor(mapping string) (string, error) {
	return c.svc.IndexFor(mapping)
}

// NewSearch returns a cursor over mapping whose hits resolve through r. A nil
// r is allowed for cursors that only use Values or ValuesDict.
func NewSearch[T Identified](c *Client, mapping string, r Resolver[T]) *Search[T] {
	return newSearch(c, mapping, resolveWith(r))
}

// NewRedisResolver resolves ids to JSON objects stored by the object
// repository layout (<prefix><mapping>:<id>) in Redis.
func NewRedisResolver[T Identified](client rueidis.Client, prefix, mapping string) Resolver[T] {
	return object.New[T](dbRedis.NewStoreFromClient(client), prefix, mapping)
}

// callerName returns the first function outside this package on the stack.
func callerName() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, pkgPath+".") {
			return f.Function
		}
		if !more {
			return ""
		}
	}
}
