package lazysearch

import (
	"context"
	"maps"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/lazysearch/internal/db/redis"
)

// Option configures the Client.
type Option func(*clientConfig)

// KV is the store behind the response cache. Missing keys are reported as
// any error; the cache treats every read failure as a miss.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type clientConfig struct {
	transport Transport
	esAddrs   []string
	esUser    string
	esPass    string

	indexes     map[string]string
	queryFields map[string][]string
	idField     string
	timeout     time.Duration
	disabled    bool

	retry      bool
	maxRetries int
	retryWait  time.Duration

	cache       KV
	cacheTTL    time.Duration
	cachePrefix string

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithTransport sets the transport requests are sent through.
func WithTransport(t Transport) Option {
	return func(c *clientConfig) {
		c.transport = t
	}
}

// WithElasticsearch sends requests to an Elasticsearch cluster.
func WithElasticsearch(addrs ...string) Option {
	return func(c *clientConfig) {
		c.esAddrs = addrs
	}
}

// WithElasticsearchAuth sets basic auth credentials for WithElasticsearch.
func WithElasticsearchAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.esUser, c.esPass = username, password
	}
}

// WithIndexes maps mapping names to index names. The "default" entry serves
// mappings without their own.
func WithIndexes(indexes map[string]string) Option {
	return func(c *clientConfig) {
		if c.indexes == nil {
			c.indexes = make(map[string]string, len(indexes))
		}
		maps.Copy(c.indexes, indexes)
	}
}

// WithQueryFields sets the default query fields of cursors for mapping.
func WithQueryFields(mapping string, fields ...string) Option {
	return func(c *clientConfig) {
		if c.queryFields == nil {
			c.queryFields = make(map[string][]string)
		}
		c.queryFields[mapping] = append(c.queryFields[mapping], fields...)
	}
}

// WithIDField sets the field holding document ids. Default: "id".
func WithIDField(name string) Option {
	return func(c *clientConfig) {
		c.idField = name
	}
}

// WithTimeout bounds every request that arrives without a deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithDisabled switches execution off: cursors realize to empty results
// without contacting the engine.
func WithDisabled(disabled bool) Option {
	return func(c *clientConfig) {
		c.disabled = disabled
	}
}

// WithRetry retries requests that fail with a timeout. Zero values pick the
// defaults (5 retries, 100ms apart).
func WithRetry(maxRetries int, wait time.Duration) Option {
	return func(c *clientConfig) {
		c.retry = true
		c.maxRetries = maxRetries
		c.retryWait = wait
	}
}

// WithResponseCache caches engine responses in kv for ttl.
func WithResponseCache(kv KV, ttl time.Duration, keyPrefix string) Option {
	return func(c *clientConfig) {
		c.cache = kv
		c.cacheTTL = ttl
		c.cachePrefix = keyPrefix
	}
}

// WithRedisResponseCache is WithResponseCache over a rueidis client. The
// caller keeps ownership of client.
func WithRedisResponseCache(client rueidis.Client, ttl time.Duration, keyPrefix string) Option {
	return WithResponseCache(dbRedis.NewStoreFromClient(client), ttl, keyPrefix)
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithMetrics registers search metrics on reg and records every request.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.metricsReg = reg
	}
}
