// Package cache memoizes engine responses in a key-value store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lazysearch/internal/db"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
	"github.com/kailas-cloud/lazysearch/internal/metrics"
)

// DefaultKeyPrefix namespaces cached responses.
const DefaultKeyPrefix = "lazysearch:resp:"

// transport is the consumer interface (ISP).
type transport interface {
	Execute(ctx context.Context, doc *request.Document, index, docType string) (*result.Response, error)
}

// store is the consumer interface (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config controls cache keys and expiry. Metrics may be nil.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
	Metrics   *metrics.Search
}

// Transport serves repeated requests from the store. Store failures are
// logged and bypassed; they never fail a search.
type Transport struct {
	inner  transport
	store  store
	cfg    Config
	logger *zap.Logger
}

// New wraps inner with a response cache backed by s.
func New(inner transport, s store, cfg Config, logger *zap.Logger) *Transport {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{inner: inner, store: s, cfg: cfg, logger: logger}
}

// Execute returns a cached response when present, otherwise calls the inner
// transport and stores its response.
func (t *Transport) Execute(
	ctx context.Context, doc *request.Document, index, docType string,
) (*result.Response, error) {
	key, err := t.Key(doc, index, docType)
	if err != nil {
		return nil, err
	}

	resp, hit := t.lookup(ctx, key)
	t.cfg.Metrics.CacheLookup(hit)
	if hit {
		return resp, nil
	}

	resp, err = t.inner.Execute(ctx, doc, index, docType)
	if err != nil {
		return nil, err
	}
	t.save(ctx, key, resp)
	return resp, nil
}

// Key derives the cache key from the target and the encoded document.
func (t *Transport) Key(doc *request.Document, index, docType string) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(index))
	h.Write([]byte{0})
	h.Write([]byte(docType))
	h.Write([]byte{0})
	h.Write(body)
	return t.cfg.KeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

func (t *Transport) lookup(ctx context.Context, key string) (*result.Response, bool) {
	data, err := t.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			t.logger.Warn("Response cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var resp result.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.logger.Warn("Response cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &resp, true
}

func (t *Transport) save(ctx context.Context, key string, resp *result.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		t.logger.Warn("Response cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := t.store.SetWithTTL(ctx, key, data, t.cfg.TTL); err != nil {
		t.logger.Warn("Response cache write failed", zap.String("key", key), zap.Error(err))
	}
}
