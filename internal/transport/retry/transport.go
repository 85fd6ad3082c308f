// Package retry re-sends search requests that failed with a timeout.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/lazysearch/internal/logger"
	"github.com/kailas-cloud/lazysearch/internal/metrics"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxRetries = 5
	DefaultWait       = 100 * time.Millisecond
)

// transport is the consumer interface (ISP).
type transport interface {
	Execute(ctx context.Context, doc *request.Document, index, docType string) (*result.Response, error)
}

// Config holds the retry policy. Metrics may be nil.
type Config struct {
	MaxRetries int
	Wait       time.Duration
	Metrics    *metrics.Search
}

// Transport retries the inner transport on timeouts only. Every other error
// is returned on the first attempt.
type Transport struct {
	inner  transport
	cfg    Config
	logger *zap.Logger
}

// New wraps inner with the retry policy in cfg.
func New(inner transport, cfg Config, logger *zap.Logger) *Transport {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{inner: inner, cfg: cfg, logger: logger}
}

// Execute calls the inner transport, retrying up to MaxRetries times while
// the failure is a timeout and the caller's context is still live. A context
// cancelled while waiting between attempts ends the loop with ctx.Err().
func (t *Transport) Execute(
	ctx context.Context, doc *request.Document, index, docType string,
) (*result.Response, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(t.cfg.Wait), uint64(t.cfg.MaxRetries)),
		ctx,
	)

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		t.cfg.Metrics.Retry(docType)
		logpkg.FromContextOr(ctx, t.logger).Warn("Search timed out, retrying",
			zap.String("index", index),
			zap.String("mapping", docType),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", t.cfg.MaxRetries),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotifyWithData[*result.Response](func() (*result.Response, error) {
		resp, err := t.inner.Execute(ctx, doc, index, docType)
		if err != nil && (!IsTimeout(err) || ctx.Err() != nil) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}, policy, notify)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
