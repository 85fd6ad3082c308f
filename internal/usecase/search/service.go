package search

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lazysearch/internal/domain"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
	"github.com/kailas-cloud/lazysearch/internal/logger"
)

// DefaultIndexKey is the Indexes entry used for mappings without their own index.
const DefaultIndexKey = "default"

// Settings configures request execution.
type Settings struct {
	Indexes  map[string]string // mapping -> index name
	Timeout  time.Duration     // zero leaves the caller's context untouched
	Disabled bool
}

// Service sends built request documents through a Transport.
type Service struct {
	tr       Transport
	settings Settings
	logger   *zap.Logger

	disabledSeen sync.Map // caller -> struct{}
}

// New creates a search service. A nil logger discards output.
func New(tr Transport, settings Settings, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings.Indexes = maps.Clone(settings.Indexes)
	return &Service{tr: tr, settings: settings, logger: logger}
}

// Disabled reports whether execution is switched off.
func (s *Service) Disabled() bool { return s.settings.Disabled }

// IndexFor returns the index configured for mapping, falling back to the
// default entry.
func (s *Service) IndexFor(mapping string) (string, error) {
	if idx, ok := s.settings.Indexes[mapping]; ok && idx != "" {
		return idx, nil
	}
	if idx, ok := s.settings.Indexes[DefaultIndexKey]; ok && idx != "" {
		return idx, nil
	}
	return "", fmt.Errorf("%w: mapping %q", domain.ErrNoIndex, mapping)
}

// Execute sends doc for mapping. caller identifies the code path for the
// once-per-caller disabled notice; an empty caller falls back to mapping.
//
// When execution is disabled an empty response is returned without touching
// the transport. Transport errors are logged with the request document and
// returned unchanged.
func (s *Service) Execute(
	ctx context.Context, caller, mapping string, doc *request.Document,
) (*result.Response, error) {
	if caller == "" {
		caller = mapping
	}
	if s.settings.Disabled {
		if _, seen := s.disabledSeen.LoadOrStore(caller, struct{}{}); !seen {
			s.logger.Debug("Search disabled, skipping request",
				zap.String("caller", caller),
				zap.String("mapping", mapping),
			)
		}
		return &result.Response{}, nil
	}

	index, err := s.IndexFor(mapping)
	if err != nil {
		return nil, err
	}

	if s.settings.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
			defer cancel()
		}
	}

	reqID := uuid.NewString()
	log := s.logger.With(zap.String("request_id", reqID))
	ctx = logger.ContextWithLogger(ctx, log)

	start := time.Now()
	resp, err := s.tr.Execute(ctx, doc, index, mapping)
	duration := time.Since(start)
	if err != nil {
		log.Error("Search request failed",
			zap.String("index", index),
			zap.String("mapping", mapping),
			zap.Duration("duration", duration),
			zap.String("document", encode(doc)),
			zap.Error(err),
		)
		return nil, err
	}
	if resp == nil {
		resp = &result.Response{}
	}

	log.Debug("Search request completed",
		zap.String("index", index),
		zap.String("mapping", mapping),
		zap.Int("took", resp.Took),
		zap.Int("total", int(resp.Hits.Total)),
		zap.Duration("duration", duration),
		zap.String("document", encode(doc)),
	)
	return resp, nil
}

func encode(doc *request.Document) string {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Sprintf("<unencodable: %v>", err)
	}
	return string(b)
}
