package lazysearch

import "github.com/kailas-cloud/lazysearch/internal/domain"

// Usage errors. All of them match ErrUsage with errors.Is. Transport errors
// are returned unchanged and never match ErrUsage.
var (
	ErrUsage              = domain.ErrUsage
	ErrInvalidQuery       = domain.ErrInvalidQuery
	ErrInvalidFilter      = domain.ErrInvalidFilter
	ErrExcerptBeforeFetch = domain.ErrExcerptBeforeFetch
	ErrUnknownStep        = domain.ErrUnknownStep
	ErrIndexOutOfRange    = domain.ErrIndexOutOfRange
	ErrNoResolver         = domain.ErrNoResolver
	ErrNoIndex            = domain.ErrNoIndex
)
