package metrics

import "time"

// Sink records engine and API metrics.
// All methods are fire-and-forget: implementations must not block or return errors.
type Sink interface {
	// Engine metrics
	AggregationCompleted(kind string, duration time.Duration, err error)
	FetchFailed(source string)
	EventExcluded(source string)
	OccurrenceLimitExceeded(source string)

	// Cache metrics
	CacheHit(route string)
	CacheMiss(route string)

	// HTTP metrics
	RequestCompleted(route string, status int, duration time.Duration)
}

// Aggregation kinds for AggregationCompleted.
const (
	KindListing  = "listing"
	KindProposal = "proposal"
)
