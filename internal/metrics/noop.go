package metrics

import "time"

// NoopSink is used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) AggregationCompleted(kind string, duration time.Duration, err error) {}
func (n *NoopSink) FetchFailed(source string)                                          {}
func (n *NoopSink) EventExcluded(source string)                                        {}
func (n *NoopSink) OccurrenceLimitExceeded(source string)                              {}
func (n *NoopSink) CacheHit(route string)                                              {}
func (n *NoopSink) CacheMiss(route string)                                             {}
func (n *NoopSink) RequestCompleted(route string, status int, duration time.Duration)  {}
