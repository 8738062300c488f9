package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "schedcal/internal/log"
	"schedcal/internal/metrics"
	"schedcal/internal/model"
)

// Fetched holds the raw records returned for one owner set. NonRecurring
// rows already satisfy the inclusive overlap predicate; Recurring rows only
// satisfy Start <= window end.
type Fetched struct {
	NonRecurring []model.Event
	Recurring    []model.RecurringEvent
}

// Fetcher loads schedule rows for a set of owners of one class.
type Fetcher interface {
	FetchSchedules(ctx context.Context, source model.SourceTag, ownerIDs []int64, w model.Window) (Fetched, error)
}

// OwnerSet is one entry of an aggregation request. The order of a
// []OwnerSet is the order of the merged output.
type OwnerSet struct {
	Source model.SourceTag
	IDs    []int64
}

// Engine aggregates schedules of several owners. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	fetcher         Fetcher
	metrics         metrics.Sink
	maxPerEvent     int
	maxParallelDays int
}

type Option func(*Engine)

// WithMetrics sets the metrics sink. The default is a no-op sink.
func WithMetrics(s metrics.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.metrics = s
		}
	}
}

// WithMaxOccurrencesPerEvent caps how many occurrences one recurring event
// may contribute to a single window.
func WithMaxOccurrencesPerEvent(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPerEvent = n
		}
	}
}

// WithMaxParallelDays bounds how many proposal dates are evaluated at once.
func WithMaxParallelDays(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxParallelDays = n
		}
	}
}

func NewEngine(f Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:         f,
		metrics:         metrics.NewNoopSink(),
		maxPerEvent:     defaultMaxOccurrencesPerEvent,
		maxParallelDays: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Aggregate fetches every owner set concurrently and merges the results.
// Non-recurring events keep fetch order within a set and set order across
// sets; recurring events are materialized against w and dropped when no
// occurrence overlaps it. A single fetch error, or an event exceeding the
// per-event occurrence cap, fails the whole call.
func (e *Engine) Aggregate(ctx context.Context, sets []OwnerSet, w model.Window) (model.AggregatedResult, error) {
	start := time.Now()
	res, err := e.aggregate(ctx, sets, w)
	e.metrics.AggregationCompleted(metrics.KindListing, time.Since(start), err)
	return res, err
}

func (e *Engine) aggregate(ctx context.Context, sets []OwnerSet, w model.Window) (model.AggregatedResult, error) {
	result := model.AggregatedResult{
		NonRecurring: make([]model.TaggedEvent, 0),
		Recurring:    make([]model.TaggedRecurrence, 0),
	}
	if !w.Valid() {
		appLog.Debug("aggregate: window end before start; returning empty result",
			"start", w.Start, "end", w.End)
		return result, nil
	}

	fetched, err := e.fetchAll(ctx, sets, w)
	if err != nil {
		return model.AggregatedResult{}, err
	}

	for i, set := range sets {
		for _, ev := range fetched[i].NonRecurring {
			result.NonRecurring = append(result.NonRecurring, model.TaggedEvent{Event: ev, Source: set.Source})
		}
		for _, rev := range fetched[i].Recurring {
			occ, err := Materialize(rev, w, e.maxPerEvent)
			if errors.Is(err, ErrOccurrenceLimit) {
				e.metrics.OccurrenceLimitExceeded(string(set.Source))
				return model.AggregatedResult{}, fmt.Errorf("materialize %s event %d: %w", set.Source, rev.ID, err)
			}
			if err != nil {
				appLog.Error("aggregate: excluding event with malformed recurrence rule", err,
					"event_id", rev.ID,
					"owner_id", rev.OwnerID,
					"source", set.Source,
				)
				e.metrics.EventExcluded(string(set.Source))
				continue
			}
			if len(occ) == 0 {
				continue
			}
			result.Recurring = append(result.Recurring, model.TaggedRecurrence{
				RecurringEvent: rev,
				Source:         set.Source,
				Occurrences:    occ,
			})
		}
	}
	return result, nil
}

// fetchAll issues one fetch per owner set and waits for all of them. The
// first failure cancels the outstanding fetches.
func (e *Engine) fetchAll(ctx context.Context, sets []OwnerSet, w model.Window) ([]Fetched, error) {
	fetched := make([]Fetched, len(sets))
	g, gctx := errgroup.WithContext(ctx)
	for i, set := range sets {
		g.Go(func() error {
			res, err := e.fetcher.FetchSchedules(gctx, set.Source, set.IDs, w)
			if err != nil {
				e.metrics.FetchFailed(string(set.Source))
				return fmt.Errorf("fetch %s schedules: %w", set.Source, err)
			}
			fetched[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fetched, nil
}
