package schedule

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"schedcal/internal/metrics"
	"schedcal/internal/model"
)

// Day is one candidate date of a proposal request. Key is the caller's
// literal input and becomes the key of the result map.
type Day struct {
	Key  string
	Date time.Time
}

// DayWindow returns [d 00:00:00.000, d 23:59:59.999] of d's UTC calendar day.
func DayWindow(d time.Time) model.Window {
	d = d.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return model.Window{
		Start: start,
		End:   start.Add(24*time.Hour - time.Millisecond),
	}
}

// ProposeFreeSlots computes, for every day, the intervals not covered by
// any event of any owner in sets.
func (e *Engine) ProposeFreeSlots(ctx context.Context, sets []OwnerSet, days []Day) (map[string][]model.FreeInterval, error) {
	start := time.Now()
	out, err := e.proposeFreeSlots(ctx, sets, days)
	e.metrics.AggregationCompleted(metrics.KindProposal, time.Since(start), err)
	return out, err
}

func (e *Engine) proposeFreeSlots(ctx context.Context, sets []OwnerSet, days []Day) (map[string][]model.FreeInterval, error) {
	out := make(map[string][]model.FreeInterval, len(days))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallelDays)
	for _, day := range days {
		g.Go(func() error {
			w := DayWindow(day.Date)
			agg, err := e.aggregate(gctx, sets, w)
			if err != nil {
				return fmt.Errorf("proposal for %s: %w", day.Key, err)
			}
			free := FreeIntervals(MergeIntervals(BusyIntervals(agg, w)), w)

			mu.Lock()
			out[day.Key] = free
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BusyIntervals flattens an aggregation into intervals clipped to w.
// Intervals that collapse to zero length after clipping are dropped.
func BusyIntervals(agg model.AggregatedResult, w model.Window) []model.Occurrence {
	busy := make([]model.Occurrence, 0, len(agg.NonRecurring))
	add := func(start, end time.Time) {
		if start.Before(w.Start) {
			start = w.Start
		}
		if end.After(w.End) {
			end = w.End
		}
		if !end.After(start) {
			return
		}
		busy = append(busy, model.Occurrence{Start: start, End: end})
	}

	for _, ev := range agg.NonRecurring {
		add(ev.Start, ev.End)
	}
	for _, rec := range agg.Recurring {
		for _, occ := range rec.Occurrences {
			add(occ.Start, occ.End)
		}
	}
	return busy
}

// MergeIntervals sorts a copy of busy by start and merges intervals that
// overlap or touch.
func MergeIntervals(busy []model.Occurrence) []model.Occurrence {
	if len(busy) == 0 {
		return nil
	}
	sorted := slices.Clone(busy)
	slices.SortStableFunc(sorted, func(a, b model.Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})

	merged := []model.Occurrence{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if !next.Start.After(cur.End) {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// FreeIntervals returns the complement of merged within w. merged must be
// sorted and non-overlapping, as produced by MergeIntervals.
func FreeIntervals(merged []model.Occurrence, w model.Window) []model.FreeInterval {
	free := make([]model.FreeInterval, 0, len(merged)+1)
	cursor := w.Start
	for _, b := range merged {
		if b.Start.After(cursor) {
			free = append(free, newFreeInterval(cursor, b.Start))
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if w.End.After(cursor) {
		free = append(free, newFreeInterval(cursor, w.End))
	}
	return free
}

func newFreeInterval(start, end time.Time) model.FreeInterval {
	return model.FreeInterval{
		Start:           start,
		End:             end,
		DurationMinutes: int64(end.Sub(start) / time.Minute),
	}
}
