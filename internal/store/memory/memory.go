// Package memory is an in-process schedule store. It applies the same
// coarse fetch predicates as the PostgreSQL store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"schedcal/internal/model"
	"schedcal/internal/schedule"
	"schedcal/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	groups    map[int64][]int64
	single    map[model.SourceTag][]model.Event
	recurring map[model.SourceTag][]model.RecurringEvent
}

func New() *Store {
	return &Store{
		groups:    make(map[int64][]int64),
		single:    make(map[model.SourceTag][]model.Event),
		recurring: make(map[model.SourceTag][]model.RecurringEvent),
	}
}

// AddGroup registers a group and replaces its member list.
func (s *Store) AddGroup(groupID int64, members ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID] = slices.Clone(members)
}

func (s *Store) AddEvent(source model.SourceTag, ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.single[source] = append(s.single[source], ev)
}

func (s *Store) AddRecurring(source model.SourceTag, ev model.RecurringEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring[source] = append(s.recurring[source], ev)
}

// GroupMembers returns the user ids of a group's members.
func (s *Store) GroupMembers(_ context.Context, groupID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.groups[groupID]
	if !ok {
		return nil, store.ErrGroupNotFound
	}
	return slices.Clone(members), nil
}

// FetchSchedules implements schedule.Fetcher.
func (s *Store) FetchSchedules(ctx context.Context, source model.SourceTag, ownerIDs []int64, w model.Window) (schedule.Fetched, error) {
	if _, err := store.TableFor(source); err != nil {
		return schedule.Fetched{}, err
	}
	if err := ctx.Err(); err != nil {
		return schedule.Fetched{}, err
	}

	out := schedule.Fetched{
		NonRecurring: make([]model.Event, 0),
		Recurring:    make([]model.RecurringEvent, 0),
	}
	if len(ownerIDs) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.single[source] {
		if slices.Contains(ownerIDs, ev.OwnerID) && schedule.Overlaps(ev.Start, ev.End, w) {
			out.NonRecurring = append(out.NonRecurring, ev)
		}
	}
	for _, ev := range s.recurring[source] {
		if slices.Contains(ownerIDs, ev.OwnerID) && !ev.Start.After(w.End) {
			out.Recurring = append(out.Recurring, ev)
		}
	}

	slices.SortStableFunc(out.NonRecurring, func(a, b model.Event) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
	})
	slices.SortStableFunc(out.Recurring, func(a, b model.RecurringEvent) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}
