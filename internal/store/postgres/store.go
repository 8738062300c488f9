package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"schedcal/internal/model"
	"schedcal/internal/schedule"
	"schedcal/internal/store"
)

// DBInstance is the subset of *pgxpool.Pool the store needs.
type DBInstance interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements schedule.Fetcher and the group directory on PostgreSQL.
type Store struct {
	tracer       trace.Tracer
	db           DBInstance
	queryTimeout time.Duration
}

// New creates a store. A zero queryTimeout leaves deadlines to the caller.
func New(db DBInstance, queryTimeout time.Duration) *Store {
	return &Store{
		tracer:       otel.GetTracerProvider().Tracer("schedcal/store/postgres"),
		db:           db,
		queryTimeout: queryTimeout,
	}
}

// FetchSchedules returns the non-recurring rows overlapping w and the
// recurring rows starting at or before w.End for the given owners.
func (s *Store) FetchSchedules(ctx context.Context, source model.SourceTag, ownerIDs []int64, w model.Window) (res schedule.Fetched, err error) {
	q, ok := queriesBySource[source]
	if !ok {
		return schedule.Fetched{}, fmt.Errorf("%w: %q", store.ErrUnknownSource, string(source))
	}

	res = schedule.Fetched{
		NonRecurring: make([]model.Event, 0),
		Recurring:    make([]model.RecurringEvent, 0),
	}
	if len(ownerIDs) == 0 {
		return res, nil
	}

	ctx, span := s.tracer.Start(ctx, "store.FetchSchedules", trace.WithAttributes(
		attribute.String("schedule.source", string(source)),
		attribute.Int("schedule.owner_count", len(ownerIDs)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res.NonRecurring, err = s.fetchNonRecurring(ctx, q.nonRecurring, ownerIDs, w)
	if err != nil {
		return schedule.Fetched{}, fmt.Errorf("failed to fetch non-recurring %s schedules: %w", source, err)
	}
	res.Recurring, err = s.fetchRecurring(ctx, q.recurring, ownerIDs, w)
	if err != nil {
		return schedule.Fetched{}, fmt.Errorf("failed to fetch recurring %s schedules: %w", source, err)
	}
	return res, nil
}

func (s *Store) fetchNonRecurring(ctx context.Context, query string, ownerIDs []int64, w model.Window) ([]model.Event, error) {
	rows, err := s.db.Query(ctx, query, ownerIDs, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Event, 0)
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.OwnerID, &ev.Title, &ev.Content, &ev.Start, &ev.End); err != nil {
			return nil, err
		}
		ev.Start = ev.Start.UTC()
		ev.End = ev.End.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) fetchRecurring(ctx context.Context, query string, ownerIDs []int64, w model.Window) ([]model.RecurringEvent, error) {
	rows, err := s.db.Query(ctx, query, ownerIDs, w.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.RecurringEvent, 0)
	for rows.Next() {
		var (
			ev        model.RecurringEvent
			freq      *string
			interval  *int
			byweekday *string
			until     *time.Time
		)
		err := rows.Scan(
			&ev.ID,
			&ev.OwnerID,
			&ev.Title,
			&ev.Content,
			&ev.Start,
			&ev.End,
			&freq,
			&interval,
			&byweekday,
			&until,
		)
		if err != nil {
			return nil, err
		}
		ev.Start = ev.Start.UTC()
		ev.End = ev.End.UTC()
		if freq != nil {
			ev.Rule.Freq = schedule.NormalizeFreq(*freq)
		}
		if interval != nil {
			ev.Rule.Interval = *interval
		}
		if byweekday != nil {
			ev.Rule.ByWeekday = *byweekday
		}
		if until != nil {
			u := until.UTC()
			ev.Rule.Until = &u
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GroupMembers returns the user ids of a group's members, or
// store.ErrGroupNotFound when the group does not exist.
func (s *Store) GroupMembers(ctx context.Context, groupID int64) (members []int64, err error) {
	ctx, span := s.tracer.Start(ctx, "store.GroupMembers", trace.WithAttributes(
		attribute.Int64("group.id", groupID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := s.db.QueryRow(ctx, queryGroupExists, groupID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up group: %w", err)
	}
	if !exists {
		return nil, store.ErrGroupNotFound
	}

	rows, err := s.db.Query(ctx, queryGroupMembers, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	members = make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	return members, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}
