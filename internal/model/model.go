package model

import "time"

// SourceTag identifies which owner class produced an aggregated entry.
type SourceTag string

const (
	SourcePersonal SourceTag = "personal"
	SourceGroup    SourceTag = "group"
)

// Event is a stored, non-recurring schedule entry of a single owner
// (a group or a user). Start/End are UTC.
type Event struct {
	ID      int64
	OwnerID int64

	Title   string
	Content *string

	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// RecurringEvent is an Event whose Start/End describe the first instance of
// a series generated by Rule.
type RecurringEvent struct {
	Event
	Rule Rule
}

// Frequency is the unit of a recurrence step.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// Rule describes how a RecurringEvent repeats, in the stored vocabulary:
// ByWeekday is a comma-separated list of two-letter codes ("MO,WE") or
// empty, Interval 0 means 1, Until == nil means the series is unbounded.
// A Rule is validated when it is expanded, not when it is loaded.
type Rule struct {
	Freq      Frequency
	Interval  int
	ByWeekday string
	Until     *time.Time
}

// Window is an inclusive time range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether End is not before Start.
func (w Window) Valid() bool {
	return !w.End.Before(w.Start)
}

// Occurrence is one concrete instance of an event inside a query window.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// TaggedEvent is a non-recurring event together with the owner class it
// was fetched for.
type TaggedEvent struct {
	Event
	Source SourceTag
}

// TaggedRecurrence is a recurring event with its materialized occurrences.
type TaggedRecurrence struct {
	RecurringEvent
	Source      SourceTag
	Occurrences []Occurrence
}

// AggregatedResult is the merged view of several owners' schedules.
type AggregatedResult struct {
	NonRecurring []TaggedEvent
	Recurring    []TaggedRecurrence
}

// FreeInterval is a maximal gap within one day not covered by any busy
// interval.
type FreeInterval struct {
	Start           time.Time
	End             time.Time
	DurationMinutes int64
}
