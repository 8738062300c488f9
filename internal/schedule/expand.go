package schedule

import (
	"errors"
	"fmt"
	"time"

	"schedcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ErrOccurrenceLimit is returned when one recurring event has more
// occurrences in the window than the per-event cap.
var ErrOccurrenceLimit = errors.New("too many occurrences in window")

// Materialize expands a recurring event into the occurrences that overlap w.
//
// The anchor query is shifted back by the event duration so that instances
// starting before w but still running inside it are found; anything ending
// before w.Start is then dropped. More than limit occurrences
// (defaultMaxOccurrencesPerEvent if <= 0) yields ErrOccurrenceLimit.
func Materialize(ev model.RecurringEvent, w model.Window, limit int) ([]model.Occurrence, error) {
	if !w.Valid() {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultMaxOccurrencesPerEvent
	}

	dur := ev.Duration()
	anchors, err := Anchors(ev.Rule, ev.Start, w.Start.Add(-dur), w.End)
	if err != nil {
		return nil, err
	}

	out := make([]model.Occurrence, 0)
	for a := range anchors {
		end := a.Add(dur)
		if end.Before(w.Start) {
			continue
		}
		if len(out) == limit {
			return nil, fmt.Errorf("%w: event %d exceeds %d", ErrOccurrenceLimit, ev.ID, limit)
		}
		out = append(out, model.Occurrence{Start: a, End: end})
	}
	return out, nil
}

// Overlaps reports whether [start, end] intersects w, both ends inclusive.
func Overlaps(start, end time.Time, w model.Window) bool {
	if end.Before(w.Start) {
		return false
	}
	if start.After(w.End) {
		return false
	}
	return true
}
