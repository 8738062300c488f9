package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedcal/internal/model"
)

func recurring(start time.Time, dur time.Duration, rule model.Rule) model.RecurringEvent {
	return model.RecurringEvent{
		Event: model.Event{ID: 1, OwnerID: 1, Title: "r", Start: start, End: start.Add(dur)},
		Rule:  rule,
	}
}

func TestMaterialize_IncludesInstanceRunningIntoWindow(t *testing.T) {
	t.Parallel()

	ev := recurring(utc(2023, 4, 1, 23, 0), 2*time.Hour, model.Rule{Freq: model.Daily})
	w := model.Window{Start: utc(2023, 4, 2, 0, 0), End: time.Date(2023, 4, 2, 23, 59, 59, 999e6, time.UTC)}

	occ, err := Materialize(ev, w, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Occurrence{
		{Start: utc(2023, 4, 1, 23, 0), End: utc(2023, 4, 2, 1, 0)},
		{Start: utc(2023, 4, 2, 23, 0), End: utc(2023, 4, 3, 1, 0)},
	}, occ)
}

func TestMaterialize_EndOnWindowStartCounts(t *testing.T) {
	t.Parallel()

	ev := recurring(utc(2023, 4, 1, 22, 0), 2*time.Hour, model.Rule{Freq: model.Weekly})
	w := model.Window{Start: utc(2023, 4, 2, 0, 0), End: utc(2023, 4, 2, 12, 0)}

	occ, err := Materialize(ev, w, 0)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, utc(2023, 4, 2, 0, 0), occ[0].End)
}

func TestMaterialize_OverlappingSelfOccurrences(t *testing.T) {
	t.Parallel()

	ev := recurring(utc(2023, 4, 1, 0, 0), 36*time.Hour, model.Rule{Freq: model.Daily})
	w := model.Window{Start: utc(2023, 4, 3, 0, 0), End: utc(2023, 4, 3, 6, 0)}

	occ, err := Materialize(ev, w, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Occurrence{
		{Start: utc(2023, 4, 2, 0, 0), End: utc(2023, 4, 3, 12, 0)},
		{Start: utc(2023, 4, 3, 0, 0), End: utc(2023, 4, 4, 12, 0)},
	}, occ)
}

func TestMaterialize_CapExceeded(t *testing.T) {
	t.Parallel()

	ev := recurring(utc(2000, 1, 1, 8, 0), time.Hour, model.Rule{Freq: model.Daily})
	w := model.Window{Start: utc(2000, 1, 1, 0, 0), End: utc(2000, 12, 31, 0, 0)}

	occ, err := Materialize(ev, w, 10)
	require.ErrorIs(t, err, ErrOccurrenceLimit)
	assert.Nil(t, occ)

	occ, err = Materialize(ev, model.Window{Start: w.Start, End: utc(2000, 1, 10, 12, 0)}, 10)
	require.NoError(t, err)
	assert.Len(t, occ, 10)
}

func TestMaterialize_LongDailySeries(t *testing.T) {
	t.Parallel()

	ev := recurring(utc(2010, 1, 1, 8, 0), time.Hour, model.Rule{Freq: model.Daily})
	w := model.Window{Start: utc(2010, 1, 1, 0, 0), End: utc(2030, 1, 1, 0, 0)}

	_, err := Materialize(ev, w, 0)
	require.ErrorIs(t, err, ErrOccurrenceLimit)

	occ, err := Materialize(ev, w, 10000)
	require.NoError(t, err)
	require.Len(t, occ, 7305)
	assert.Equal(t, utc(2029, 12, 31, 8, 0), occ[len(occ)-1].Start)
}

func TestMaterialize_EmptyCases(t *testing.T) {
	t.Parallel()

	ev := recurring(utc(2023, 4, 1, 8, 0), time.Hour, model.Rule{Freq: model.Daily, Until: ptrTime(utc(2023, 4, 5, 8, 0))})

	occ, err := Materialize(ev, model.Window{Start: utc(2023, 5, 1, 0, 0), End: utc(2023, 5, 31, 0, 0)}, 0)
	require.NoError(t, err)
	assert.Empty(t, occ)

	occ, err = Materialize(ev, model.Window{Start: utc(2023, 4, 5, 0, 0), End: utc(2023, 4, 1, 0, 0)}, 0)
	require.NoError(t, err)
	assert.Empty(t, occ)
}

func TestMaterialize_InvalidRule(t *testing.T) {
	t.Parallel()

	ev := recurring(utc(2023, 4, 1, 8, 0), time.Hour, model.Rule{Freq: "FORTNIGHTLY"})
	_, err := Materialize(ev, model.Window{Start: utc(2023, 4, 1, 0, 0), End: utc(2023, 4, 30, 0, 0)}, 0)
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	w := model.Window{Start: utc(2023, 4, 1, 0, 0), End: time.Date(2023, 4, 30, 23, 59, 59, 0, time.UTC)}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", utc(2023, 4, 10, 9, 0), utc(2023, 4, 10, 10, 0), true},
		{"spans end", utc(2023, 4, 29, 23, 0), utc(2023, 5, 1, 1, 0), true},
		{"spans start", utc(2023, 3, 31, 23, 0), utc(2023, 4, 1, 1, 0), true},
		{"covers window", utc(2023, 3, 1, 0, 0), utc(2023, 6, 1, 0, 0), true},
		{"ends on start", utc(2023, 3, 31, 23, 0), utc(2023, 4, 1, 0, 0), true},
		{"starts on end", w.End, w.End.Add(time.Hour), true},
		{"before", utc(2023, 3, 30, 9, 0), utc(2023, 3, 30, 10, 0), false},
		{"after", utc(2023, 5, 1, 0, 0), utc(2023, 5, 1, 1, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Overlaps(tt.start, tt.end, w))
		})
	}
}
