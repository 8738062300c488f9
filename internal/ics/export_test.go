package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedcal/internal/model"
)

func TestExport(t *testing.T) {
	w := model.Window{
		Start: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 4, 30, 23, 59, 59, 0, time.UTC),
	}
	notes := "bring tent"
	until := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	standupStart := time.Date(2023, 4, 3, 12, 0, 0, 0, time.UTC)

	res := model.AggregatedResult{
		NonRecurring: []model.TaggedEvent{{
			Event: model.Event{
				ID: 5, OwnerID: 1, Title: "Trip", Content: &notes,
				Start: time.Date(2023, 4, 29, 23, 0, 0, 0, time.UTC),
				End:   time.Date(2023, 5, 1, 1, 0, 0, 0, time.UTC),
			},
			Source: model.SourceGroup,
		}},
		Recurring: []model.TaggedRecurrence{{
			RecurringEvent: model.RecurringEvent{
				Event: model.Event{ID: 9, OwnerID: 2, Title: "Standup", Start: standupStart, End: standupStart.Add(time.Hour)},
				Rule:  model.Rule{Freq: model.Weekly, Interval: 1, ByWeekday: "MO", Until: &until},
			},
			Source:      model.SourcePersonal,
			Occurrences: []model.Occurrence{{Start: standupStart, End: standupStart.Add(time.Hour)}},
		}},
	}

	out := Export(res, w, "group 1")
	assert.Equal(t, out, Export(res, w, "group 1"))

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2)

	trip := events[0]
	assert.Equal(t, "group-5@schedcal", trip.Id())
	assert.Equal(t, "Trip", trip.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "bring tent", trip.GetProperty(ical.ComponentPropertyDescription).Value)
	assert.Equal(t, "group", trip.GetProperty(ical.ComponentPropertyCategories).Value)
	assert.Equal(t, "20230401T000000Z", trip.GetProperty(ical.ComponentPropertyDtstamp).Value)
	assert.Nil(t, trip.GetProperty(ical.ComponentPropertyRrule))

	start, err := trip.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(res.NonRecurring[0].Start))

	standup := events[1]
	assert.Equal(t, "personal-9@schedcal", standup.Id())
	assert.Nil(t, standup.GetProperty(ical.ComponentPropertyDescription))
	require.NotNil(t, standup.GetProperty(ical.ComponentPropertyRrule))
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=1;UNTIL=20250101T000000Z;BYDAY=MO",
		standup.GetProperty(ical.ComponentPropertyRrule).Value)
}

func TestExport_Empty(t *testing.T) {
	w := model.Window{Start: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2023, 4, 2, 0, 0, 0, 0, time.UTC)}

	cal, err := ical.ParseCalendar(strings.NewReader(Export(model.AggregatedResult{}, w, "")))
	require.NoError(t, err)
	assert.Empty(t, cal.Events())
}

func TestExport_MonthlyKeepsWeekdays(t *testing.T) {
	start := time.Date(2023, 1, 15, 10, 0, 0, 0, time.UTC)
	res := model.AggregatedResult{Recurring: []model.TaggedRecurrence{{
		RecurringEvent: model.RecurringEvent{
			Event: model.Event{ID: 1, Start: start, End: start.Add(time.Hour)},
			Rule:  model.Rule{Freq: model.Monthly, Interval: 2, ByWeekday: "MO"},
		},
		Source: model.SourceGroup,
	}}}

	cal, err := ical.ParseCalendar(strings.NewReader(Export(res, model.Window{Start: start, End: start.AddDate(1, 0, 0)}, "")))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 1)
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=2;BYDAY=MO", cal.Events()[0].GetProperty(ical.ComponentPropertyRrule).Value)
}
