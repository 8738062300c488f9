// Package ics renders aggregated schedules as an iCalendar feed.
package ics

import (
	"fmt"

	ical "github.com/arran4/golang-ical"

	appLog "schedcal/internal/log"
	"schedcal/internal/model"
	"schedcal/internal/schedule"
)

const productID = "-//schedcal//schedule export//EN"

// Export renders res as a VCALENDAR. Non-recurring events become plain
// VEVENTs; recurring events become one VEVENT with an RRULE anchored at the
// series start. DTSTAMP is the window start so the same query always
// renders the same bytes.
func Export(res model.AggregatedResult, w model.Window, name string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
	}

	for _, ev := range res.NonRecurring {
		addEvent(cal, ev.Event, ev.Source, w)
	}
	for _, rec := range res.Recurring {
		rrule, err := schedule.RRuleString(rec.Rule)
		if err != nil {
			// Aggregation already excluded malformed rules.
			appLog.Error("ics export: skipping event with malformed rule", err, "event_id", rec.ID)
			continue
		}
		vev := addEvent(cal, rec.Event, rec.Source, w)
		vev.AddRrule(rrule)
	}
	return cal.Serialize()
}

func addEvent(cal *ical.Calendar, ev model.Event, source model.SourceTag, w model.Window) *ical.VEvent {
	vev := cal.AddEvent(UID(source, ev.ID))
	vev.SetDtStampTime(w.Start.UTC())
	vev.SetStartAt(ev.Start.UTC())
	vev.SetEndAt(ev.End.UTC())
	vev.SetSummary(ev.Title)
	if ev.Content != nil && *ev.Content != "" {
		vev.SetDescription(*ev.Content)
	}
	vev.SetProperty(ical.ComponentPropertyCategories, string(source))
	return vev
}

// UID returns the stable iCalendar UID of a stored event.
func UID(source model.SourceTag, id int64) string {
	return fmt.Sprintf("%s-%d@schedcal", source, id)
}
