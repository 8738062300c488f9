package web

import (
	"time"

	"schedcal/internal/model"
)

// timeLayout renders instants the way browsers' Date.toISOString does.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type scheduleDTO struct {
	ID            int64   `json:"id"`
	GroupID       *int64  `json:"groupId,omitempty"`
	UserID        *int64  `json:"userId,omitempty"`
	IsGroup       int     `json:"isGroup"`
	Title         string  `json:"title"`
	Content       *string `json:"content"`
	StartDateTime string  `json:"startDateTime"`
	EndDateTime   string  `json:"endDateTime"`
	Recurrence    int     `json:"recurrence"`
}

type occurrenceDTO struct {
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
}

type recurrenceDTO struct {
	scheduleDTO
	Freq               string          `json:"freq"`
	Interval           int             `json:"interval"`
	Byweekday          string          `json:"byweekday"`
	Until              *string         `json:"until"`
	RecurrenceDateList []occurrenceDTO `json:"recurrenceDateList"`
}

type calendarResponse struct {
	NonRecurrenceSchedule []scheduleDTO   `json:"nonRecurrenceSchedule"`
	RecurrenceSchedule    []recurrenceDTO `json:"recurrenceSchedule"`
}

type freeIntervalDTO struct {
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
	Duration      int64  `json:"duration"`
}

func newScheduleDTO(ev model.Event, source model.SourceTag, recurrence int) scheduleDTO {
	dto := scheduleDTO{
		ID:            ev.ID,
		Title:         ev.Title,
		Content:       ev.Content,
		StartDateTime: formatTime(ev.Start),
		EndDateTime:   formatTime(ev.End),
		Recurrence:    recurrence,
	}
	owner := ev.OwnerID
	if source == model.SourceGroup {
		dto.IsGroup = 1
		dto.GroupID = &owner
	} else {
		dto.UserID = &owner
	}
	return dto
}

func newCalendarResponse(agg model.AggregatedResult) calendarResponse {
	resp := calendarResponse{
		NonRecurrenceSchedule: make([]scheduleDTO, 0, len(agg.NonRecurring)),
		RecurrenceSchedule:    make([]recurrenceDTO, 0, len(agg.Recurring)),
	}
	for _, ev := range agg.NonRecurring {
		resp.NonRecurrenceSchedule = append(resp.NonRecurrenceSchedule, newScheduleDTO(ev.Event, ev.Source, 0))
	}
	for _, rec := range agg.Recurring {
		dto := recurrenceDTO{
			scheduleDTO:        newScheduleDTO(rec.Event, rec.Source, 1),
			Freq:               string(rec.Rule.Freq),
			Interval:           max(rec.Rule.Interval, 1),
			Byweekday:          rec.Rule.ByWeekday,
			RecurrenceDateList: make([]occurrenceDTO, 0, len(rec.Occurrences)),
		}
		if rec.Rule.Until != nil {
			until := formatTime(*rec.Rule.Until)
			dto.Until = &until
		}
		for _, occ := range rec.Occurrences {
			dto.RecurrenceDateList = append(dto.RecurrenceDateList, occurrenceDTO{
				StartDateTime: formatTime(occ.Start),
				EndDateTime:   formatTime(occ.End),
			})
		}
		resp.RecurrenceSchedule = append(resp.RecurrenceSchedule, dto)
	}
	return resp
}

func newProposalResponse(free map[string][]model.FreeInterval) map[string][]freeIntervalDTO {
	resp := make(map[string][]freeIntervalDTO, len(free))
	for key, intervals := range free {
		dtos := make([]freeIntervalDTO, 0, len(intervals))
		for _, iv := range intervals {
			dtos = append(dtos, freeIntervalDTO{
				StartDateTime: formatTime(iv.Start),
				EndDateTime:   formatTime(iv.End),
				Duration:      iv.DurationMinutes,
			})
		}
		resp[key] = dtos
	}
	return resp
}
