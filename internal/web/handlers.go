package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"schedcal/internal/cache"
	"schedcal/internal/ics"
	appLog "schedcal/internal/log"
	"schedcal/internal/model"
	"schedcal/internal/schedule"
	"schedcal/internal/store"
)

const (
	routeCalendar = "calendar"
	routeICS      = "calendar.ics"
	routeProposal = "proposal"

	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// Accepted instant formats, tried in order. Values without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q", s)
}

func parseWindow(c *gin.Context) (model.Window, error) {
	rawStart, rawEnd := c.Query("startDateTime"), c.Query("endDateTime")
	if rawStart == "" || rawEnd == "" {
		return model.Window{}, errMissingWindow
	}
	start, err := parseInstant(rawStart)
	if err != nil {
		return model.Window{}, err
	}
	end, err := parseInstant(rawEnd)
	if err != nil {
		return model.Window{}, err
	}
	w := model.Window{Start: start, End: end}
	if !w.Valid() {
		return model.Window{}, errInvertedRange
	}
	return w, nil
}

// parseDays collects the values of every query parameter whose name starts
// with "date", in parameter-name order, without duplicates.
func parseDays(c *gin.Context) ([]schedule.Day, error) {
	q := c.Request.URL.Query()
	names := make([]string, 0, len(q))
	for name := range q {
		if strings.HasPrefix(name, "date") {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var days []schedule.Day
	seen := make(map[string]bool)
	for _, name := range names {
		for _, raw := range q[name] {
			if seen[raw] {
				continue
			}
			seen[raw] = true
			d, err := parseInstant(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			days = append(days, schedule.Day{Key: raw, Date: d})
		}
	}
	if len(days) == 0 {
		return nil, errNoDates
	}
	return days, nil
}

func (s *Server) groupID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid group id", err))
		return 0, false
	}
	return id, true
}

// ownerSets resolves the group's members. Personal schedules come first,
// then the group's own.
func (s *Server) ownerSets(c *gin.Context, groupID int64) ([]schedule.OwnerSet, bool) {
	members, err := s.dir.GroupMembers(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			appLog.Info("group not found", "group_id", groupID, "request_id", c.GetString(requestIDKey))
			c.AbortWithStatusJSON(http.StatusNotFound, NewError("group not found", err))
			return nil, false
		}
		s.internalError(c, "group lookup failed", err, "group_id", groupID)
		return nil, false
	}
	return []schedule.OwnerSet{
		{Source: model.SourcePersonal, IDs: members},
		{Source: model.SourceGroup, IDs: []int64{groupID}},
	}, true
}

// internalError logs err and answers 500 without exposing it.
func (s *Server) internalError(c *gin.Context, msg string, err error, kv ...any) {
	kv = append(kv, "request_id", c.GetString(requestIDKey), "route", c.FullPath())
	appLog.Error(msg, err, kv...)
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewError("failed to load schedules"))
}

func (s *Server) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

// serveCached writes a cached body and reports whether it did.
func (s *Server) serveCached(c *gin.Context, route, key, contentType string) bool {
	if !s.cacheEnabled() {
		return false
	}
	body, ok, err := s.cache.Get(c.Request.Context(), key)
	if err != nil {
		appLog.Error("cache get failed", err, "route", route)
	}
	if !ok {
		s.metrics.CacheMiss(route)
		return false
	}
	s.metrics.CacheHit(route)
	c.Data(http.StatusOK, contentType, body)
	return true
}

func (s *Server) storeCached(c *gin.Context, route, key string, body []byte) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Set(c.Request.Context(), key, body, s.cacheTTL); err != nil {
		appLog.Error("cache set failed", err, "route", route)
	}
}

func windowKey(route string, groupID int64, w model.Window) string {
	return cache.Key(route, strconv.FormatInt(groupID, 10), formatTime(w.Start), formatTime(w.End))
}

// aggregate runs the listing shared by the JSON and iCalendar routes.
func (s *Server) aggregate(c *gin.Context, groupID int64, w model.Window) (model.AggregatedResult, bool) {
	sets, ok := s.ownerSets(c, groupID)
	if !ok {
		return model.AggregatedResult{}, false
	}
	agg, err := s.engine.Aggregate(c.Request.Context(), sets, w)
	if err != nil {
		s.internalError(c, "aggregate schedules failed", err, "group_id", groupID)
		return model.AggregatedResult{}, false
	}
	return agg, true
}

// handleCalendar returns every schedule of the group and its members that
// overlaps [startDateTime, endDateTime].
//
// GET /api/groups/:group_id/calendar?startDateTime=...&endDateTime=...
func (s *Server) handleCalendar(c *gin.Context) {
	groupID, ok := s.groupID(c)
	if !ok {
		return
	}
	w, err := parseWindow(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid query", err))
		return
	}

	key := windowKey(routeCalendar, groupID, w)
	if s.serveCached(c, routeCalendar, key, contentTypeJSON) {
		return
	}

	agg, ok := s.aggregate(c, groupID, w)
	if !ok {
		return
	}

	body, err := json.Marshal(newCalendarResponse(agg))
	if err != nil {
		s.internalError(c, "encode calendar response failed", err)
		return
	}

	appLog.Info("api calendar request",
		"group_id", groupID,
		"range_start", w.Start.Format(time.RFC3339),
		"range_end", w.End.Format(time.RFC3339),
		"non_recurring", len(agg.NonRecurring),
		"recurring", len(agg.Recurring),
		"request_id", c.GetString(requestIDKey),
	)

	s.storeCached(c, routeCalendar, key, body)
	c.Data(http.StatusOK, contentTypeJSON, body)
}

// handleCalendarICS is handleCalendar rendered as an iCalendar feed.
func (s *Server) handleCalendarICS(c *gin.Context) {
	groupID, ok := s.groupID(c)
	if !ok {
		return
	}
	w, err := parseWindow(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid query", err))
		return
	}

	key := windowKey(routeICS, groupID, w)
	if s.serveCached(c, routeICS, key, contentTypeICS) {
		return
	}

	agg, ok := s.aggregate(c, groupID, w)
	if !ok {
		return
	}

	body := []byte(ics.Export(agg, w, fmt.Sprintf("group %d", groupID)))
	s.storeCached(c, routeICS, key, body)
	c.Data(http.StatusOK, contentTypeICS, body)
}

// handleProposal returns the free intervals of each requested day, keyed by
// the date exactly as it was sent.
//
// GET /api/groups/:group_id/proposal?date1=...&date2=...
func (s *Server) handleProposal(c *gin.Context) {
	groupID, ok := s.groupID(c)
	if !ok {
		return
	}
	days, err := parseDays(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewError("invalid query", err))
		return
	}

	keyParts := []string{routeProposal, strconv.FormatInt(groupID, 10)}
	for _, d := range days {
		keyParts = append(keyParts, d.Key)
	}
	key := cache.Key(keyParts...)
	if s.serveCached(c, routeProposal, key, contentTypeJSON) {
		return
	}

	sets, ok := s.ownerSets(c, groupID)
	if !ok {
		return
	}

	free, err := s.engine.ProposeFreeSlots(c.Request.Context(), sets, days)
	if err != nil {
		s.internalError(c, "propose free slots failed", err, "group_id", groupID)
		return
	}

	body, err := json.Marshal(newProposalResponse(free))
	if err != nil {
		s.internalError(c, "encode proposal response failed", err)
		return
	}

	s.storeCached(c, routeProposal, key, body)
	c.Data(http.StatusOK, contentTypeJSON, body)
}
