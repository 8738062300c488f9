package schedule

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"schedcal/internal/model"
)

// ErrInvalidRule marks a recurrence rule that cannot be expanded. Callers
// exclude the affected event instead of failing the whole request.
var ErrInvalidRule = errors.New("invalid recurrence rule")

var weekdayCodes = map[string]time.Weekday{
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
	"SU": time.Sunday,
}

// NormalizeFreq maps a stored frequency string to a Frequency. Unknown
// values are kept as-is and rejected when the rule is expanded.
func NormalizeFreq(freq string) model.Frequency {
	return model.Frequency(strings.ToUpper(strings.TrimSpace(freq)))
}

// ParseWeekdays parses "MO,WE,FR" into weekdays, keeping input order and
// dropping duplicates.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		wd, ok := weekdayCodes[code]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, part)
		}
		if !slices.Contains(out, wd) {
			out = append(out, wd)
		}
	}
	return out, nil
}

// FormatWeekdays is the inverse of ParseWeekdays.
func FormatWeekdays(days []time.Weekday) string {
	codes := make([]string, 0, len(days))
	for _, d := range days {
		codes = append(codes, strings.ToUpper(d.String()[:2]))
	}
	return strings.Join(codes, ",")
}

// Validate reports whether rule can be expanded.
func Validate(rule model.Rule) error {
	_, err := rruleOption(rule, time.Time{})
	return err
}

// RRuleString renders rule as an RFC 5545 RRULE value (without DTSTART),
// carrying only the parts Anchors honours.
func RRuleString(rule model.Rule) (string, error) {
	opt, err := rruleOption(rule, time.Time{})
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// Anchors returns the start instants of the series anchored at dtstart that
// fall within [from, to], in ascending order. The sequence is lazy: it stops
// at the first anchor past to or past rule.Until, whichever comes first.
func Anchors(rule model.Rule, dtstart, from, to time.Time) (iter.Seq[time.Time], error) {
	opt, err := rruleOption(rule, dtstart)
	if err != nil {
		return nil, err
	}

	empty := func(func(time.Time) bool) {}
	if to.Before(from) {
		return empty, nil
	}
	if rule.Until != nil && rule.Until.Before(dtstart) {
		return empty, nil
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	// rrule works at second precision; carry the sub-second part of dtstart.
	frac := dtstart.Sub(dtstart.Truncate(time.Second))

	return func(yield func(time.Time) bool) {
		next := r.Iterator()
		for {
			t, ok := next()
			if !ok {
				return
			}
			t = t.Truncate(time.Second).Add(frac).UTC()
			if rule.Until != nil && t.After(*rule.Until) {
				return
			}
			if t.After(to) {
				return
			}
			if t.Before(from) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}, nil
}

func rruleOption(rule model.Rule, dtstart time.Time) (rrule.ROption, error) {
	freq, err := toRRuleFreq(rule.Freq)
	if err != nil {
		return rrule.ROption{}, err
	}
	if rule.Interval < 0 {
		return rrule.ROption{}, fmt.Errorf("%w: negative interval %d", ErrInvalidRule, rule.Interval)
	}
	interval := rule.Interval
	if interval == 0 {
		interval = 1
	}

	opt := rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Dtstart:  dtstart.UTC(),
	}
	if rule.Until != nil {
		opt.Until = rule.Until.UTC()
	}
	days, err := ParseWeekdays(rule.ByWeekday)
	if err != nil {
		return rrule.ROption{}, err
	}
	// A weekday set narrows every frequency: MONTHLY+MO is each Monday of
	// the month, not the dtstart day-of-month.
	if len(days) > 0 {
		opt.Byweekday = make([]rrule.Weekday, 0, len(days))
		for _, wd := range days {
			opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(wd))
		}
	}
	return opt, nil
}

func toRRuleFreq(f model.Frequency) (rrule.Frequency, error) {
	switch f {
	case model.Daily:
		return rrule.DAILY, nil
	case model.Weekly:
		return rrule.WEEKLY, nil
	case model.Monthly:
		return rrule.MONTHLY, nil
	case model.Yearly:
		return rrule.YEARLY, nil
	default:
		return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, string(f))
	}
}

func toRRuleWeekday(wd time.Weekday) rrule.Weekday {
	switch wd {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}
