// Package timeparse resolves the date/time expressions customers type in
// chat ("tomorrow at 7pm", "Friday 6:30", "in 2 hours", "today 14:00") into
// absolute timestamps in the business's timezone. Parsing is pure:
// opening-hours fallback and lead-time checks live with the caller, which
// knows the tenant.
package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognized is returned when an expression matches none of the
// supported forms.
var ErrUnrecognized = errors.New("timeparse: unrecognized date/time expression")

// Resolution is a parsed expression. DateOnly is set when the customer gave
// a day but no time of day; the caller substitutes the business's next
// opening time for that day.
type Resolution struct {
	At       time.Time
	DateOnly bool
}

// canonicalLayout is the exchange format Format emits and Parse accepts,
// minute precision. Times in this form are read as 24-hour clock with no
// evening defaulting, so Parse(Format(t)) round-trips.
const canonicalLayout = "2006-01-02 15:04"

// Format renders t in the canonical exchange form.
func Format(t time.Time) string {
	return t.Format(canonicalLayout)
}

var (
	relativePattern = regexp.MustCompile(`^in (\d+) ?(minute|min|hour|hr|day)s?$`)
	isoDatePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern     = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)?$`)
	meridiemGlue    = regexp.MustCompile(`(\d) (am|pm)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Parse resolves expr against now, in now's location. Supported forms:
// "today"/"tomorrow"/weekday names with an optional time, "in N
// minutes/hours/days", a bare time of day, an ISO date, and the canonical
// "YYYY-MM-DD HH:MM" exchange form. A bare hour 1-11 with no meridiem in a
// casual expression defaults to evening; ISO-dated times are 24-hour.
func Parse(expr string, now time.Time) (Resolution, error) {
	norm := normalize(expr)
	if norm == "" {
		return Resolution{}, ErrUnrecognized
	}

	if m := relativePattern.FindStringSubmatch(norm); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 {
			return Resolution{}, ErrUnrecognized
		}
		var d time.Duration
		switch m[2] {
		case "minute", "min":
			d = time.Duration(n) * time.Minute
		case "hour", "hr":
			d = time.Duration(n) * time.Hour
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		}
		return Resolution{At: now.Add(d).Truncate(time.Minute)}, nil
	}

	fields := strings.Fields(norm)
	date, isoDated, rest, ok := consumeDate(fields, now)
	if !ok {
		return Resolution{}, ErrUnrecognized
	}

	if len(rest) == 0 {
		return Resolution{At: date.midnight, DateOnly: true}, nil
	}

	hour, minute, err := parseClock(strings.Join(rest, ""), isoDated)
	if err != nil {
		return Resolution{}, err
	}

	at := time.Date(date.midnight.Year(), date.midnight.Month(), date.midnight.Day(),
		hour, minute, 0, 0, now.Location())
	if date.isWeekday && !at.After(now) {
		// "Friday 6:30" said on a Friday evening means the coming week.
		at = at.AddDate(0, 0, 7)
	}
	return Resolution{At: at}, nil
}

// parsedDate is the day part of an expression.
type parsedDate struct {
	midnight  time.Time
	isWeekday bool
}

// consumeDate interprets the leading fields as a day reference and returns
// the remaining time-of-day fields. With no recognizable date word the
// whole input is treated as a bare time for today.
func consumeDate(fields []string, now time.Time) (parsedDate, bool, []string, bool) {
	midnightOf := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	}

	head := fields[0]
	switch {
	case head == "today":
		return parsedDate{midnight: midnightOf(now)}, false, fields[1:], true
	case head == "tonight":
		return parsedDate{midnight: midnightOf(now)}, false, fields[1:], true
	case head == "tomorrow":
		return parsedDate{midnight: midnightOf(now.AddDate(0, 0, 1))}, false, fields[1:], true
	case isoDatePattern.MatchString(head):
		d, err := time.ParseInLocation("2006-01-02", head, now.Location())
		if err != nil {
			return parsedDate{}, false, nil, false
		}
		return parsedDate{midnight: d}, true, fields[1:], true
	}

	if wd, ok := weekdays[head]; ok {
		ahead := (int(wd) - int(now.Weekday()) + 7) % 7
		return parsedDate{midnight: midnightOf(now.AddDate(0, 0, ahead)), isWeekday: true}, false, fields[1:], true
	}

	// No date word: the entire expression must be a time of day, for today.
	return parsedDate{midnight: midnightOf(now)}, false, fields, true
}

// parseClock reads a time-of-day token. The evening default applies to
// hours 1-11 with no meridiem in casual expressions only; a time following
// an ISO date is 24-hour.
func parseClock(token string, isoDated bool) (int, int, error) {
	m := timePattern.FindStringSubmatch(token)
	if m == nil {
		return 0, 0, ErrUnrecognized
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return 0, 0, ErrUnrecognized
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, 0, ErrUnrecognized
		}
	}

	switch m[3] {
	case "pm":
		if hour > 12 {
			return 0, 0, ErrUnrecognized
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return 0, 0, ErrUnrecognized
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if !isoDated && hour >= 1 && hour <= 11 {
			hour += 12
		}
	}
	return hour, minute, nil
}

// NextOpeningAfter combines a date-only resolution with the business's
// opening time for that day: the fallback when a customer names a day but
// no time. openTime is the "HH:MM" open_time for the resolved weekday.
func NextOpeningAfter(dateOnly time.Time, openTime string, now time.Time) (time.Time, error) {
	clock, err := time.Parse("15:04", openTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeparse: bad opening time %q: %w", openTime, err)
	}
	at := time.Date(dateOnly.Year(), dateOnly.Month(), dateOnly.Day(),
		clock.Hour(), clock.Minute(), 0, 0, dateOnly.Location())
	if at.Before(now) {
		// Already open today: the earliest honest answer is now, not a
		// moment that has passed.
		at = now.Truncate(time.Minute)
	}
	return at, nil
}

func normalize(expr string) string {
	s := strings.ToLower(strings.TrimSpace(expr))
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.TrimPrefix(s, "on ")
	s = strings.ReplaceAll(s, " at ", " ")
	s = strings.ReplaceAll(s, " o'clock", "")
	// "7 pm" and "6 : 30" collapse so the clock regex sees one token.
	s = strings.Join(strings.Fields(s), " ")
	s = meridiemGlue.ReplaceAllString(s, "$1$2")
	return s
}
