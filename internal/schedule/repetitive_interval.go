package schedule

import (
	"cmp"
	"fmt"
	"time"
)

// RepeatUnit is the calendar step between occurrences.
type RepeatUnit int

const (
	// RepeatNone marks a one-shot interval.
	RepeatNone RepeatUnit = iota
	// RepeatDay repeats every N days.
	RepeatDay
	// RepeatMonth repeats on the same day of month every N months.
	RepeatMonth
	// RepeatYear repeats on the same month and day every N years.
	RepeatYear
)

func (u RepeatUnit) String() string {
	switch u {
	case RepeatNone:
		return "none"
	case RepeatDay:
		return "day"
	case RepeatMonth:
		return "month"
	case RepeatYear:
		return "year"
	}
	return fmt.Sprintf("RepeatUnit(%d)", int(u))
}

// ParseRepeatUnit maps the textual unit names back to RepeatUnit.
func ParseRepeatUnit(s string) (RepeatUnit, error) {
	for _, u := range []RepeatUnit{RepeatNone, RepeatDay, RepeatMonth, RepeatYear} {
		if u.String() == s {
			return u, nil
		}
	}
	vErr := &ConfigError{}
	vErr.add("repeatUnit", fmt.Sprintf("unknown unit %q", s))
	return RepeatNone, vErr
}

// RepetitiveInterval is a daily [startHour, endHour) window that recurs every
// nRepeats units between startDate and endDate inclusive. Values are
// immutable once constructed.
type RepetitiveInterval struct {
	startDate time.Time
	endDate   time.Time
	startHour int
	endHour   int
	nRepeats  int
	unit      RepeatUnit
}

// NewRepetitiveInterval validates its arguments and returns the interval.
// Dates are truncated to UTC midnight. A one-shot interval (nRepeats 0 or
// RepeatNone) must start and end on the same date.
func NewRepetitiveInterval(startDate, endDate time.Time, startHour, endHour, nRepeats int, unit RepeatUnit) (RepetitiveInterval, error) {
	vErr := &ConfigError{}
	startDate, endDate = dateOnly(startDate), dateOnly(endDate)

	if startHour < 0 || startHour > 24 {
		vErr.add("intervalStartHour", "must be between 0 and 24")
	}
	if endHour < 0 || endHour > 24 {
		vErr.add("intervalEndHour", "must be between 0 and 24")
	}
	if startHour >= endHour {
		vErr.add("intervalEndHour", "must be after intervalStartHour")
	}
	if startDate.After(endDate) {
		vErr.add("endDate", "must not be before startDate")
	}
	if nRepeats < 0 {
		vErr.add("nRepeats", "must not be negative")
	}
	if unit < RepeatNone || unit > RepeatYear {
		vErr.add("repeatUnit", "unknown unit")
	}
	if (nRepeats == 0 || unit == RepeatNone) && !startDate.Equal(endDate) {
		vErr.add("endDate", "must equal startDate for a one-shot interval")
	}
	if vErr.HasErrors() {
		return RepetitiveInterval{}, vErr
	}

	return RepetitiveInterval{
		startDate: startDate,
		endDate:   endDate,
		startHour: startHour,
		endHour:   endHour,
		nRepeats:  nRepeats,
		unit:      unit,
	}, nil
}

// MustRepetitiveInterval is NewRepetitiveInterval for literals known to be
// valid; it panics on a ConfigError.
func MustRepetitiveInterval(startDate, endDate time.Time, startHour, endHour, nRepeats int, unit RepeatUnit) RepetitiveInterval {
	r, err := NewRepetitiveInterval(startDate, endDate, startHour, endHour, nRepeats, unit)
	if err != nil {
		panic(err)
	}
	return r
}

// StartDate returns the UTC midnight of the first occurrence.
func (r RepetitiveInterval) StartDate() time.Time { return r.startDate }

// EndDate returns the UTC midnight of the last day an occurrence may start.
func (r RepetitiveInterval) EndDate() time.Time { return r.endDate }

// StartHour returns the hour of day each occurrence opens.
func (r RepetitiveInterval) StartHour() int { return r.startHour }

// EndHour returns the hour of day each occurrence closes, exclusive.
func (r RepetitiveInterval) EndHour() int { return r.endHour }

// NRepeats returns the step between occurrences in Unit; zero means one-shot.
func (r RepetitiveInterval) NRepeats() int { return r.nRepeats }

// Unit returns the repeat unit.
func (r RepetitiveInterval) Unit() RepeatUnit { return r.unit }

// String formats the interval for logs.
func (r RepetitiveInterval) String() string {
	return fmt.Sprintf("%s..%s %02d-%02dh every %d %s",
		ToIsoString(r.startDate), ToIsoString(r.endDate), r.startHour, r.endHour, r.nRepeats, r.unit)
}

// Compare orders intervals by start date, end date, start hour, end hour,
// repeat count and unit.
func Compare(a, b RepetitiveInterval) int {
	if c := a.startDate.Compare(b.startDate); c != 0 {
		return c
	}
	if c := a.endDate.Compare(b.endDate); c != 0 {
		return c
	}
	if c := cmp.Compare(a.startHour, b.startHour); c != 0 {
		return c
	}
	if c := cmp.Compare(a.endHour, b.endHour); c != 0 {
		return c
	}
	if c := cmp.Compare(a.nRepeats, b.nRepeats); c != 0 {
		return c
	}
	return cmp.Compare(a.unit, b.unit)
}

// GetInterval returns whether t falls inside an occurrence and the window
// sharing that verdict. Outside [startDate, endDate] the result is negative
// with an invalid interval.
func (r RepetitiveInterval) GetInterval(t time.Time) Result {
	t = t.UTC()
	if t.Before(r.startDate) || !t.Before(r.rangeEnd()) {
		return Result{IsPositive: false, Interval: Interval{}}
	}
	b := r.bound(t)
	if !b.hasStart {
		b.start, b.hasStart = r.startDate, true
	}
	if !b.hasEnd {
		b.end, b.hasEnd = r.rangeEnd(), true
	}
	return Result{IsPositive: b.positive, Interval: span(b.start, b.end)}
}

// bound is GetInterval without clipping to the calendar span: sides with no
// neighbouring occurrence stay open, and instants outside the span are
// bounded by the first or last occurrence.
func (r RepetitiveInterval) bound(t time.Time) bound {
	if t.Before(r.startDate) {
		first, _ := r.window(r.startDate)
		return bound{end: first, hasEnd: true}
	}

	var b bound
	if start, end, ok := r.previous(t); ok {
		if t.Before(end) {
			return bound{positive: true, start: start, end: end, hasStart: true, hasEnd: true}
		}
		b.start, b.hasStart = end, true
	}
	if next, ok := r.next(t); ok {
		b.end, b.hasEnd = next, true
	}
	return b
}

func (r RepetitiveInterval) rangeEnd() time.Time {
	return r.endDate.AddDate(0, 0, 1)
}

func (r RepetitiveInterval) oneShot() bool {
	return r.nRepeats == 0 || r.unit == RepeatNone
}

func (r RepetitiveInterval) window(date time.Time) (time.Time, time.Time) {
	return date.Add(time.Duration(r.startHour) * time.Hour), date.Add(time.Duration(r.endHour) * time.Hour)
}

// occurrence returns the date of the k-th repetition. ok is false when the
// calendar has no such day, such as the 31st of a 30-day month.
func (r RepetitiveInterval) occurrence(k int) (time.Time, bool) {
	if r.oneShot() {
		return r.startDate, k == 0
	}
	y, m, d := r.startDate.Date()
	step := k * r.nRepeats
	switch r.unit {
	case RepeatDay:
		return r.startDate.AddDate(0, 0, step), true
	case RepeatMonth:
		date := time.Date(y, m+time.Month(step), d, 0, 0, 0, 0, time.UTC)
		return date, date.Day() == d
	case RepeatYear:
		date := time.Date(y+step, m, d, 0, 0, 0, 0, time.UTC)
		return date, date.Month() == m && date.Day() == d
	}
	return time.Time{}, false
}

// indexAt returns the repetition index whose date is closest to, and not
// after, date when the calendar has that day.
func (r RepetitiveInterval) indexAt(date time.Time) int {
	if r.oneShot() || date.Before(r.startDate) {
		return 0
	}
	switch r.unit {
	case RepeatDay:
		return int(date.Sub(r.startDate)/(24*time.Hour)) / r.nRepeats
	case RepeatMonth:
		months := (date.Year()-r.startDate.Year())*12 + int(date.Month()-r.startDate.Month())
		return months / r.nRepeats
	case RepeatYear:
		return (date.Year() - r.startDate.Year()) / r.nRepeats
	}
	return 0
}

// previous finds the latest occurrence starting at or before t.
func (r RepetitiveInterval) previous(t time.Time) (time.Time, time.Time, bool) {
	date := dateOnly(t)
	if date.After(r.endDate) {
		date = r.endDate
	}
	for k := r.indexAt(date); k >= 0; k-- {
		day, ok := r.occurrence(k)
		if !ok || day.After(r.endDate) {
			continue
		}
		start, end := r.window(day)
		if !start.After(t) {
			return start, end, true
		}
	}
	return time.Time{}, time.Time{}, false
}

// next finds the earliest occurrence starting after t.
func (r RepetitiveInterval) next(t time.Time) (time.Time, bool) {
	last := r.indexAt(r.endDate)
	for k := r.indexAt(dateOnly(t)); k <= last; k++ {
		day, ok := r.occurrence(k)
		if !ok || day.After(r.endDate) {
			continue
		}
		if start, _ := r.window(day); start.After(t) {
			return start, true
		}
	}
	return time.Time{}, false
}
