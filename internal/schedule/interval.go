// Package schedule decides, for any instant, whether a group access schedule
// grants access and over which contiguous window that verdict holds.
package schedule

import (
	"fmt"
	"time"
)

// IsoLayout is the ISO-8601 basic form used for names and persistence keys.
const IsoLayout = "20060102T150405"

// ToIsoString formats t in UTC as YYYYMMDDTHHMMSS.
func ToIsoString(t time.Time) string {
	return t.UTC().Format(IsoLayout)
}

// FromIsoString parses a YYYYMMDDTHHMMSS timestamp as UTC.
func FromIsoString(s string) (time.Time, error) {
	t, err := time.ParseInLocation(IsoLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: parse iso time %q: %w", s, err)
	}
	return t, nil
}

// MustFromIsoString is FromIsoString for literals known to be valid.
func MustFromIsoString(s string) time.Time {
	t, err := FromIsoString(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Interval is a half-open time window [start, end). The zero value is an
// invalid interval, meaning "no information".
type Interval struct {
	start time.Time
	end   time.Time
	valid bool
	empty bool
}

// NewInterval returns a valid interval. start must not be after end.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.After(end) {
		vErr := &ConfigError{}
		vErr.add("interval", fmt.Sprintf("start %s is after end %s", ToIsoString(start), ToIsoString(end)))
		return Interval{}, vErr
	}
	return Interval{start: start.UTC(), end: end.UTC(), valid: true, empty: !start.Before(end)}, nil
}

// NewEmptyInterval returns a valid interval that covers nothing.
func NewEmptyInterval() Interval {
	return Interval{valid: true, empty: true}
}

func span(start, end time.Time) Interval {
	return Interval{start: start, end: end, valid: true, empty: !start.Before(end)}
}

// IsValid reports whether the interval carries information.
func (i Interval) IsValid() bool { return i.valid }

// IsEmpty reports whether the interval covers no instant.
func (i Interval) IsEmpty() bool { return !i.valid || i.empty }

// StartTime returns the inclusive start.
func (i Interval) StartTime() time.Time { return i.start }

// EndTime returns the exclusive end.
func (i Interval) EndTime() time.Time { return i.end }

// Covers reports whether t lies in [start, end).
func (i Interval) Covers(t time.Time) bool {
	if i.IsEmpty() {
		return false
	}
	return !t.Before(i.start) && t.Before(i.end)
}

// Intersect returns the overlap of i and other. The result is invalid when
// either operand is invalid and empty when they do not overlap.
func (i Interval) Intersect(other Interval) Interval {
	if !i.valid || !other.valid {
		return Interval{}
	}
	if i.empty || other.empty {
		return NewEmptyInterval()
	}
	if !i.start.Before(other.end) || !i.end.After(other.start) {
		return NewEmptyInterval()
	}
	return span(later(i.start, other.start), earlier(i.end, other.end))
}

// Union returns the smallest interval covering both operands, which must
// overlap unless one of them is empty.
func (i Interval) Union(other Interval) (Interval, error) {
	if !i.valid || !other.valid {
		return Interval{}, fmt.Errorf("schedule: union of invalid interval")
	}
	if i.empty {
		return other, nil
	}
	if other.empty {
		return i, nil
	}
	if !i.start.Before(other.end) || !i.end.After(other.start) {
		return Interval{}, ErrDisjointUnion
	}
	return span(earlier(i.start, other.start), later(i.end, other.end)), nil
}

// Equal reports whether two intervals describe the same window.
func (i Interval) Equal(other Interval) bool {
	if i.valid != other.valid {
		return false
	}
	if !i.valid {
		return true
	}
	if i.empty || other.empty {
		return i.empty == other.empty
	}
	return i.start.Equal(other.start) && i.end.Equal(other.end)
}

func (i Interval) String() string {
	switch {
	case !i.valid:
		return "invalid"
	case i.empty:
		return "empty"
	}
	return "[" + ToIsoString(i.start) + ", " + ToIsoString(i.end) + ")"
}

// Result is an access verdict together with the window over which it holds.
type Result struct {
	IsPositive bool
	Interval   Interval
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// bound is a window whose sides may be open-ended while verdicts from
// several intervals are being combined.
type bound struct {
	positive bool
	start    time.Time
	end      time.Time
	hasStart bool
	hasEnd   bool
}

func (b bound) intersect(other bound) bound {
	out := b
	if other.hasStart && (!out.hasStart || other.start.After(out.start)) {
		out.start, out.hasStart = other.start, true
	}
	if other.hasEnd && (!out.hasEnd || other.end.Before(out.end)) {
		out.end, out.hasEnd = other.end, true
	}
	return out
}

func (b bound) widen(other bound) bound {
	out := b
	if other.start.Before(out.start) {
		out.start = other.start
	}
	if other.end.After(out.end) {
		out.end = other.end
	}
	return out
}

// clip closes open sides at the UTC day containing t.
func (b bound) clip(t time.Time) Interval {
	day := dateOnly(t)
	start, end := b.start, b.end
	if !b.hasStart {
		start = day
	}
	if !b.hasEnd {
		end = day.AddDate(0, 0, 1)
	}
	return span(start, end)
}
