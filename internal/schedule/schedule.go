package schedule

import (
	"slices"
	"time"
)

// Schedule is a set of white intervals granting access and black intervals
// revoking it. Black intervals take precedence.
type Schedule struct {
	white []RepetitiveInterval
	black []RepetitiveInterval
}

// New returns an empty schedule.
func New() *Schedule {
	return &Schedule{}
}

// AddWhiteInterval inserts r into the white set. Duplicates are ignored.
func (s *Schedule) AddWhiteInterval(r RepetitiveInterval) *Schedule {
	s.white = insertSorted(s.white, r)
	return s
}

// AddBlackInterval inserts r into the black set. Duplicates are ignored.
func (s *Schedule) AddBlackInterval(r RepetitiveInterval) *Schedule {
	s.black = insertSorted(s.black, r)
	return s
}

// WhiteIntervals returns the white set in canonical order.
func (s *Schedule) WhiteIntervals() []RepetitiveInterval {
	return slices.Clone(s.white)
}

// BlackIntervals returns the black set in canonical order.
func (s *Schedule) BlackIntervals() []RepetitiveInterval {
	return slices.Clone(s.black)
}

// Equal reports whether both schedules hold the same intervals.
func (s *Schedule) Equal(other *Schedule) bool {
	if s == nil || other == nil {
		return s == other
	}
	same := func(a, b RepetitiveInterval) bool { return Compare(a, b) == 0 }
	return slices.EqualFunc(s.white, other.white, same) && slices.EqualFunc(s.black, other.black, same)
}

// Clone returns an independent copy of s.
func (s *Schedule) Clone() *Schedule {
	return &Schedule{white: slices.Clone(s.white), black: slices.Clone(s.black)}
}

func insertSorted(set []RepetitiveInterval, r RepetitiveInterval) []RepetitiveInterval {
	idx, found := slices.BinarySearchFunc(set, r, Compare)
	if found {
		return set
	}
	return slices.Insert(set, idx, r)
}

// GetCoveringInterval returns the access verdict at t and the window around
// t over which the verdict does not change. The window always contains t.
//
// Positive white windows are unioned and narrowed by black intervals that
// are negative at t. A positive black interval makes the verdict negative
// over the black window narrowed by the white window. With no positive
// white interval the window is the overlap of the white negative windows.
// Sides no interval bounds are closed at t's UTC day.
func (s *Schedule) GetCoveringInterval(t time.Time) Result {
	t = t.UTC()
	white := evaluate(s.white, t)
	black := evaluate(s.black, t)

	switch {
	case black.positive:
		window := black.union
		if white.positive {
			window = window.intersect(white.union)
		} else {
			window = window.intersect(white.constraint)
		}
		return Result{IsPositive: false, Interval: window.clip(t)}
	case white.positive:
		return Result{IsPositive: true, Interval: white.union.intersect(black.constraint).clip(t)}
	default:
		return Result{IsPositive: false, Interval: white.constraint.clip(t)}
	}
}

// verdict folds the per-interval results of one list.
type verdict struct {
	positive   bool
	union      bound
	constraint bound
}

func evaluate(set []RepetitiveInterval, t time.Time) verdict {
	var v verdict
	for _, r := range set {
		b := r.bound(t)
		switch {
		case !b.positive:
			v.constraint = v.constraint.intersect(b)
		case v.positive:
			v.union = v.union.widen(b)
		default:
			v.positive, v.union = true, b
		}
	}
	return v
}
