package ndn

import "time"

// DefaultInterestLifetime applies when an Interest does not set Lifetime.
const DefaultInterestLifetime = 4 * time.Second

// Child selectors pick among several Data matching an Interest.
const (
	ChildSelectorLeftmost  = 0
	ChildSelectorRightmost = 1
)

// Exclude filters the name component that immediately follows an Interest
// name. Components may be excluded individually or by open-ended range.
type Exclude struct {
	components []Component
	upTo       Component
	after      Component
}

// ExcludeOne excludes exactly c.
func (e *Exclude) ExcludeOne(c Component) {
	for _, existing := range e.components {
		if existing.Equal(c) {
			return
		}
	}
	e.components = append(e.components, append(Component(nil), c...))
}

// ExcludeBefore excludes every component less than or equal to c.
func (e *Exclude) ExcludeBefore(c Component) {
	if e.upTo == nil || c.Compare(e.upTo) > 0 {
		e.upTo = append(Component(nil), c...)
	}
}

// ExcludeAfter excludes every component strictly greater than c.
func (e *Exclude) ExcludeAfter(c Component) {
	if e.after == nil || c.Compare(e.after) < 0 {
		e.after = append(Component(nil), c...)
	}
}

// Matches reports whether c is excluded.
func (e Exclude) Matches(c Component) bool {
	if e.upTo != nil && c.Compare(e.upTo) <= 0 {
		return true
	}
	if e.after != nil && c.Compare(e.after) > 0 {
		return true
	}
	for _, existing := range e.components {
		if existing.Equal(c) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether nothing is excluded.
func (e Exclude) IsEmpty() bool {
	return len(e.components) == 0 && e.upTo == nil && e.after == nil
}

// Interest requests Data by name prefix.
type Interest struct {
	Name           Name
	Exclude        Exclude
	ChildSelector  int
	MustBeFresh    bool
	Lifetime       time.Duration
	ForwardingHint []Name
}

// NewInterest returns an Interest for name with the default lifetime.
func NewInterest(name Name) *Interest {
	return &Interest{Name: name, Lifetime: DefaultInterestLifetime}
}

// MatchesName reports whether a Data packet with the given name satisfies
// the Interest name and exclude filter.
func (i *Interest) MatchesName(name Name) bool {
	if !i.Name.IsPrefixOf(name) {
		return false
	}
	if len(name) > len(i.Name) && i.Exclude.Matches(name[len(i.Name)]) {
		return false
	}
	return true
}

// Clone returns a copy that can be modified independently.
func (i *Interest) Clone() *Interest {
	out := *i
	out.Name = i.Name.Prefix(len(i.Name))
	out.Exclude.components = append([]Component(nil), i.Exclude.components...)
	out.ForwardingHint = append([]Name(nil), i.ForwardingHint...)
	return &out
}
