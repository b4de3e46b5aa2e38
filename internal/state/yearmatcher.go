package state

// YearMatcher restricts a command to a range of years. Either bound may be
// open. A nil matcher matches every year.
type YearMatcher struct {
	min *int
	max *int
}

// NewYearMatcher creates a matcher for the inclusive range [min, max].
// A nil bound leaves that side open. Reversed bounds are normalized.
func NewYearMatcher(min, max *int) *YearMatcher {
	if min != nil && max != nil && *min > *max {
		min, max = max, min
	}
	return &YearMatcher{min: min, max: max}
}

// NewSingleYearMatcher creates a matcher for exactly one year.
func NewSingleYearMatcher(year int) *YearMatcher {
	y := year
	return &YearMatcher{min: &y, max: &y}
}

// Matches reports whether the given year falls within the range. A nil
// receiver matches all years.
func (m *YearMatcher) Matches(year int) bool {
	if m == nil {
		return true
	}
	if m.min != nil && year < *m.min {
		return false
	}
	if m.max != nil && year > *m.max {
		return false
	}
	return true
}

// Min returns the lower bound, or nil if open.
func (m *YearMatcher) Min() *int {
	if m == nil {
		return nil
	}
	return m.min
}

// Max returns the upper bound, or nil if open.
func (m *YearMatcher) Max() *int {
	if m == nil {
		return nil
	}
	return m.max
}
