package compensation

import "time"

// =============================================================================
// DATES - Calendar days in UTC
// =============================================================================

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func StartOfMonth(year int, month time.Month) time.Time { return NewDate(year, month, 1) }
func EndOfMonth(year int, month time.Month) time.Time   { return NewDate(year, month+1, 1).AddDate(0, 0, -1) }
func StartOfYear(year int) time.Time                    { return NewDate(year, time.January, 1) }
func EndOfYear(year int) time.Time                      { return NewDate(year, time.December, 31) }

// =============================================================================
// PERIOD - Reporting window, inclusive on both ends
// =============================================================================

// Period is the reporting window [Start, End].
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod normalizes both bounds to calendar days and validates the order.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: Day(start), End: Day(end)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate returns ErrInvalidPeriod (wrapped in a ValidationError) when End
// is before Start or either bound is missing.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "period", Reason: "start and end are required", Err: ErrInvalidPeriod}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "period", Reason: "end before start", Err: ErrInvalidPeriod}
	}
	return nil
}

// Contains returns true if t falls on a day within [Start, End].
func (p Period) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(p.Start)) && !d.After(Day(p.End))
}

// Year returns the calendar year of the period end, which selects the
// benchmark curve year.
func (p Period) Year() int { return p.End.Year() }

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// =============================================================================
// PERIOD PRESETS
// =============================================================================

// MonthPeriod returns the calendar month containing the date.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// QuarterPeriod returns calendar quarter q (1-4) of the year.
func QuarterPeriod(year, q int) Period {
	first := time.Month((q-1)*3 + 1)
	return Period{Start: StartOfMonth(year, first), End: EndOfMonth(year, first+2)}
}

// YearPeriod returns the calendar year.
func YearPeriod(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}
