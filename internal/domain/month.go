package domain

import (
	"fmt"
	"time"
)

// Month identifies one calendar month, the period covered by a single raw
// IDA file. Its string form YYYY-MM sorts lexicographically in time order.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM period string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf truncates a time to its calendar month.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// CurrentMonth returns the month of the package clock's current time.
func CurrentMonth() Month {
	return MonthOf(clock.Now())
}

// PreviousMonth returns the month before [CurrentMonth].
func PreviousMonth() Month {
	return CurrentMonth().Prev()
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Compact renders the month as YYYYMM, the form used in combined artifact names.
func (m Month) Compact() string {
	return fmt.Sprintf("%04d%02d", m.Year, int(m.Month))
}

// Time returns midnight UTC on the first day of the month.
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) Next() Month {
	return MonthOf(m.Time().AddDate(0, 1, 0))
}

func (m Month) Prev() Month {
	return MonthOf(m.Time().AddDate(0, -1, 0))
}

func (m Month) Before(other Month) bool {
	return m.Time().Before(other.Time())
}

func (m Month) After(other Month) bool {
	return m.Time().After(other.Time())
}

// MonthRange enumerates the inclusive month sequence [since, until].
// An inverted range yields nil.
func MonthRange(since, until Month) []Month {
	var months []Month
	for m := since; !m.After(until); m = m.Next() {
		months = append(months, m)
	}
	return months
}
