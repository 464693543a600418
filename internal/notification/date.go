package notification

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with no time component. Scheduling decisions
// compare whole days only, so the engine never carries a wall-clock time
// on the scheduled side.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	// Normalize through time.Date so e.g. Jan 32 becomes Feb 1.
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current calendar date on the daemon's wall clock.
// Only the resulting Date is kept; all Date arithmetic and comparison
// below is location-free.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses an ISO-8601 date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// time converts the date to a UTC instant for arithmetic. UTC has no
// DST transitions, so AddDays and the comparisons always move in whole
// calendar days regardless of where the date was observed.
func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.time().AddDate(0, 0, n))
}

func (d Date) After(o Date) bool  { return d.time().After(o.time()) }
func (d Date) Before(o Date) bool { return d.time().Before(o.time()) }

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return d.time().Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
