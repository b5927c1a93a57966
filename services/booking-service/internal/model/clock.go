package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day as minutes after midnight. 24:00 is allowed as a closing time.
type Clock int

const (
	Midnight Clock = 0
	EndOfDay Clock = 24 * 60
)

func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ParseClock accepts "HH:MM" (also "H:MM").
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return NewClock(h, m), nil
}

func (c Clock) Hour() int { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Date is a civil calendar day. The zero value is not a valid date.
type Date struct {
	t time.Time
}

const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }

// Time is midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) String() string { return d.t.Format(DateLayout) }
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// AddMonthsClamped moves n months forward keeping the day of month, or the
// last day of the target month when it is shorter (Jan 31 + 1 = Feb 28/29).
func (d Date) AddMonthsClamped(n int) Date {
	y, m, day := d.t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

// At returns the instant the given wall-clock time occurs on d in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	y, m, day := d.t.Date()
	return time.Date(y, m, day, c.Hour(), c.Minute(), 0, 0, loc)
}

// Interval is a half-open range [Start, End) of wall-clock minutes.
type Interval struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

func (i Interval) Minutes() int { return int(i.End - i.Start) }

func (i Interval) Empty() bool { return i.End <= i.Start }

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool { return i.Start < o.End && o.Start < i.End }

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool { return i.Start <= o.Start && o.End <= i.End }

// ContainsClock reports whether c is in [Start, End).
func (i Interval) ContainsClock(c Clock) bool { return i.Start <= c && c < i.End }

func (i Interval) String() string { return i.Start.String() + "-" + i.End.String() }
