package aggregate

import (
	"fmt"
	"time"
)

// DayLayout is the layout of day and week keys.
const DayLayout = "2006-01-02"

// Calendar derives day and week keys from instants. Keys are computed from
// the local date in Location, so "today" follows the user's wall clock.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

// DefaultCalendar uses the process-local zone and Sunday week starts.
func DefaultCalendar() Calendar {
	return Calendar{Location: time.Local, WeekStart: time.Sunday}
}

// date returns the civil date of t as midnight UTC, which makes day
// arithmetic immune to DST transitions.
func (c Calendar) date(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey returns the YYYY-MM-DD key for t.
func (c Calendar) DayKey(t time.Time) string {
	return c.date(t).Format(DayLayout)
}

// WeekKey returns the day key of the most recent week start on or before t.
func (c Calendar) WeekKey(t time.Time) string {
	return c.weekStart(c.date(t)).Format(DayLayout)
}

// WeekOf returns the key of the week containing the day dayKey.
func (c Calendar) WeekOf(dayKey string) (string, error) {
	d, err := ParseKey(dayKey)
	if err != nil {
		return "", err
	}
	return c.weekStart(d).Format(DayLayout), nil
}

func (c Calendar) weekStart(d time.Time) time.Time {
	back := (int(d.Weekday()) - int(c.WeekStart) + 7) % 7
	return d.AddDate(0, 0, -back)
}

// DaysBefore returns the day key n calendar days before t.
func (c Calendar) DaysBefore(t time.Time, n int) string {
	return c.date(t).AddDate(0, 0, -n).Format(DayLayout)
}

// ParseKey validates a day or week key.
func ParseKey(key string) (time.Time, error) {
	d, err := time.Parse(DayLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period key %q: %w", key, err)
	}
	return d, nil
}
