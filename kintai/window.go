package kintai

import (
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in the configured local offset, "2006-01-02".
type Date string

func (d Date) parse() (time.Time, error) {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", d, err)
	}
	return t, nil
}

type Period string

const (
	PeriodDaily   = Period("daily")
	PeriodWeekly  = Period("weekly")
	PeriodMonthly = Period("monthly")
)

var ErrUnknownPeriod = errors.New("unknown period")

// Window converts local calendar periods to UTC half-open ranges. Local time
// is purely "UTC instant + fixed offset"; there is no DST handling on purpose,
// this tracks a single site.
type Window struct {
	Offset time.Duration
}

// DateOf returns the local calendar day containing the instant t.
func (w Window) DateOf(t time.Time) Date {
	return Date(t.UTC().Add(w.Offset).Format(dateLayout))
}

// DayRange returns [local 00:00, local 24:00) of d, in UTC.
func (w Window) DayRange(d Date) (time.Time, time.Time, error) {
	local, err := d.parse()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := local.Add(-w.Offset)
	return start, start.Add(24 * time.Hour), nil
}

// WeekRange returns the Monday-anchored 7-day window containing d, in UTC.
func (w Window) WeekRange(d Date) (time.Time, time.Time, error) {
	local, err := d.parse()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	back := (int(local.Weekday()) + 6) % 7
	monday := local.AddDate(0, 0, -back)
	start := monday.Add(-w.Offset)
	return start, start.Add(7 * 24 * time.Hour), nil
}

// MonthRange returns [first of month, first of next month) of d, in UTC.
func (w Window) MonthRange(d Date) (time.Time, time.Time, error) {
	local, err := d.parse()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.Add(-w.Offset), first.AddDate(0, 1, 0).Add(-w.Offset), nil
}

func (w Window) PeriodRange(p Period, d Date) (time.Time, time.Time, error) {
	switch p {
	case PeriodDaily:
		return w.DayRange(d)
	case PeriodWeekly:
		return w.WeekRange(d)
	case PeriodMonthly:
		return w.MonthRange(d)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, p)
	}
}

// overlaps reports whether [start, end-or-now) intersects the half-open query
// range [qStart, qEnd). Half-open on both sides keeps a single instant from
// being counted by two adjacent windows.
func overlaps(start time.Time, end *time.Time, qStart, qEnd time.Time) bool {
	if !start.Before(qEnd) {
		return false
	}
	return end == nil || end.After(qStart)
}

// clampToWindow returns the portion of [start, end) that falls inside
// [qStart, qEnd). An open interval runs to min(now, qEnd).
func clampToWindow(start time.Time, end *time.Time, now, qStart, qEnd time.Time) (time.Time, time.Time) {
	effEnd := now
	if end != nil {
		effEnd = *end
	}
	if effEnd.After(qEnd) {
		effEnd = qEnd
	}
	if start.Before(qStart) {
		start = qStart
	}
	if effEnd.Before(start) {
		effEnd = start
	}
	return start, effEnd
}
