package kintai

import (
	"sort"
	"time"
)

// DailySummary is one person's attendance for a single local day. Durations
// are clamped to the day window; open intervals run to min(now, window end).
type DailySummary struct {
	Date       Date
	TotalWork  time.Duration
	TotalBreak time.Duration
	Counts     map[Category]int
	Durations  map[Category]time.Duration
	LeaveCount int
}

func (s DailySummary) WorkMinutes() int {
	return int(s.TotalWork / time.Minute)
}

func (s DailySummary) BreakMinutes() int {
	return int(s.TotalBreak / time.Minute)
}

type LeaderboardEntry struct {
	Person       PersonID
	NetMinutes   int
	WorkMinutes  int
	BreakMinutes int
}

// ReportRow is one person's line in a period report. FirstStart is the
// earliest work start in the range; LastEnd the latest closed work end, nil
// when every work interval in the range is still open.
type ReportRow struct {
	Person       PersonID
	FirstStart   *time.Time
	LastEnd      *time.Time
	WorkMinutes  int
	BreakMinutes int
	LeaveCount   int
}

type Aggregator struct {
	store  IntervalStore
	window Window
	clock  Clock
}

func NewAggregator(store IntervalStore, window Window, clock Clock) *Aggregator {
	return &Aggregator{store: store, window: window, clock: clock}
}

func (a *Aggregator) Window() Window {
	return a.window
}

func (a *Aggregator) DailySummary(person PersonID, group GroupID, date Date) (DailySummary, error) {
	qStart, qEnd, err := a.window.DayRange(date)
	if err != nil {
		return DailySummary{}, err
	}
	sum, err := a.summarizeRange(person, group, qStart, qEnd)
	if err != nil {
		return DailySummary{}, err
	}
	return DailySummary{
		Date:       date,
		TotalWork:  sum.work,
		TotalBreak: sum.breaks,
		Counts:     sum.counts,
		Durations:  sum.durations,
		LeaveCount: sum.leaveCount,
	}, nil
}

// Leaderboard ranks everyone who has ever opened a work interval in the group
// by net work time (work minus break) for the given day, descending. Tie
// order is whatever order the store returns.
func (a *Aggregator) Leaderboard(group GroupID, date Date) ([]LeaderboardEntry, error) {
	qStart, qEnd, err := a.window.DayRange(date)
	if err != nil {
		return nil, err
	}
	persons, err := a.store.Persons(group)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(persons))
	for _, p := range persons {
		sum, err := a.summarizeRange(p, group, qStart, qEnd)
		if err != nil {
			return nil, err
		}
		work := int(sum.work / time.Minute)
		brk := int(sum.breaks / time.Minute)
		entries = append(entries, LeaderboardEntry{
			Person:       p,
			NetMinutes:   work - brk,
			WorkMinutes:  work,
			BreakMinutes: brk,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].NetMinutes > entries[j].NetMinutes
	})
	return entries, nil
}

// PeriodReport builds one row per person with any work interval in the group,
// over the daily/weekly/monthly window containing anchor, sorted by work
// minutes descending.
func (a *Aggregator) PeriodReport(group GroupID, period Period, anchor Date) ([]ReportRow, error) {
	qStart, qEnd, err := a.window.PeriodRange(period, anchor)
	if err != nil {
		return nil, err
	}
	persons, err := a.store.Persons(group)
	if err != nil {
		return nil, err
	}
	rows := make([]ReportRow, 0, len(persons))
	for _, p := range persons {
		sum, err := a.summarizeRange(p, group, qStart, qEnd)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ReportRow{
			Person:       p,
			FirstStart:   sum.firstStart,
			LastEnd:      sum.lastEnd,
			WorkMinutes:  int(sum.work / time.Minute),
			BreakMinutes: int(sum.breaks / time.Minute),
			LeaveCount:   sum.leaveCount,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].WorkMinutes > rows[j].WorkMinutes
	})
	return rows, nil
}

type rangeSummary struct {
	work       time.Duration
	breaks     time.Duration
	counts     map[Category]int
	durations  map[Category]time.Duration
	leaveCount int
	firstStart *time.Time
	lastEnd    *time.Time
}

func (a *Aggregator) summarizeRange(person PersonID, group GroupID, qStart, qEnd time.Time) (rangeSummary, error) {
	now := a.clock.Now().UTC()
	sum := rangeSummary{
		counts:    map[Category]int{},
		durations: map[Category]time.Duration{},
	}
	for _, c := range Categories {
		sum.counts[c] = 0
		sum.durations[c] = 0
	}

	works, err := a.store.WorkOverlapping(person, group, qStart, qEnd)
	if err != nil {
		return rangeSummary{}, err
	}
	for _, w := range works {
		s, e := clampToWindow(w.StartAt, w.EndAt, now, qStart, qEnd)
		sum.work += e.Sub(s)
		start := w.StartAt
		if sum.firstStart == nil || start.Before(*sum.firstStart) {
			sum.firstStart = &start
		}
		if w.EndAt != nil {
			end := *w.EndAt
			if sum.lastEnd == nil || end.After(*sum.lastEnd) {
				sum.lastEnd = &end
			}
		}
	}

	breaks, err := a.store.BreaksOverlapping(person, group, qStart, qEnd)
	if err != nil {
		return rangeSummary{}, err
	}
	for _, b := range breaks {
		s, e := clampToWindow(b.StartAt, b.EndAt, now, qStart, qEnd)
		d := e.Sub(s)
		sum.breaks += d
		sum.counts[b.Category]++
		sum.durations[b.Category] += d
		sum.leaveCount++
	}
	return sum, nil
}
