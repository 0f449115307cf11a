package view

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"kintai/kintai"
)

// TableExporter renders period reports as terminal tables. Times are shown in
// the configured local offset.
type TableExporter struct {
	out    io.Writer
	offset time.Duration
}

func NewTableExporter(out io.Writer, offset time.Duration) *TableExporter {
	return &TableExporter{out: out, offset: offset}
}

func (e *TableExporter) Export(group kintai.GroupID, period kintai.Period, label string, rows []kintai.ReportRow) error {
	t := table.NewWriter()
	t.SetOutputMirror(e.out)
	t.SetTitle(fmt.Sprintf("group %s - %s", group, label))
	t.AppendHeader(table.Row{"person", "first start", "last end", "work", "break", "leaves"})

	totalWork := 0
	for _, r := range rows {
		t.AppendRow(table.Row{
			string(r.Person),
			e.localHM(r.FirstStart),
			e.localHM(r.LastEnd),
			fmtMinutes(r.WorkMinutes),
			fmtMinutes(r.BreakMinutes),
			r.LeaveCount,
		})
		totalWork += r.WorkMinutes
	}
	t.AppendFooter(table.Row{"", "", "", "total", fmtMinutes(totalWork), ""})
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func RenderLeaderboard(out io.Writer, group kintai.GroupID, date kintai.Date, entries []kintai.LeaderboardEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("leaderboard %s (%s)", group, date))
	t.AppendHeader(table.Row{"#", "person", "net", "work", "break"})
	for i, e := range entries {
		t.AppendRow(table.Row{
			i + 1,
			string(e.Person),
			fmtMinutes(e.NetMinutes),
			fmtMinutes(e.WorkMinutes),
			fmtMinutes(e.BreakMinutes),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func RenderDailySummary(out io.Writer, person kintai.PersonID, s kintai.DailySummary) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s - %s", person, s.Date))
	t.AppendHeader(table.Row{"", "count", "time"})
	t.AppendRow(table.Row{"work", "", fmtMinutes(s.WorkMinutes())})
	t.AppendRow(table.Row{"break", s.LeaveCount, fmtMinutes(s.BreakMinutes())})
	for _, c := range kintai.Categories {
		t.AppendRow(table.Row{string(c), s.Counts[c], fmtMinutes(int(s.Durations[c] / time.Minute))})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func (e *TableExporter) localHM(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Add(e.offset).Format("15:04")
}

func fmtMinutes(m int) string {
	if m >= 60 {
		return fmt.Sprintf("%dh%02dm", m/60, m%60)
	}
	return fmt.Sprintf("%dm", m)
}
