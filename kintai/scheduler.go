package kintai

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ReportExporter receives the rows of a finished period report. Rendering
// (spreadsheet, chat message, terminal table) is the exporter's business.
type ReportExporter interface {
	Export(group GroupID, period Period, label string, rows []ReportRow) error
}

// ScheduleConfig sets the local hour each report fires at. Weekly runs on
// Monday, monthly on the 1st.
type ScheduleConfig struct {
	DailyHour   int
	WeeklyHour  int
	MonthlyHour int
}

// ReportScheduler drives periodic reports: daily for every group with data,
// weekly and monthly only for groups that enabled them. It only reads the
// store; it never contends with command handling.
type ReportScheduler struct {
	agg      *Aggregator
	store    IntervalStore
	settings SettingsStore
	exporter ReportExporter
	clock    Clock
	logger   *slog.Logger
	cron     *cron.Cron
	cfg      ScheduleConfig
}

func NewReportScheduler(
	agg *Aggregator,
	store IntervalStore,
	settings SettingsStore,
	exporter ReportExporter,
	clock Clock,
	logger *slog.Logger,
	cfg ScheduleConfig,
) *ReportScheduler {
	loc := time.FixedZone("local", int(agg.Window().Offset/time.Second))
	return &ReportScheduler{
		agg:      agg,
		store:    store,
		settings: settings,
		exporter: exporter,
		clock:    clock,
		logger:   logger,
		cron:     cron.New(cron.WithLocation(loc)),
		cfg:      cfg,
	}
}

func (s *ReportScheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("0 %d * * *", s.cfg.DailyHour), func() { s.RunDaily() }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("0 %d * * 1", s.cfg.WeeklyHour), func() { s.RunWeekly() }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("0 %d 1 * *", s.cfg.MonthlyHour), func() { s.RunMonthly() }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *ReportScheduler) Stop() {
	s.cron.Stop()
}

func (s *ReportScheduler) RunDaily() {
	s.run(PeriodDaily, func(GroupSettings) bool { return true })
}

func (s *ReportScheduler) RunWeekly() {
	s.run(PeriodWeekly, func(gs GroupSettings) bool { return gs.WeeklyEnabled })
}

func (s *ReportScheduler) RunMonthly() {
	s.run(PeriodMonthly, func(gs GroupSettings) bool { return gs.MonthlyEnabled })
}

func (s *ReportScheduler) run(period Period, enabled func(GroupSettings) bool) {
	anchor := s.agg.Window().DateOf(s.clock.Now())
	groups, err := s.store.Groups()
	if err != nil {
		s.logger.Error("report scheduler: listing groups", slog.String("err", err.Error()))
		return
	}
	for _, g := range groups {
		gs, err := s.settings.Get(g)
		if err != nil {
			s.logger.Error("report scheduler: reading settings",
				slog.String("group", string(g)), slog.String("err", err.Error()))
			continue
		}
		if !enabled(gs) {
			continue
		}
		if err := s.ExportReport(g, period, anchor); err != nil {
			s.logger.Error("report scheduler: export failed",
				slog.String("group", string(g)),
				slog.String("period", string(period)),
				slog.String("err", err.Error()))
		}
	}
}

// ExportReport builds one period report and hands it to the exporter. Groups
// with no rows are skipped.
func (s *ReportScheduler) ExportReport(group GroupID, period Period, anchor Date) error {
	rows, err := s.agg.PeriodReport(group, period, anchor)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		s.logger.Info("report scheduler: no data, skipping",
			slog.String("group", string(group)), slog.String("period", string(period)))
		return nil
	}
	label := fmt.Sprintf("%s %s", period, anchor)
	return s.exporter.Export(group, period, label, rows)
}
