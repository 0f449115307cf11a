package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alexflint/go-filemutex"
	"github.com/tidwall/buntdb"
	"github.com/urfave/cli/v2"

	"kintai/kintai"
	"kintai/view"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.App{
		Name:  "kintai",
		Usage: "group attendance and break tracking",
		Commands: []*cli.Command{
			serveCommand,
			startCommand,
			stopCommand,
			breakCommand,
			backCommand,
			summaryCommand,
			leaderboardCommand,
			reportCommand,
			adminCommand,
		},
	}
	return app.Run(os.Args)
}

var (
	personFlag = &cli.StringFlag{Name: "person", Required: true}
	groupFlag  = &cli.StringFlag{Name: "group", Required: true}
	dateFlag   = &cli.StringFlag{Name: "date", Usage: "local date, e.g. 2026-08-28 (default today)"}
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the scheduled daily/weekly/monthly reports",
	Action: func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()

		exporter := view.NewTableExporter(os.Stdout, app.cfg.offset)
		sched := kintai.NewReportScheduler(app.agg, app.store, app.settings, exporter, app.clock, app.logger, app.cfg.schedule)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		return nil
	},
}

var startCommand = &cli.Command{
	Name:  "start",
	Usage: "start working",
	Flags: []cli.Flag{personFlag, groupFlag},
	Action: func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.engine.StartWork(person(c), group(c), app.clock.Now())
		if err != nil {
			return err
		}
		if res.AutoClosed {
			fmt.Println("previous work interval closed, new one started")
		} else {
			fmt.Println("work started")
		}
		return nil
	},
}

var stopCommand = &cli.Command{
	Name:  "stop",
	Usage: "stop working",
	Flags: []cli.Flag{personFlag, groupFlag},
	Action: func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.engine.StopWork(person(c), group(c), app.clock.Now())
		if err != nil {
			return err
		}
		if res.Closed {
			fmt.Println("work stopped")
		} else {
			fmt.Println("no open work interval")
		}
		return nil
	},
}

var breakCommand = &cli.Command{
	Name:  "break",
	Usage: "start a break",
	Flags: []cli.Flag{personFlag, groupFlag,
		&cli.StringFlag{Name: "type", Required: true, Usage: "toilet_small | toilet_big | smoke | meal"},
	},
	Action: func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.engine.StartBreak(person(c), group(c), kintai.Category(c.String("type")), app.clock.Now())
		if err != nil {
			return err
		}
		fmt.Printf("%s break started, limit %d minutes\n", res.Category, res.LimitMinutes)
		return nil
	},
}

var backCommand = &cli.Command{
	Name:  "back",
	Usage: "return to seat",
	Flags: []cli.Flag{personFlag, groupFlag},
	Action: func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.engine.ReturnToSeat(person(c), group(c), app.clock.Now())
		if err != nil {
			return err
		}
		if !res.Closed {
			fmt.Println("welcome back, no break was open")
			return nil
		}
		fmt.Printf("welcome back: %s took %d minutes; %d leaves today, %d minutes total\n",
			res.Category, res.UsedMinutes, res.DailyLeaveCount, res.DailyLeaveMinutes)
		return nil
	},
}

var summaryCommand = &cli.Command{
	Name:  "summary",
	Usage: "daily summary for one person",
	Flags: []cli.Flag{personFlag, groupFlag, dateFlag},
	Action: func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.agg.DailySummary(person(c), group(c), app.date(c))
		if err != nil {
			return err
		}
		view.RenderDailySummary(os.Stdout, person(c), s)
		return nil
	},
}

var leaderboardCommand = &cli.Command{
	Name:  "leaderboard",
	Usage: "net work time ranking for a group",
	Flags: []cli.Flag{groupFlag, dateFlag},
	Action: func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.agg.Leaderboard(group(c), app.date(c))
		if err != nil {
			return err
		}
		view.RenderLeaderboard(os.Stdout, group(c), app.date(c), entries)
		return nil
	},
}

var reportCommand = &cli.Command{
	Name:  "report",
	Usage: "render a period report",
	Flags: []cli.Flag{groupFlag, dateFlag,
		&cli.StringFlag{Name: "period", Value: "daily", Usage: "daily | weekly | monthly"},
	},
	Action: func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()

		period := kintai.Period(c.String("period"))
		rows, err := app.agg.PeriodReport(group(c), period, app.date(c))
		if err != nil {
			return err
		}
		exporter := view.NewTableExporter(os.Stdout, app.cfg.offset)
		label := fmt.Sprintf("%s %s", period, app.date(c))
		return exporter.Export(group(c), period, label, rows)
	},
}

var adminCommand = &cli.Command{
	Name:  "admin",
	Usage: "privileged group settings (actor must be in KINTAI_ADMIN_IDS)",
	Subcommands: []*cli.Command{
		{
			Name:  "set-text",
			Usage: "set the overtime reminder text",
			Flags: []cli.Flag{groupFlag, actorFlag, &cli.StringFlag{Name: "text", Required: true}},
			Action: adminAction(func(app *appDeps, c *cli.Context, privileged bool) error {
				return app.admin.SetReminderText(group(c), actor(c), privileged, c.String("text"))
			}),
		},
		{
			Name:  "set-media",
			Usage: "set the overtime reminder media reference",
			Flags: []cli.Flag{groupFlag, actorFlag, &cli.StringFlag{Name: "media", Required: true}},
			Action: adminAction(func(app *appDeps, c *cli.Context, privileged bool) error {
				return app.admin.SetReminderMedia(group(c), actor(c), privileged, c.String("media"))
			}),
		},
		{
			Name:  "weekly",
			Usage: "toggle the weekly report",
			Flags: []cli.Flag{groupFlag, actorFlag},
			Action: adminAction(func(app *appDeps, c *cli.Context, privileged bool) error {
				enabled, err := app.admin.ToggleWeekly(group(c), actor(c), privileged)
				if err != nil {
					return err
				}
				fmt.Printf("weekly report enabled: %t\n", enabled)
				return nil
			}),
		},
		{
			Name:  "monthly",
			Usage: "toggle the monthly report",
			Flags: []cli.Flag{groupFlag, actorFlag},
			Action: adminAction(func(app *appDeps, c *cli.Context, privileged bool) error {
				enabled, err := app.admin.ToggleMonthly(group(c), actor(c), privileged)
				if err != nil {
					return err
				}
				fmt.Printf("monthly report enabled: %t\n", enabled)
				return nil
			}),
		},
		{
			Name:  "reset",
			Usage: "purge all intervals for the group",
			Flags: []cli.Flag{groupFlag, actorFlag},
			Action: adminAction(func(app *appDeps, c *cli.Context, privileged bool) error {
				if err := app.admin.Reset(group(c), actor(c), privileged); err != nil {
					return err
				}
				fmt.Println("group intervals purged")
				return nil
			}),
		},
	},
}

var actorFlag = &cli.StringFlag{Name: "actor", Required: true}

func adminAction(fn func(*appDeps, *cli.Context, bool) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		app, err := initApp()
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(app, c, app.cfg.adminIDs[actor(c)])
	}
}

func person(c *cli.Context) kintai.PersonID {
	return kintai.PersonID(c.String("person"))
}

func group(c *cli.Context) kintai.GroupID {
	return kintai.GroupID(c.String("group"))
}

func actor(c *cli.Context) kintai.PersonID {
	return kintai.PersonID(c.String("actor"))
}

type appDeps struct {
	cfg      config
	db       *buntdb.DB
	fm       *filemutex.FileMutex
	clock    kintai.Clock
	logger   *slog.Logger
	store    kintai.IntervalStore
	settings kintai.SettingsStore
	agg      *kintai.Aggregator
	engine   *kintai.Engine
	admin    *kintai.AdminService
}

func initApp() (*appDeps, error) {
	cfg := loadConfig()
	dir, err := dataDir(cfg)
	if err != nil {
		return nil, err
	}

	fm, err := filemutex.New(filepath.Join(dir, "kintai.lock"))
	if err != nil {
		return nil, err
	}
	if err := fm.Lock(); err != nil {
		return nil, err
	}

	db, err := buntdb.Open(filepath.Join(dir, "kintai.db"))
	if err != nil {
		fm.Unlock()
		return nil, err
	}

	logger, err := newLogger(dir)
	if err != nil {
		db.Close()
		fm.Unlock()
		return nil, err
	}

	clock := kintai.SystemClock{}
	store := kintai.NewIntervalStore(db)
	settings := kintai.NewSettingsStore(db)
	audit := kintai.NewAuditLog(db)
	window := kintai.Window{Offset: cfg.offset}
	agg := kintai.NewAggregator(store, window, clock)
	notifier := &WriterNotifier{Out: os.Stdout}
	engine := kintai.NewEngine(store, settings, agg, notifier, clock, logger, cfg.limits, cfg.pollInterval)
	admin := kintai.NewAdminService(store, settings, audit, clock, logger)

	return &appDeps{
		cfg:      cfg,
		db:       db,
		fm:       fm,
		clock:    clock,
		logger:   logger,
		store:    store,
		settings: settings,
		agg:      agg,
		engine:   engine,
		admin:    admin,
	}, nil
}

func (a *appDeps) Close() {
	a.db.Close()
	a.fm.Unlock()
}

func (a *appDeps) date(c *cli.Context) kintai.Date {
	if d := c.String("date"); d != "" {
		return kintai.Date(d)
	}
	return a.agg.Window().DateOf(a.clock.Now())
}

func dataDir(cfg config) (string, error) {
	dir := cfg.dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".kintai")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func newLogger(dir string) (*slog.Logger, error) {
	logFile, err := os.OpenFile(filepath.Join(dir, "log.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return slog.New(
		slog.NewJSONHandler(logFile, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}),
	), nil
}
