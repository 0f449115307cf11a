package kintai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type CommandKind string

const (
	CommandStartWork    = CommandKind("start_work")
	CommandStopWork     = CommandKind("stop_work")
	CommandStartBreak   = CommandKind("start_break")
	CommandReturnToSeat = CommandKind("return_to_seat")
)

type Command struct {
	Kind     CommandKind
	Category Category
}

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrUnknownCategory = errors.New("unknown break category")
)

// Result describes what a command did. Closed reports whether an open
// interval was ended by the command; AutoClosed whether a lingering open
// interval had to be closed before opening a new one.
type Result struct {
	Command Command
	At      time.Time

	Closed     bool
	AutoClosed bool

	// Set by StartBreak.
	LimitMinutes int
	ReminderText string

	// Set by ReturnToSeat when a break was open.
	Category          Category
	BreakStart        *time.Time
	UsedMinutes       int
	DailyLeaveCount   int
	DailyLeaveMinutes int
}

// Engine is the per-(person, group) state machine over the interval log. Work
// and break tracks are independent: at most one open work interval and one
// open break per key. Policy for a start while one is already open is
// auto-close-then-open, so the invariant holds across any interleaving.
type Engine struct {
	store        IntervalStore
	settings     SettingsStore
	agg          *Aggregator
	notifier     Notifier
	clock        Clock
	logger       *slog.Logger
	limits       map[Category]time.Duration
	pollInterval time.Duration

	mu       sync.Mutex
	keys     map[string]*sync.Mutex
	watchers map[string]context.CancelFunc
}

func NewEngine(
	store IntervalStore,
	settings SettingsStore,
	agg *Aggregator,
	notifier Notifier,
	clock Clock,
	logger *slog.Logger,
	limits map[Category]time.Duration,
	pollInterval time.Duration,
) *Engine {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Engine{
		store:        store,
		settings:     settings,
		agg:          agg,
		notifier:     notifier,
		clock:        clock,
		logger:       logger,
		limits:       limits,
		pollInterval: pollInterval,
		keys:         map[string]*sync.Mutex{},
		watchers:     map[string]context.CancelFunc{},
	}
}

func (e *Engine) Handle(cmd Command, person PersonID, group GroupID, at time.Time) (Result, error) {
	switch cmd.Kind {
	case CommandStartWork:
		return e.StartWork(person, group, at)
	case CommandStopWork:
		return e.StopWork(person, group, at)
	case CommandStartBreak:
		return e.StartBreak(person, group, cmd.Category, at)
	case CommandReturnToSeat:
		return e.ReturnToSeat(person, group, at)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
}

func (e *Engine) StartWork(person PersonID, group GroupID, at time.Time) (Result, error) {
	defer e.lockKey(person, group)()
	if err := e.settings.Ensure(group); err != nil {
		return Result{}, err
	}
	at = at.UTC()
	res := Result{Command: Command{Kind: CommandStartWork}, At: at}

	open, err := e.store.CurrentOpenWork(person, group)
	if err != nil {
		return Result{}, err
	}
	if open != nil {
		if _, err := e.store.CloseWork(person, group, at); err != nil {
			return Result{}, err
		}
		res.AutoClosed = true
		e.logger.Debug("start work: auto-closed lingering interval",
			slog.String("person", string(person)), slog.String("group", string(group)))
	}
	if err := e.store.OpenWork(person, group, at); err != nil {
		return Result{}, err
	}
	return res, nil
}

// StopWork closes the open work interval. Already off is a no-op, not an
// error.
func (e *Engine) StopWork(person PersonID, group GroupID, at time.Time) (Result, error) {
	defer e.lockKey(person, group)()
	if err := e.settings.Ensure(group); err != nil {
		return Result{}, err
	}
	at = at.UTC()
	closed, err := e.store.CloseWork(person, group, at)
	if err != nil {
		return Result{}, err
	}
	return Result{Command: Command{Kind: CommandStopWork}, At: at, Closed: closed != nil}, nil
}

func (e *Engine) StartBreak(person PersonID, group GroupID, category Category, at time.Time) (Result, error) {
	if !ValidCategory(category) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	defer e.lockKey(person, group)()
	if err := e.settings.Ensure(group); err != nil {
		return Result{}, err
	}
	at = at.UTC()
	res := Result{Command: Command{Kind: CommandStartBreak, Category: category}, At: at, Category: category}

	prior, err := e.store.CloseBreak(person, group, at)
	if err != nil {
		return Result{}, err
	}
	if prior != nil {
		res.AutoClosed = true
		e.cancelWatcher(person, group, prior.StartAt)
	}
	if err := e.store.OpenBreak(person, group, category, at); err != nil {
		return Result{}, err
	}

	limit := e.limits[category]
	res.LimitMinutes = int(limit / time.Minute)
	gs, err := e.settings.Get(group)
	if err != nil {
		return Result{}, err
	}
	res.ReminderText = gs.ReminderText

	e.spawnWatcher(person, group, category, at, limit)
	return res, nil
}

// ReturnToSeat closes the open break and reports this break's length plus the
// day's cumulative leave count and minutes. No open break is a plain welcome
// back, not an error.
func (e *Engine) ReturnToSeat(person PersonID, group GroupID, at time.Time) (Result, error) {
	defer e.lockKey(person, group)()
	if err := e.settings.Ensure(group); err != nil {
		return Result{}, err
	}
	at = at.UTC()
	res := Result{Command: Command{Kind: CommandReturnToSeat}, At: at}

	closed, err := e.store.CloseBreak(person, group, at)
	if err != nil {
		return Result{}, err
	}
	if closed == nil {
		return res, nil
	}
	e.cancelWatcher(person, group, closed.StartAt)

	summary, err := e.agg.DailySummary(person, group, e.agg.Window().DateOf(at))
	if err != nil {
		return Result{}, err
	}
	start := closed.StartAt
	res.Closed = true
	res.Category = closed.Category
	res.BreakStart = &start
	res.UsedMinutes = MinutesBetween(start, at)
	res.DailyLeaveCount = summary.LeaveCount
	res.DailyLeaveMinutes = summary.BreakMinutes()
	return res, nil
}

// lockKey serializes commands for one (person, group) without blocking other
// keys. Returns the unlock func.
func (e *Engine) lockKey(person PersonID, group GroupID) func() {
	k := string(group) + "|" + string(person)
	e.mu.Lock()
	m, ok := e.keys[k]
	if !ok {
		m = &sync.Mutex{}
		e.keys[k] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func watcherKey(person PersonID, group GroupID, startAt time.Time) string {
	return fmt.Sprintf("%s|%s|%d", group, person, startAt.UnixNano())
}

func (e *Engine) spawnWatcher(person PersonID, group GroupID, category Category, startAt time.Time, limit time.Duration) {
	w := NewOvertimeWatcher(e.store, e.settings, e.notifier, e.clock, e.logger,
		person, group, category, startAt, limit, e.pollInterval)
	ctx, cancel := context.WithCancel(context.Background())
	key := watcherKey(person, group, startAt)

	e.mu.Lock()
	e.watchers[key] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.watchers, key)
			e.mu.Unlock()
			cancel()
		}()
		w.Run(ctx)
	}()
}

func (e *Engine) cancelWatcher(person PersonID, group GroupID, startAt time.Time) {
	e.mu.Lock()
	cancel, ok := e.watchers[watcherKey(person, group, startAt)]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}
