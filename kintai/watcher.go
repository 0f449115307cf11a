package kintai

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// OvertimeWatcher polls a single open break and fires at most one overtime
// notification. One watcher is spawned per break start; it is keyed by the
// break's own start instant so it never acts on a later break for the same
// person. It self-terminates when the break closes, so cancellation is an
// optimization that bounds wasted wake-ups, not a correctness requirement.
type OvertimeWatcher struct {
	store    IntervalStore
	settings SettingsStore
	notifier Notifier
	clock    Clock
	logger   *slog.Logger

	person       PersonID
	group        GroupID
	category     Category
	startAt      time.Time
	limit        time.Duration
	pollInterval time.Duration
}

func NewOvertimeWatcher(
	store IntervalStore,
	settings SettingsStore,
	notifier Notifier,
	clock Clock,
	logger *slog.Logger,
	person PersonID,
	group GroupID,
	category Category,
	startAt time.Time,
	limit time.Duration,
	pollInterval time.Duration,
) *OvertimeWatcher {
	return &OvertimeWatcher{
		store:        store,
		settings:     settings,
		notifier:     notifier,
		clock:        clock,
		logger:       logger,
		person:       person,
		group:        group,
		category:     category,
		startAt:      startAt.UTC(),
		limit:        limit,
		pollInterval: pollInterval,
	}
}

// Run blocks until the watcher terminates. It never re-arms; a new break
// start always spawns a fresh watcher.
func (w *OvertimeWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b, err := w.store.CurrentOpenBreak(w.person, w.group)
			if err != nil {
				w.logger.Error("overtime watcher: reading open break",
					slog.String("person", string(w.person)),
					slog.String("group", string(w.group)),
					slog.String("err", err.Error()))
				return
			}
			if b == nil || !b.StartAt.Equal(w.startAt) {
				return
			}
			if w.clock.Now().UTC().Sub(w.startAt) >= w.limit {
				w.notify()
				return
			}
		}
	}
}

// notify makes a single delivery attempt. Failure is logged and swallowed: a
// missed reminder must not affect tracking correctness.
func (w *OvertimeWatcher) notify() {
	gs, err := w.settings.Get(w.group)
	if err != nil {
		w.logger.Error("overtime watcher: reading settings",
			slog.String("group", string(w.group)),
			slog.String("err", err.Error()))
	}
	message := gs.ReminderText
	if message == "" {
		message = fmt.Sprintf("%s break over %d minutes, please return to your seat", w.category, int(w.limit/time.Minute))
	}
	if err := w.notifier.Notify(w.group, w.person, message, gs.ReminderMedia); err != nil {
		w.logger.Error("overtime watcher: notify failed",
			slog.String("person", string(w.person)),
			slog.String("group", string(w.group)),
			slog.String("err", err.Error()))
	}
}
