package kintai

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/buntdb"
)

func newTestDB(t *testing.T) *buntdb.DB {
	t.Helper()
	db, err := buntdb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now.UTC()}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notifyCall struct {
	group   GroupID
	person  PersonID
	message string
	media   string
}

type captureNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (n *captureNotifier) Notify(group GroupID, person PersonID, message string, media string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{group: group, person: person, message: message, media: media})
	return n.err
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *captureNotifier) last() notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[len(n.calls)-1]
}

// localTime builds the UTC instant for a local wall-clock time under offset.
func localTime(offset time.Duration, date string, hm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", date+" "+hm)
	if err != nil {
		panic(err)
	}
	return t.Add(-offset)
}

const testOffset = 7 * time.Hour

type testEnv struct {
	store    IntervalStore
	settings SettingsStore
	audit    AuditLog
	agg      *Aggregator
	engine   *Engine
	clock    *manualClock
	notifier *captureNotifier
	db       *buntdb.DB
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := newManualClock(now)
	store := NewIntervalStore(db)
	settings := NewSettingsStore(db)
	audit := NewAuditLog(db)
	agg := NewAggregator(store, Window{Offset: testOffset}, clock)
	notifier := &captureNotifier{}
	// Long poll interval so watchers stay quiet unless a test drives them.
	engine := NewEngine(store, settings, agg, notifier, clock, discardLogger(), nil, time.Hour)
	return &testEnv{
		store:    store,
		settings: settings,
		audit:    audit,
		agg:      agg,
		engine:   engine,
		clock:    clock,
		notifier: notifier,
		db:       db,
	}
}
