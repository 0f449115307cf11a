package kintai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPerson = PersonID("alice")
	testGroup  = GroupID("ops")
)

func TestIntervalStore_WorkLifecycle(t *testing.T) {
	store := NewIntervalStore(newTestDB(t))
	at := mustUTC(t, "2026-08-28T02:00:00Z")

	open, err := store.CurrentOpenWork(testPerson, testGroup)
	require.NoError(t, err)
	assert.Nil(t, open)

	require.NoError(t, store.OpenWork(testPerson, testGroup, at))

	open, err = store.CurrentOpenWork(testPerson, testGroup)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.True(t, open.StartAt.Equal(at))
	assert.True(t, open.Open())

	// The store is strict about a second open row.
	err = store.OpenWork(testPerson, testGroup, at.Add(time.Hour))
	assert.ErrorIs(t, err, ErrDuplicateOpenInterval)

	closed, err := store.CloseWork(testPerson, testGroup, at.Add(8*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, closed)
	require.NotNil(t, closed.EndAt)
	assert.True(t, closed.EndAt.Equal(at.Add(8*time.Hour)))

	// Closing again is a no-op, not an error.
	closed, err = store.CloseWork(testPerson, testGroup, at.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, closed)
}

func TestIntervalStore_CloseWork_MostRecentOpen(t *testing.T) {
	store := NewIntervalStore(newTestDB(t))
	at := mustUTC(t, "2026-08-28T02:00:00Z")

	require.NoError(t, store.OpenWork(testPerson, testGroup, at))
	_, err := store.CloseWork(testPerson, testGroup, at.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.OpenWork(testPerson, testGroup, at.Add(2*time.Hour)))

	closed, err := store.CloseWork(testPerson, testGroup, at.Add(3*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.True(t, closed.StartAt.Equal(at.Add(2*time.Hour)))
}

func TestIntervalStore_BreakLifecycle(t *testing.T) {
	store := NewIntervalStore(newTestDB(t))
	at := mustUTC(t, "2026-08-28T05:00:00Z")

	b, err := store.CurrentOpenBreak(testPerson, testGroup)
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, store.OpenBreak(testPerson, testGroup, CategoryMeal, at))

	b, err = store.CurrentOpenBreak(testPerson, testGroup)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, CategoryMeal, b.Category)
	assert.True(t, b.StartAt.Equal(at))

	err = store.OpenBreak(testPerson, testGroup, CategorySmoke, at.Add(time.Minute))
	assert.ErrorIs(t, err, ErrDuplicateOpenInterval)

	closed, err := store.CloseBreak(testPerson, testGroup, at.Add(45*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, CategoryMeal, closed.Category)

	closed, err = store.CloseBreak(testPerson, testGroup, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, closed)
}

func TestIntervalStore_KeysAreIndependent(t *testing.T) {
	store := NewIntervalStore(newTestDB(t))
	at := mustUTC(t, "2026-08-28T02:00:00Z")

	require.NoError(t, store.OpenWork(testPerson, testGroup, at))
	require.NoError(t, store.OpenWork("bob", testGroup, at))
	require.NoError(t, store.OpenWork(testPerson, "sales", at))

	closed, err := store.CloseWork("bob", testGroup, at.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, closed)

	open, err := store.CurrentOpenWork(testPerson, testGroup)
	require.NoError(t, err)
	assert.NotNil(t, open)
}

func TestIntervalStore_Overlapping(t *testing.T) {
	store := NewIntervalStore(newTestDB(t))
	qStart := mustUTC(t, "2026-08-27T17:00:00Z")
	qEnd := mustUTC(t, "2026-08-28T17:00:00Z")

	// Closed before the window.
	require.NoError(t, store.OpenWork(testPerson, testGroup, qStart.Add(-5*time.Hour)))
	_, err := store.CloseWork(testPerson, testGroup, qStart.Add(-2*time.Hour))
	require.NoError(t, err)
	// Straddles the window start and is still open.
	require.NoError(t, store.OpenWork(testPerson, testGroup, qStart.Add(-time.Hour)))

	ws, err := store.WorkOverlapping(testPerson, testGroup, qStart, qEnd)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.True(t, ws[0].Open())

	// A break starting exactly at the window end belongs to the next window.
	require.NoError(t, store.OpenBreak(testPerson, testGroup, CategorySmoke, qEnd))
	bs, err := store.BreaksOverlapping(testPerson, testGroup, qStart, qEnd)
	require.NoError(t, err)
	assert.Empty(t, bs)

	bs, err = store.BreaksOverlapping(testPerson, testGroup, qEnd, qEnd.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, bs, 1)
}

func TestIntervalStore_PersonsAndGroups(t *testing.T) {
	store := NewIntervalStore(newTestDB(t))
	at := mustUTC(t, "2026-08-28T02:00:00Z")

	require.NoError(t, store.OpenWork("alice", "ops", at))
	require.NoError(t, store.OpenWork("bob", "ops", at))
	require.NoError(t, store.OpenWork("carol", "sales", at))
	// Breaks alone do not make someone a member of the roster.
	require.NoError(t, store.OpenBreak("dave", "ops", CategorySmoke, at))

	persons, err := store.Persons("ops")
	require.NoError(t, err)
	assert.ElementsMatch(t, []PersonID{"alice", "bob"}, persons)

	groups, err := store.Groups()
	require.NoError(t, err)
	assert.ElementsMatch(t, []GroupID{"ops", "sales"}, groups)
}

func TestIntervalStore_Purge(t *testing.T) {
	db := newTestDB(t)
	store := NewIntervalStore(db)
	settings := NewSettingsStore(db)
	at := mustUTC(t, "2026-08-28T02:00:00Z")

	require.NoError(t, store.OpenWork("alice", "ops", at))
	require.NoError(t, store.OpenBreak("alice", "ops", CategoryMeal, at))
	require.NoError(t, store.OpenWork("carol", "sales", at))
	require.NoError(t, settings.Ensure("ops"))
	require.NoError(t, settings.SetReminderText("ops", "come back"))

	require.NoError(t, store.Purge("ops"))

	persons, err := store.Persons("ops")
	require.NoError(t, err)
	assert.Empty(t, persons)
	b, err := store.CurrentOpenBreak("alice", "ops")
	require.NoError(t, err)
	assert.Nil(t, b)

	// Other groups and the group's settings survive.
	persons, err = store.Persons("sales")
	require.NoError(t, err)
	assert.Len(t, persons, 1)
	gs, err := settings.Get("ops")
	require.NoError(t, err)
	assert.Equal(t, "come back", gs.ReminderText)
}
