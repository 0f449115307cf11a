package kintai

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_StartWork_AutoClosesLingeringInterval(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	res, err := env.engine.StartWork(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	assert.False(t, res.AutoClosed)

	env.clock.Advance(2 * time.Hour)
	res, err = env.engine.StartWork(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	assert.True(t, res.AutoClosed)

	// The at-most-one-open invariant holds; the first interval was closed at
	// the second start instant.
	ws, err := env.store.WorkOverlapping(testPerson, testGroup,
		mustUTC(t, "2026-08-27T17:00:00Z"), mustUTC(t, "2026-08-28T17:00:00Z"))
	require.NoError(t, err)
	require.Len(t, ws, 2)
	require.NotNil(t, ws[0].EndAt)
	assert.True(t, ws[0].EndAt.Equal(ws[1].StartAt))
	assert.Nil(t, ws[1].EndAt)
}

func TestEngine_StopWork_NoOpWhenOff(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	res, err := env.engine.StopWork(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	assert.False(t, res.Closed)
}

func TestEngine_StartStopWork(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	_, err := env.engine.StartWork(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)

	env.clock.Advance(8 * time.Hour)
	res, err := env.engine.StopWork(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	assert.True(t, res.Closed)

	open, err := env.store.CurrentOpenWork(testPerson, testGroup)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestEngine_StartBreak_UnknownCategory(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	_, err := env.engine.StartBreak(testPerson, testGroup, Category("nap"), env.clock.Now())
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestEngine_StartBreak_AutoClosesPriorBreak(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	res, err := env.engine.StartBreak(testPerson, testGroup, CategorySmoke, env.clock.Now())
	require.NoError(t, err)
	assert.False(t, res.AutoClosed)
	assert.Equal(t, 5, res.LimitMinutes)

	env.clock.Advance(2 * time.Minute)
	res, err = env.engine.StartBreak(testPerson, testGroup, CategoryMeal, env.clock.Now())
	require.NoError(t, err)
	assert.True(t, res.AutoClosed)
	assert.Equal(t, 30, res.LimitMinutes)

	b, err := env.store.CurrentOpenBreak(testPerson, testGroup)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, CategoryMeal, b.Category)
}

func TestEngine_ReturnToSeat_NothingOpen(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	res, err := env.engine.ReturnToSeat(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	assert.False(t, res.Closed)
	assert.Zero(t, res.UsedMinutes)
	assert.Nil(t, res.BreakStart)
}

// The worked scenario: start work 09:00 local, meal break 12:00, back 12:45.
func TestEngine_ReturnToSeat_MealScenario(t *testing.T) {
	start := localTime(testOffset, "2026-08-28", "09:00")
	env := newTestEnv(t, start)

	_, err := env.engine.StartWork(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)

	env.clock.Set(localTime(testOffset, "2026-08-28", "12:00"))
	_, err = env.engine.StartBreak(testPerson, testGroup, CategoryMeal, env.clock.Now())
	require.NoError(t, err)

	env.clock.Set(localTime(testOffset, "2026-08-28", "12:45"))
	res, err := env.engine.ReturnToSeat(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)

	assert.True(t, res.Closed)
	assert.Equal(t, CategoryMeal, res.Category)
	assert.Equal(t, 45, res.UsedMinutes)
	assert.Equal(t, 1, res.DailyLeaveCount)
	assert.Equal(t, 45, res.DailyLeaveMinutes)
	require.NotNil(t, res.BreakStart)
	assert.True(t, res.BreakStart.Equal(localTime(testOffset, "2026-08-28", "12:00")))

	summary, err := env.agg.DailySummary(testPerson, testGroup, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[CategoryMeal])
	assert.Equal(t, 45*time.Minute, summary.Durations[CategoryMeal])
	assert.GreaterOrEqual(t, summary.BreakMinutes(), 45)
}

func TestEngine_UsedMinutes_Floored(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T05:00:00Z"))

	_, err := env.engine.StartBreak(testPerson, testGroup, CategorySmoke, env.clock.Now())
	require.NoError(t, err)

	env.clock.Advance(4*time.Minute + 59*time.Second)
	res, err := env.engine.ReturnToSeat(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, res.UsedMinutes)
}

func TestEngine_Handle_Dispatch(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	_, err := env.engine.Handle(Command{Kind: CommandStartWork}, testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	_, err = env.engine.Handle(Command{Kind: CommandStartBreak, Category: CategorySmoke}, testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	res, err := env.engine.Handle(Command{Kind: CommandReturnToSeat}, testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	assert.True(t, res.Closed)
	res, err = env.engine.Handle(Command{Kind: CommandStopWork}, testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)
	assert.True(t, res.Closed)

	_, err = env.engine.Handle(Command{Kind: CommandKind("dance")}, testPerson, testGroup, env.clock.Now())
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestEngine_Handle_LazilyCreatesSettings(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	_, err := env.engine.StartWork(testPerson, testGroup, env.clock.Now())
	require.NoError(t, err)

	gs, err := env.settings.Get(testGroup)
	require.NoError(t, err)
	assert.Equal(t, GroupSettings{}, gs)
}

// Any interleaving of starts must leave exactly one open work interval.
func TestEngine_ConcurrentStarts_SingleOpenInterval(t *testing.T) {
	env := newTestEnv(t, mustUTC(t, "2026-08-28T02:00:00Z"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			at := env.clock.Now().Add(time.Duration(n) * time.Second)
			_, err := env.engine.StartWork(testPerson, testGroup, at)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	ws, err := env.store.WorkOverlapping(testPerson, testGroup,
		mustUTC(t, "2026-08-27T17:00:00Z"), mustUTC(t, "2026-08-28T17:00:00Z"))
	require.NoError(t, err)
	require.Len(t, ws, 20)
	openCount := 0
	for _, w := range ws {
		if w.Open() {
			openCount++
		}
	}
	assert.Equal(t, 1, openCount)
}
