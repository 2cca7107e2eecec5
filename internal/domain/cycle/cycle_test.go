package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newCycle(t *testing.T) *Cycle {
	t.Helper()
	c, err := New(1, 2, base, base.Add(144*time.Hour), base.Add(168*time.Hour), false)
	require.NoError(t, err)
	c.ID = 10
	return c
}

func TestNewRejectsBadDateOrder(t *testing.T) {
	tests := []struct {
		name               string
		start, end, digest time.Time
	}{
		{"end before start", base, base.Add(-time.Hour), base.Add(time.Hour)},
		{"end equals start", base, base, base.Add(time.Hour)},
		{"digest before end", base, base.Add(2 * time.Hour), base.Add(time.Hour)},
		{"digest equals end", base, base.Add(time.Hour), base.Add(time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(1, 2, tt.start, tt.end, tt.digest, false)
			assert.ErrorIs(t, err, ErrInvalidDates)
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("active")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, st)

	_, err = ParseStatus("ACTIVE")
	assert.Error(t, err)
	assert.False(t, Status("bogus").Equal(Status("bogus")))
}

func TestLifecycleTransitions(t *testing.T) {
	c := newCycle(t)
	assert.False(t, c.AcceptsAnswers())

	changed, err := c.Activate(base)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, c.AcceptsAnswers())
	assert.True(t, c.ActivatedAt.Valid)

	changed, err = c.Activate(base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed, "second activation is a no-op")
	assert.Equal(t, base, c.ActivatedAt.Time)

	changed, err = c.Close(base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, c.AcceptsAnswers())

	changed, err = c.Close(base.Add(2 * time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = c.Complete(base.Add(3 * time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusCompleted, c.Status)
}

func TestTransitionsCannotSkipOrGoBack(t *testing.T) {
	c := newCycle(t)

	_, err := c.Close(base)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = c.Complete(base)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = c.Activate(base)
	require.NoError(t, err)
	_, err = c.Close(base)
	require.NoError(t, err)

	_, err = c.Activate(base)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusClosed, c.Status)
}

func TestPauseUntilShiftsScheduledCycle(t *testing.T) {
	c := newCycle(t)
	now := base.Add(-24 * time.Hour)
	until := base.Add(48 * time.Hour)

	require.NoError(t, c.PauseUntil(until, now))

	assert.True(t, c.IsPaused(until.Add(-time.Second)))
	assert.False(t, c.IsPaused(until))
	assert.Equal(t, until, c.StartDate)
	assert.Equal(t, 144*time.Hour, c.EndDate.Sub(c.StartDate))
	assert.Equal(t, 24*time.Hour, c.DigestDate.Sub(c.EndDate))
}

func TestPauseUntilKeepsActiveDates(t *testing.T) {
	c := newCycle(t)
	_, err := c.Activate(base)
	require.NoError(t, err)

	require.NoError(t, c.PauseUntil(base.Add(24*time.Hour), base))
	assert.Equal(t, base, c.StartDate)
	assert.True(t, c.PausedUntil.Valid)
}

func TestPauseUntilRejections(t *testing.T) {
	c := newCycle(t)
	assert.ErrorIs(t, c.PauseUntil(base, base), ErrInvalidPause)

	_, _ = c.Activate(base)
	_, _ = c.Close(base)
	assert.ErrorIs(t, c.PauseUntil(base.Add(time.Hour), base), ErrInvalidPause)
}

func TestCloseClearsPause(t *testing.T) {
	c := newCycle(t)
	_, _ = c.Activate(base)
	require.NoError(t, c.PauseUntil(base.Add(time.Hour), base))

	_, err := c.Close(base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, c.PausedUntil.Valid)
}

func TestResumeNow(t *testing.T) {
	c := newCycle(t)
	now := base.Add(-24 * time.Hour)
	require.NoError(t, c.PauseUntil(base.Add(72*time.Hour), now))

	resumeAt := base.Add(time.Hour)
	require.NoError(t, c.ResumeNow(resumeAt))
	assert.False(t, c.PausedUntil.Valid)
	assert.Equal(t, resumeAt, c.StartDate)
	assert.Equal(t, 144*time.Hour, c.EndDate.Sub(c.StartDate))

	require.NoError(t, c.ResumeNow(resumeAt), "resuming an unpaused cycle is a no-op")
	assert.Equal(t, resumeAt, c.StartDate)
}
