package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

func someHandles() []feed.HandleRecord {
	return []feed.HandleRecord{{Handle: "elonmusk"}, {Handle: "karpathy"}}
}

func TestNewSubscriptionValidation(t *testing.T) {
	_, err := NewSubscription("", someHandles(), 8, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = NewSubscription("morning", nil, 8, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = NewSubscription("morning", someHandles(), 24, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = NewSubscription("morning", someHandles(), 8, 60)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	sub, err := NewSubscription("morning", someHandles(), 8, 30)
	require.NoError(t, err)
	assert.True(t, sub.Enabled)
	assert.NotNil(t, sub.NextRun)
}

func TestOccurrenceMath(t *testing.T) {
	sub := &Subscription{ScheduleHour: 8, ScheduleMinute: 0}
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	// Before today's fire time, the last occurrence was yesterday
	now := day.Add(7 * time.Hour)
	assert.Equal(t, day.AddDate(0, 0, -1).Add(8*time.Hour), sub.LastOccurrence(now))
	assert.Equal(t, day.Add(8*time.Hour), sub.NextOccurrence(now))

	// After today's fire time, last occurrence is today and next is tomorrow
	now = day.Add(9 * time.Hour)
	assert.Equal(t, day.Add(8*time.Hour), sub.LastOccurrence(now))
	assert.Equal(t, day.AddDate(0, 0, 1).Add(8*time.Hour), sub.NextOccurrence(now))

	// Exactly at the fire time counts as occurred
	now = day.Add(8 * time.Hour)
	assert.Equal(t, now, sub.LastOccurrence(now))
	assert.Equal(t, now.AddDate(0, 0, 1), sub.NextOccurrence(now))
}

func TestReschedule(t *testing.T) {
	sub, err := NewSubscription("morning", someHandles(), 8, 0)
	require.NoError(t, err)

	require.NoError(t, sub.Reschedule("evening", someHandles(), 20, 15, true))
	assert.Equal(t, "evening", sub.Name)
	assert.Equal(t, 20, sub.ScheduleHour)
	require.NotNil(t, sub.NextRun)
	assert.Equal(t, 20, sub.NextRun.Hour())

	// Disabling clears the projected next run
	require.NoError(t, sub.Reschedule("evening", someHandles(), 20, 15, false))
	assert.Nil(t, sub.NextRun)

	// Invalid reschedule leaves validation to reject
	err = sub.Reschedule("evening", someHandles(), -1, 0, true)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}
