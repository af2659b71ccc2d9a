// Package schedule runs digest subscriptions: named handle lists that
// fire a digest job once a day at a configured local time.
package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

// Subscription is a named handle list with a daily fire time. Handles are
// snapshotted at create/update time so the subscription keeps running the
// list its owner configured.
type Subscription struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Handles        []feed.HandleRecord `json:"handles"`
	ScheduleHour   int                 `json:"schedule_hour"`
	ScheduleMinute int                 `json:"schedule_minute"`
	Enabled        bool                `json:"enabled"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	LastRun        *time.Time          `json:"last_run,omitempty"`
	NextRun        *time.Time          `json:"next_run,omitempty"`
	LastJobID      string              `json:"last_job_id,omitempty"`
	LastStatus     string              `json:"last_status,omitempty"`
	LastError      string              `json:"last_error,omitempty"`
}

// NewSubscription validates and builds an enabled subscription.
func NewSubscription(name string, handles []feed.HandleRecord, hour, minute int) (*Subscription, error) {
	if err := validateSchedule(name, handles, hour, minute); err != nil {
		return nil, err
	}
	now := time.Now()
	sub := &Subscription{
		ID:             uuid.NewString(),
		Name:           name,
		Handles:        handles,
		ScheduleHour:   hour,
		ScheduleMinute: minute,
		Enabled:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	next := sub.NextOccurrence(now)
	sub.NextRun = &next
	return sub, nil
}

func validateSchedule(name string, handles []feed.HandleRecord, hour, minute int) error {
	if name == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "subscription name is required")
	}
	if len(handles) == 0 {
		return errors.Wrap(errors.ErrInvalidConfig, "subscription needs at least one handle")
	}
	if hour < 0 || hour > 23 {
		return errors.Wrapf(errors.ErrInvalidConfig, "schedule hour out of range: %d", hour)
	}
	if minute < 0 || minute > 59 {
		return errors.Wrapf(errors.ErrInvalidConfig, "schedule minute out of range: %d", minute)
	}
	return nil
}

// Reschedule validates and applies a new configuration.
func (s *Subscription) Reschedule(name string, handles []feed.HandleRecord, hour, minute int, enabled bool) error {
	if err := validateSchedule(name, handles, hour, minute); err != nil {
		return err
	}
	now := time.Now()
	s.Name = name
	s.Handles = handles
	s.ScheduleHour = hour
	s.ScheduleMinute = minute
	s.Enabled = enabled
	s.UpdatedAt = now
	if enabled {
		next := s.NextOccurrence(now)
		s.NextRun = &next
	} else {
		s.NextRun = nil
	}
	return nil
}

// LastOccurrence returns the most recent scheduled instant at or before
// now (today's fire time, or yesterday's if today's hasn't arrived yet).
func (s *Subscription) LastOccurrence(now time.Time) time.Time {
	occ := time.Date(now.Year(), now.Month(), now.Day(), s.ScheduleHour, s.ScheduleMinute, 0, 0, now.Location())
	if occ.After(now) {
		occ = occ.AddDate(0, 0, -1)
	}
	return occ
}

// NextOccurrence returns the first scheduled instant strictly after now.
func (s *Subscription) NextOccurrence(now time.Time) time.Time {
	occ := time.Date(now.Year(), now.Month(), now.Day(), s.ScheduleHour, s.ScheduleMinute, 0, 0, now.Location())
	if !occ.After(now) {
		occ = occ.AddDate(0, 0, 1)
	}
	return occ
}
