package schedule

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ChineseLsh/x-feed-digest/errors"
)

// Store handles persistence of subscriptions
type Store struct {
	db *sql.DB
}

// NewStore creates a new subscription store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSubscription inserts a new subscription
func (s *Store) CreateSubscription(sub *Subscription) error {
	handlesJSON, err := json.Marshal(sub.Handles)
	if err != nil {
		return errors.Wrap(err, "marshal handles")
	}

	_, err = s.db.Exec(`
		INSERT INTO subscriptions (id, name, handles, schedule_hour, schedule_minute, enabled, created_at, updated_at, last_run, next_run, last_job_id, last_status, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.Name,
		string(handlesJSON),
		sub.ScheduleHour,
		sub.ScheduleMinute,
		sub.Enabled,
		sub.CreatedAt,
		sub.UpdatedAt,
		sub.LastRun,
		sub.NextRun,
		nullString(sub.LastJobID),
		nullString(sub.LastStatus),
		nullString(sub.LastError),
	)
	return errors.Wrap(err, "failed to create subscription")
}

// GetSubscription retrieves a subscription by ID
func (s *Store) GetSubscription(id string) (*Subscription, error) {
	row := s.db.QueryRow(`
		SELECT id, name, handles, schedule_hour, schedule_minute, enabled, created_at, updated_at, last_run, next_run, last_job_id, last_status, last_error
		FROM subscriptions WHERE id = ?`, id)

	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "subscription %s", id)
	}
	return sub, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	var handlesJSON string
	var lastRun, nextRun sql.NullTime
	var lastJobID, lastStatus, lastError sql.NullString

	err := row.Scan(
		&sub.ID, &sub.Name, &handlesJSON,
		&sub.ScheduleHour, &sub.ScheduleMinute, &sub.Enabled,
		&sub.CreatedAt, &sub.UpdatedAt,
		&lastRun, &nextRun,
		&lastJobID, &lastStatus, &lastError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan subscription")
	}

	if err := json.Unmarshal([]byte(handlesJSON), &sub.Handles); err != nil {
		return nil, errors.Wrap(err, "unmarshal handles")
	}
	sub.LastRun = nullTimePtr(lastRun)
	sub.NextRun = nullTimePtr(nextRun)
	sub.LastJobID = lastJobID.String
	sub.LastStatus = lastStatus.String
	sub.LastError = lastError.String

	return &sub, nil
}

// ListSubscriptions returns subscriptions ordered by creation time.
// Pass enabledOnly to restrict to ones the scheduler should fire.
func (s *Store) ListSubscriptions(enabledOnly bool) ([]*Subscription, error) {
	query := `
		SELECT id, name, handles, schedule_hour, schedule_minute, enabled, created_at, updated_at, last_run, next_run, last_job_id, last_status, last_error
		FROM subscriptions`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscriptions")
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating subscriptions")
	}
	return subs, nil
}

// UpdateSubscription persists the subscription's configuration fields
func (s *Store) UpdateSubscription(sub *Subscription) error {
	handlesJSON, err := json.Marshal(sub.Handles)
	if err != nil {
		return errors.Wrap(err, "marshal handles")
	}

	result, err := s.db.Exec(`
		UPDATE subscriptions
		SET name = ?, handles = ?, schedule_hour = ?, schedule_minute = ?, enabled = ?, updated_at = ?, next_run = ?
		WHERE id = ?`,
		sub.Name,
		string(handlesJSON),
		sub.ScheduleHour,
		sub.ScheduleMinute,
		sub.Enabled,
		sub.UpdatedAt,
		sub.NextRun,
		sub.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update subscription")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "subscription %s", sub.ID)
	}
	return nil
}

// UpdateRunState records the outcome of firing a subscription
func (s *Store) UpdateRunState(id string, lastRun *time.Time, nextRun *time.Time, jobID, status, errMsg string) error {
	result, err := s.db.Exec(`
		UPDATE subscriptions
		SET last_run = COALESCE(?, last_run),
		    next_run = COALESCE(?, next_run),
		    last_job_id = COALESCE(?, last_job_id),
		    last_status = ?,
		    last_error = ?,
		    updated_at = ?
		WHERE id = ?`,
		lastRun,
		nextRun,
		nullString(jobID),
		nullString(status),
		nullString(errMsg),
		time.Now(),
		id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update run state")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "subscription %s", id)
	}
	return nil
}

// DeleteSubscription removes a subscription
func (s *Store) DeleteSubscription(id string) error {
	result, err := s.db.Exec(`DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete subscription")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "subscription %s", id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
