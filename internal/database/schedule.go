package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// scheduleRepo implements ScheduleRepository. The weekly pattern, exception
// list, and the two action destinations are stored as JSON text columns.
// Exceptions are normalized to date order on write so evaluation can binary
// search them.
type scheduleRepo struct {
	db *DB
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(db *DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

// Create inserts a new schedule.
func (r *scheduleRepo) Create(ctx context.Context, s *models.BusinessHoursSchedule) error {
	weekly, exceptions, open, closed, err := marshalSchedule(s)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules (name, status, timezone, weekly, exceptions,
		 open_action, closed_action, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.Status, s.Timezone, weekly, exceptions, open, closed, now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// GetByID returns a schedule by ID, or nil if not found.
func (r *scheduleRepo) GetByID(ctx context.Context, id int64) (*models.BusinessHoursSchedule, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, name, status, timezone, weekly, exceptions, open_action,
		 closed_action, created_at, updated_at FROM schedules WHERE id = ?`, id,
	))
}

// List returns all schedules ordered by name.
func (r *scheduleRepo) List(ctx context.Context) ([]models.BusinessHoursSchedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, status, timezone, weekly, exceptions, open_action,
		 closed_action, created_at, updated_at FROM schedules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.BusinessHoursSchedule
	for rows.Next() {
		var s models.BusinessHoursSchedule
		var weekly, exceptions, open, closed string
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.Timezone, &weekly,
			&exceptions, &open, &closed, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning schedule row: %w", err)
		}
		if err := unmarshalSchedule(&s, weekly, exceptions, open, closed); err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// Update modifies an existing schedule.
func (r *scheduleRepo) Update(ctx context.Context, s *models.BusinessHoursSchedule) error {
	weekly, exceptions, open, closed, err := marshalSchedule(s)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE schedules SET name = ?, status = ?, timezone = ?, weekly = ?,
		 exceptions = ?, open_action = ?, closed_action = ?, updated_at = ?
		 WHERE id = ?`,
		s.Name, s.Status, s.Timezone, weekly, exceptions, open, closed,
		time.Now().UTC(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule by ID.
func (r *scheduleRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepo) scanOne(row *sql.Row) (*models.BusinessHoursSchedule, error) {
	var s models.BusinessHoursSchedule
	var weekly, exceptions, open, closed string
	err := row.Scan(&s.ID, &s.Name, &s.Status, &s.Timezone, &weekly,
		&exceptions, &open, &closed, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}
	if err := unmarshalSchedule(&s, weekly, exceptions, open, closed); err != nil {
		return nil, err
	}
	return &s, nil
}

func marshalSchedule(s *models.BusinessHoursSchedule) (weekly, exceptions, open, closed string, err error) {
	sort.Slice(s.Exceptions, func(i, j int) bool {
		return s.Exceptions[i].Date < s.Exceptions[j].Date
	})

	w, err := json.Marshal(s.Weekly)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshaling weekly pattern: %w", err)
	}
	e, err := json.Marshal(s.Exceptions)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshaling exceptions: %w", err)
	}
	o, err := json.Marshal(s.OpenAction)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshaling open action: %w", err)
	}
	c, err := json.Marshal(s.ClosedAction)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshaling closed action: %w", err)
	}
	return string(w), string(e), string(o), string(c), nil
}

func unmarshalSchedule(s *models.BusinessHoursSchedule, weekly, exceptions, open, closed string) error {
	if err := json.Unmarshal([]byte(weekly), &s.Weekly); err != nil {
		return fmt.Errorf("unmarshaling weekly pattern for schedule %d: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(exceptions), &s.Exceptions); err != nil {
		return fmt.Errorf("unmarshaling exceptions for schedule %d: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(open), &s.OpenAction); err != nil {
		return fmt.Errorf("unmarshaling open action for schedule %d: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(closed), &s.ClosedAction); err != nil {
		return fmt.Errorf("unmarshaling closed action for schedule %d: %w", s.ID, err)
	}
	return nil
}
