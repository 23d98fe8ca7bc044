package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// conferenceRoomRepo implements ConferenceRoomRepository.
type conferenceRoomRepo struct {
	db *DB
}

// NewConferenceRoomRepository creates a new ConferenceRoomRepository.
func NewConferenceRoomRepository(db *DB) ConferenceRoomRepository {
	return &conferenceRoomRepo{db: db}
}

// Create inserts a new conference room.
func (r *conferenceRoomRepo) Create(ctx context.Context, room *models.ConferenceRoom) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO conference_rooms (name, extension, pin, max_members, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		room.Name, room.Extension, room.PIN, room.MaxMembers, room.Status, now,
	)
	if err != nil {
		return fmt.Errorf("inserting conference room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	room.ID = id
	room.CreatedAt = now
	return nil
}

// GetByID returns a conference room by ID, or nil if not found.
func (r *conferenceRoomRepo) GetByID(ctx context.Context, id int64) (*models.ConferenceRoom, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, name, extension, pin, max_members, status, created_at
		 FROM conference_rooms WHERE id = ?`, id,
	))
}

// List returns all conference rooms ordered by extension number.
func (r *conferenceRoomRepo) List(ctx context.Context) ([]models.ConferenceRoom, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, extension, pin, max_members, status, created_at
		 FROM conference_rooms ORDER BY extension`)
	if err != nil {
		return nil, fmt.Errorf("querying conference rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.ConferenceRoom
	for rows.Next() {
		var c models.ConferenceRoom
		if err := rows.Scan(&c.ID, &c.Name, &c.Extension, &c.PIN, &c.MaxMembers,
			&c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conference room row: %w", err)
		}
		rooms = append(rooms, c)
	}
	return rooms, rows.Err()
}

// Update modifies an existing conference room.
func (r *conferenceRoomRepo) Update(ctx context.Context, room *models.ConferenceRoom) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conference_rooms SET name = ?, extension = ?, pin = ?, max_members = ?,
		 status = ? WHERE id = ?`,
		room.Name, room.Extension, room.PIN, room.MaxMembers, room.Status, room.ID,
	)
	if err != nil {
		return fmt.Errorf("updating conference room: %w", err)
	}
	return nil
}

// Delete removes a conference room by ID.
func (r *conferenceRoomRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conference_rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conference room: %w", err)
	}
	return nil
}

func (r *conferenceRoomRepo) scanOne(row *sql.Row) (*models.ConferenceRoom, error) {
	var c models.ConferenceRoom
	err := row.Scan(&c.ID, &c.Name, &c.Extension, &c.PIN, &c.MaxMembers,
		&c.Status, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conference room: %w", err)
	}
	return &c, nil
}
