package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// ringGroupRepo implements RingGroupRepository. Members and the fallback
// destination are stored as JSON text columns.
type ringGroupRepo struct {
	db *DB
}

// NewRingGroupRepository creates a new RingGroupRepository.
func NewRingGroupRepository(db *DB) RingGroupRepository {
	return &ringGroupRepo{db: db}
}

// Create inserts a new ring group.
func (r *ringGroupRepo) Create(ctx context.Context, rg *models.RingGroup) error {
	members, err := json.Marshal(rg.Members)
	if err != nil {
		return fmt.Errorf("marshaling members: %w", err)
	}
	fallback, err := json.Marshal(rg.Fallback)
	if err != nil {
		return fmt.Errorf("marshaling fallback: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO ring_groups (name, status, strategy, members, ring_timeout_sec,
		 ring_turns, fallback, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rg.Name, rg.Status, rg.Strategy, string(members), rg.RingTimeoutSec,
		rg.RingTurns, string(fallback), now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting ring group: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	rg.ID = id
	rg.CreatedAt = now
	rg.UpdatedAt = now
	return nil
}

// GetByID returns a ring group by ID, or nil if not found.
func (r *ringGroupRepo) GetByID(ctx context.Context, id int64) (*models.RingGroup, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, name, status, strategy, members, ring_timeout_sec, ring_turns,
		 fallback, created_at, updated_at FROM ring_groups WHERE id = ?`, id,
	))
}

// List returns all ring groups ordered by name.
func (r *ringGroupRepo) List(ctx context.Context) ([]models.RingGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, status, strategy, members, ring_timeout_sec, ring_turns,
		 fallback, created_at, updated_at FROM ring_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying ring groups: %w", err)
	}
	defer rows.Close()

	var groups []models.RingGroup
	for rows.Next() {
		var g models.RingGroup
		var members, fallback string
		if err := rows.Scan(&g.ID, &g.Name, &g.Status, &g.Strategy, &members,
			&g.RingTimeoutSec, &g.RingTurns, &fallback, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning ring group row: %w", err)
		}
		if err := unmarshalRingGroup(&g, members, fallback); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Update modifies an existing ring group.
func (r *ringGroupRepo) Update(ctx context.Context, rg *models.RingGroup) error {
	members, err := json.Marshal(rg.Members)
	if err != nil {
		return fmt.Errorf("marshaling members: %w", err)
	}
	fallback, err := json.Marshal(rg.Fallback)
	if err != nil {
		return fmt.Errorf("marshaling fallback: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE ring_groups SET name = ?, status = ?, strategy = ?, members = ?,
		 ring_timeout_sec = ?, ring_turns = ?, fallback = ?, updated_at = ?
		 WHERE id = ?`,
		rg.Name, rg.Status, rg.Strategy, string(members), rg.RingTimeoutSec,
		rg.RingTurns, string(fallback), time.Now().UTC(), rg.ID,
	)
	if err != nil {
		return fmt.Errorf("updating ring group: %w", err)
	}
	return nil
}

// Delete removes a ring group by ID.
func (r *ringGroupRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ring_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting ring group: %w", err)
	}
	return nil
}

func (r *ringGroupRepo) scanOne(row *sql.Row) (*models.RingGroup, error) {
	var g models.RingGroup
	var members, fallback string
	err := row.Scan(&g.ID, &g.Name, &g.Status, &g.Strategy, &members,
		&g.RingTimeoutSec, &g.RingTurns, &fallback, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ring group: %w", err)
	}
	if err := unmarshalRingGroup(&g, members, fallback); err != nil {
		return nil, err
	}
	return &g, nil
}

func unmarshalRingGroup(g *models.RingGroup, members, fallback string) error {
	if err := json.Unmarshal([]byte(members), &g.Members); err != nil {
		return fmt.Errorf("unmarshaling members for ring group %d: %w", g.ID, err)
	}
	if err := json.Unmarshal([]byte(fallback), &g.Fallback); err != nil {
		return fmt.Errorf("unmarshaling fallback for ring group %d: %w", g.ID, err)
	}
	return nil
}
