package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// ivrMenuRepo implements IVRMenuRepository. The prompt, options, and
// failover destination are stored as JSON text columns.
type ivrMenuRepo struct {
	db *DB
}

// NewIVRMenuRepository creates a new IVRMenuRepository.
func NewIVRMenuRepository(db *DB) IVRMenuRepository {
	return &ivrMenuRepo{db: db}
}

// Create inserts a new IVR menu.
func (r *ivrMenuRepo) Create(ctx context.Context, menu *models.IVRMenu) error {
	prompt, options, failover, err := marshalIVRMenu(menu)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO ivr_menus (name, status, prompt, max_turns, inter_digit_timeout_sec,
		 options, failover, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		menu.Name, menu.Status, prompt, menu.MaxTurns, menu.InterDigitTimeoutSec,
		options, failover, now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting ivr menu: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	menu.ID = id
	menu.CreatedAt = now
	menu.UpdatedAt = now
	return nil
}

// GetByID returns an IVR menu by ID, or nil if not found.
func (r *ivrMenuRepo) GetByID(ctx context.Context, id int64) (*models.IVRMenu, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, name, status, prompt, max_turns, inter_digit_timeout_sec,
		 options, failover, created_at, updated_at FROM ivr_menus WHERE id = ?`, id,
	))
}

// List returns all IVR menus ordered by name.
func (r *ivrMenuRepo) List(ctx context.Context) ([]models.IVRMenu, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, status, prompt, max_turns, inter_digit_timeout_sec,
		 options, failover, created_at, updated_at FROM ivr_menus ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying ivr menus: %w", err)
	}
	defer rows.Close()

	var menus []models.IVRMenu
	for rows.Next() {
		var m models.IVRMenu
		var prompt, options, failover string
		if err := rows.Scan(&m.ID, &m.Name, &m.Status, &prompt, &m.MaxTurns,
			&m.InterDigitTimeoutSec, &options, &failover, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning ivr menu row: %w", err)
		}
		if err := unmarshalIVRMenu(&m, prompt, options, failover); err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

// Update modifies an existing IVR menu.
func (r *ivrMenuRepo) Update(ctx context.Context, menu *models.IVRMenu) error {
	prompt, options, failover, err := marshalIVRMenu(menu)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE ivr_menus SET name = ?, status = ?, prompt = ?, max_turns = ?,
		 inter_digit_timeout_sec = ?, options = ?, failover = ?, updated_at = ?
		 WHERE id = ?`,
		menu.Name, menu.Status, prompt, menu.MaxTurns, menu.InterDigitTimeoutSec,
		options, failover, time.Now().UTC(), menu.ID,
	)
	if err != nil {
		return fmt.Errorf("updating ivr menu: %w", err)
	}
	return nil
}

// Delete removes an IVR menu by ID.
func (r *ivrMenuRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ivr_menus WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting ivr menu: %w", err)
	}
	return nil
}

func (r *ivrMenuRepo) scanOne(row *sql.Row) (*models.IVRMenu, error) {
	var m models.IVRMenu
	var prompt, options, failover string
	err := row.Scan(&m.ID, &m.Name, &m.Status, &prompt, &m.MaxTurns,
		&m.InterDigitTimeoutSec, &options, &failover, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ivr menu: %w", err)
	}
	if err := unmarshalIVRMenu(&m, prompt, options, failover); err != nil {
		return nil, err
	}
	return &m, nil
}

func marshalIVRMenu(m *models.IVRMenu) (prompt, options, failover string, err error) {
	p, err := json.Marshal(m.Prompt)
	if err != nil {
		return "", "", "", fmt.Errorf("marshaling prompt: %w", err)
	}
	o, err := json.Marshal(m.Options)
	if err != nil {
		return "", "", "", fmt.Errorf("marshaling options: %w", err)
	}
	f, err := json.Marshal(m.Failover)
	if err != nil {
		return "", "", "", fmt.Errorf("marshaling failover: %w", err)
	}
	return string(p), string(o), string(f), nil
}

func unmarshalIVRMenu(m *models.IVRMenu, prompt, options, failover string) error {
	if err := json.Unmarshal([]byte(prompt), &m.Prompt); err != nil {
		return fmt.Errorf("unmarshaling prompt for ivr menu %d: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(options), &m.Options); err != nil {
		return fmt.Errorf("unmarshaling options for ivr menu %d: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(failover), &m.Failover); err != nil {
		return fmt.Errorf("unmarshaling failover for ivr menu %d: %w", m.ID, err)
	}
	return nil
}
