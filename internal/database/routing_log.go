package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// routingLogRepo implements RoutingLogRepository.
type routingLogRepo struct {
	db *DB
}

// NewRoutingLogRepository creates a new RoutingLogRepository.
func NewRoutingLogRepository(db *DB) RoutingLogRepository {
	return &routingLogRepo{db: db}
}

// Record appends one routing decision.
func (r *routingLogRepo) Record(ctx context.Context, entry *models.RoutingLogEntry) error {
	ref, err := json.Marshal(entry.Entry)
	if err != nil {
		return fmt.Errorf("marshaling entry point: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO routing_log (call_id, entry, decision_kind, resolve_error, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.CallID, string(ref), entry.DecisionKind, entry.ResolveError, now,
	)
	if err != nil {
		return fmt.Errorf("inserting routing log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

// ListRecent returns the newest entries, most recent first.
func (r *routingLogRepo) ListRecent(ctx context.Context, limit, offset int) ([]models.RoutingLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_id, entry, decision_kind, resolve_error, created_at
		 FROM routing_log ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying routing log: %w", err)
	}
	defer rows.Close()

	var entries []models.RoutingLogEntry
	for rows.Next() {
		var e models.RoutingLogEntry
		var ref string
		if err := rows.Scan(&e.ID, &e.CallID, &ref, &e.DecisionKind,
			&e.ResolveError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning routing log row: %w", err)
		}
		if err := json.Unmarshal([]byte(ref), &e.Entry); err != nil {
			return nil, fmt.Errorf("unmarshaling entry point for log entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the total number of routing log entries.
func (r *routingLogRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routing_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting routing log entries: %w", err)
	}
	return n, nil
}

// CountByDecision returns routing log counts grouped by decision kind.
func (r *routingLogRepo) CountByDecision(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, `SELECT decision_kind, COUNT(*) FROM routing_log GROUP BY decision_kind`)
}

// CountByResolveError returns counts of failed resolutions grouped by reason.
func (r *routingLogRepo) CountByResolveError(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, `SELECT resolve_error, COUNT(*) FROM routing_log
		WHERE resolve_error != '' GROUP BY resolve_error`)
}

func (r *routingLogRepo) countBy(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying routing log counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning routing log count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
