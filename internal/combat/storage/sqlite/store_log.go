package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

// AppendLog writes one combat log entry. The payload is opaque JSON text.
func (s *Store) AppendLog(ctx context.Context, entryType, payload string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(entryType) == "" {
		return fmt.Errorf("log entry type is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO combat_log (type, payload, created_at) VALUES (?, ?, ?)`,
		entryType,
		payload,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListRecentLog returns the most recent log entries, newest first.
func (s *Store) ListRecentLog(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, type, payload, created_at FROM combat_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list log: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return entries, nil
}
