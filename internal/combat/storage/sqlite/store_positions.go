package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/storage"
)

// PutPosition upserts an entity's grid cell.
func (s *Store) PutPosition(ctx context.Context, pos domain.GridPosition) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(pos.EntityID) == "" {
		return fmt.Errorf("entity id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO grid_positions (entity_id, "row", col)
		 VALUES (?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   "row" = excluded."row",
		   col = excluded.col`,
		pos.EntityID,
		pos.Row,
		pos.Col,
	)
	if err != nil {
		return fmt.Errorf("put position: %w", err)
	}
	return nil
}

// GetPosition returns one entity's grid cell.
func (s *Store) GetPosition(ctx context.Context, entityID string) (domain.GridPosition, error) {
	if err := s.ready(ctx); err != nil {
		return domain.GridPosition{}, err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return domain.GridPosition{}, fmt.Errorf("entity id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT entity_id, "row", col FROM grid_positions WHERE entity_id = ?`,
		entityID,
	)
	var pos domain.GridPosition
	if err := row.Scan(&pos.EntityID, &pos.Row, &pos.Col); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GridPosition{}, storage.ErrNotFound
		}
		return domain.GridPosition{}, fmt.Errorf("get position: %w", err)
	}
	return pos, nil
}

// ListPositions returns all grid positions.
func (s *Store) ListPositions(ctx context.Context) ([]domain.GridPosition, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT entity_id, "row", col FROM grid_positions ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.GridPosition
	for rows.Next() {
		var pos domain.GridPosition
		if err := rows.Scan(&pos.EntityID, &pos.Row, &pos.Col); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

// EntityAtCell returns the occupant of a cell, or storage.ErrNotFound.
func (s *Store) EntityAtCell(ctx context.Context, row, col int) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}

	var entityID string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT entity_id FROM grid_positions WHERE "row" = ? AND col = ?`,
		row,
		col,
	).Scan(&entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("entity at cell: %w", err)
	}
	return entityID, nil
}

// DeletePosition removes an entity's grid cell.
func (s *Store) DeletePosition(ctx context.Context, entityID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM grid_positions WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}
