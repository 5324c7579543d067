package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/storage"
)

// PutEntity upserts a combatant. The full entity is stored as JSON; the
// controller column is duplicated for filtered scans.
func (s *Store) PutEntity(ctx context.Context, entity domain.Entity) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(entity.ID) == "" {
		return fmt.Errorf("entity id is required")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO entities (id, controller, data)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   controller = excluded.controller,
		   data = excluded.data`,
		entity.ID,
		entity.Controller,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("put entity: %w", err)
	}
	return nil
}

// GetEntity returns one combatant by id.
func (s *Store) GetEntity(ctx context.Context, entityID string) (domain.Entity, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Entity{}, err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return domain.Entity{}, fmt.Errorf("entity id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM entities WHERE id = ?`, entityID)
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entity{}, storage.ErrNotFound
		}
		return domain.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	var entity domain.Entity
	if err := json.Unmarshal([]byte(data), &entity); err != nil {
		return domain.Entity{}, fmt.Errorf("unmarshal entity: %w", err)
	}
	return entity, nil
}

// ListEntities returns all combatants in insertion order.
func (s *Store) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT data FROM entities ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		var entity domain.Entity
		if err := json.Unmarshal([]byte(data), &entity); err != nil {
			return nil, fmt.Errorf("unmarshal entity: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// DeleteEntity removes a combatant.
func (s *Store) DeleteEntity(ctx context.Context, entityID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, entityID); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	return nil
}

// CountEntities returns the number of registered combatants.
func (s *Store) CountEntities(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return count, nil
}
