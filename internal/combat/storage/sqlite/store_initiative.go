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

// UpsertInitiative inserts or updates one initiative row.
func (s *Store) UpsertInitiative(ctx context.Context, entry domain.InitiativeEntry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(entry.EntityID) == "" {
		return fmt.Errorf("entity id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO initiative (entity_id, roll, skill_value, current_energy, position)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   roll = excluded.roll,
		   skill_value = excluded.skill_value,
		   current_energy = excluded.current_energy,
		   position = excluded.position`,
		entry.EntityID,
		entry.Roll,
		entry.SkillValue,
		entry.CurrentEnergy,
		entry.Position,
	)
	if err != nil {
		return fmt.Errorf("upsert initiative: %w", err)
	}
	return nil
}

// GetInitiativeEntry returns one initiative row by entity.
func (s *Store) GetInitiativeEntry(ctx context.Context, entityID string) (domain.InitiativeEntry, error) {
	if err := s.ready(ctx); err != nil {
		return domain.InitiativeEntry{}, err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return domain.InitiativeEntry{}, fmt.Errorf("entity id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT entity_id, roll, skill_value, current_energy, position
		 FROM initiative WHERE entity_id = ?`,
		entityID,
	)
	var entry domain.InitiativeEntry
	err := row.Scan(&entry.EntityID, &entry.Roll, &entry.SkillValue, &entry.CurrentEnergy, &entry.Position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InitiativeEntry{}, storage.ErrNotFound
		}
		return domain.InitiativeEntry{}, fmt.Errorf("get initiative: %w", err)
	}
	return entry, nil
}

// ListInitiative returns all initiative rows in position order.
func (s *Store) ListInitiative(ctx context.Context) ([]domain.InitiativeEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT entity_id, roll, skill_value, current_energy, position
		 FROM initiative ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("list initiative: %w", err)
	}
	defer rows.Close()

	var entries []domain.InitiativeEntry
	for rows.Next() {
		var entry domain.InitiativeEntry
		if err := rows.Scan(&entry.EntityID, &entry.Roll, &entry.SkillValue, &entry.CurrentEnergy, &entry.Position); err != nil {
			return nil, fmt.Errorf("scan initiative: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate initiative: %w", err)
	}
	return entries, nil
}

// ReplaceInitiative rewrites the whole order in one transaction.
func (s *Store) ReplaceInitiative(ctx context.Context, entries []domain.InitiativeEntry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM initiative`); err != nil {
		return fmt.Errorf("clear initiative: %w", err)
	}
	for _, entry := range entries {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO initiative (entity_id, roll, skill_value, current_energy, position)
			 VALUES (?, ?, ?, ?, ?)`,
			entry.EntityID,
			entry.Roll,
			entry.SkillValue,
			entry.CurrentEnergy,
			entry.Position,
		); err != nil {
			return fmt.Errorf("insert initiative %s: %w", entry.EntityID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit initiative: %w", err)
	}
	return nil
}

// DeleteInitiative removes one initiative row.
func (s *Store) DeleteInitiative(ctx context.Context, entityID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM initiative WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("delete initiative: %w", err)
	}
	return nil
}

// CountInitiative returns the number of initiative rows.
func (s *Store) CountInitiative(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM initiative`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count initiative: %w", err)
	}
	return count, nil
}
