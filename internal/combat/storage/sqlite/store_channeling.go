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

// PutChanneling upserts a channeling row.
func (s *Store) PutChanneling(ctx context.Context, ch domain.Channeling) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(ch.EntityID) == "" {
		return fmt.Errorf("entity id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO channeling (entity_id, spell_name, damage_type, intensity, total_cost, energy_channeled, ap_channeled, turns_channeled, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
		   spell_name = excluded.spell_name,
		   damage_type = excluded.damage_type,
		   intensity = excluded.intensity,
		   total_cost = excluded.total_cost,
		   energy_channeled = excluded.energy_channeled,
		   ap_channeled = excluded.ap_channeled,
		   turns_channeled = excluded.turns_channeled,
		   started_at = excluded.started_at`,
		ch.EntityID,
		ch.SpellName,
		ch.DamageType,
		ch.Intensity,
		ch.TotalCost,
		ch.EnergyChanneled,
		ch.APChanneled,
		ch.TurnsChanneled,
		toMillis(ch.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("put channeling: %w", err)
	}
	return nil
}

// GetChanneling returns one entity's channeling row.
func (s *Store) GetChanneling(ctx context.Context, entityID string) (domain.Channeling, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Channeling{}, err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return domain.Channeling{}, fmt.Errorf("entity id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT entity_id, spell_name, damage_type, intensity, total_cost, energy_channeled, ap_channeled, turns_channeled, started_at
		 FROM channeling WHERE entity_id = ?`,
		entityID,
	)
	ch, err := scanChanneling(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Channeling{}, storage.ErrNotFound
		}
		return domain.Channeling{}, fmt.Errorf("get channeling: %w", err)
	}
	return ch, nil
}

// ListChanneling returns every active channeling row.
func (s *Store) ListChanneling(ctx context.Context) ([]domain.Channeling, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT entity_id, spell_name, damage_type, intensity, total_cost, energy_channeled, ap_channeled, turns_channeled, started_at
		 FROM channeling ORDER BY entity_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list channeling: %w", err)
	}
	defer rows.Close()

	var result []domain.Channeling
	for rows.Next() {
		ch, err := scanChanneling(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channeling: %w", err)
		}
		result = append(result, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channeling: %w", err)
	}
	return result, nil
}

// DeleteChanneling removes one entity's channeling row.
func (s *Store) DeleteChanneling(ctx context.Context, entityID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM channeling WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("delete channeling: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChanneling(row rowScanner) (domain.Channeling, error) {
	var ch domain.Channeling
	var startedAt int64
	err := row.Scan(
		&ch.EntityID,
		&ch.SpellName,
		&ch.DamageType,
		&ch.Intensity,
		&ch.TotalCost,
		&ch.EnergyChanneled,
		&ch.APChanneled,
		&ch.TurnsChanneled,
		&startedAt,
	)
	if err != nil {
		return domain.Channeling{}, err
	}
	ch.StartedAt = fromMillis(startedAt)
	return ch, nil
}
