// Package sqlite provides the SQLite-backed combat session store. One
// database file backs one (campaignID, combatID) session; the session loop
// is the only caller, so no statement needs cross-connection coordination.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/skirmish/internal/platform/storage/sqlitemigrate"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/storage"
	"github.com/louisbranch/skirmish/internal/combat/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists one combat session in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite combat store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle. Nil-safe so callers can defer it on all
// startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// GetEncounter returns the combat_state row.
func (s *Store) GetEncounter(ctx context.Context) (domain.Encounter, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Encounter{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT combat_id, campaign_id, phase, round, turn_index, active_entity_id, version, started_at, last_updated_at
		 FROM combat_state WHERE id = 1`,
	)
	var enc domain.Encounter
	var phase string
	var activeEntityID sql.NullString
	var startedAt, lastUpdatedAt int64
	err := row.Scan(
		&enc.CombatID,
		&enc.CampaignID,
		&phase,
		&enc.Round,
		&enc.TurnIndex,
		&activeEntityID,
		&enc.Version,
		&startedAt,
		&lastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Encounter{}, storage.ErrNotFound
		}
		return domain.Encounter{}, fmt.Errorf("get encounter: %w", err)
	}
	enc.Phase = domain.Phase(phase)
	if activeEntityID.Valid {
		enc.ActiveEntityID = activeEntityID.String
	}
	enc.StartedAt = fromMillis(startedAt)
	enc.LastUpdatedAt = fromMillis(lastUpdatedAt)
	return enc, nil
}

// PutEncounter upserts the combat_state row.
func (s *Store) PutEncounter(ctx context.Context, enc domain.Encounter) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(enc.CombatID) == "" {
		return fmt.Errorf("combat id is required")
	}
	if strings.TrimSpace(enc.CampaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	var activeEntityID sql.NullString
	if enc.ActiveEntityID != "" {
		activeEntityID = sql.NullString{String: enc.ActiveEntityID, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO combat_state (id, combat_id, campaign_id, phase, round, turn_index, active_entity_id, version, started_at, last_updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   combat_id = excluded.combat_id,
		   campaign_id = excluded.campaign_id,
		   phase = excluded.phase,
		   round = excluded.round,
		   turn_index = excluded.turn_index,
		   active_entity_id = excluded.active_entity_id,
		   version = excluded.version,
		   started_at = excluded.started_at,
		   last_updated_at = excluded.last_updated_at`,
		enc.CombatID,
		enc.CampaignID,
		string(enc.Phase),
		enc.Round,
		enc.TurnIndex,
		activeEntityID,
		enc.Version,
		toMillis(enc.StartedAt),
		toMillis(enc.LastUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put encounter: %w", err)
	}
	return nil
}

// IncrementVersion bumps the version counter and returns the new value.
func (s *Store) IncrementVersion(ctx context.Context) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`UPDATE combat_state SET version = version + 1, last_updated_at = ? WHERE id = 1
		 RETURNING version`,
		toMillis(time.Now()),
	)
	var version int64
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("increment version: %w", err)
	}
	return version, nil
}

// ClearEncounter wipes every session table.
func (s *Store) ClearEncounter(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{
		"combat_state",
		"entities",
		"initiative",
		"grid_positions",
		"map_config",
		"channeling",
		"combat_log",
		"pending_actions",
		"skill_contests",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}
