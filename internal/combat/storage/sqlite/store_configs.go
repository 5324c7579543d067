package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

// The map_config table holds one row carrying both config blobs. Missing
// rows fall back to defaults so fresh sessions need no seeding step.

func (s *Store) getConfigRow(ctx context.Context) (gridJSON, mapJSON string, err error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT grid_config, map_config FROM map_config WHERE id = 1`)
	if err := row.Scan(&gridJSON, &mapJSON); err != nil {
		return "", "", err
	}
	return gridJSON, mapJSON, nil
}

func (s *Store) putConfigRow(ctx context.Context, gridJSON, mapJSON string) error {
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO map_config (id, grid_config, map_config)
		 VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   grid_config = excluded.grid_config,
		   map_config = excluded.map_config`,
		gridJSON,
		mapJSON,
	)
	return err
}

// GetGridConfig returns the stored grid configuration or the default.
func (s *Store) GetGridConfig(ctx context.Context) (domain.GridConfig, error) {
	if err := s.ready(ctx); err != nil {
		return domain.GridConfig{}, err
	}

	gridJSON, _, err := s.getConfigRow(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultGridConfig(), nil
		}
		return domain.GridConfig{}, fmt.Errorf("get grid config: %w", err)
	}
	var cfg domain.GridConfig
	if err := json.Unmarshal([]byte(gridJSON), &cfg); err != nil {
		return domain.GridConfig{}, fmt.Errorf("unmarshal grid config: %w", err)
	}
	return cfg, nil
}

// PutGridConfig stores the grid configuration, preserving the map blob.
func (s *Store) PutGridConfig(ctx context.Context, cfg domain.GridConfig) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	mapCfg, err := s.GetMapConfig(ctx)
	if err != nil {
		return err
	}
	gridJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal grid config: %w", err)
	}
	mapJSON, err := json.Marshal(mapCfg)
	if err != nil {
		return fmt.Errorf("marshal map config: %w", err)
	}
	if err := s.putConfigRow(ctx, string(gridJSON), string(mapJSON)); err != nil {
		return fmt.Errorf("put grid config: %w", err)
	}
	return nil
}

// GetMapConfig returns the stored map configuration or the zero value.
func (s *Store) GetMapConfig(ctx context.Context) (domain.MapConfig, error) {
	if err := s.ready(ctx); err != nil {
		return domain.MapConfig{}, err
	}

	_, mapJSON, err := s.getConfigRow(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MapConfig{}, nil
		}
		return domain.MapConfig{}, fmt.Errorf("get map config: %w", err)
	}
	var cfg domain.MapConfig
	if err := json.Unmarshal([]byte(mapJSON), &cfg); err != nil {
		return domain.MapConfig{}, fmt.Errorf("unmarshal map config: %w", err)
	}
	return cfg, nil
}

// PutMapConfig stores the map configuration, preserving the grid blob.
func (s *Store) PutMapConfig(ctx context.Context, cfg domain.MapConfig) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	gridCfg, err := s.GetGridConfig(ctx)
	if err != nil {
		return err
	}
	gridJSON, err := json.Marshal(gridCfg)
	if err != nil {
		return fmt.Errorf("marshal grid config: %w", err)
	}
	mapJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal map config: %w", err)
	}
	if err := s.putConfigRow(ctx, string(gridJSON), string(mapJSON)); err != nil {
		return fmt.Errorf("put map config: %w", err)
	}
	return nil
}
