package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

// PutPendingAction stores one readied action.
func (s *Store) PutPendingAction(ctx context.Context, action domain.PendingAction) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(action.ID) == "" {
		return fmt.Errorf("pending action id is required")
	}
	if strings.TrimSpace(action.EntityID) == "" {
		return fmt.Errorf("entity id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO pending_actions (id, entity_id, "trigger", action_type, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   entity_id = excluded.entity_id,
		   "trigger" = excluded."trigger",
		   action_type = excluded.action_type,
		   created_at = excluded.created_at`,
		action.ID,
		action.EntityID,
		action.Trigger,
		action.ActionType,
		toMillis(action.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put pending action: %w", err)
	}
	return nil
}

// ListPendingActions returns all readied actions, oldest first.
func (s *Store) ListPendingActions(ctx context.Context) ([]domain.PendingAction, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, entity_id, "trigger", action_type, created_at FROM pending_actions ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.PendingAction
	for rows.Next() {
		var action domain.PendingAction
		var createdAt int64
		if err := rows.Scan(&action.ID, &action.EntityID, &action.Trigger, &action.ActionType, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending action: %w", err)
		}
		action.CreatedAt = fromMillis(createdAt)
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending actions: %w", err)
	}
	return actions, nil
}

// DeletePendingActionsForEntity drops all readied actions of one entity.
func (s *Store) DeletePendingActionsForEntity(ctx context.Context, entityID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM pending_actions WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("delete pending actions: %w", err)
	}
	return nil
}
