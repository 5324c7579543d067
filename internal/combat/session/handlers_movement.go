package session

import (
	"context"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/errors"
)

type movementPayload struct {
	EntityID          string           `json:"entityId"`
	TargetRow         int              `json:"targetRow"`
	TargetCol         int              `json:"targetCol"`
	Path              []map[string]int `json:"path"`
	PhysicalAttribute int              `json:"physicalAttribute"`
	Force             bool             `json:"force"`
	IgnoreAPCost      bool             `json:"ignoreApCost"`
}

// handleDeclareMovement moves a controlled entity. The force and
// ignoreApCost switches are GM-only and ignored here.
func handleDeclareMovement(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload movementPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	payload.Force = false
	payload.IgnoreAPCost = false
	return s.moveEntity(ctx, conn, payload, msg.RequestID)
}

// handleGMMoveEntity runs the same pipeline with force and ignoreApCost
// honored.
func handleGMMoveEntity(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload movementPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	return s.moveEntity(ctx, conn, payload, msg.RequestID)
}

// moveEntity validates bounds, occupancy, and the AP economy, then commits
// the new position. AP is charged only during running combat.
func (s *Session) moveEntity(ctx context.Context, conn *Conn, payload movementPayload, requestID string) error {
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	grid := domain.DefaultGridConfig()
	if cfg, err := s.store.GetGridConfig(ctx); err == nil {
		grid = cfg
	} else if !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "load grid config")
	}
	if payload.TargetRow < 0 || payload.TargetCol < 0 ||
		payload.TargetRow >= grid.Rows || payload.TargetCol >= grid.Cols {
		return errors.New(errors.CodePreconditionFailed, "Target cell is out of bounds")
	}

	from := domain.GridPosition{EntityID: entity.ID, Row: payload.TargetRow, Col: payload.TargetCol}
	if current, err := s.store.GetPosition(ctx, entity.ID); err == nil {
		from = current
	} else if !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "load position")
	}

	distance := domain.ManhattanDistance(from.Row, from.Col, payload.TargetRow, payload.TargetCol)
	apCost := domain.MovementAPCost(distance, domain.SquaresPerAP(payload.PhysicalAttribute))

	enc, err := s.store.GetEncounter(ctx)
	if err != nil && !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "load encounter")
	}
	charge := err == nil && enc.Phase.InCombat() && !payload.Force && !payload.IgnoreAPCost
	if !charge {
		apCost = 0
	}
	if charge && entity.AP.Current < apCost {
		return errors.New(errors.CodeInsufficientAP, "Insufficient AP")
	}

	if !payload.Force {
		occupant, err := s.store.EntityAtCell(ctx, payload.TargetRow, payload.TargetCol)
		if err != nil && !isNotFound(err) {
			return errors.Wrap(err, errors.CodeStorage, "check occupancy")
		}
		if err == nil && occupant != entity.ID {
			return errors.New(errors.CodeCellOccupied, "Target cell is occupied")
		}
	}

	to := domain.GridPosition{EntityID: entity.ID, Row: payload.TargetRow, Col: payload.TargetCol}
	if err := s.store.PutPosition(ctx, to); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save position")
	}
	if apCost > 0 {
		entity.AP.Spend(apCost)
		if err := s.store.PutEntity(ctx, entity); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "save entity")
		}
	}

	s.appendLog(ctx, "movement", map[string]any{
		"entityId": entity.ID,
		"from":     map[string]int{"row": from.Row, "col": from.Col},
		"to":       map[string]int{"row": to.Row, "col": to.Col},
		"apCost":   apCost,
	})
	return s.commit(ctx, requestID,
		s.event(EventMovementExecuted, map[string]any{
			"entityId":    entity.ID,
			"from":        map[string]int{"row": from.Row, "col": from.Col},
			"to":          map[string]int{"row": to.Row, "col": to.Col},
			"path":        payload.Path,
			"distance":    distance,
			"apCost":      apCost,
			"remainingAp": entity.AP.Current,
		}, requestID),
	)
}
