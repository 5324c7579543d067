package session

import (
	"context"

	"github.com/louisbranch/skirmish/internal/errors"
)

type rollCheckPayload struct {
	EntityID  string `json:"entityId"`
	RollTotal int    `json:"rollTotal"`
	Success   bool   `json:"success"`
}

// handleSubmitEndureRoll records the endure roll demanded when an entity
// drops to zero energy. Failure knocks the entity unconscious and
// interrupts any spell it was channeling.
func handleSubmitEndureRoll(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload rollCheckPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	if payload.Success {
		s.broadcast(s.event(EventEntityUpdated, map[string]any{
			"entityId":     entity.ID,
			"endureResult": "success",
			"rollTotal":    payload.RollTotal,
		}, msg.RequestID))
		return nil
	}

	entity.Unconscious = true
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	events := []Event{s.event(EventEntityUnconscious, map[string]any{
		"entityId":  entity.ID,
		"rollTotal": payload.RollTotal,
	}, msg.RequestID)}
	events = append(events, s.interruptChanneling(ctx, entity.ID, msg.RequestID)...)

	s.appendLog(ctx, "endure_failed", map[string]any{"entityId": entity.ID})
	return s.commit(ctx, msg.RequestID, events...)
}

// handleSubmitDeathCheck records an unconscious entity's death check. A
// failure is terminal: the entity leaves initiative and its character row
// is synced as dead.
func handleSubmitDeathCheck(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload rollCheckPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	if payload.Success {
		s.broadcast(s.event(EventEntityUpdated, map[string]any{
			"entityId":         entity.ID,
			"deathCheckResult": "success",
			"rollTotal":        payload.RollTotal,
		}, msg.RequestID))
		return nil
	}

	entity.Alive = false
	entity.Unconscious = false
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	events := s.interruptChanneling(ctx, entity.ID, msg.RequestID)
	if err := s.removeFromInitiative(ctx, entity.ID); err != nil {
		return err
	}

	if entity.CharacterID != "" {
		dead := false
		deathTime := s.now().UTC()
		s.syncCharacterSnapshot(ctx, entity, &dead, &deathTime)
	}

	events = append(events, s.event(EventEntityDied, map[string]any{
		"entityId":  entity.ID,
		"rollTotal": payload.RollTotal,
	}, msg.RequestID))

	s.appendLog(ctx, "entity_died", map[string]any{"entityId": entity.ID})
	return s.commit(ctx, msg.RequestID, events...)
}
