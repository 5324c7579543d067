package session

import (
	"context"
	"log"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/errors"
)

type submitInitiativePayload struct {
	EntityID   string `json:"entityId"`
	Roll       int    `json:"roll"`
	SkillValue int    `json:"skillValue"`
}

// handleSubmitInitiativeRoll records one entity's roll. Once every
// registered entity has rolled, the order is sorted and combat begins.
func handleSubmitInitiativeRoll(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload submitInitiativePayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	entry := domain.InitiativeEntry{
		EntityID:      entity.ID,
		Roll:          payload.Roll,
		SkillValue:    payload.SkillValue,
		CurrentEnergy: entity.Energy.Current,
	}
	if existing, err := s.store.GetInitiativeEntry(ctx, entity.ID); err == nil {
		entry.Position = existing.Position
	} else if isNotFound(err) {
		count, err := s.store.CountInitiative(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CodeStorage, "count initiative")
		}
		entry.Position = count
	} else {
		return errors.Wrap(err, errors.CodeStorage, "load initiative entry")
	}
	if err := s.store.UpsertInitiative(ctx, entry); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save initiative entry")
	}

	order, allRolled, err := s.initiativeSnapshot(ctx)
	if err != nil {
		return err
	}
	events := []Event{s.event(EventInitiativeUpdated, map[string]any{
		"order":     order,
		"allRolled": allRolled,
	}, msg.RequestID)}

	if allRolled {
		started, err := s.sortAndStartCombat(ctx, msg.RequestID)
		if err != nil {
			return err
		}
		events = append(events, started...)
	}
	return s.commit(ctx, msg.RequestID, events...)
}

// sortAndStartCombat orders the rolled initiative and opens round one with
// the first entity's turn.
func (s *Session) sortAndStartCombat(ctx context.Context, requestID string) ([]Event, error) {
	entries, err := s.store.ListInitiative(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "list initiative")
	}
	if len(entries) == 0 {
		return nil, errors.New(errors.CodeNoEntities, "No initiative rolls recorded")
	}
	domain.SortInitiative(entries)
	if err := s.store.ReplaceInitiative(ctx, entries); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "replace initiative")
	}

	enc, err := s.loadOrCreateEncounter(ctx)
	if err != nil {
		return nil, err
	}
	enc.Phase = domain.PhaseActiveTurn
	enc.Round = 1
	enc.TurnIndex = 0
	enc.ActiveEntityID = entries[0].EntityID
	if err := s.store.PutEncounter(ctx, enc); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "save encounter")
	}

	s.appendLog(ctx, "combat_active", map[string]any{"first": entries[0].EntityID})
	return []Event{
		s.event(EventInitiativeUpdated, map[string]any{"order": entries, "allRolled": true}, requestID),
		s.event(EventRoundStarted, map[string]any{"round": 1, "initiative": entries}, requestID),
		s.event(EventTurnStarted, map[string]any{
			"entityId":  entries[0].EntityID,
			"turnIndex": 0,
			"round":     1,
		}, requestID),
	}, nil
}

type endTurnPayload struct {
	StaminaPotionBonus int `json:"staminaPotionBonus"`
}

// handleEndTurn converts the active entity's unspent AP to energy, refills
// AP, and advances the turn cursor.
func handleEndTurn(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload endTurnPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	enc, err := s.requireActiveCombat(ctx)
	if err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, enc.ActiveEntityID)
	if err != nil {
		return err
	}

	events, err := s.endActiveTurn(ctx, enc, entity, payload.StaminaPotionBonus, msg.RequestID)
	if err != nil {
		return err
	}
	return s.commit(ctx, msg.RequestID, events...)
}

// endActiveTurn performs the END_TURN mutation and returns its events. The
// turn timer reuses it when an alarm fires.
func (s *Session) endActiveTurn(ctx context.Context, enc domain.Encounter, entity domain.Entity, staminaPotionBonus int, requestID string) ([]Event, error) {
	entity.Normalize()
	energyGain := domain.EndTurn(&entity, staminaPotionBonus)
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	count, err := s.store.CountInitiative(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "count initiative")
	}
	next, rolledOver := domain.AdvanceTurn(enc.TurnIndex, count)
	enc.TurnIndex = next
	if rolledOver {
		enc.Round++
	}

	entries, err := s.store.ListInitiative(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "list initiative")
	}
	if next < len(entries) {
		enc.ActiveEntityID = entries[next].EntityID
	}
	if err := s.store.PutEncounter(ctx, enc); err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "save encounter")
	}

	events := []Event{s.event(EventTurnEnded, map[string]any{
		"entityId":     entity.ID,
		"energyGained": energyGain,
		"energy":       entity.Energy,
		"ap":           entity.AP,
	}, requestID)}
	if rolledOver {
		events = append(events, s.event(EventRoundStarted, map[string]any{
			"round":      enc.Round,
			"initiative": entries,
		}, requestID))
	}
	events = append(events, s.event(EventTurnStarted, map[string]any{
		"entityId":  enc.ActiveEntityID,
		"turnIndex": enc.TurnIndex,
		"round":     enc.Round,
	}, requestID))

	s.appendLog(ctx, "turn_ended", map[string]any{
		"entityId":     entity.ID,
		"energyGained": energyGain,
		"next":         enc.ActiveEntityID,
	})
	return events, nil
}

// fireTurnTimer auto-ends the active turn when the GM's alarm expires.
func (s *Session) fireTurnTimer(ctx context.Context) {
	enc, err := s.requireActiveCombat(ctx)
	if err != nil {
		return
	}
	entity, err := s.loadEntity(ctx, enc.ActiveEntityID)
	if err != nil {
		log.Printf("session %s/%s: turn timer: %v", s.campaignID, s.combatID, err)
		return
	}
	events, err := s.endActiveTurn(ctx, enc, entity, 0, "")
	if err != nil {
		log.Printf("session %s/%s: turn timer: %v", s.campaignID, s.combatID, err)
		return
	}
	if err := s.commit(ctx, "", events...); err != nil {
		log.Printf("session %s/%s: turn timer commit: %v", s.campaignID, s.combatID, err)
	}
}

// handleDelayTurn pushes the active entity to the end of the order and
// promotes the first remaining entity.
func handleDelayTurn(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	enc, err := s.requireActiveCombat(ctx)
	if err != nil {
		return err
	}
	if _, err := s.requireControl(ctx, conn, enc.ActiveEntityID); err != nil {
		return err
	}

	entries, err := s.store.ListInitiative(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "list initiative")
	}
	delayed := enc.ActiveEntityID
	reordered := make([]domain.InitiativeEntry, 0, len(entries))
	var moved *domain.InitiativeEntry
	for _, entry := range entries {
		if entry.EntityID == delayed {
			moved = &entry
			continue
		}
		reordered = append(reordered, entry)
	}
	if moved == nil {
		return errors.Newf(errors.CodeEntityNotFound, "Entity %s not found in initiative", delayed)
	}
	reordered = append(reordered, *moved)
	for i := range reordered {
		reordered[i].Position = i
	}
	if err := s.store.ReplaceInitiative(ctx, reordered); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "replace initiative")
	}

	enc.TurnIndex = 0
	enc.ActiveEntityID = reordered[0].EntityID
	if err := s.store.PutEncounter(ctx, enc); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save encounter")
	}

	s.appendLog(ctx, "turn_delayed", map[string]any{"entityId": delayed})
	return s.commit(ctx, msg.RequestID,
		s.event(EventTurnEnded, map[string]any{"entityId": delayed, "delayed": true}, msg.RequestID),
		s.event(EventTurnStarted, map[string]any{
			"entityId":  enc.ActiveEntityID,
			"turnIndex": enc.TurnIndex,
			"round":     enc.Round,
		}, msg.RequestID),
	)
}

type readyActionPayload struct {
	EntityID   string `json:"entityId"`
	Trigger    string `json:"trigger"`
	ActionType string `json:"actionType"`
}

// handleReadyAction stores a triggered action with no resource cost.
func handleReadyAction(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload readyActionPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}

	actionID, err := s.newID()
	if err != nil {
		return errors.Wrap(err, errors.CodeUnknown, "allocate action id")
	}
	action := domain.PendingAction{
		ID:         actionID,
		EntityID:   entity.ID,
		Trigger:    payload.Trigger,
		ActionType: payload.ActionType,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.PutPendingAction(ctx, action); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save pending action")
	}

	return s.commit(ctx, msg.RequestID,
		s.event(EventEntityUpdated, map[string]any{
			"entityId": entity.ID,
			"readiedAction": map[string]any{
				"trigger":    payload.Trigger,
				"actionType": payload.ActionType,
			},
		}, msg.RequestID),
	)
}

// requireActiveCombat loads the encounter and verifies combat is running.
func (s *Session) requireActiveCombat(ctx context.Context) (domain.Encounter, error) {
	enc, err := s.store.GetEncounter(ctx)
	if err != nil {
		if isNotFound(err) {
			return domain.Encounter{}, errors.New(errors.CodeNoActiveCombat, "No active combat")
		}
		return domain.Encounter{}, errors.Wrap(err, errors.CodeStorage, "load encounter")
	}
	if !enc.Phase.InCombat() {
		return domain.Encounter{}, errors.New(errors.CodeNoActiveCombat, "No active combat")
	}
	return enc, nil
}
