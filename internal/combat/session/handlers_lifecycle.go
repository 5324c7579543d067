package session

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/louisbranch/skirmish/internal/combat/dataapi"
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/errors"
)

type startCombatPayload struct {
	Entities []domain.Entity `json:"entities"`
}

// handleStartCombat moves the encounter into the initiative phase. A
// supplied entity list resets and reseeds all encounter state; without one
// the registered entities are preserved.
func handleStartCombat(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload startCombatPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}

	if len(payload.Entities) > 0 {
		if err := s.store.ClearEncounter(ctx); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "reset encounter")
		}
		for i := range payload.Entities {
			entity := payload.Entities[i]
			entity.Normalize()
			entity.Alive = true
			if err := entity.Validate(); err != nil {
				return errors.Wrap(err, errors.CodePreconditionFailed, "invalid entity")
			}
			if err := s.store.PutEntity(ctx, entity); err != nil {
				return errors.Wrap(err, errors.CodeStorage, "seed entity")
			}
		}
	}

	count, err := s.store.CountEntities(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "count entities")
	}
	if count == 0 {
		return errors.New(errors.CodeNoEntities, "No entities registered for combat")
	}

	enc, err := s.loadOrCreateEncounter(ctx)
	if err != nil {
		return err
	}
	enc.Phase = domain.PhaseInitiative
	enc.Round = 0
	enc.TurnIndex = -1
	enc.ActiveEntityID = ""
	if err := s.store.PutEncounter(ctx, enc); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save encounter")
	}

	entities, err := s.store.ListEntities(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "list entities")
	}
	events := []Event{s.event(EventCombatStarted, map[string]any{
		"campaignId": s.campaignID,
		"combatId":   s.combatID,
		"phase":      domain.PhaseInitiative,
		"round":      0,
		"entities":   entities,
	}, msg.RequestID)}

	rolled, err := s.store.CountInitiative(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "count initiative")
	}
	if rolled == count {
		started, err := s.sortAndStartCombat(ctx, msg.RequestID)
		if err != nil {
			return err
		}
		events = append(events, started...)
	}

	s.appendLog(ctx, "combat_started", map[string]any{"entities": count})
	return s.commit(ctx, msg.RequestID, events...)
}

// handleEndCombat snapshots character-backed entities to the external store,
// announces the result, and clears all encounter state.
func handleEndCombat(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	enc, err := s.store.GetEncounter(ctx)
	if err != nil && !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "load encounter")
	}
	entities, err := s.store.ListEntities(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "list entities")
	}

	for _, entity := range entities {
		if entity.CharacterID == "" {
			continue
		}
		s.syncCharacterSnapshot(ctx, entity, nil, nil)
	}

	ended := s.event(EventCombatEnded, map[string]any{
		"campaignId": s.campaignID,
		"combatId":   s.combatID,
		"round":      enc.Round,
		"entities":   entities,
	}, msg.RequestID)

	if err := s.store.ClearEncounter(ctx); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "clear encounter")
	}
	s.scheduleTurnTimer(0)
	s.appendLog(ctx, "combat_ended", map[string]any{"round": enc.Round})
	return s.commit(ctx, msg.RequestID, ended)
}

// syncCharacterSnapshot writes an entity's durable state to the external
// data API. Failures are warnings; combat progression never blocks on them.
func (s *Session) syncCharacterSnapshot(ctx context.Context, entity domain.Entity, isAlive *bool, deathTime *time.Time) {
	if !s.data.Enabled() {
		return
	}
	entity.Normalize()
	snapshot := dataapi.CharacterSnapshot{
		ID:            entity.CharacterID,
		Wounds:        entity.Wounds,
		EnergyCurrent: entity.Energy.Current,
		IsAlive:       isAlive,
		DeathTime:     deathTime,
	}
	if err := s.data.UpsertCharacterSnapshot(ctx, snapshot); err != nil {
		log.Printf("session %s/%s: sync character %s: %v",
			s.campaignID, s.combatID, entity.CharacterID, err)
	}
}

type gmAddEntityPayload struct {
	Entity               domain.Entity `json:"entity"`
	InitiativeRoll       int           `json:"initiativeRoll"`
	InitiativeTiebreaker int           `json:"initiativeTiebreaker"`
	InitiativeTiming     string        `json:"initiativeTiming"`
}

// handleGMAddEntity inserts or replaces an entity mid-encounter. Controller
// resolution consults the external membership API for character-backed
// entities; lookup failures fall back to GM control.
func handleGMAddEntity(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload gmAddEntityPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}

	entity := payload.Entity
	if entity.ID == "" {
		generated, err := s.newID()
		if err != nil {
			return errors.Wrap(err, errors.CodeUnknown, "allocate entity id")
		}
		entity.ID = generated
	}
	if entity.Controller == "" && entity.CharacterID != "" && s.data.Enabled() {
		playerID, err := s.data.LookupMembership(ctx, s.campaignID, entity.CharacterID)
		if err != nil {
			log.Printf("session %s/%s: membership lookup for %s: %v",
				s.campaignID, s.combatID, entity.CharacterID, err)
		} else {
			entity.Controller = domain.PlayerController(playerID)
		}
	}
	entity.Normalize()
	entity.Alive = true
	if err := entity.Validate(); err != nil {
		return errors.Wrap(err, errors.CodePreconditionFailed, "invalid entity")
	}

	enc, err := s.loadOrCreateEncounter(ctx)
	if err != nil {
		return err
	}
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	entry := domain.InitiativeEntry{
		EntityID:      entity.ID,
		Roll:          payload.InitiativeRoll,
		SkillValue:    payload.InitiativeTiebreaker,
		CurrentEnergy: entity.Energy.Current,
	}
	if err := s.insertInitiative(ctx, enc, entry, payload.InitiativeTiming); err != nil {
		return err
	}

	order, allRolled, err := s.initiativeSnapshot(ctx)
	if err != nil {
		return err
	}
	s.appendLog(ctx, "entity_added", map[string]any{"entityId": entity.ID})
	return s.commit(ctx, msg.RequestID,
		s.event(EventEntityUpdated, map[string]any{"entity": entity}, msg.RequestID),
		s.event(EventInitiativeUpdated, map[string]any{"order": order, "allRolled": allRolled}, msg.RequestID),
	)
}

// insertInitiative places a new entry into the order. During active combat
// an "immediate" timing slots the entity right after the current turn;
// anything else appends at the end.
func (s *Session) insertInitiative(ctx context.Context, enc domain.Encounter, entry domain.InitiativeEntry, timing string) error {
	entries, err := s.store.ListInitiative(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "list initiative")
	}
	kept := entries[:0]
	for _, existing := range entries {
		if existing.EntityID != entry.EntityID {
			kept = append(kept, existing)
		}
	}

	if enc.Phase.InCombat() && timing == "immediate" {
		insertAt := min(enc.TurnIndex+1, len(kept))
		kept = append(kept[:insertAt], append([]domain.InitiativeEntry{entry}, kept[insertAt:]...)...)
	} else {
		kept = append(kept, entry)
	}
	for i := range kept {
		kept[i].Position = i
	}
	if err := s.store.ReplaceInitiative(ctx, kept); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "replace initiative")
	}
	return nil
}

type gmRemoveEntityPayload struct {
	EntityID string `json:"entityId"`
}

// handleGMRemoveEntity deletes an entity and compacts the initiative order
// around it.
func handleGMRemoveEntity(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload gmRemoveEntityPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	if _, err := s.loadEntity(ctx, payload.EntityID); err != nil {
		return err
	}

	if err := s.store.DeleteEntity(ctx, payload.EntityID); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "delete entity")
	}
	if err := s.store.DeletePosition(ctx, payload.EntityID); err != nil && !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "delete position")
	}
	if err := s.store.DeleteChanneling(ctx, payload.EntityID); err != nil && !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "delete channeling")
	}
	if err := s.store.DeletePendingActionsForEntity(ctx, payload.EntityID); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "delete pending actions")
	}
	if err := s.removeFromInitiative(ctx, payload.EntityID); err != nil {
		return err
	}

	order, allRolled, err := s.initiativeSnapshot(ctx)
	if err != nil {
		return err
	}
	s.appendLog(ctx, "entity_removed", map[string]any{"entityId": payload.EntityID})
	return s.commit(ctx, msg.RequestID,
		s.event(EventEntityUpdated, map[string]any{"entityId": payload.EntityID, "removed": true}, msg.RequestID),
		s.event(EventInitiativeUpdated, map[string]any{"order": order, "allRolled": allRolled}, msg.RequestID),
	)
}

// removeFromInitiative drops an entity's entry, compacts positions, and
// repoints the turn cursor when the removal shifted it.
func (s *Session) removeFromInitiative(ctx context.Context, entityID string) error {
	entries, err := s.store.ListInitiative(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "list initiative")
	}
	removedPos := -1
	kept := entries[:0]
	for _, entry := range entries {
		if entry.EntityID == entityID {
			removedPos = entry.Position
			continue
		}
		kept = append(kept, entry)
	}
	if removedPos < 0 {
		return nil
	}
	for i := range kept {
		kept[i].Position = i
	}
	if err := s.store.ReplaceInitiative(ctx, kept); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "replace initiative")
	}

	enc, err := s.store.GetEncounter(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return errors.Wrap(err, errors.CodeStorage, "load encounter")
	}
	if !enc.Phase.InCombat() {
		return nil
	}
	if len(kept) == 0 {
		enc.TurnIndex = -1
		enc.ActiveEntityID = ""
	} else {
		switch {
		case enc.TurnIndex > removedPos:
			enc.TurnIndex--
		case enc.TurnIndex >= len(kept):
			enc.TurnIndex = 0
		}
		enc.ActiveEntityID = kept[enc.TurnIndex].EntityID
	}
	if err := s.store.PutEncounter(ctx, enc); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save encounter")
	}
	return nil
}

type gmApplyDamagePayload struct {
	EntityID string `json:"entityId"`
	Damage   int    `json:"damage"`
}

// handleGMApplyDamage adjusts raw energy: positive damage drains, negative
// heals. The modifier pipeline is deliberately bypassed.
func handleGMApplyDamage(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload gmApplyDamagePayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.loadEntity(ctx, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	eventType := EventDamageApplied
	if payload.Damage >= 0 {
		entity.Energy.Drain(payload.Damage)
	} else {
		entity.Energy.Gain(-payload.Damage)
		eventType = EventHealingApplied
	}
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	s.appendLog(ctx, "gm_damage", map[string]any{"entityId": entity.ID, "damage": payload.Damage})
	return s.commit(ctx, msg.RequestID,
		s.event(eventType, map[string]any{
			"entityId": entity.ID,
			"amount":   payload.Damage,
			"energy":   entity.Energy,
		}, msg.RequestID),
		s.event(EventEntityUpdated, map[string]any{
			"entityId": entity.ID,
			"energy":   entity.Energy,
			"wounds":   entity.Wounds,
		}, msg.RequestID),
	)
}

type gmModifyResourcesPayload struct {
	EntityID string `json:"entityId"`
	AP       int    `json:"ap"`
	Energy   int    `json:"energy"`
}

// handleGMModifyResources applies deltas to both current and max of the
// named pools. Current floors at zero, max at one.
func handleGMModifyResources(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload gmModifyResourcesPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.loadEntity(ctx, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	applyResourceDelta(&entity.AP, payload.AP)
	applyResourceDelta(&entity.Energy, payload.Energy)
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	return s.commit(ctx, msg.RequestID,
		s.event(EventEntityUpdated, map[string]any{
			"entityId": entity.ID,
			"ap":       entity.AP,
			"energy":   entity.Energy,
		}, msg.RequestID),
	)
}

func applyResourceDelta(r *domain.Resource, delta int) {
	if delta == 0 {
		return
	}
	r.Current = max(r.Current+delta, 0)
	r.Max = max(r.Max+delta, 1)
}

type gmOverridePayload struct {
	OverrideType string          `json:"overrideType"`
	Phase        string          `json:"phase"`
	Seconds      int             `json:"seconds"`
	EntityID     string          `json:"entityId"`
	Updates      json.RawMessage `json:"updates"`
}

// handleGMOverride is the escape hatch: direct phase set, turn timer
// control, or a raw field merge into an entity.
func handleGMOverride(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload gmOverridePayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}

	switch payload.OverrideType {
	case "set_phase":
		if !domain.ValidPhase(payload.Phase) {
			return errors.Newf(errors.CodeInvalidPhase, "Unknown phase %q", payload.Phase)
		}
		enc, err := s.loadOrCreateEncounter(ctx)
		if err != nil {
			return err
		}
		enc.Phase = domain.Phase(payload.Phase)
		if err := s.store.PutEncounter(ctx, enc); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "save encounter")
		}
		return s.commit(ctx, msg.RequestID,
			s.event(EventGMOverrideApplied, map[string]any{
				"overrideType": payload.OverrideType,
				"phase":        enc.Phase.ClientPhase(),
			}, msg.RequestID),
		)

	case "set_turn_timer":
		s.scheduleTurnTimer(time.Duration(payload.Seconds) * time.Second)
		s.broadcast(s.event(EventGMOverrideApplied, map[string]any{
			"overrideType": payload.OverrideType,
			"seconds":      payload.Seconds,
		}, msg.RequestID))
		return nil

	default:
		if payload.EntityID == "" || len(payload.Updates) == 0 {
			return errors.New(errors.CodeMalformedMessage, "override requires entityId and updates")
		}
		entity, err := s.loadEntity(ctx, payload.EntityID)
		if err != nil {
			return err
		}
		merged, err := mergeEntityUpdates(entity, payload.Updates)
		if err != nil {
			return err
		}
		merged.Normalize()
		if err := s.store.PutEntity(ctx, merged); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "save entity")
		}
		return s.commit(ctx, msg.RequestID,
			s.event(EventGMOverrideApplied, map[string]any{
				"overrideType": "entity_update",
				"entityId":     merged.ID,
			}, msg.RequestID),
			s.event(EventEntityUpdated, map[string]any{"entity": merged}, msg.RequestID),
		)
	}
}

// mergeEntityUpdates overlays a raw JSON patch on an entity. The id field is
// immutable.
func mergeEntityUpdates(entity domain.Entity, updates json.RawMessage) (domain.Entity, error) {
	base, err := json.Marshal(entity)
	if err != nil {
		return domain.Entity{}, errors.Wrap(err, errors.CodeUnknown, "encode entity")
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(base, &asMap); err != nil {
		return domain.Entity{}, errors.Wrap(err, errors.CodeUnknown, "decode entity")
	}
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(updates, &patch); err != nil {
		return domain.Entity{}, errors.Wrap(err, errors.CodeMalformedMessage, "malformed updates")
	}
	for key, value := range patch {
		if key == "id" {
			continue
		}
		asMap[key] = value
	}
	combined, err := json.Marshal(asMap)
	if err != nil {
		return domain.Entity{}, errors.Wrap(err, errors.CodeUnknown, "encode merged entity")
	}
	var merged domain.Entity
	if err := json.Unmarshal(combined, &merged); err != nil {
		return domain.Entity{}, errors.Wrap(err, errors.CodeMalformedMessage, "malformed updates")
	}
	return merged, nil
}

// loadOrCreateEncounter returns the combat row, creating the setup-phase row
// on first touch.
func (s *Session) loadOrCreateEncounter(ctx context.Context) (domain.Encounter, error) {
	enc, err := s.store.GetEncounter(ctx)
	if err == nil {
		return enc, nil
	}
	if !isNotFound(err) {
		return domain.Encounter{}, errors.Wrap(err, errors.CodeStorage, "load encounter")
	}
	enc = domain.Encounter{
		CombatID:   s.combatID,
		CampaignID: s.campaignID,
		Phase:      domain.PhaseSetup,
		TurnIndex:  -1,
		StartedAt:  s.now().UTC(),
	}
	if err := s.store.PutEncounter(ctx, enc); err != nil {
		return domain.Encounter{}, errors.Wrap(err, errors.CodeStorage, "create encounter")
	}
	return enc, nil
}

// initiativeSnapshot returns the current order and whether every registered
// entity has an entry.
func (s *Session) initiativeSnapshot(ctx context.Context) ([]domain.InitiativeEntry, bool, error) {
	order, err := s.store.ListInitiative(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CodeStorage, "list initiative")
	}
	entityCount, err := s.store.CountEntities(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CodeStorage, "count entities")
	}
	if order == nil {
		order = []domain.InitiativeEntry{}
	}
	return order, entityCount > 0 && len(order) == entityCount, nil
}
