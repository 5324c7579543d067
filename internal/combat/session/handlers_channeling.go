package session

import (
	"context"
	"log"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/errors"
)

type startChannelingPayload struct {
	EntityID      string `json:"entityId"`
	SpellName     string `json:"spellName"`
	TotalCost     int    `json:"totalCost"`
	DamageType    string `json:"damageType"`
	Intensity     int    `json:"intensity"`
	InitialEnergy int    `json:"initialEnergy"`
	InitialAP     int    `json:"initialAP"`
}

// handleStartChanneling opens a multi-turn spell charge, debiting the first
// turn's contribution up front.
func handleStartChanneling(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload startChannelingPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	if _, err := s.store.GetChanneling(ctx, entity.ID); err == nil {
		return errors.New(errors.CodeAlreadyChanneling, "Already channeling a spell")
	} else if !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "load channeling")
	}
	if payload.TotalCost < 1 || payload.Intensity < 1 {
		return errors.New(errors.CodePreconditionFailed, "Spell cost and intensity must be positive")
	}
	if payload.InitialEnergy < 0 || payload.InitialAP < 0 {
		return errors.New(errors.CodePreconditionFailed, "Channeling contributions cannot be negative")
	}
	if err := debit(&entity, payload.InitialAP, payload.InitialEnergy); err != nil {
		return err
	}
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	ch := domain.Channeling{
		EntityID:        entity.ID,
		SpellName:       payload.SpellName,
		DamageType:      payload.DamageType,
		Intensity:       payload.Intensity,
		TotalCost:       payload.TotalCost,
		EnergyChanneled: payload.InitialEnergy,
		APChanneled:     payload.InitialAP,
		TurnsChanneled:  1,
		StartedAt:       s.now().UTC(),
	}
	if err := s.store.PutChanneling(ctx, ch); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save channeling")
	}

	s.appendLog(ctx, "channeling_started", map[string]any{"entityId": entity.ID, "spell": ch.SpellName})
	return s.commit(ctx, msg.RequestID,
		s.event(EventChannelingStarted, map[string]any{
			"entityId":        entity.ID,
			"spellName":       ch.SpellName,
			"totalCost":       ch.TotalCost,
			"energyChanneled": ch.EnergyChanneled,
			"apChanneled":     ch.APChanneled,
			"progress":        ch.Progress(),
		}, msg.RequestID),
	)
}

type continueChannelingPayload struct {
	EntityID         string `json:"entityId"`
	AdditionalEnergy int    `json:"additionalEnergy"`
	AdditionalAP     int    `json:"additionalAP"`
}

// handleContinueChanneling feeds more energy and AP into an open charge.
func handleContinueChanneling(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload continueChannelingPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	if payload.AdditionalEnergy < 0 || payload.AdditionalAP < 0 {
		return errors.New(errors.CodePreconditionFailed, "Channeling contributions cannot be negative")
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	ch, err := s.loadChanneling(ctx, entity.ID)
	if err != nil {
		return err
	}
	if err := debit(&entity, payload.AdditionalAP, payload.AdditionalEnergy); err != nil {
		return err
	}
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	ch.EnergyChanneled += payload.AdditionalEnergy
	ch.APChanneled += payload.AdditionalAP
	ch.TurnsChanneled++
	if err := s.store.PutChanneling(ctx, ch); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save channeling")
	}

	return s.commit(ctx, msg.RequestID,
		s.event(EventChannelingContinued, map[string]any{
			"entityId":        entity.ID,
			"spellName":       ch.SpellName,
			"energyChanneled": ch.EnergyChanneled,
			"apChanneled":     ch.APChanneled,
			"turnsChanneled":  ch.TurnsChanneled,
			"progress":        ch.Progress(),
			"isReady":         ch.IsReady(),
		}, msg.RequestID),
	)
}

type releaseSpellPayload struct {
	EntityID string `json:"entityId"`
	TargetID string `json:"targetId"`
}

// handleReleaseSpell fires a fully charged spell. Damage scales with the
// channeled energy and spell intensity; targets run the usual modifier
// pipeline.
func handleReleaseSpell(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload releaseSpellPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}

	ch, err := s.loadChanneling(ctx, entity.ID)
	if err != nil {
		return err
	}
	if !ch.IsReady() {
		return errors.New(errors.CodeSpellNotCharged, "Spell not fully charged")
	}

	spellDamage := ch.ReleaseDamage()
	released := map[string]any{
		"entityId":        entity.ID,
		"spellName":       ch.SpellName,
		"spellDamage":     spellDamage,
		"damageType":      ch.DamageType,
		"intensity":       ch.Intensity,
		"energyChanneled": ch.EnergyChanneled,
		"turnsChanneled":  ch.TurnsChanneled,
	}
	var followups []Event
	if payload.TargetID != "" {
		target, err := s.loadEntity(ctx, payload.TargetID)
		if err != nil {
			return err
		}
		target.Normalize()
		outcome := domain.ApplyDamage(&target, spellDamage, ch.DamageType, 0)
		if err := s.store.PutEntity(ctx, target); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "save target")
		}
		released["targetId"] = target.ID
		released["finalDamage"] = outcome.FinalDamage
		released["modifier"] = outcome.Modifier
		released["woundsInflicted"] = outcome.WoundsInflicted
		released["remainingEnergy"] = outcome.RemainingEnergy
		followups = s.damageFollowups(target, outcome, msg.RequestID)
	}

	if err := s.store.DeleteChanneling(ctx, entity.ID); err != nil && !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "delete channeling")
	}

	s.appendLog(ctx, "spell_released", map[string]any{
		"entityId": entity.ID,
		"spell":    ch.SpellName,
		"damage":   spellDamage,
	})
	events := append([]Event{s.event(EventChannelingReleased, released, msg.RequestID)}, followups...)
	return s.commit(ctx, msg.RequestID, events...)
}

type abortChannelingPayload struct {
	EntityID string `json:"entityId"`
}

// handleAbortChanneling cancels a charge voluntarily. The channeled
// resources are forfeited but there is no blowback.
func handleAbortChanneling(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload abortChannelingPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}

	ch, err := s.loadChanneling(ctx, entity.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChanneling(ctx, entity.ID); err != nil && !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "delete channeling")
	}

	return s.commit(ctx, msg.RequestID,
		s.event(EventChannelingInterrupted, map[string]any{
			"entityId":        entity.ID,
			"spellName":       ch.SpellName,
			"voluntary":       true,
			"energyForfeited": ch.EnergyChanneled,
			"apForfeited":     ch.APChanneled,
		}, msg.RequestID),
	)
}

// interruptChanneling force-cancels an entity's charge after it falls
// unconscious or dies. Half of the channeled energy discharges back into
// the channeler as blowback.
func (s *Session) interruptChanneling(ctx context.Context, entityID, requestID string) []Event {
	ch, err := s.store.GetChanneling(ctx, entityID)
	if err != nil {
		if !isNotFound(err) {
			log.Printf("session %s/%s: interrupt channeling: %v", s.campaignID, s.combatID, err)
		}
		return nil
	}
	if err := s.store.DeleteChanneling(ctx, entityID); err != nil && !isNotFound(err) {
		log.Printf("session %s/%s: interrupt channeling: %v", s.campaignID, s.combatID, err)
		return nil
	}

	events := []Event{s.event(EventChannelingInterrupted, map[string]any{
		"entityId":        entityID,
		"spellName":       ch.SpellName,
		"voluntary":       false,
		"energyForfeited": ch.EnergyChanneled,
		"apForfeited":     ch.APChanneled,
	}, requestID)}

	blowback := ch.EnergyChanneled / 2
	if blowback > 0 {
		if entity, err := s.store.GetEntity(ctx, entityID); err == nil {
			entity.Normalize()
			entity.Energy.Drain(blowback)
			if err := s.store.PutEntity(ctx, entity); err != nil {
				log.Printf("session %s/%s: apply blowback: %v", s.campaignID, s.combatID, err)
			} else {
				events = append(events, s.event(EventBlowbackApplied, map[string]any{
					"entityId":        entityID,
					"damage":          blowback,
					"remainingEnergy": entity.Energy.Current,
				}, requestID))
			}
		}
	}
	return events
}

func (s *Session) loadChanneling(ctx context.Context, entityID string) (domain.Channeling, error) {
	ch, err := s.store.GetChanneling(ctx, entityID)
	if err != nil {
		if isNotFound(err) {
			return domain.Channeling{}, errors.New(errors.CodeNotChanneling, "Not channeling a spell")
		}
		return domain.Channeling{}, errors.Wrap(err, errors.CodeStorage, "load channeling")
	}
	return ch, nil
}
