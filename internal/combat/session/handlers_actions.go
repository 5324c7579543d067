package session

import (
	"context"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/errors"
)

// Default action costs when a payload omits them.
const (
	defaultAPCost     = 1
	defaultEnergyCost = 1
)

type declareAttackPayload struct {
	AttackerID string `json:"attackerId"`
	TargetID   string `json:"targetId"`
	BaseDamage int    `json:"baseDamage"`
	DamageType string `json:"damageType"`
	APCost     *int   `json:"apCost"`
	EnergyCost *int   `json:"energyCost"`
}

// handleDeclareAttack resolves the non-contested attack form: debit the
// attacker, run the damage pipeline on the target, and announce the result.
func handleDeclareAttack(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload declareAttackPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	if payload.BaseDamage < 0 {
		return errors.New(errors.CodePreconditionFailed, "Damage cannot be negative")
	}
	attacker, err := s.requireControl(ctx, conn, payload.AttackerID)
	if err != nil {
		return err
	}
	target, err := s.loadEntity(ctx, payload.TargetID)
	if err != nil {
		return err
	}
	attacker.Normalize()
	target.Normalize()

	apCost := costOrDefault(payload.APCost, defaultAPCost)
	energyCost := costOrDefault(payload.EnergyCost, defaultEnergyCost)
	if err := debit(&attacker, apCost, energyCost); err != nil {
		return err
	}
	if err := s.store.PutEntity(ctx, attacker); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save attacker")
	}

	outcome := domain.ApplyDamage(&target, payload.BaseDamage, payload.DamageType, 0)
	if err := s.store.PutEntity(ctx, target); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save target")
	}

	events := []Event{s.event(EventAttackResolved, map[string]any{
		"attackerId":      attacker.ID,
		"targetId":        target.ID,
		"baseDamage":      outcome.BaseDamage,
		"finalDamage":     outcome.FinalDamage,
		"damageType":      outcome.DamageType,
		"modifier":        outcome.Modifier,
		"woundsInflicted": outcome.WoundsInflicted,
		"remainingEnergy": outcome.RemainingEnergy,
	}, msg.RequestID)}
	events = append(events, s.damageFollowups(target, outcome, msg.RequestID)...)

	s.appendLog(ctx, "attack", map[string]any{
		"attackerId":  attacker.ID,
		"targetId":    target.ID,
		"finalDamage": outcome.FinalDamage,
	})
	return s.commit(ctx, msg.RequestID, events...)
}

type declareAbilityPayload struct {
	EntityID    string `json:"entityId"`
	AbilityName string `json:"abilityName"`
	APCost      *int   `json:"apCost"`
	EnergyCost  *int   `json:"energyCost"`
	Effects     any    `json:"effects"`
}

// handleDeclareAbility debits resources and relays the descriptor. Effect
// interpretation is a client concern.
func handleDeclareAbility(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload declareAbilityPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	apCost := costOrDefault(payload.APCost, defaultAPCost)
	energyCost := costOrDefault(payload.EnergyCost, defaultEnergyCost)
	if err := debit(&entity, apCost, energyCost); err != nil {
		return err
	}
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	s.appendLog(ctx, "ability", map[string]any{"entityId": entity.ID, "ability": payload.AbilityName})
	return s.commit(ctx, msg.RequestID,
		s.event(EventAbilityResolved, map[string]any{
			"entityId":    entity.ID,
			"abilityName": payload.AbilityName,
			"apCost":      apCost,
			"energyCost":  energyCost,
			"effects":     payload.Effects,
		}, msg.RequestID),
	)
}

type declareReactionPayload struct {
	EntityID     string `json:"entityId"`
	ReactionName string `json:"reactionName"`
	APCost       *int   `json:"apCost"`
}

// handleDeclareReaction debits AP only. Reactions are not gated to the
// active turn.
func handleDeclareReaction(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload declareReactionPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	entity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	entity.Normalize()

	apCost := costOrDefault(payload.APCost, defaultAPCost)
	if err := debit(&entity, apCost, 0); err != nil {
		return err
	}
	if err := s.store.PutEntity(ctx, entity); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save entity")
	}

	return s.commit(ctx, msg.RequestID,
		s.event(EventReactionResolved, map[string]any{
			"entityId":     entity.ID,
			"reactionName": payload.ReactionName,
			"apCost":       apCost,
		}, msg.RequestID),
	)
}

// debit charges an action's costs, rejecting without mutation when a pool is
// short. Energy is checked first so its rejection wins when both are short.
func debit(entity *domain.Entity, apCost, energyCost int) error {
	if entity.Energy.Current < energyCost {
		return errors.New(errors.CodeInsufficientEnergy, "Insufficient Energy")
	}
	if entity.AP.Current < apCost {
		return errors.New(errors.CodeInsufficientAP, "Insufficient AP")
	}
	entity.Energy.Spend(energyCost)
	entity.AP.Spend(apCost)
	return nil
}

func costOrDefault(cost *int, fallback int) int {
	if cost == nil {
		return fallback
	}
	return max(*cost, 0)
}

// damageFollowups emits the shared post-damage events: wound notices, the
// endure trigger for a conscious entity dropped to zero, and a death-check
// demand when an unconscious entity is hit again.
func (s *Session) damageFollowups(target domain.Entity, outcome domain.DamageOutcome, requestID string) []Event {
	var events []Event
	if outcome.WoundsInflicted > 0 {
		events = append(events, s.event(EventWoundsInflicted, map[string]any{
			"entityId":   target.ID,
			"damageType": outcome.DamageType,
			"count":      outcome.WoundsInflicted,
			"total":      target.Wounds[outcome.DamageType],
		}, requestID))
	}
	switch {
	case outcome.EndureRequired:
		events = append(events, s.event(EventEndureRollRequired, map[string]any{
			"entityId":         target.ID,
			"triggeringDamage": outcome.FinalDamage,
		}, requestID))
	case target.Unconscious && target.Alive && outcome.FinalDamage > 0:
		events = append(events, s.event(EventDeathCheckRequired, map[string]any{
			"entityId":         target.ID,
			"triggeringDamage": outcome.FinalDamage,
		}, requestID))
	}
	return events
}
