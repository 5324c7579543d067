package session

import (
	"context"

	"github.com/louisbranch/skirmish/internal/combat/dice"
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/errors"
)

type initiateContestPayload struct {
	InitiatorEntityID string `json:"initiatorEntityId"`
	TargetEntityID    string `json:"targetEntityId"`
	TargetPlayerID    string `json:"targetPlayerId"`
	Skill             string `json:"skill"`
	SkillModifier     int    `json:"skillModifier"`
	DiceCount         int    `json:"diceCount"`
	KeepHighest       bool   `json:"keepHighest"`
	RawRolls          []int  `json:"rawRolls"`
	SelectedRoll      int    `json:"selectedRoll"`

	// Attack-contest fields.
	BaseDamage        int  `json:"baseDamage"`
	DamageType        string `json:"damageType"`
	PhysicalAttribute int  `json:"physicalAttribute"`
	APCost            *int `json:"apCost"`
	EnergyCost        *int `json:"energyCost"`
}

func handleInitiateSkillContest(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	return initiateContest(ctx, s, conn, msg, domain.ContestTypeSkill)
}

func handleInitiateAttackContest(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	return initiateContest(ctx, s, conn, msg, domain.ContestTypeAttack)
}

// initiateContest opens the first phase of a contested roll. Attack contests
// debit their costs from the initiator immediately; misses do not refund.
func initiateContest(ctx context.Context, s *Session, conn *Conn, msg Inbound, contestType string) error {
	var payload initiateContestPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}
	initiator, err := s.requireControl(ctx, conn, payload.InitiatorEntityID)
	if err != nil {
		return err
	}
	initiator.Normalize()

	contest := domain.Contest{
		ContestType: contestType,
		Status:      domain.ContestAwaitingResponse,
		CreatedAt:   s.now().UTC(),
	}
	if contestType == domain.ContestTypeAttack {
		if payload.BaseDamage < 0 {
			return errors.New(errors.CodePreconditionFailed, "Damage cannot be negative")
		}
		contest.BaseDamage = payload.BaseDamage
		contest.DamageType = payload.DamageType
		contest.PhysicalAttribute = payload.PhysicalAttribute
		contest.APCost = costOrDefault(payload.APCost, defaultAPCost)
		contest.EnergyCost = costOrDefault(payload.EnergyCost, defaultEnergyCost)
		if err := debit(&initiator, contest.APCost, contest.EnergyCost); err != nil {
			return err
		}
		if err := s.store.PutEntity(ctx, initiator); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "save initiator")
		}
	}

	side, err := s.rollContestSide(payload.InitiatorEntityID, conn.Meta.PlayerID, contestSideInput{
		skill:         payload.Skill,
		skillModifier: payload.SkillModifier,
		diceCount:     payload.DiceCount,
		keepHighest:   payload.KeepHighest,
		rawRolls:      payload.RawRolls,
		selectedRoll:  payload.SelectedRoll,
	})
	if err != nil {
		return err
	}
	contest.Initiator = side

	contestID, err := s.newID()
	if err != nil {
		return errors.Wrap(err, errors.CodeUnknown, "allocate contest id")
	}
	contest.ID = contestID
	if err := s.store.PutContest(ctx, contest); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save contest")
	}

	initiatedType := EventSkillContestInitiated
	if contestType == domain.ContestTypeAttack {
		initiatedType = EventAttackContestInitiated
	}
	initiated := s.event(initiatedType, map[string]any{"contest": contest}, msg.RequestID)
	return s.commitWith(ctx, msg.RequestID, func() {
		s.requestContestResponse(ctx, contest, payload.TargetEntityID, payload.TargetPlayerID, msg.RequestID)
	}, initiated)
}

// requestContestResponse routes the scoped response demand: to the target
// entity's controlling player, or to the GMs for GM-controlled targets.
func (s *Session) requestContestResponse(ctx context.Context, contest domain.Contest, targetEntityID, targetPlayerID, requestID string) {
	if targetEntityID == "" && targetPlayerID == "" {
		return
	}
	request := s.event(EventSkillContestResponseRequested, map[string]any{
		"contestId":      contest.ID,
		"contestType":    contest.ContestType,
		"targetEntityId": targetEntityID,
		"initiator":      contest.Initiator,
	}, requestID)

	if targetPlayerID != "" {
		if !s.sendToPlayer(targetPlayerID, request) {
			s.sendToGMs(request)
		}
		return
	}
	target, err := s.loadEntity(ctx, targetEntityID)
	if err != nil {
		s.sendToGMs(request)
		return
	}
	if playerID, ok := domain.ControllerPlayerID(target.Controller); ok {
		if s.sendToPlayer(playerID, request) {
			return
		}
	}
	s.sendToGMs(request)
}

type respondContestPayload struct {
	ContestID     string `json:"contestId"`
	EntityID      string `json:"entityId"`
	Skill         string `json:"skill"`
	SkillModifier int    `json:"skillModifier"`
	DiceCount     int    `json:"diceCount"`
	KeepHighest   bool   `json:"keepHighest"`
	RawRolls      []int  `json:"rawRolls"`
	SelectedRoll  int    `json:"selectedRoll"`
}

// handleRespondSkillContest resolves the second phase of a contest. A won
// attack contest applies critical-scaled damage to the defender.
func handleRespondSkillContest(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	var payload respondContestPayload
	if err := parsePayload(msg, &payload); err != nil {
		return err
	}

	contest, err := s.store.GetContest(ctx, payload.ContestID)
	if err != nil {
		if isNotFound(err) {
			return errors.Newf(errors.CodeContestNotFound, "Contest %s not found", payload.ContestID)
		}
		return errors.Wrap(err, errors.CodeStorage, "load contest")
	}
	if contest.Status != domain.ContestAwaitingResponse {
		return errors.New(errors.CodeContestResolved, "Contest already resolved")
	}
	defenderEntity, err := s.requireControl(ctx, conn, payload.EntityID)
	if err != nil {
		return err
	}
	defenderEntity.Normalize()

	side, err := s.rollContestSide(payload.EntityID, conn.Meta.PlayerID, contestSideInput{
		skill:         payload.Skill,
		skillModifier: payload.SkillModifier,
		diceCount:     payload.DiceCount,
		keepHighest:   payload.KeepHighest,
		rawRolls:      payload.RawRolls,
		selectedRoll:  payload.SelectedRoll,
	})
	if err != nil {
		return err
	}
	contest.Resolve(side)
	if err := s.store.PutContest(ctx, contest); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save contest")
	}

	if contest.ContestType != domain.ContestTypeAttack {
		s.appendLog(ctx, "skill_contest", map[string]any{
			"contestId": contest.ID,
			"winner":    contest.WinnerEntityID,
		})
		return s.commit(ctx, msg.RequestID,
			s.event(EventSkillContestResolved, map[string]any{
				"contest": contest,
				"winner":  contest.WinnerEntityID,
				"margin":  contest.Margin,
			}, msg.RequestID),
		)
	}

	resolution := map[string]any{
		"contest":      contest,
		"winner":       contest.WinnerEntityID,
		"margin":       contest.Margin,
		"criticalType": domain.CriticalNormal,
		"hit":          false,
	}
	var followups []Event
	if contest.InitiatorWon() {
		tier, marginPercent := domain.EvaluateCritical(contest.Initiator.Total, side.Total)
		preMod := domain.CriticalDamage(contest.BaseDamage, contest.PhysicalAttribute, tier)
		outcome := domain.ApplyContestDamage(&defenderEntity, preMod, contest.DamageType, tier)
		if err := s.store.PutEntity(ctx, defenderEntity); err != nil {
			return errors.Wrap(err, errors.CodeStorage, "save defender")
		}
		resolution["hit"] = true
		resolution["criticalType"] = tier
		resolution["marginPercent"] = marginPercent
		resolution["baseDamage"] = contest.BaseDamage
		resolution["finalDamage"] = outcome.FinalDamage
		resolution["damageType"] = outcome.DamageType
		resolution["modifier"] = outcome.Modifier
		resolution["woundsDealt"] = outcome.WoundsInflicted
		resolution["remainingEnergy"] = outcome.RemainingEnergy
		followups = s.damageFollowups(defenderEntity, outcome, msg.RequestID)
	}

	s.appendLog(ctx, "attack_contest", map[string]any{
		"contestId": contest.ID,
		"winner":    contest.WinnerEntityID,
	})
	events := append([]Event{s.event(EventAttackContestResolved, resolution, msg.RequestID)}, followups...)
	return s.commit(ctx, msg.RequestID, events...)
}

type contestSideInput struct {
	skill         string
	skillModifier int
	diceCount     int
	keepHighest   bool
	rawRolls      []int
	selectedRoll  int
}

// rollContestSide builds one side of a contest. Client-supplied raw rolls
// are trusted but the selection is re-derived; otherwise the server rolls
// the pool.
func (s *Session) rollContestSide(entityID, playerID string, in contestSideInput) (domain.ContestSide, error) {
	side := domain.ContestSide{
		EntityID:      entityID,
		PlayerID:      playerID,
		Skill:         in.skill,
		DiceCount:     in.diceCount,
		KeepHighest:   in.keepHighest,
		SkillModifier: in.skillModifier,
	}

	if len(in.rawRolls) > 0 {
		side.RawRolls = in.rawRolls
		side.SelectedRoll = dice.Select(in.rawRolls, in.keepHighest)
	} else {
		count := in.diceCount
		if count < 1 {
			count = 1
		}
		result, err := dice.RollPool(dice.PoolRequest{
			DiceCount:   count,
			KeepHighest: in.keepHighest,
			Seed:        s.seed(),
		})
		if err != nil {
			return domain.ContestSide{}, errors.Wrap(err, errors.CodePreconditionFailed, "invalid dice pool")
		}
		side.RawRolls = result.RawRolls
		side.SelectedRoll = result.SelectedRoll
		side.DiceCount = count
	}
	side.Total = side.SelectedRoll + side.SkillModifier
	return side, nil
}
