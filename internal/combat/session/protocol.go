// Package session implements the per-encounter combat authority: connection
// management, serialized message dispatch, the combat handlers, and the
// versioned broadcast protocol.
package session

import "encoding/json"

// Inbound message types.
const (
	MsgStartCombat           = "START_COMBAT"
	MsgEndCombat             = "END_COMBAT"
	MsgRequestState          = "REQUEST_STATE"
	MsgSubmitInitiativeRoll  = "SUBMIT_INITIATIVE_ROLL"
	MsgEndTurn               = "END_TURN"
	MsgDelayTurn             = "DELAY_TURN"
	MsgReadyAction           = "READY_ACTION"
	MsgDeclareMovement       = "DECLARE_MOVEMENT"
	MsgDeclareAttack         = "DECLARE_ATTACK"
	MsgDeclareAbility        = "DECLARE_ABILITY"
	MsgDeclareReaction       = "DECLARE_REACTION"
	MsgStartChanneling       = "START_CHANNELING"
	MsgContinueChanneling    = "CONTINUE_CHANNELING"
	MsgReleaseSpell          = "RELEASE_SPELL"
	MsgAbortChanneling       = "ABORT_CHANNELING"
	MsgSubmitEndureRoll      = "SUBMIT_ENDURE_ROLL"
	MsgSubmitDeathCheck      = "SUBMIT_DEATH_CHECK"
	MsgGMOverride            = "GM_OVERRIDE"
	MsgGMMoveEntity          = "GM_MOVE_ENTITY"
	MsgGMApplyDamage         = "GM_APPLY_DAMAGE"
	MsgGMModifyResources     = "GM_MODIFY_RESOURCES"
	MsgGMAddEntity           = "GM_ADD_ENTITY"
	MsgGMRemoveEntity        = "GM_REMOVE_ENTITY"
	MsgUpdateMapConfig       = "UPDATE_MAP_CONFIG"
	MsgUpdateGridConfig      = "UPDATE_GRID_CONFIG"
	MsgInitiateSkillContest  = "INITIATE_SKILL_CONTEST"
	MsgInitiateAttackContest = "INITIATE_ATTACK_CONTEST"
	MsgRespondSkillContest   = "RESPOND_SKILL_CONTEST"
)

// Outbound event types.
const (
	EventStateSync                       = "STATE_SYNC"
	EventCombatStarted                   = "COMBAT_STARTED"
	EventCombatEnded                     = "COMBAT_ENDED"
	EventRoundStarted                    = "ROUND_STARTED"
	EventTurnStarted                     = "TURN_STARTED"
	EventTurnEnded                       = "TURN_ENDED"
	EventInitiativeUpdated               = "INITIATIVE_UPDATED"
	EventMovementExecuted                = "MOVEMENT_EXECUTED"
	EventAttackResolved                  = "ATTACK_RESOLVED"
	EventAbilityResolved                 = "ABILITY_RESOLVED"
	EventReactionResolved                = "REACTION_RESOLVED"
	EventChannelingStarted               = "CHANNELING_STARTED"
	EventChannelingContinued             = "CHANNELING_CONTINUED"
	EventChannelingReleased              = "CHANNELING_RELEASED"
	EventChannelingInterrupted           = "CHANNELING_INTERRUPTED"
	EventBlowbackApplied                 = "BLOWBACK_APPLIED"
	EventDamageApplied                   = "DAMAGE_APPLIED"
	EventWoundsInflicted                 = "WOUNDS_INFLICTED"
	EventHealingApplied                  = "HEALING_APPLIED"
	EventEndureRollRequired              = "ENDURE_ROLL_REQUIRED"
	EventDeathCheckRequired              = "DEATH_CHECK_REQUIRED"
	EventEntityUnconscious               = "ENTITY_UNCONSCIOUS"
	EventEntityDied                      = "ENTITY_DIED"
	EventEntityUpdated                   = "ENTITY_UPDATED"
	EventGMOverrideApplied               = "GM_OVERRIDE_APPLIED"
	EventActionRejected                  = "ACTION_REJECTED"
	EventError                           = "ERROR"
	EventMapConfigUpdated                = "MAP_CONFIG_UPDATED"
	EventGridConfigUpdated               = "GRID_CONFIG_UPDATED"
	EventSkillContestInitiated           = "SKILL_CONTEST_INITIATED"
	EventSkillContestResponseRequested   = "SKILL_CONTEST_RESPONSE_REQUESTED"
	EventSkillContestResolved            = "SKILL_CONTEST_RESOLVED"
	EventAttackContestInitiated          = "ATTACK_CONTEST_INITIATED"
	EventAttackContestResolved           = "ATTACK_CONTEST_RESOLVED"
)

// Inbound is the wire shape of a client message.
type Inbound struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"requestId,omitempty"`
}

// Event is the wire shape of a server event. Timestamps are ISO strings,
// monotonically non-decreasing within one session's emission order.
type Event struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId,omitempty"`
}

// gmOnly lists message types reserved for GM connections.
var gmOnly = map[string]bool{
	MsgStartCombat:       true,
	MsgEndCombat:         true,
	MsgGMOverride:        true,
	MsgGMMoveEntity:      true,
	MsgGMApplyDamage:     true,
	MsgGMModifyResources: true,
	MsgGMAddEntity:       true,
	MsgGMRemoveEntity:    true,
	MsgUpdateMapConfig:   true,
	MsgUpdateGridConfig:  true,
}
