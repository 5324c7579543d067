package session

import (
	"context"
	"encoding/json"
	"log"

	"github.com/louisbranch/skirmish/internal/errors"
)

// handlerFunc processes one inbound message on the session goroutine. A nil
// return means the handler emitted its own events; a non-nil return is
// surfaced to the origin connection and nothing was broadcast.
type handlerFunc func(ctx context.Context, s *Session, conn *Conn, msg Inbound) error

var handlers = map[string]handlerFunc{
	MsgStartCombat:           handleStartCombat,
	MsgEndCombat:             handleEndCombat,
	MsgRequestState:          handleRequestState,
	MsgSubmitInitiativeRoll:  handleSubmitInitiativeRoll,
	MsgEndTurn:               handleEndTurn,
	MsgDelayTurn:             handleDelayTurn,
	MsgReadyAction:           handleReadyAction,
	MsgDeclareMovement:       handleDeclareMovement,
	MsgDeclareAttack:         handleDeclareAttack,
	MsgDeclareAbility:        handleDeclareAbility,
	MsgDeclareReaction:       handleDeclareReaction,
	MsgStartChanneling:       handleStartChanneling,
	MsgContinueChanneling:    handleContinueChanneling,
	MsgReleaseSpell:          handleReleaseSpell,
	MsgAbortChanneling:       handleAbortChanneling,
	MsgSubmitEndureRoll:      handleSubmitEndureRoll,
	MsgSubmitDeathCheck:      handleSubmitDeathCheck,
	MsgGMOverride:            handleGMOverride,
	MsgGMMoveEntity:          handleGMMoveEntity,
	MsgGMApplyDamage:         handleGMApplyDamage,
	MsgGMModifyResources:     handleGMModifyResources,
	MsgGMAddEntity:           handleGMAddEntity,
	MsgGMRemoveEntity:        handleGMRemoveEntity,
	MsgUpdateMapConfig:       handleUpdateMapConfig,
	MsgUpdateGridConfig:      handleUpdateGridConfig,
	MsgInitiateSkillContest:  handleInitiateSkillContest,
	MsgInitiateAttackContest: handleInitiateAttackContest,
	MsgRespondSkillContest:   handleRespondSkillContest,
}

// dispatch routes one parsed message. Every failure produces exactly one
// response event to the origin connection: ACTION_REJECTED for domain
// denials, ERROR for protocol and internal failures.
func (s *Session) dispatch(ctx context.Context, conn *Conn, msg Inbound) {
	handler, ok := handlers[msg.Type]
	if !ok {
		s.sendRejection(conn, msg.Type, "Unknown message type: "+msg.Type, msg.RequestID)
		return
	}

	if gmOnly[msg.Type] && !conn.Meta.IsGM {
		s.sendRejection(conn, msg.Type, "GM privileges required", msg.RequestID)
		return
	}

	if err := handler(ctx, s, conn, msg); err != nil {
		code := errors.GetCode(err)
		if code.Rejectable() {
			s.sendRejection(conn, msg.Type, errors.Reason(err), msg.RequestID)
			return
		}
		log.Printf("session %s/%s: %s: %v", s.campaignID, s.combatID, msg.Type, err)
		s.sendError(conn, err, msg.RequestID)
	}
}

// parsePayload decodes a handler payload, mapping syntax failures to the
// protocol error class.
func parsePayload(msg Inbound, dst any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return errors.Wrap(err, errors.CodeMalformedMessage, "malformed payload")
	}
	return nil
}
