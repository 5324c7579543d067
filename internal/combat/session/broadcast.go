package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log"
	"time"

	"github.com/louisbranch/skirmish/internal/combat/storage"
	"github.com/louisbranch/skirmish/internal/errors"
)

// event stamps an outbound event. Timestamps are wall-clock ISO strings but
// never decrease within a session, so clients can rely on emission order.
func (s *Session) event(eventType string, payload any, requestID string) Event {
	now := s.now().UTC()
	if now.Before(s.lastEmit) {
		now = s.lastEmit
	}
	s.lastEmit = now
	return Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: now.Format(time.RFC3339Nano),
		RequestID: requestID,
	}
}

// broadcast delivers an event to every attached connection.
func (s *Session) broadcast(event Event) {
	for _, conn := range s.conns {
		s.deliver(conn, event)
	}
}

// sendToPlayer delivers an event to every connection authenticated as the
// player. It reports whether any connection received it.
func (s *Session) sendToPlayer(playerID string, event Event) bool {
	sent := false
	for _, conn := range s.conns {
		if conn.Meta.PlayerID == playerID {
			s.deliver(conn, event)
			sent = true
		}
	}
	return sent
}

// sendToGMs delivers an event to every GM connection.
func (s *Session) sendToGMs(event Event) {
	for _, conn := range s.conns {
		if conn.Meta.IsGM {
			s.deliver(conn, event)
		}
	}
}

func (s *Session) deliver(conn *Conn, event Event) {
	if err := conn.send(event); err != nil {
		log.Printf("session %s/%s: deliver %s to %s: %v",
			s.campaignID, s.combatID, event.Type, conn.ID, err)
	}
}

// commit finalizes a successful mutation: bump the version counter,
// broadcast the handler's targeted events, then replay full state to every
// connection. Events were stamped by the handler, so ordering holds.
func (s *Session) commit(ctx context.Context, requestID string, events ...Event) error {
	return s.commitWith(ctx, requestID, nil, events...)
}

// commitWith is commit with a delivery step that runs after the targeted
// broadcasts and before the state sync, for scoped sends that must precede
// the snapshot reflecting them.
func (s *Session) commitWith(ctx context.Context, requestID string, between func(), events ...Event) error {
	if _, err := s.store.IncrementVersion(ctx); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return errors.Wrap(err, errors.CodeStorage, "increment version")
	}
	for _, event := range events {
		s.broadcast(event)
	}
	if between != nil {
		between()
	}
	return s.syncAll(ctx, requestID)
}

// syncAll sends each connection its own STATE_SYNC view of current state.
func (s *Session) syncAll(ctx context.Context, requestID string) error {
	for _, conn := range s.conns {
		state, err := s.buildState(ctx, conn)
		if err != nil {
			return err
		}
		s.deliver(conn, s.event(EventStateSync, state, requestID))
	}
	return nil
}

// sendRejection answers a denied action with a single ACTION_REJECTED event
// to the origin connection only.
func (s *Session) sendRejection(conn *Conn, originalType, reason, requestID string) {
	s.deliver(conn, s.event(EventActionRejected, map[string]any{
		"originalType": originalType,
		"reason":       reason,
	}, requestID))
}

// sendError answers a protocol or internal failure with an ERROR event to
// the origin connection only.
func (s *Session) sendError(conn *Conn, err error, requestID string) {
	s.deliver(conn, s.event(EventError, map[string]any{
		"code":    string(errors.GetCode(err)),
		"message": errors.Reason(err),
	}, requestID))
}

// appendLog records a combat log entry. Logging is best effort and never
// fails an action.
func (s *Session) appendLog(ctx context.Context, entryType string, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Printf("session %s/%s: encode log %s: %v", s.campaignID, s.combatID, entryType, err)
		return
	}
	if err := s.store.AppendLog(ctx, entryType, string(encoded)); err != nil {
		log.Printf("session %s/%s: append log %s: %v", s.campaignID, s.combatID, entryType, err)
	}
}
