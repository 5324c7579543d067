package session

import (
	"context"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/errors"
)

// canControl decides whether a connection may act for an entity: GMs control
// everything, players control entities whose controller names them or that
// their connection declared.
func canControl(meta Metadata, entity domain.Entity, conn *Conn) bool {
	if meta.IsGM {
		return true
	}
	if meta.PlayerID != "" && entity.Controller == domain.PlayerController(meta.PlayerID) {
		return true
	}
	return conn.controls(entity.ID)
}

// requireControl loads an entity and checks the connection may act for it.
func (s *Session) requireControl(ctx context.Context, conn *Conn, entityID string) (domain.Entity, error) {
	entity, err := s.loadEntity(ctx, entityID)
	if err != nil {
		return domain.Entity{}, err
	}
	if !canControl(conn.Meta, entity, conn) {
		return domain.Entity{}, errors.Newf(errors.CodeNotController,
			"You do not control entity %s", entityID)
	}
	return entity, nil
}

// loadEntity fetches an entity, mapping a missing row to the domain
// not-found code.
func (s *Session) loadEntity(ctx context.Context, entityID string) (domain.Entity, error) {
	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		if isNotFound(err) {
			return domain.Entity{}, errors.Newf(errors.CodeEntityNotFound, "Entity %s not found", entityID)
		}
		return domain.Entity{}, errors.Wrap(err, errors.CodeStorage, "load entity")
	}
	return entity, nil
}
