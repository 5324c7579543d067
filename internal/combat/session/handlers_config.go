package session

import (
	"context"
	"encoding/json"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/errors"
)

// handleUpdateMapConfig merges the payload into the stored map config and
// broadcasts the merged result.
func handleUpdateMapConfig(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	current := domain.MapConfig{}
	if cfg, err := s.store.GetMapConfig(ctx); err == nil {
		current = cfg
	} else if !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "load map config")
	}

	merged, err := mergeConfig(current, msg.Payload)
	if err != nil {
		return err
	}
	if err := s.store.PutMapConfig(ctx, merged); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save map config")
	}

	return s.commit(ctx, msg.RequestID,
		s.event(EventMapConfigUpdated, map[string]any{"mapConfig": merged}, msg.RequestID),
	)
}

// handleUpdateGridConfig merges the payload into the stored grid config.
func handleUpdateGridConfig(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	current := domain.DefaultGridConfig()
	if cfg, err := s.store.GetGridConfig(ctx); err == nil {
		current = cfg
	} else if !isNotFound(err) {
		return errors.Wrap(err, errors.CodeStorage, "load grid config")
	}

	merged, err := mergeConfig(current, msg.Payload)
	if err != nil {
		return err
	}
	if merged.Rows < 1 || merged.Cols < 1 {
		return errors.New(errors.CodePreconditionFailed, "Grid dimensions must be positive")
	}
	if err := s.store.PutGridConfig(ctx, merged); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "save grid config")
	}

	return s.commit(ctx, msg.RequestID,
		s.event(EventGridConfigUpdated, map[string]any{"gridConfig": merged}, msg.RequestID),
	)
}

// handleRequestState replays the caller's state-sync view without mutating
// anything.
func handleRequestState(ctx context.Context, s *Session, conn *Conn, msg Inbound) error {
	state, err := s.buildState(ctx, conn)
	if err != nil {
		return err
	}
	s.deliver(conn, s.event(EventStateSync, state, msg.RequestID))
	return nil
}

// mergeConfig overlays a raw JSON patch on a config value, field by field.
func mergeConfig[T any](current T, patch json.RawMessage) (T, error) {
	var zero T
	base, err := json.Marshal(current)
	if err != nil {
		return zero, errors.Wrap(err, errors.CodeUnknown, "encode config")
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(base, &asMap); err != nil {
		return zero, errors.Wrap(err, errors.CodeUnknown, "decode config")
	}
	if len(patch) > 0 {
		var patchMap map[string]json.RawMessage
		if err := json.Unmarshal(patch, &patchMap); err != nil {
			return zero, errors.Wrap(err, errors.CodeMalformedMessage, "malformed config payload")
		}
		for key, value := range patchMap {
			asMap[key] = value
		}
	}
	combined, err := json.Marshal(asMap)
	if err != nil {
		return zero, errors.Wrap(err, errors.CodeUnknown, "encode merged config")
	}
	var merged T
	if err := json.Unmarshal(combined, &merged); err != nil {
		return zero, errors.Wrap(err, errors.CodeMalformedMessage, "malformed config payload")
	}
	return merged, nil
}
