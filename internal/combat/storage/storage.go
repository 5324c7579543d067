// Package storage defines the persistence contracts for a combat session.
// Each session owns one store; access is serialized by the session loop.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

// ErrNotFound indicates a missing row.
var ErrNotFound = errors.New("not found")

// EncounterStore persists the single combat_state row.
type EncounterStore interface {
	GetEncounter(ctx context.Context) (domain.Encounter, error)
	PutEncounter(ctx context.Context, enc domain.Encounter) error
	// IncrementVersion bumps the monotonic version counter and refreshes
	// last_updated_at, returning the new version.
	IncrementVersion(ctx context.Context) (int64, error)
}

// EntityStore persists combatants.
type EntityStore interface {
	PutEntity(ctx context.Context, entity domain.Entity) error
	GetEntity(ctx context.Context, entityID string) (domain.Entity, error)
	ListEntities(ctx context.Context) ([]domain.Entity, error)
	DeleteEntity(ctx context.Context, entityID string) error
	CountEntities(ctx context.Context) (int, error)
}

// InitiativeStore persists the turn order.
type InitiativeStore interface {
	UpsertInitiative(ctx context.Context, entry domain.InitiativeEntry) error
	GetInitiativeEntry(ctx context.Context, entityID string) (domain.InitiativeEntry, error)
	ListInitiative(ctx context.Context) ([]domain.InitiativeEntry, error)
	// ReplaceInitiative rewrites the whole order in one transaction.
	ReplaceInitiative(ctx context.Context, entries []domain.InitiativeEntry) error
	DeleteInitiative(ctx context.Context, entityID string) error
	CountInitiative(ctx context.Context) (int, error)
}

// PositionStore persists grid positions.
type PositionStore interface {
	PutPosition(ctx context.Context, pos domain.GridPosition) error
	GetPosition(ctx context.Context, entityID string) (domain.GridPosition, error)
	ListPositions(ctx context.Context) ([]domain.GridPosition, error)
	// EntityAtCell returns the occupant of a cell, or ErrNotFound.
	EntityAtCell(ctx context.Context, row, col int) (string, error)
	DeletePosition(ctx context.Context, entityID string) error
}

// ConfigStore persists map and grid configuration blobs.
type ConfigStore interface {
	GetGridConfig(ctx context.Context) (domain.GridConfig, error)
	PutGridConfig(ctx context.Context, cfg domain.GridConfig) error
	GetMapConfig(ctx context.Context) (domain.MapConfig, error)
	PutMapConfig(ctx context.Context, cfg domain.MapConfig) error
}

// ChannelingStore persists multi-turn spell charges.
type ChannelingStore interface {
	PutChanneling(ctx context.Context, ch domain.Channeling) error
	GetChanneling(ctx context.Context, entityID string) (domain.Channeling, error)
	ListChanneling(ctx context.Context) ([]domain.Channeling, error)
	DeleteChanneling(ctx context.Context, entityID string) error
}

// LogStore appends to the combat log.
type LogStore interface {
	AppendLog(ctx context.Context, entryType, payload string) error
	ListRecentLog(ctx context.Context, limit int) ([]domain.LogEntry, error)
}

// PendingActionStore persists readied actions.
type PendingActionStore interface {
	PutPendingAction(ctx context.Context, action domain.PendingAction) error
	ListPendingActions(ctx context.Context) ([]domain.PendingAction, error)
	DeletePendingActionsForEntity(ctx context.Context, entityID string) error
}

// ContestStore persists two-phase skill and attack contests.
type ContestStore interface {
	PutContest(ctx context.Context, contest domain.Contest) error
	GetContest(ctx context.Context, contestID string) (domain.Contest, error)
}

// Store is the full storage facade owned by one combat session.
type Store interface {
	EncounterStore
	EntityStore
	InitiativeStore
	PositionStore
	ConfigStore
	ChannelingStore
	LogStore
	PendingActionStore
	ContestStore

	// ClearEncounter wipes every table, returning the store to its
	// pre-combat state.
	ClearEncounter(ctx context.Context) error
	Close() error
}
