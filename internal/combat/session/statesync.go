package session

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/storage"
	"github.com/louisbranch/skirmish/internal/errors"
)

// State is the full denormalized encounter snapshot replayed to clients.
// The internal active-turn phase is reported as active; clients only see the
// public phase set.
type State struct {
	CombatID         string                   `json:"combatId"`
	CampaignID       string                   `json:"campaignId"`
	Phase            domain.Phase             `json:"phase"`
	Round            int                      `json:"round"`
	CurrentTurnIndex int                      `json:"currentTurnIndex"`
	CurrentEntityID  string                   `json:"currentEntityId,omitempty"`
	Entities         []domain.Entity          `json:"entities"`
	Initiative       []domain.InitiativeEntry `json:"initiative"`
	GridPositions    []domain.GridPosition    `json:"gridPositions"`
	GridConfig       domain.GridConfig        `json:"gridConfig"`
	MapConfig        domain.MapConfig         `json:"mapConfig"`
	PendingActions   []domain.PendingAction   `json:"pendingActions,omitempty"`
	Version          int64                    `json:"version"`
}

// StateSync is the STATE_SYNC payload: the shared snapshot plus the
// connection's own control set.
type StateSync struct {
	State                  State    `json:"state"`
	YourControlledEntities []string `json:"yourControlledEntities"`
}

// DebugSnapshot is the state endpoint's view: full state plus connection
// metadata and recent log entries.
type DebugSnapshot struct {
	State       State             `json:"state"`
	Connections []Metadata        `json:"connections"`
	RecentLog   []domain.LogEntry `json:"recentLog"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

func (s *Session) buildDebugSnapshot(ctx context.Context) DebugSnapshot {
	snap := DebugSnapshot{GeneratedAt: s.now().UTC()}

	if sync, err := s.buildState(ctx, nil); err == nil {
		snap.State = sync.State
	}
	for _, conn := range s.conns {
		snap.Connections = append(snap.Connections, conn.Meta)
	}
	if entries, err := s.store.ListRecentLog(ctx, recentLogLimit); err == nil {
		snap.RecentLog = entries
	}
	return snap
}

// recentLogLimit bounds the debug snapshot's log tail.
const recentLogLimit = 50

// buildState assembles a connection's state-sync envelope. Entities are
// normalized, channeling rows are merged into their entities, and the
// controlled set is personalized per connection.
func (s *Session) buildState(ctx context.Context, conn *Conn) (StateSync, error) {
	state := State{
		CampaignID:       s.campaignID,
		CombatID:         s.combatID,
		Phase:            domain.PhaseSetup,
		CurrentTurnIndex: -1,
		GridConfig:       domain.DefaultGridConfig(),
	}

	enc, err := s.store.GetEncounter(ctx)
	switch {
	case err == nil:
		state.Phase = enc.Phase.ClientPhase()
		state.Round = enc.Round
		state.CurrentTurnIndex = enc.TurnIndex
		state.CurrentEntityID = enc.ActiveEntityID
		state.Version = enc.Version
	case stderrors.Is(err, storage.ErrNotFound):
		// Pre-combat session, zero state stands.
	default:
		return StateSync{}, errors.Wrap(err, errors.CodeStorage, "load encounter")
	}

	entities, err := s.store.ListEntities(ctx)
	if err != nil {
		return StateSync{}, errors.Wrap(err, errors.CodeStorage, "list entities")
	}
	channeling, err := s.store.ListChanneling(ctx)
	if err != nil {
		return StateSync{}, errors.Wrap(err, errors.CodeStorage, "list channeling")
	}
	byEntity := make(map[string]domain.Channeling, len(channeling))
	for _, ch := range channeling {
		byEntity[ch.EntityID] = ch
	}
	state.Entities = make([]domain.Entity, 0, len(entities))
	for _, entity := range entities {
		entity.Normalize()
		if ch, ok := byEntity[entity.ID]; ok {
			entity.Channeling = &ch
		}
		state.Entities = append(state.Entities, entity)
	}

	if state.Initiative, err = s.store.ListInitiative(ctx); err != nil {
		return StateSync{}, errors.Wrap(err, errors.CodeStorage, "list initiative")
	}
	if state.Initiative == nil {
		state.Initiative = []domain.InitiativeEntry{}
	}
	if state.GridPositions, err = s.store.ListPositions(ctx); err != nil {
		return StateSync{}, errors.Wrap(err, errors.CodeStorage, "list positions")
	}
	if state.GridPositions == nil {
		state.GridPositions = []domain.GridPosition{}
	}

	if cfg, err := s.store.GetGridConfig(ctx); err == nil {
		state.GridConfig = cfg
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return StateSync{}, errors.Wrap(err, errors.CodeStorage, "load grid config")
	}
	if cfg, err := s.store.GetMapConfig(ctx); err == nil {
		state.MapConfig = cfg
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return StateSync{}, errors.Wrap(err, errors.CodeStorage, "load map config")
	}

	if state.PendingActions, err = s.store.ListPendingActions(ctx); err != nil {
		return StateSync{}, errors.Wrap(err, errors.CodeStorage, "list pending actions")
	}

	return StateSync{
		State:                  state,
		YourControlledEntities: controlledEntities(conn, state.Entities),
	}, nil
}

// controlledEntities computes the per-connection controlled set against the
// current entity list. GMs control everything.
func controlledEntities(conn *Conn, entities []domain.Entity) []string {
	controlled := []string{}
	if conn == nil {
		return controlled
	}
	for _, entity := range entities {
		if canControl(conn.Meta, entity, conn) {
			controlled = append(controlled, entity.ID)
		}
	}
	return controlled
}

func isNotFound(err error) bool {
	return stderrors.Is(err, storage.ErrNotFound)
}
