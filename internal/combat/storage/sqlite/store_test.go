package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "combat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEncounter() domain.Encounter {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.Encounter{
		CombatID:      "combat-1",
		CampaignID:    "campaign-1",
		Phase:         domain.PhaseSetup,
		TurnIndex:     -1,
		StartedAt:     now,
		LastUpdatedAt: now,
	}
}

func TestEncounterRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.GetEncounter(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty store, got %v", err)
	}

	enc := testEncounter()
	if err := store.PutEncounter(ctx, enc); err != nil {
		t.Fatalf("put encounter: %v", err)
	}

	got, err := store.GetEncounter(ctx)
	if err != nil {
		t.Fatalf("get encounter: %v", err)
	}
	if got.CombatID != enc.CombatID || got.CampaignID != enc.CampaignID {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if got.Phase != domain.PhaseSetup || got.TurnIndex != -1 {
		t.Fatalf("unexpected state: %+v", got)
	}
}

// TestIncrementVersion ensures the counter is monotonic and persisted.
func TestIncrementVersion(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutEncounter(ctx, testEncounter()); err != nil {
		t.Fatalf("put encounter: %v", err)
	}

	first, err := store.IncrementVersion(ctx)
	if err != nil {
		t.Fatalf("increment version: %v", err)
	}
	second, err := store.IncrementVersion(ctx)
	if err != nil {
		t.Fatalf("increment version: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected versions 1 then 2, got %d then %d", first, second)
	}

	enc, err := store.GetEncounter(ctx)
	if err != nil {
		t.Fatalf("get encounter: %v", err)
	}
	if enc.Version != 2 {
		t.Fatalf("expected persisted version 2, got %d", enc.Version)
	}
}

func TestEntityRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entity := domain.Entity{
		ID:          "e1",
		DisplayName: "Grunt",
		Controller:  domain.PlayerController("p1"),
		Level:       3,
		AP:          domain.DefaultAP,
		Energy:      domain.Resource{Current: 80, Max: 100},
		Wounds:      map[string]int{"fire": 1},
		Alive:       true,
	}
	if err := store.PutEntity(ctx, entity); err != nil {
		t.Fatalf("put entity: %v", err)
	}

	got, err := store.GetEntity(ctx, "e1")
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	if got.DisplayName != "Grunt" || got.Energy.Current != 80 || got.Wounds["fire"] != 1 {
		t.Fatalf("unexpected entity: %+v", got)
	}

	entity.Energy.Current = 60
	if err := store.PutEntity(ctx, entity); err != nil {
		t.Fatalf("update entity: %v", err)
	}
	count, err := store.CountEntities(ctx)
	if err != nil {
		t.Fatalf("count entities: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", count)
	}

	if err := store.DeleteEntity(ctx, "e1"); err != nil {
		t.Fatalf("delete entity: %v", err)
	}
	if _, err := store.GetEntity(ctx, "e1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListEntitiesInsertionOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"z", "a", "m"} {
		err := store.PutEntity(ctx, domain.Entity{ID: id, DisplayName: id, Controller: domain.ControllerGM})
		if err != nil {
			t.Fatalf("put entity %s: %v", id, err)
		}
	}

	entities, err := store.ListEntities(ctx)
	if err != nil {
		t.Fatalf("list entities: %v", err)
	}
	want := []string{"z", "a", "m"}
	for i, id := range want {
		if entities[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, entities[i].ID)
		}
	}
}

func TestInitiativeReplaceAndOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entries := []domain.InitiativeEntry{
		{EntityID: "e1", Roll: 18, Position: 0},
		{EntityID: "e2", Roll: 15, Position: 1},
		{EntityID: "e3", Roll: 12, Position: 2},
	}
	if err := store.ReplaceInitiative(ctx, entries); err != nil {
		t.Fatalf("replace initiative: %v", err)
	}

	got, err := store.ListInitiative(ctx)
	if err != nil {
		t.Fatalf("list initiative: %v", err)
	}
	if len(got) != 3 || got[0].EntityID != "e1" || got[2].EntityID != "e3" {
		t.Fatalf("unexpected order: %+v", got)
	}

	if err := store.DeleteInitiative(ctx, "e2"); err != nil {
		t.Fatalf("delete initiative: %v", err)
	}
	count, err := store.CountInitiative(ctx)
	if err != nil {
		t.Fatalf("count initiative: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
}

func TestPositionsOccupancy(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutPosition(ctx, domain.GridPosition{EntityID: "e1", Row: 3, Col: 4}); err != nil {
		t.Fatalf("put position: %v", err)
	}

	occupant, err := store.EntityAtCell(ctx, 3, 4)
	if err != nil {
		t.Fatalf("entity at cell: %v", err)
	}
	if occupant != "e1" {
		t.Fatalf("expected e1 at cell, got %s", occupant)
	}

	if _, err := store.EntityAtCell(ctx, 0, 0); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty cell, got %v", err)
	}

	if err := store.PutPosition(ctx, domain.GridPosition{EntityID: "e1", Row: 5, Col: 5}); err != nil {
		t.Fatalf("move position: %v", err)
	}
	if _, err := store.EntityAtCell(ctx, 3, 4); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected vacated cell, got %v", err)
	}
}

func TestConfigDefaultsAndRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	grid, err := store.GetGridConfig(ctx)
	if err != nil {
		t.Fatalf("get grid config: %v", err)
	}
	if grid.Rows != 20 || grid.Cols != 20 {
		t.Fatalf("expected default 20x20 grid, got %+v", grid)
	}

	grid.Rows = 30
	if err := store.PutGridConfig(ctx, grid); err != nil {
		t.Fatalf("put grid config: %v", err)
	}
	if err := store.PutMapConfig(ctx, domain.MapConfig{ImageURL: "https://maps/cave.png"}); err != nil {
		t.Fatalf("put map config: %v", err)
	}

	grid, err = store.GetGridConfig(ctx)
	if err != nil {
		t.Fatalf("get grid config: %v", err)
	}
	if grid.Rows != 30 {
		t.Fatalf("expected grid rows preserved across map write, got %d", grid.Rows)
	}
	mapCfg, err := store.GetMapConfig(ctx)
	if err != nil {
		t.Fatalf("get map config: %v", err)
	}
	if mapCfg.ImageURL != "https://maps/cave.png" {
		t.Fatalf("unexpected map config: %+v", mapCfg)
	}
}

func TestChannelingRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ch := domain.Channeling{
		EntityID:        "e1",
		SpellName:       "Pyre",
		DamageType:      "fire",
		Intensity:       2,
		TotalCost:       30,
		EnergyChanneled: 10,
		APChanneled:     2,
		TurnsChanneled:  1,
		StartedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := store.PutChanneling(ctx, ch); err != nil {
		t.Fatalf("put channeling: %v", err)
	}

	got, err := store.GetChanneling(ctx, "e1")
	if err != nil {
		t.Fatalf("get channeling: %v", err)
	}
	if got.SpellName != "Pyre" || got.EnergyChanneled != 10 {
		t.Fatalf("unexpected channeling: %+v", got)
	}

	if err := store.DeleteChanneling(ctx, "e1"); err != nil {
		t.Fatalf("delete channeling: %v", err)
	}
	if _, err := store.GetChanneling(ctx, "e1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCombatLogAppendsInOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, entryType := range []string{"COMBAT_STARTED", "TURN_STARTED", "TURN_ENDED"} {
		if err := store.AppendLog(ctx, entryType, `{}`); err != nil {
			t.Fatalf("append log: %v", err)
		}
	}

	entries, err := store.ListRecentLog(ctx, 2)
	if err != nil {
		t.Fatalf("list log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Type != "TURN_ENDED" {
		t.Fatalf("expected newest entry first, got %s", entries[0].Type)
	}
}

func TestPendingActions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	action := domain.PendingAction{
		ID:         "pa-1",
		EntityID:   "e1",
		Trigger:    "enemy enters melee range",
		ActionType: "attack",
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.PutPendingAction(ctx, action); err != nil {
		t.Fatalf("put pending action: %v", err)
	}

	actions, err := store.ListPendingActions(ctx)
	if err != nil {
		t.Fatalf("list pending actions: %v", err)
	}
	if len(actions) != 1 || actions[0].Trigger != action.Trigger {
		t.Fatalf("unexpected pending actions: %+v", actions)
	}

	if err := store.DeletePendingActionsForEntity(ctx, "e1"); err != nil {
		t.Fatalf("delete pending actions: %v", err)
	}
	actions, err = store.ListPendingActions(ctx)
	if err != nil {
		t.Fatalf("list pending actions: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("expected no pending actions, got %d", len(actions))
	}
}

func TestContestRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	contest := domain.Contest{
		ID:          "c1",
		ContestType: domain.ContestTypeAttack,
		Status:      domain.ContestAwaitingResponse,
		Initiator:   domain.ContestSide{EntityID: "e1", Total: 75},
		BaseDamage:  10,
		DamageType:  "laceration",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.PutContest(ctx, contest); err != nil {
		t.Fatalf("put contest: %v", err)
	}

	got, err := store.GetContest(ctx, "c1")
	if err != nil {
		t.Fatalf("get contest: %v", err)
	}
	if got.Status != domain.ContestAwaitingResponse || got.Initiator.Total != 75 {
		t.Fatalf("unexpected contest: %+v", got)
	}

	got.Resolve(domain.ContestSide{EntityID: "e2", Total: 60})
	if err := store.PutContest(ctx, got); err != nil {
		t.Fatalf("update contest: %v", err)
	}
	got, err = store.GetContest(ctx, "c1")
	if err != nil {
		t.Fatalf("get resolved contest: %v", err)
	}
	if got.Status != domain.ContestResolved || got.WinnerEntityID != "e1" {
		t.Fatalf("expected resolved contest, got %+v", got)
	}
}

func TestClearEncounterWipesAllTables(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutEncounter(ctx, testEncounter()); err != nil {
		t.Fatalf("put encounter: %v", err)
	}
	if err := store.PutEntity(ctx, domain.Entity{ID: "e1", DisplayName: "Grunt", Controller: domain.ControllerGM}); err != nil {
		t.Fatalf("put entity: %v", err)
	}
	if err := store.UpsertInitiative(ctx, domain.InitiativeEntry{EntityID: "e1", Roll: 10}); err != nil {
		t.Fatalf("upsert initiative: %v", err)
	}

	if err := store.ClearEncounter(ctx); err != nil {
		t.Fatalf("clear encounter: %v", err)
	}

	if _, err := store.GetEncounter(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected empty combat_state, got %v", err)
	}
	count, err := store.CountEntities(ctx)
	if err != nil {
		t.Fatalf("count entities: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no entities, got %d", count)
	}
}
