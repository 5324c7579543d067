package session

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/skirmish/internal/combat/dataapi"
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/storage/sqlite"
)

type fakeTransport struct {
	events []Event
}

func (f *fakeTransport) Send(event Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) ofType(eventType string) []Event {
	var matched []Event
	for _, event := range f.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func (f *fakeTransport) lastOfType(eventType string) (Event, bool) {
	matched := f.ofType(eventType)
	if len(matched) == 0 {
		return Event{}, false
	}
	return matched[len(matched)-1], true
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "combat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	counter := 0
	return New(Config{
		CampaignID: "camp-1",
		CombatID:   "combat-1",
		Store:      store,
		DataAPI:    dataapi.New("", ""),
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		},
		Seed: func() int64 { return 1 },
		NewID: func() (string, error) {
			counter++
			return fmt.Sprintf("generated-%04d", counter), nil
		},
	})
}

func attach(s *Session, connID, playerID string, isGM bool, controlled ...string) (*Conn, *fakeTransport) {
	transport := &fakeTransport{}
	conn := &Conn{
		ID: connID,
		Meta: Metadata{
			PlayerID:            playerID,
			IsGM:                isGM,
			ControlledEntityIDs: controlled,
		},
		transport: transport,
	}
	s.conns[connID] = conn
	return conn, transport
}

func send(t *testing.T, s *Session, conn *Conn, msgType string, payload any) {
	t.Helper()
	msg := Inbound{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		msg.Payload = raw
	}
	s.dispatch(context.Background(), conn, msg)
}

func testEntity(id string, level int) domain.Entity {
	return domain.Entity{
		ID:          id,
		DisplayName: "Entity " + id,
		Level:       level,
		AP:          domain.Resource{Current: 6, Max: 6},
		Energy:      domain.Resource{Current: 100, Max: 100},
	}
}

func startCombatWith(t *testing.T, s *Session, gm *Conn, entities ...domain.Entity) {
	t.Helper()
	send(t, s, gm, MsgStartCombat, map[string]any{"entities": entities})
	enc, err := s.store.GetEncounter(context.Background())
	if err != nil {
		t.Fatalf("load encounter: %v", err)
	}
	if enc.Phase != domain.PhaseInitiative {
		t.Fatalf("phase after START_COMBAT = %q, want %q", enc.Phase, domain.PhaseInitiative)
	}
}

// TestInitiativeSortAndFirstTurn drives three entities through initiative
// submission and checks the sorted order, tiebreaks included: equal rolls
// fall back to skill value, then to current energy.
func TestInitiativeSortAndFirstTurn(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)

	e1 := testEntity("e1", 1)
	e2 := testEntity("e2", 1)
	e2.Energy.Current = 90
	e3 := testEntity("e3", 1)
	startCombatWith(t, s, gm, e1, e2, e3)

	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "e2", "roll": 15, "skillValue": 10})
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "e1", "roll": 18, "skillValue": 5})
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "e3", "roll": 15, "skillValue": 10})

	enc, err := s.store.GetEncounter(context.Background())
	if err != nil {
		t.Fatalf("load encounter: %v", err)
	}
	if enc.Phase != domain.PhaseActiveTurn {
		t.Fatalf("phase = %q, want %q", enc.Phase, domain.PhaseActiveTurn)
	}
	if enc.Round != 1 || enc.TurnIndex != 0 || enc.ActiveEntityID != "e1" {
		t.Fatalf("encounter = round %d turn %d active %q, want round 1 turn 0 active e1",
			enc.Round, enc.TurnIndex, enc.ActiveEntityID)
	}

	entries, err := s.store.ListInitiative(context.Background())
	if err != nil {
		t.Fatalf("list initiative: %v", err)
	}
	var order []string
	for _, entry := range entries {
		order = append(order, entry.EntityID)
	}
	want := []string{"e1", "e3", "e2"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("initiative order = %v, want %v", order, want)
		}
	}

	if _, ok := transport.lastOfType(EventTurnStarted); !ok {
		t.Fatal("expected TURN_STARTED broadcast")
	}
	sync, err := s.buildState(context.Background(), gm)
	if err != nil {
		t.Fatalf("build state: %v", err)
	}
	if sync.State.Phase != domain.PhaseActive {
		t.Fatalf("client phase = %q, want %q", sync.State.Phase, domain.PhaseActive)
	}
}

// TestAttackRejectedOnInsufficientEnergy verifies the resource gate fires
// before any mutation and that the version counter is untouched.
func TestAttackRejectedOnInsufficientEnergy(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)

	attacker := testEntity("attacker", 1)
	attacker.AP = domain.Resource{Current: 1, Max: 6}
	attacker.Energy = domain.Resource{Current: 0, Max: 100}
	target := testEntity("target", 1)
	startCombatWith(t, s, gm, attacker, target)

	before, err := s.store.GetEncounter(context.Background())
	if err != nil {
		t.Fatalf("load encounter: %v", err)
	}

	send(t, s, gm, MsgDeclareAttack, map[string]any{
		"attackerId": "attacker",
		"targetId":   "target",
		"baseDamage": 10,
		"damageType": "laceration",
		"apCost":     1,
		"energyCost": 1,
	})

	rejected, ok := transport.lastOfType(EventActionRejected)
	if !ok {
		t.Fatal("expected ACTION_REJECTED")
	}
	payload := rejected.Payload.(map[string]any)
	if payload["reason"] != "Insufficient Energy" {
		t.Fatalf("reason = %v, want Insufficient Energy", payload["reason"])
	}

	after, err := s.store.GetEncounter(context.Background())
	if err != nil {
		t.Fatalf("load encounter: %v", err)
	}
	if after.Version != before.Version {
		t.Fatalf("version changed on rejected action: %d -> %d", before.Version, after.Version)
	}
	stored, err := s.store.GetEntity(context.Background(), "attacker")
	if err != nil {
		t.Fatalf("load attacker: %v", err)
	}
	if stored.AP.Current != 1 {
		t.Fatalf("attacker ap mutated on rejection: %d", stored.AP.Current)
	}
}

// TestAttackContestBrutalCritical runs an attack contest whose margin hits
// the brutal threshold: double damage and two wounds, no damage-derived
// wounds on top.
func TestAttackContestBrutalCritical(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)

	startCombatWith(t, s, gm, testEntity("att", 1), testEntity("def", 1))

	send(t, s, gm, MsgInitiateAttackContest, map[string]any{
		"initiatorEntityId": "att",
		"targetEntityId":    "def",
		"skill":             "blades",
		"skillModifier":     20,
		"rawRolls":          []int{100},
		"keepHighest":       true,
		"baseDamage":        10,
		"physicalAttribute": 5,
		"damageType":        "laceration",
	})
	initiated, ok := transport.lastOfType(EventAttackContestInitiated)
	if !ok {
		t.Fatal("expected ATTACK_CONTEST_INITIATED")
	}
	contest := initiated.Payload.(map[string]any)["contest"].(domain.Contest)
	if contest.Initiator.Total != 120 {
		t.Fatalf("initiator total = %d, want 120", contest.Initiator.Total)
	}

	send(t, s, gm, MsgRespondSkillContest, map[string]any{
		"contestId":     contest.ID,
		"entityId":      "def",
		"skill":         "dodge",
		"skillModifier": 5,
		"rawRolls":      []int{35},
		"keepHighest":   true,
	})

	resolved, ok := transport.lastOfType(EventAttackContestResolved)
	if !ok {
		t.Fatal("expected ATTACK_CONTEST_RESOLVED")
	}
	payload := resolved.Payload.(map[string]any)
	if payload["criticalType"] != domain.CriticalBrutal {
		t.Fatalf("criticalType = %v, want brutal", payload["criticalType"])
	}
	if payload["finalDamage"] != 30 {
		t.Fatalf("finalDamage = %v, want 30", payload["finalDamage"])
	}
	if payload["woundsDealt"] != 2 {
		t.Fatalf("woundsDealt = %v, want 2", payload["woundsDealt"])
	}

	defender, err := s.store.GetEntity(context.Background(), "def")
	if err != nil {
		t.Fatalf("load defender: %v", err)
	}
	if defender.Energy.Current != 70 {
		t.Fatalf("defender energy = %d, want 70", defender.Energy.Current)
	}
	if defender.Wounds["laceration"] != 2 {
		t.Fatalf("defender wounds = %d, want 2", defender.Wounds["laceration"])
	}
}

// TestReleaseRequiresBothPools charges a spell whose energy fills before its
// AP and checks that release is refused until both pools meet the cost.
func TestReleaseRequiresBothPools(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)
	startCombatWith(t, s, gm, testEntity("caster", 1))

	send(t, s, gm, MsgStartChanneling, map[string]any{
		"entityId":      "caster",
		"spellName":     "torrent",
		"totalCost":     30,
		"damageType":    "frost",
		"intensity":     2,
		"initialEnergy": 10,
		"initialAP":     2,
	})
	send(t, s, gm, MsgContinueChanneling, map[string]any{
		"entityId": "caster", "additionalEnergy": 10, "additionalAP": 2,
	})
	send(t, s, gm, MsgContinueChanneling, map[string]any{
		"entityId": "caster", "additionalEnergy": 10, "additionalAP": 2,
	})

	continued, ok := transport.lastOfType(EventChannelingContinued)
	if !ok {
		t.Fatal("expected CHANNELING_CONTINUED")
	}
	payload := continued.Payload.(map[string]any)
	if payload["isReady"] != false {
		t.Fatalf("isReady = %v, want false (AP pool still short)", payload["isReady"])
	}

	send(t, s, gm, MsgReleaseSpell, map[string]any{"entityId": "caster"})
	rejected, ok := transport.lastOfType(EventActionRejected)
	if !ok {
		t.Fatal("expected ACTION_REJECTED")
	}
	if reason := rejected.Payload.(map[string]any)["reason"]; reason != "Spell not fully charged" {
		t.Fatalf("reason = %v, want Spell not fully charged", reason)
	}
}

// TestEndTurnConvertsUnspentAP checks the AP to energy rollover for a tier
// two entity.
func TestEndTurnConvertsUnspentAP(t *testing.T) {
	s := newTestSession(t)
	gm, _ := attach(s, "conn-gm", "", true)

	entity := testEntity("solo", 6)
	entity.AP = domain.Resource{Current: 3, Max: 6}
	entity.Energy = domain.Resource{Current: 70, Max: 100}
	startCombatWith(t, s, gm, entity)
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "solo", "roll": 12})

	send(t, s, gm, MsgEndTurn, nil)

	stored, err := s.store.GetEntity(context.Background(), "solo")
	if err != nil {
		t.Fatalf("load entity: %v", err)
	}
	if stored.Energy.Current != 88 {
		t.Fatalf("energy = %d, want 88", stored.Energy.Current)
	}
	if stored.AP.Current != stored.AP.Max {
		t.Fatalf("ap = %d, want refilled to %d", stored.AP.Current, stored.AP.Max)
	}
}

// TestDelayTurnReorders delays the active entity and checks the rotation
// and the event order.
func TestDelayTurnReorders(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)

	startCombatWith(t, s, gm, testEntity("a", 1), testEntity("b", 1), testEntity("c", 1))
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "a", "roll": 30})
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "b", "roll": 20})
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "c", "roll": 10})

	send(t, s, gm, MsgDelayTurn, nil)

	entries, err := s.store.ListInitiative(context.Background())
	if err != nil {
		t.Fatalf("list initiative: %v", err)
	}
	var order []string
	for _, entry := range entries {
		order = append(order, entry.EntityID)
	}
	want := []string{"b", "c", "a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	enc, err := s.store.GetEncounter(context.Background())
	if err != nil {
		t.Fatalf("load encounter: %v", err)
	}
	if enc.TurnIndex != 0 || enc.ActiveEntityID != "b" {
		t.Fatalf("turn = %d active %q, want 0/b", enc.TurnIndex, enc.ActiveEntityID)
	}

	endedAt, startedAt := -1, -1
	for i, event := range transport.events {
		payload, _ := event.Payload.(map[string]any)
		if event.Type == EventTurnEnded && payload["delayed"] == true {
			endedAt = i
		}
		if event.Type == EventTurnStarted && payload["entityId"] == "b" {
			startedAt = i
		}
	}
	if endedAt < 0 || startedAt < 0 || endedAt > startedAt {
		t.Fatalf("TURN_ENDED(delayed) at %d must precede TURN_STARTED(b) at %d", endedAt, startedAt)
	}
}

// TestGMGating rejects GM-only messages from a player connection with the
// canonical reason.
func TestGMGating(t *testing.T) {
	s := newTestSession(t)
	player, transport := attach(s, "conn-p", "p1", false)

	send(t, s, player, MsgGMAddEntity, map[string]any{"entity": testEntity("x", 1)})

	rejected, ok := transport.lastOfType(EventActionRejected)
	if !ok {
		t.Fatal("expected ACTION_REJECTED")
	}
	if reason := rejected.Payload.(map[string]any)["reason"]; reason != "GM privileges required" {
		t.Fatalf("reason = %v, want GM privileges required", reason)
	}
}

// TestUnknownMessageRejected answers unregistered types with a rejection.
func TestUnknownMessageRejected(t *testing.T) {
	s := newTestSession(t)
	conn, transport := attach(s, "conn-1", "p1", false)

	send(t, s, conn, "DO_A_FLIP", nil)

	if _, ok := transport.lastOfType(EventActionRejected); !ok {
		t.Fatal("expected ACTION_REJECTED for unknown type")
	}
}

// TestVersionMonotonicAcrossMutations checks the counter climbs with each
// successful mutation.
func TestVersionMonotonicAcrossMutations(t *testing.T) {
	s := newTestSession(t)
	gm, _ := attach(s, "conn-gm", "", true)

	startCombatWith(t, s, gm, testEntity("e1", 1))
	first, err := s.store.GetEncounter(context.Background())
	if err != nil {
		t.Fatalf("load encounter: %v", err)
	}

	send(t, s, gm, MsgGMApplyDamage, map[string]any{"entityId": "e1", "damage": 5})
	second, err := s.store.GetEncounter(context.Background())
	if err != nil {
		t.Fatalf("load encounter: %v", err)
	}
	if second.Version <= first.Version {
		t.Fatalf("version did not increase: %d -> %d", first.Version, second.Version)
	}
}

// TestMovementOccupancyAndCost covers free pre-combat placement, the
// occupancy rejection, and the GM force override.
func TestMovementOccupancyAndCost(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)

	startCombatWith(t, s, gm, testEntity("m1", 1), testEntity("m2", 1))

	send(t, s, gm, MsgDeclareMovement, map[string]any{
		"entityId": "m1", "targetRow": 5, "targetCol": 5,
	})
	moved, ok := transport.lastOfType(EventMovementExecuted)
	if !ok {
		t.Fatal("expected MOVEMENT_EXECUTED")
	}
	if cost := moved.Payload.(map[string]any)["apCost"]; cost != 0 {
		t.Fatalf("pre-combat movement cost = %v, want 0", cost)
	}

	send(t, s, gm, MsgDeclareMovement, map[string]any{
		"entityId": "m2", "targetRow": 5, "targetCol": 5,
	})
	rejected, ok := transport.lastOfType(EventActionRejected)
	if !ok {
		t.Fatal("expected ACTION_REJECTED for occupied cell")
	}
	if reason := rejected.Payload.(map[string]any)["reason"]; reason != "Target cell is occupied" {
		t.Fatalf("reason = %v, want Target cell is occupied", reason)
	}

	send(t, s, gm, MsgGMMoveEntity, map[string]any{
		"entityId": "m2", "targetRow": 5, "targetCol": 5, "force": true,
	})
	if events := transport.ofType(EventMovementExecuted); len(events) != 2 {
		t.Fatalf("forced move did not execute, %d MOVEMENT_EXECUTED events", len(events))
	}
}

// TestMovementAPCostDuringCombat charges ceil(distance / rate) once combat
// is running.
func TestMovementAPCostDuringCombat(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)

	startCombatWith(t, s, gm, testEntity("mv", 1))
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "mv", "roll": 10})

	send(t, s, gm, MsgDeclareMovement, map[string]any{
		"entityId": "mv", "targetRow": 0, "targetCol": 0,
	})
	send(t, s, gm, MsgDeclareMovement, map[string]any{
		"entityId": "mv", "targetRow": 0, "targetCol": 6, "physicalAttribute": 5,
	})

	moved, ok := transport.lastOfType(EventMovementExecuted)
	if !ok {
		t.Fatal("expected MOVEMENT_EXECUTED")
	}
	payload := moved.Payload.(map[string]any)
	if payload["distance"] != 6 || payload["apCost"] != 2 {
		t.Fatalf("distance/apCost = %v/%v, want 6/2", payload["distance"], payload["apCost"])
	}
}

// TestEndureAndDeathFlow walks an entity from zero energy through a failed
// endure roll and a failed death check.
func TestEndureAndDeathFlow(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)

	victim := testEntity("victim", 1)
	victim.Energy = domain.Resource{Current: 30, Max: 100}
	startCombatWith(t, s, gm, testEntity("killer", 1), victim)
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "killer", "roll": 20})
	send(t, s, gm, MsgSubmitInitiativeRoll, map[string]any{"entityId": "victim", "roll": 10})

	send(t, s, gm, MsgDeclareAttack, map[string]any{
		"attackerId": "killer",
		"targetId":   "victim",
		"baseDamage": 30,
		"damageType": "impact",
	})
	if _, ok := transport.lastOfType(EventEndureRollRequired); !ok {
		t.Fatal("expected ENDURE_ROLL_REQUIRED at zero energy")
	}

	send(t, s, gm, MsgSubmitEndureRoll, map[string]any{
		"entityId": "victim", "rollTotal": 12, "success": false,
	})
	if _, ok := transport.lastOfType(EventEntityUnconscious); !ok {
		t.Fatal("expected ENTITY_UNCONSCIOUS")
	}
	down, err := s.store.GetEntity(context.Background(), "victim")
	if err != nil {
		t.Fatalf("load victim: %v", err)
	}
	if !down.Unconscious || !down.Alive {
		t.Fatalf("victim = unconscious %v alive %v, want unconscious and alive", down.Unconscious, down.Alive)
	}

	send(t, s, gm, MsgSubmitDeathCheck, map[string]any{
		"entityId": "victim", "rollTotal": 3, "success": false,
	})
	if _, ok := transport.lastOfType(EventEntityDied); !ok {
		t.Fatal("expected ENTITY_DIED")
	}
	dead, err := s.store.GetEntity(context.Background(), "victim")
	if err != nil {
		t.Fatalf("load victim: %v", err)
	}
	if dead.Alive || dead.Unconscious {
		t.Fatalf("victim = alive %v unconscious %v, want dead", dead.Alive, dead.Unconscious)
	}
	entries, err := s.store.ListInitiative(context.Background())
	if err != nil {
		t.Fatalf("list initiative: %v", err)
	}
	for _, entry := range entries {
		if entry.EntityID == "victim" {
			t.Fatal("dead entity still in initiative")
		}
	}
}

// TestStateSyncMergesChannelingAndFiltersControl checks the snapshot
// contract: channeling rows fold into their entities and the control set is
// per-connection.
func TestStateSyncMergesChannelingAndFiltersControl(t *testing.T) {
	s := newTestSession(t)
	gm, _ := attach(s, "conn-gm", "", true)

	hero := testEntity("hero", 1)
	hero.Controller = domain.PlayerController("p1")
	startCombatWith(t, s, gm, hero, testEntity("npc", 1))

	send(t, s, gm, MsgStartChanneling, map[string]any{
		"entityId": "npc", "spellName": "spark", "totalCost": 10,
		"damageType": "shock", "intensity": 1, "initialEnergy": 5, "initialAP": 1,
	})

	player, _ := attach(s, "conn-p", "p1", false)
	sync, err := s.buildState(context.Background(), player)
	if err != nil {
		t.Fatalf("build state: %v", err)
	}
	if len(sync.YourControlledEntities) != 1 || sync.YourControlledEntities[0] != "hero" {
		t.Fatalf("controlled = %v, want [hero]", sync.YourControlledEntities)
	}
	var npc *domain.Entity
	for i := range sync.State.Entities {
		if sync.State.Entities[i].ID == "npc" {
			npc = &sync.State.Entities[i]
		}
	}
	if npc == nil || npc.Channeling == nil {
		t.Fatal("expected channeling merged into npc snapshot")
	}
	if npc.Channeling.SpellName != "spark" {
		t.Fatalf("channeling spell = %q, want spark", npc.Channeling.SpellName)
	}
}

// TestEventTimestampsNeverDecrease forces the clock backwards and checks
// emission order still wins.
func TestEventTimestampsNeverDecrease(t *testing.T) {
	s := newTestSession(t)
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	first := s.event(EventTurnStarted, nil, "")
	current = current.Add(-time.Minute)
	second := s.event(EventTurnEnded, nil, "")

	if second.Timestamp < first.Timestamp {
		t.Fatalf("timestamp went backwards: %s then %s", first.Timestamp, second.Timestamp)
	}
}

// TestEndCombatClearsState ends an encounter and checks the tables are
// empty afterwards.
func TestEndCombatClearsState(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)

	startCombatWith(t, s, gm, testEntity("e1", 1))
	send(t, s, gm, MsgEndCombat, nil)

	if _, ok := transport.lastOfType(EventCombatEnded); !ok {
		t.Fatal("expected COMBAT_ENDED")
	}
	count, err := s.store.CountEntities(context.Background())
	if err != nil {
		t.Fatalf("count entities: %v", err)
	}
	if count != 0 {
		t.Fatalf("entities after END_COMBAT = %d, want 0", count)
	}
}

// TestGMModifyResourcesAppliesDeltas shifts both pools and checks the
// floors.
func TestGMModifyResourcesAppliesDeltas(t *testing.T) {
	s := newTestSession(t)
	gm, _ := attach(s, "conn-gm", "", true)

	startCombatWith(t, s, gm, testEntity("e1", 1))
	send(t, s, gm, MsgGMModifyResources, map[string]any{"entityId": "e1", "ap": -10, "energy": 20})

	stored, err := s.store.GetEntity(context.Background(), "e1")
	if err != nil {
		t.Fatalf("load entity: %v", err)
	}
	if stored.AP.Current != 0 || stored.AP.Max != 1 {
		t.Fatalf("ap = %+v, want current 0 max 1", stored.AP)
	}
	if stored.Energy.Current != 120 || stored.Energy.Max != 120 {
		t.Fatalf("energy = %+v, want 120/120", stored.Energy)
	}
}

// TestChannelingRejectsNegativeContributions covers both entry points: a
// negative opening contribution and a negative top-up must be refused before
// the channeling row mutates.
func TestChannelingRejectsNegativeContributions(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)
	startCombatWith(t, s, gm, testEntity("caster", 1))

	send(t, s, gm, MsgStartChanneling, map[string]any{
		"entityId": "caster", "spellName": "torrent", "totalCost": 30,
		"damageType": "frost", "intensity": 2,
		"initialEnergy": -10, "initialAP": -2,
	})
	rejected, ok := transport.lastOfType(EventActionRejected)
	if !ok {
		t.Fatal("expected ACTION_REJECTED for negative opening contribution")
	}
	if reason := rejected.Payload.(map[string]any)["reason"]; reason != "Channeling contributions cannot be negative" {
		t.Fatalf("reason = %v", reason)
	}
	if _, err := s.store.GetChanneling(context.Background(), "caster"); !isNotFound(err) {
		t.Fatalf("rejected start persisted a channeling row: %v", err)
	}

	send(t, s, gm, MsgStartChanneling, map[string]any{
		"entityId": "caster", "spellName": "torrent", "totalCost": 30,
		"damageType": "frost", "intensity": 2,
		"initialEnergy": 10, "initialAP": 2,
	})
	send(t, s, gm, MsgContinueChanneling, map[string]any{
		"entityId": "caster", "additionalEnergy": -1000, "additionalAP": -1000,
	})
	rejected, ok = transport.lastOfType(EventActionRejected)
	if !ok {
		t.Fatal("expected ACTION_REJECTED for negative top-up")
	}
	if reason := rejected.Payload.(map[string]any)["reason"]; reason != "Channeling contributions cannot be negative" {
		t.Fatalf("reason = %v", reason)
	}

	ch, err := s.store.GetChanneling(context.Background(), "caster")
	if err != nil {
		t.Fatalf("load channeling: %v", err)
	}
	if ch.EnergyChanneled != 10 || ch.APChanneled != 2 || ch.TurnsChanneled != 1 {
		t.Fatalf("channeling mutated by rejected top-up: %+v", ch)
	}
	caster, err := s.store.GetEntity(context.Background(), "caster")
	if err != nil {
		t.Fatalf("load caster: %v", err)
	}
	if caster.Energy.Current != 90 || caster.AP.Current != 4 {
		t.Fatalf("caster pools mutated by rejected top-up: energy %d ap %d",
			caster.Energy.Current, caster.AP.Current)
	}
}

// TestAttackRejectsNegativeDamage ensures a negative base damage cannot heal
// the target, on both the direct attack and the attack-contest path.
func TestAttackRejectsNegativeDamage(t *testing.T) {
	s := newTestSession(t)
	gm, transport := attach(s, "conn-gm", "", true)
	startCombatWith(t, s, gm, testEntity("att", 1), testEntity("def", 1))

	send(t, s, gm, MsgDeclareAttack, map[string]any{
		"attackerId": "att",
		"targetId":   "def",
		"baseDamage": -500,
		"damageType": "impact",
	})
	rejected, ok := transport.lastOfType(EventActionRejected)
	if !ok {
		t.Fatal("expected ACTION_REJECTED for negative damage")
	}
	if reason := rejected.Payload.(map[string]any)["reason"]; reason != "Damage cannot be negative" {
		t.Fatalf("reason = %v", reason)
	}

	send(t, s, gm, MsgInitiateAttackContest, map[string]any{
		"initiatorEntityId": "att",
		"targetEntityId":    "def",
		"skill":             "blades",
		"rawRolls":          []int{50},
		"keepHighest":       true,
		"baseDamage":        -500,
		"damageType":        "impact",
	})
	rejected, ok = transport.lastOfType(EventActionRejected)
	if !ok {
		t.Fatal("expected ACTION_REJECTED for negative contest damage")
	}
	if reason := rejected.Payload.(map[string]any)["reason"]; reason != "Damage cannot be negative" {
		t.Fatalf("reason = %v", reason)
	}

	target, err := s.store.GetEntity(context.Background(), "def")
	if err != nil {
		t.Fatalf("load target: %v", err)
	}
	if target.Energy.Current != 100 || target.Energy.Current > target.Energy.Max {
		t.Fatalf("target energy = %+v, want unchanged 100/100", target.Energy)
	}
}

// TestContestResponseRequestPrecedesSync pins the delivery order on the
// defender's connection: the scoped response demand lands between the
// initiated broadcast and the state snapshot that shows the open contest.
func TestContestResponseRequestPrecedesSync(t *testing.T) {
	s := newTestSession(t)
	gm, _ := attach(s, "conn-gm", "", true)

	defender := testEntity("def", 1)
	defender.Controller = domain.PlayerController("p2")
	startCombatWith(t, s, gm, testEntity("att", 1), defender)

	_, playerTransport := attach(s, "conn-p2", "p2", false, "def")

	send(t, s, gm, MsgInitiateAttackContest, map[string]any{
		"initiatorEntityId": "att",
		"targetEntityId":    "def",
		"skill":             "blades",
		"skillModifier":     10,
		"rawRolls":          []int{60},
		"keepHighest":       true,
		"baseDamage":        10,
		"damageType":        "laceration",
	})

	initiatedAt, requestedAt, syncAt := -1, -1, -1
	for i, event := range playerTransport.events {
		switch event.Type {
		case EventAttackContestInitiated:
			initiatedAt = i
		case EventSkillContestResponseRequested:
			requestedAt = i
		case EventStateSync:
			if syncAt < 0 && requestedAt >= 0 {
				syncAt = i
			}
		}
	}
	if initiatedAt < 0 || requestedAt < 0 || syncAt < 0 {
		t.Fatalf("missing events: initiated %d requested %d sync %d",
			initiatedAt, requestedAt, syncAt)
	}
	if !(initiatedAt < requestedAt && requestedAt < syncAt) {
		t.Fatalf("order = initiated %d, requested %d, sync %d; want initiated < requested < sync",
			initiatedAt, requestedAt, syncAt)
	}
}
