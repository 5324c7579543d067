package domain

import "testing"

// TestSortInitiativeTiebreaks ensures ordering is roll, then skill value,
// then current energy, with dense positions.
func TestSortInitiativeTiebreaks(t *testing.T) {
	entries := []InitiativeEntry{
		{EntityID: "e2", Roll: 15, SkillValue: 10, CurrentEnergy: 90},
		{EntityID: "e1", Roll: 18, SkillValue: 5, CurrentEnergy: 100},
		{EntityID: "e3", Roll: 15, SkillValue: 10, CurrentEnergy: 100},
	}

	SortInitiative(entries)

	want := []string{"e1", "e3", "e2"}
	for i, id := range want {
		if entries[i].EntityID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, entries[i].EntityID)
		}
		if entries[i].Position != i {
			t.Fatalf("expected dense position %d, got %d", i, entries[i].Position)
		}
	}
}

func TestAdvanceTurn(t *testing.T) {
	next, rolled := AdvanceTurn(0, 3)
	if next != 1 || rolled {
		t.Fatalf("expected (1,false), got (%d,%v)", next, rolled)
	}
	next, rolled = AdvanceTurn(2, 3)
	if next != 0 || !rolled {
		t.Fatalf("expected rollover to (0,true), got (%d,%v)", next, rolled)
	}
}

// TestEndTurnEnergyConversion mirrors the level-6 example: tier 2, factor 3,
// three unspent AP yields 18 energy.
func TestEndTurnEnergyConversion(t *testing.T) {
	e := &Entity{
		Level:  6,
		AP:     Resource{Current: 3, Max: 6},
		Energy: Resource{Current: 70, Max: 100},
	}

	gain := EndTurn(e, 0)

	if gain != 18 {
		t.Fatalf("expected 18 energy gain, got %d", gain)
	}
	if e.Energy.Current != 88 {
		t.Fatalf("expected energy 88, got %d", e.Energy.Current)
	}
	if e.AP.Current != 6 {
		t.Fatalf("expected AP refilled to 6, got %d", e.AP.Current)
	}
}

func TestEndTurnEnergyCappedAtMax(t *testing.T) {
	e := &Entity{
		Level:  6,
		AP:     Resource{Current: 6, Max: 6},
		Energy: Resource{Current: 95, Max: 100},
	}

	EndTurn(e, 0)

	if e.Energy.Current != 100 {
		t.Fatalf("expected energy capped at 100, got %d", e.Energy.Current)
	}
}

func TestEntityTier(t *testing.T) {
	cases := []struct{ level, tier int }{
		{1, 1}, {5, 1}, {6, 2}, {10, 2}, {11, 3}, {0, 1},
	}
	for _, tc := range cases {
		if got := EntityTier(tc.level); got != tc.tier {
			t.Fatalf("level %d: expected tier %d, got %d", tc.level, tc.tier, got)
		}
	}
}

// TestApplyDamageModifiers verifies the immunity > resistance > weakness
// precedence and the short-circuit at the first match.
func TestApplyDamageModifiers(t *testing.T) {
	target := &Entity{
		Immunities:  []string{"fire"},
		Resistances: []string{"cold", "fire"},
		Weaknesses:  []string{"laceration", "cold"},
	}

	final, modifier := ApplyDamageModifiers(target, 11, "fire")
	if final != 0 || modifier != ModifierImmune {
		t.Fatalf("expected immune 0, got %d %s", final, modifier)
	}

	final, modifier = ApplyDamageModifiers(target, 11, "cold")
	if final != 5 || modifier != ModifierResistant {
		t.Fatalf("expected resistant 5, got %d %s", final, modifier)
	}

	final, modifier = ApplyDamageModifiers(target, 11, "laceration")
	if final != 22 || modifier != ModifierWeak {
		t.Fatalf("expected weak 22, got %d %s", final, modifier)
	}

	final, modifier = ApplyDamageModifiers(target, 11, "psychic")
	if final != 11 || modifier != ModifierNone {
		t.Fatalf("expected passthrough 11, got %d %s", final, modifier)
	}
}

func TestWoundCount(t *testing.T) {
	cases := []struct{ damage, wounds int }{
		{0, 0}, {1, 1}, {20, 1}, {21, 2}, {40, 2}, {41, 3},
	}
	for _, tc := range cases {
		if got := WoundCount(tc.damage); got != tc.wounds {
			t.Fatalf("damage %d: expected %d wounds, got %d", tc.damage, tc.wounds, got)
		}
	}
}

// TestApplyDamageTriggersEndure ensures a hit dropping a conscious target to
// zero energy demands an endure roll.
func TestApplyDamageTriggersEndure(t *testing.T) {
	target := &Entity{
		Alive:  true,
		Energy: Resource{Current: 10, Max: 100},
	}

	outcome := ApplyDamage(target, 15, "impact", 0)

	if outcome.FinalDamage != 15 {
		t.Fatalf("expected 15 final damage, got %d", outcome.FinalDamage)
	}
	if target.Energy.Current != 0 {
		t.Fatalf("expected energy floored at 0, got %d", target.Energy.Current)
	}
	if !outcome.EndureRequired {
		t.Fatal("expected endure roll requirement")
	}
	if target.Wounds["impact"] != 1 {
		t.Fatalf("expected 1 impact wound, got %d", target.Wounds["impact"])
	}
}

func TestApplyDamageUnconsciousTargetSkipsEndure(t *testing.T) {
	target := &Entity{
		Alive:       true,
		Unconscious: true,
		Energy:      Resource{Current: 0, Max: 100},
	}

	outcome := ApplyDamage(target, 5, "impact", 0)

	if outcome.EndureRequired {
		t.Fatal("expected no endure roll for unconscious target")
	}
}

// TestEvaluateCriticalThresholds checks the tier boundaries at 50%, 100%,
// and 200% margin.
func TestEvaluateCriticalThresholds(t *testing.T) {
	cases := []struct {
		initiator, defender int
		tier                CriticalTier
	}{
		{120, 40, CriticalBrutal},   // 200%
		{119, 40, CriticalVicious},  // 197.5%
		{80, 40, CriticalVicious},   // 100%
		{79, 40, CriticalWicked},    // 97.5%
		{60, 40, CriticalWicked},    // 50%
		{59, 40, CriticalNormal},    // 47.5%
		{41, 40, CriticalNormal},    // 2.5%
		{50, 0, CriticalBrutal},     // no defender total to compare against
		{50, -10, CriticalBrutal},
	}
	for _, tc := range cases {
		tier, _ := EvaluateCritical(tc.initiator, tc.defender)
		if tier != tc.tier {
			t.Fatalf("%d vs %d: expected %s, got %s", tc.initiator, tc.defender, tc.tier, tier)
		}
	}
}

func TestCriticalDamage(t *testing.T) {
	if got := CriticalDamage(10, 5, CriticalBrutal); got != 30 {
		t.Fatalf("expected brutal damage 30, got %d", got)
	}
	if got := CriticalDamage(10, 5, CriticalVicious); got != 22 {
		t.Fatalf("expected vicious damage 22, got %d", got)
	}
	if got := CriticalDamage(10, 5, CriticalNormal); got != 15 {
		t.Fatalf("expected normal damage 15, got %d", got)
	}
}

// TestMovementCostBoundaries checks the distance/AP boundaries: zero is
// free, a full rate costs one AP, one square more costs two.
func TestMovementCostBoundaries(t *testing.T) {
	rate := SquaresPerAP(5)
	if rate != 5 {
		t.Fatalf("expected rate 5, got %d", rate)
	}
	if got := MovementAPCost(0, rate); got != 0 {
		t.Fatalf("expected free zero-distance move, got %d", got)
	}
	if got := MovementAPCost(5, rate); got != 1 {
		t.Fatalf("expected 1 AP for full rate, got %d", got)
	}
	if got := MovementAPCost(6, rate); got != 2 {
		t.Fatalf("expected 2 AP past rate, got %d", got)
	}
}

func TestSquaresPerAPFloor(t *testing.T) {
	if got := SquaresPerAP(1); got != 3 {
		t.Fatalf("expected floor of 3, got %d", got)
	}
}

func TestManhattanDistance(t *testing.T) {
	if got := ManhattanDistance(2, 3, 5, 1); got != 5 {
		t.Fatalf("expected distance 5, got %d", got)
	}
}

// TestChannelingReadiness mirrors the release gate: both pools must meet the
// total cost.
func TestChannelingReadiness(t *testing.T) {
	c := &Channeling{TotalCost: 30, Intensity: 2, EnergyChanneled: 30, APChanneled: 6}

	if c.IsReady() {
		t.Fatal("expected not ready while AP lags")
	}
	if got := c.Progress(); got != 0.2 {
		t.Fatalf("expected progress 0.2 from lagging pool, got %v", got)
	}

	c.APChanneled = 30
	if !c.IsReady() {
		t.Fatal("expected ready once both pools meet cost")
	}
	if got := c.ReleaseDamage(); got != 60 {
		t.Fatalf("expected release damage 60, got %d", got)
	}
}

func TestContestResolveWinnerAndMargin(t *testing.T) {
	c := &Contest{
		ID:          "c1",
		ContestType: ContestTypeSkill,
		Status:      ContestAwaitingResponse,
		Initiator:   ContestSide{EntityID: "a", Total: 75},
	}

	c.Resolve(ContestSide{EntityID: "b", Total: 60})

	if c.Status != ContestResolved {
		t.Fatalf("expected resolved status, got %s", c.Status)
	}
	if c.WinnerEntityID != "a" || !c.InitiatorWon() {
		t.Fatalf("expected initiator win, got winner %q", c.WinnerEntityID)
	}
	if c.Margin != 15 {
		t.Fatalf("expected margin 15, got %d", c.Margin)
	}
}

func TestContestResolveTie(t *testing.T) {
	c := &Contest{Initiator: ContestSide{EntityID: "a", Total: 50}}

	c.Resolve(ContestSide{EntityID: "b", Total: 50})

	if c.WinnerEntityID != "" {
		t.Fatalf("expected tie, got winner %q", c.WinnerEntityID)
	}
	if c.InitiatorWon() {
		t.Fatal("tie must not count as initiator win")
	}
}

func TestEntityNormalizeDefaults(t *testing.T) {
	e := &Entity{ID: "e1", DisplayName: "Grunt"}

	e.Normalize()

	if e.AP != DefaultAP {
		t.Fatalf("expected default AP, got %+v", e.AP)
	}
	if e.Energy != DefaultEnergy {
		t.Fatalf("expected default energy, got %+v", e.Energy)
	}
	if e.Controller != ControllerGM {
		t.Fatalf("expected gm controller default, got %q", e.Controller)
	}
	if e.Wounds == nil {
		t.Fatal("expected wounds map initialised")
	}
}

func TestControllerPlayerID(t *testing.T) {
	playerID, ok := ControllerPlayerID(PlayerController("p1"))
	if !ok || playerID != "p1" {
		t.Fatalf("expected player p1, got %q ok=%v", playerID, ok)
	}
	if _, ok := ControllerPlayerID(ControllerGM); ok {
		t.Fatal("gm controller must not resolve to a player")
	}
}

func TestResourceSpendAndDrain(t *testing.T) {
	r := Resource{Current: 3, Max: 6}
	if r.Spend(4) {
		t.Fatal("expected spend to fail")
	}
	if r.Current != 3 {
		t.Fatalf("failed spend must not mutate, got %d", r.Current)
	}
	if !r.Spend(3) {
		t.Fatal("expected spend to succeed")
	}
	r.Drain(5)
	if r.Current != 0 {
		t.Fatalf("expected drain floored at 0, got %d", r.Current)
	}
	r.Gain(10)
	if r.Current != 6 {
		t.Fatalf("expected gain capped at max, got %d", r.Current)
	}
}

// TestResourceDrainIgnoresNegativeAmounts ensures draining never credits a
// pool past its current value.
func TestResourceDrainIgnoresNegativeAmounts(t *testing.T) {
	r := Resource{Current: 40, Max: 100}
	r.Drain(-500)
	if r.Current != 40 {
		t.Fatalf("negative drain must not mutate, got %d", r.Current)
	}
	r.Drain(0)
	if r.Current != 40 {
		t.Fatalf("zero drain must not mutate, got %d", r.Current)
	}
}

// TestApplyDamageClampsNegativeDamage ensures a negative damage input cannot
// heal the target through the damage pipeline.
func TestApplyDamageClampsNegativeDamage(t *testing.T) {
	target := Entity{
		Energy: Resource{Current: 40, Max: 100},
		Alive:  true,
	}
	outcome := ApplyDamage(&target, -500, "impact", 0)
	if outcome.FinalDamage != 0 {
		t.Fatalf("expected final damage 0, got %d", outcome.FinalDamage)
	}
	if target.Energy.Current != 40 || target.Energy.Current > target.Energy.Max {
		t.Fatalf("expected energy unchanged at 40/100, got %+v", target.Energy)
	}
	if outcome.WoundsInflicted != 0 {
		t.Fatalf("expected no wounds, got %d", outcome.WoundsInflicted)
	}
}
