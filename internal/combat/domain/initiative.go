package domain

import "sort"

// InitiativeEntry records one entity's place in the turn order.
type InitiativeEntry struct {
	EntityID      string `json:"entityId"`
	Roll          int    `json:"roll"`
	SkillValue    int    `json:"skillValue"`
	CurrentEnergy int    `json:"currentEnergy"`
	Position      int    `json:"position"`
}

// SortInitiative orders entries for combat: highest roll first, ties broken
// by skill value then by current energy. Positions are rewritten densely
// from zero.
func SortInitiative(entries []InitiativeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Roll != b.Roll {
			return a.Roll > b.Roll
		}
		if a.SkillValue != b.SkillValue {
			return a.SkillValue > b.SkillValue
		}
		return a.CurrentEnergy > b.CurrentEnergy
	})
	for i := range entries {
		entries[i].Position = i
	}
}

// AdvanceTurn computes the next turn cursor. rolledOver is true when the
// cursor wrapped and a new round begins.
func AdvanceTurn(turnIndex, entryCount int) (next int, rolledOver bool) {
	if entryCount <= 0 {
		return 0, false
	}
	next = (turnIndex + 1) % entryCount
	return next, next == 0
}
