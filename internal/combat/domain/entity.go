// Package domain implements the combat rules: entities, initiative ordering,
// the action-point economy, damage modifiers, critical tiers, movement costs,
// and channeling progress. The package is pure; storage and transport live
// elsewhere.
package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Controller prefixes. An entity is controlled either by the GM or by a
// single player.
const (
	ControllerGM           = "gm"
	controllerPlayerPrefix = "player:"
)

// PlayerController formats the controller string for a player.
func PlayerController(playerID string) string {
	return controllerPlayerPrefix + playerID
}

// ControllerPlayerID extracts the player id from a controller string.
// The second return is false for GM-controlled entities.
func ControllerPlayerID(controller string) (string, bool) {
	if rest, ok := strings.CutPrefix(controller, controllerPlayerPrefix); ok && rest != "" {
		return rest, true
	}
	return "", false
}

// Entity tiers.
const (
	TierMinion     = "minion"
	TierFull       = "full"
	TierLieutenant = "lieutenant"
	TierHero       = "hero"
)

// Entity factions.
const (
	FactionAlly    = "ally"
	FactionEnemy   = "enemy"
	FactionNeutral = "neutral"
)

// Entity types.
const (
	EntityTypePC      = "pc"
	EntityTypeNPC     = "npc"
	EntityTypeMonster = "monster"
)

// Default resource pools applied when an entity snapshot omits them. Wire
// payloads never carry null resources.
var (
	DefaultAP     = Resource{Current: 6, Max: 6}
	DefaultEnergy = Resource{Current: 100, Max: 100}
)

// Resource is a current/max pair such as AP or energy.
type Resource struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Spend debits amount from the current pool. It reports false without
// mutating when the pool is too small.
func (r *Resource) Spend(amount int) bool {
	if amount < 0 || r.Current < amount {
		return false
	}
	r.Current -= amount
	return true
}

// Gain credits amount to the current pool, capped at max.
func (r *Resource) Gain(amount int) {
	r.Current = min(r.Current+amount, r.Max)
}

// Drain debits amount from the current pool, floored at zero. A non-positive
// amount is a no-op; draining never credits.
func (r *Resource) Drain(amount int) {
	if amount <= 0 {
		return
	}
	r.Current = max(r.Current-amount, 0)
}

// Entity is a combatant registered with the encounter.
type Entity struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	Tier        string         `json:"tier,omitempty"`
	Faction     string         `json:"faction,omitempty"`
	Controller  string         `json:"controller"`
	EntityType  string         `json:"entityType,omitempty"`
	Level       int            `json:"level,omitempty"`
	AP          Resource       `json:"ap"`
	Energy      Resource       `json:"energy"`
	Wounds      map[string]int `json:"wounds"`
	Immunities  []string       `json:"immunities,omitempty"`
	Resistances []string       `json:"resistances,omitempty"`
	Weaknesses  []string       `json:"weaknesses,omitempty"`
	Alive       bool           `json:"alive"`
	Unconscious bool           `json:"unconscious"`
	CharacterID string         `json:"characterId,omitempty"`

	// Channeling mirrors the entity's active channeling row in snapshots.
	Channeling *Channeling `json:"channeling,omitempty"`
}

// Normalize fills resource defaults and required fields on an entity loaded
// from an external snapshot. A zero max marks an absent pool.
func (e *Entity) Normalize() {
	if e.AP.Max <= 0 {
		e.AP = DefaultAP
	}
	if e.Energy.Max <= 0 {
		e.Energy = DefaultEnergy
	}
	if e.Wounds == nil {
		e.Wounds = map[string]int{}
	}
	if e.Controller == "" {
		e.Controller = ControllerGM
	}
	if e.Level < 1 {
		e.Level = 1
	}
}

// Validate rejects entities that cannot participate in an encounter.
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entity id is required")
	}
	if strings.TrimSpace(e.DisplayName) == "" {
		return fmt.Errorf("entity display name is required")
	}
	return nil
}

// AddWounds accumulates count wounds under the damage type.
func (e *Entity) AddWounds(damageType string, count int) {
	if count <= 0 {
		return
	}
	if e.Wounds == nil {
		e.Wounds = map[string]int{}
	}
	e.Wounds[damageType] += count
}

// HasDamageType reports membership of damageType in the given trait set.
func HasDamageType(set []string, damageType string) bool {
	return slices.Contains(set, damageType)
}
