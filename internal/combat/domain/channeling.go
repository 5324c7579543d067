package domain

import "time"

// Channeling tracks a multi-turn spell charge for one entity.
type Channeling struct {
	EntityID        string    `json:"entityId"`
	SpellName       string    `json:"spellName"`
	DamageType      string    `json:"damageType"`
	Intensity       int       `json:"intensity"`
	TotalCost       int       `json:"totalCost"`
	EnergyChanneled int       `json:"energyChanneled"`
	APChanneled     int       `json:"apChanneled"`
	TurnsChanneled  int       `json:"turnsChanneled"`
	StartedAt       time.Time `json:"startedAt"`
}

// Progress reports charge completion in [0, 1]. Both pools must fill, so the
// lagging pool drives the figure.
func (c *Channeling) Progress() float64 {
	if c.TotalCost <= 0 {
		return 1
	}
	lagging := min(c.EnergyChanneled, c.APChanneled)
	progress := float64(lagging) / float64(c.TotalCost)
	return min(progress, 1)
}

// IsReady reports whether the spell can be released. Both energy and AP must
// meet the total cost.
func (c *Channeling) IsReady() bool {
	return c.EnergyChanneled >= c.TotalCost && c.APChanneled >= c.TotalCost
}

// ReleaseDamage is the raw damage of the released spell before target
// modifiers: energy channeled scaled by intensity.
func (c *Channeling) ReleaseDamage() int {
	return c.EnergyChanneled * c.Intensity
}
