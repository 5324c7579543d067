package domain

import "time"

// Contest kinds.
const (
	ContestTypeSkill  = "skill"
	ContestTypeAttack = "attack"
)

// Contest statuses.
const (
	ContestAwaitingResponse = "awaiting_response"
	ContestResolved         = "resolved"
)

// ContestSide captures one participant's roll in a contest.
type ContestSide struct {
	EntityID      string `json:"entityId"`
	PlayerID      string `json:"playerId,omitempty"`
	Skill         string `json:"skill"`
	DiceCount     int    `json:"diceCount"`
	KeepHighest   bool   `json:"keepHighest"`
	RawRolls      []int  `json:"rawRolls"`
	SelectedRoll  int    `json:"selectedRoll"`
	SkillModifier int    `json:"skillModifier"`
	Total         int    `json:"total"`
}

// Contest is a two-phase contested d100 roll between an initiator and a
// defender. Attack contests carry damage parameters resolved on a win.
type Contest struct {
	ID          string       `json:"id"`
	ContestType string       `json:"contestType"`
	Initiator   ContestSide  `json:"initiator"`
	Defender    *ContestSide `json:"defender,omitempty"`
	Status      string       `json:"status"`
	// WinnerEntityID is empty for a tie.
	WinnerEntityID string    `json:"winnerEntityId,omitempty"`
	Margin         int       `json:"margin"`
	CreatedAt      time.Time `json:"createdAt"`

	// Attack-contest damage envelope.
	BaseDamage        int    `json:"baseDamage,omitempty"`
	DamageType        string `json:"damageType,omitempty"`
	PhysicalAttribute int    `json:"physicalAttribute,omitempty"`
	APCost            int    `json:"apCost,omitempty"`
	EnergyCost        int    `json:"energyCost,omitempty"`
}

// Resolve records the defender's side and decides the contest. The winner is
// the higher total; equal totals are a tie and leave WinnerEntityID empty.
func (c *Contest) Resolve(defender ContestSide) {
	c.Defender = &defender
	c.Status = ContestResolved

	switch {
	case c.Initiator.Total > defender.Total:
		c.WinnerEntityID = c.Initiator.EntityID
	case defender.Total > c.Initiator.Total:
		c.WinnerEntityID = defender.EntityID
	}

	margin := c.Initiator.Total - defender.Total
	if margin < 0 {
		margin = -margin
	}
	c.Margin = margin
}

// InitiatorWon reports whether the initiator carried a resolved contest.
func (c *Contest) InitiatorWon() bool {
	return c.Status == ContestResolved && c.WinnerEntityID == c.Initiator.EntityID && c.WinnerEntityID != ""
}
