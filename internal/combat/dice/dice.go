// Package dice implements the d100 pool rolls used by skill and attack
// contests.
package dice

import (
	"errors"
	"math/rand"
)

// Sides of the contest die.
const contestDieSides = 100

// ErrInvalidDiceCount indicates a pool request with no dice.
var ErrInvalidDiceCount = errors.New("dice count must be positive")

// PoolRequest describes a contest dice pool.
type PoolRequest struct {
	// DiceCount is how many d100 to roll.
	DiceCount int
	// KeepHighest selects the highest raw roll; otherwise the lowest.
	KeepHighest bool
	// Seed makes the roll deterministic when non-zero rolls matter in tests.
	Seed int64
}

// PoolResult captures the raw rolls and the selected die.
type PoolResult struct {
	RawRolls     []int
	SelectedRoll int
}

// RollPool rolls the pool and applies keep-highest/keep-lowest selection.
//
// RollPool is deterministic with respect to Seed: the same seed and dice
// count always produce the same raw rolls in the same order.
func RollPool(req PoolRequest) (PoolResult, error) {
	if req.DiceCount < 1 {
		return PoolResult{}, ErrInvalidDiceCount
	}

	rng := rand.New(rand.NewSource(req.Seed))
	raw := make([]int, req.DiceCount)
	for i := range raw {
		raw[i] = rng.Intn(contestDieSides) + 1
	}

	return PoolResult{RawRolls: raw, SelectedRoll: Select(raw, req.KeepHighest)}, nil
}

// Select applies keep-highest or keep-lowest to a set of raw rolls. It is
// also used to re-derive the selection from client-supplied rolls.
func Select(raw []int, keepHighest bool) int {
	if len(raw) == 0 {
		return 0
	}
	selected := raw[0]
	for _, roll := range raw[1:] {
		if keepHighest && roll > selected {
			selected = roll
		}
		if !keepHighest && roll < selected {
			selected = roll
		}
	}
	return selected
}
