package domain

import "math"

// CriticalTier grades a winning attack contest by its margin percentage.
type CriticalTier string

const (
	CriticalNormal  CriticalTier = "normal"
	CriticalWicked  CriticalTier = "wicked"
	CriticalVicious CriticalTier = "vicious"
	CriticalBrutal  CriticalTier = "brutal"
)

// Margin percentage thresholds for critical tiers.
const (
	wickedThreshold  = 50.0
	viciousThreshold = 100.0
	brutalThreshold  = 200.0
)

// Multiplier scales pre-modifier damage for the tier.
func (c CriticalTier) Multiplier() float64 {
	switch c {
	case CriticalBrutal:
		return 2.0
	case CriticalVicious:
		return 1.5
	default:
		return 1.0
	}
}

// BonusWounds are added on top of damage wounds for the tier.
func (c CriticalTier) BonusWounds() int {
	switch c {
	case CriticalBrutal:
		return 2
	case CriticalVicious, CriticalWicked:
		return 1
	default:
		return 0
	}
}

// EvaluateCritical grades the margin of a won attack contest. A defender
// total of zero or less cannot be expressed as a percentage and counts as
// brutal.
func EvaluateCritical(initiatorTotal, defenderTotal int) (CriticalTier, float64) {
	if defenderTotal <= 0 {
		return CriticalBrutal, brutalThreshold
	}
	marginPercent := float64(initiatorTotal-defenderTotal) / float64(defenderTotal) * 100
	switch {
	case marginPercent >= brutalThreshold:
		return CriticalBrutal, marginPercent
	case marginPercent >= viciousThreshold:
		return CriticalVicious, marginPercent
	case marginPercent >= wickedThreshold:
		return CriticalWicked, marginPercent
	default:
		return CriticalNormal, marginPercent
	}
}

// CriticalDamage computes the pre-modifier damage of a critical hit:
// floor((baseDamage + physicalAttribute) × multiplier).
func CriticalDamage(baseDamage, physicalAttribute int, tier CriticalTier) int {
	return int(math.Floor(float64(baseDamage+physicalAttribute) * tier.Multiplier()))
}
