package domain

// DamageModifier names the trait that altered incoming damage.
type DamageModifier string

const (
	// ModifierNone means the damage passed through unchanged.
	ModifierNone DamageModifier = "none"
	// ModifierImmune zeroes the damage.
	ModifierImmune DamageModifier = "immune"
	// ModifierResistant halves the damage, rounding down.
	ModifierResistant DamageModifier = "resistant"
	// ModifierWeak doubles the damage.
	ModifierWeak DamageModifier = "weak"
)

// woundThreshold is how much final damage inflicts one wound.
const woundThreshold = 20

// ApplyDamageModifiers runs the trait pipeline for a damage type against a
// target. Precedence is immunity over resistance over weakness; the pipeline
// short-circuits at the first matching trait.
func ApplyDamageModifiers(target *Entity, baseDamage int, damageType string) (final int, modifier DamageModifier) {
	switch {
	case HasDamageType(target.Immunities, damageType):
		return 0, ModifierImmune
	case HasDamageType(target.Resistances, damageType):
		return baseDamage / 2, ModifierResistant
	case HasDamageType(target.Weaknesses, damageType):
		return baseDamage * 2, ModifierWeak
	default:
		return baseDamage, ModifierNone
	}
}

// WoundCount converts final damage into wounds: one wound per started
// 20 points.
func WoundCount(finalDamage int) int {
	if finalDamage <= 0 {
		return 0
	}
	return (finalDamage + woundThreshold - 1) / woundThreshold
}

// DamageOutcome summarizes a resolved hit against a target.
type DamageOutcome struct {
	BaseDamage      int            `json:"baseDamage"`
	FinalDamage     int            `json:"finalDamage"`
	DamageType      string         `json:"damageType"`
	Modifier        DamageModifier `json:"modifier"`
	WoundsInflicted int            `json:"woundsInflicted"`
	RemainingEnergy int            `json:"remainingEnergy"`
	// EndureRequired is set when the hit dropped a conscious target to
	// zero energy.
	EndureRequired bool `json:"endureRequired"`
}

// ApplyDamage runs the modifier pipeline and applies energy loss and wound
// accumulation to the target. One wound is inflicted per started 20 points of
// final damage, plus extraWounds from critical tiers.
func ApplyDamage(target *Entity, baseDamage int, damageType string, extraWounds int) DamageOutcome {
	return applyDamage(target, baseDamage, damageType, func(final int) int {
		return WoundCount(final) + extraWounds
	})
}

// ApplyContestDamage runs the modifier pipeline for a resolved attack
// contest. Contest wounds come from the critical tier alone, not from the
// damage total.
func ApplyContestDamage(target *Entity, preModDamage int, damageType string, tier CriticalTier) DamageOutcome {
	return applyDamage(target, preModDamage, damageType, func(int) int {
		return tier.BonusWounds()
	})
}

func applyDamage(target *Entity, baseDamage int, damageType string, woundsFor func(final int) int) DamageOutcome {
	final, modifier := ApplyDamageModifiers(target, baseDamage, damageType)
	// Negative inputs must never heal through the damage path.
	final = max(final, 0)

	wasConscious := !target.Unconscious && target.Alive
	target.Energy.Drain(final)

	wounds := 0
	if final > 0 {
		wounds = woundsFor(final)
		target.AddWounds(damageType, wounds)
	}

	return DamageOutcome{
		BaseDamage:      baseDamage,
		FinalDamage:     final,
		DamageType:      damageType,
		Modifier:        modifier,
		WoundsInflicted: wounds,
		RemainingEnergy: target.Energy.Current,
		EndureRequired:  wasConscious && target.Energy.Current == 0,
	}
}
