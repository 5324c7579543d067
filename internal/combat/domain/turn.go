package domain

// EntityTier derives the scaling tier from a level. Levels 1-5 are tier 1,
// 6-10 tier 2, and so on.
func EntityTier(level int) int {
	if level < 1 {
		level = 1
	}
	return (level + 4) / 5
}

// EndTurnEnergyGain converts unspent AP to energy at end of turn:
// tier × (3 + staminaPotionBonus) × unspentAP.
func EndTurnEnergyGain(level, staminaPotionBonus, unspentAP int) int {
	if unspentAP <= 0 {
		return 0
	}
	factor := 3 + staminaPotionBonus
	if factor < 0 {
		factor = 0
	}
	return EntityTier(level) * factor * unspentAP
}

// EndTurn applies the end-of-turn resource rollover to an entity: unspent AP
// converts to energy (capped at max) and the AP pool refills.
func EndTurn(e *Entity, staminaPotionBonus int) (energyGain int) {
	energyGain = EndTurnEnergyGain(e.Level, staminaPotionBonus, e.AP.Current)
	e.Energy.Gain(energyGain)
	e.AP.Current = e.AP.Max
	return energyGain
}
