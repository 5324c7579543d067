package domain

// Phase describes the lifecycle state of an encounter.
type Phase string

const (
	// PhaseSetup is the pre-combat staging state.
	PhaseSetup Phase = "setup"
	// PhaseInitiative means rolls are being collected.
	PhaseInitiative Phase = "initiative"
	// PhaseActive means combat is running between turns.
	PhaseActive Phase = "active"
	// PhaseActiveTurn means an entity's turn is in progress.
	PhaseActiveTurn Phase = "active-turn"
	// PhaseCompleted is terminal.
	PhaseCompleted Phase = "completed"
)

// InCombat reports whether the encounter is in a running combat phase.
func (p Phase) InCombat() bool {
	return p == PhaseActive || p == PhaseActiveTurn
}

// ClientPhase maps the internal phase to the value reported to clients.
// Clients never see active-turn; it is part of the active contract.
func (p Phase) ClientPhase() Phase {
	if p == PhaseActiveTurn {
		return PhaseActive
	}
	return p
}

// ValidPhase reports whether value names a known phase.
func ValidPhase(value string) bool {
	switch Phase(value) {
	case PhaseSetup, PhaseInitiative, PhaseActive, PhaseActiveTurn, PhaseCompleted:
		return true
	}
	return false
}
