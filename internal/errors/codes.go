// Package errors provides structured error handling for the combat authority.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Permission errors
	CodeGMRequired       Code = "GM_REQUIRED"
	CodeNotController    Code = "NOT_CONTROLLER"
	CodeNotActiveEntity  Code = "NOT_ACTIVE_ENTITY"
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Precondition errors
	CodeInsufficientAP       Code = "INSUFFICIENT_AP"
	CodeInsufficientEnergy   Code = "INSUFFICIENT_ENERGY"
	CodeNoActiveCombat       Code = "NO_ACTIVE_COMBAT"
	CodeNoEntities           Code = "NO_ENTITIES"
	CodeCellOccupied         Code = "CELL_OCCUPIED"
	CodeContestResolved      Code = "CONTEST_RESOLVED"
	CodeAlreadyChanneling    Code = "ALREADY_CHANNELING"
	CodeNotChanneling        Code = "NOT_CHANNELING"
	CodeSpellNotCharged      Code = "SPELL_NOT_CHARGED"
	CodeInvalidPhase         Code = "INVALID_PHASE"
	CodePreconditionFailed   Code = "PRECONDITION_FAILED"

	// Lookup errors
	CodeEntityNotFound  Code = "ENTITY_NOT_FOUND"
	CodeContestNotFound Code = "CONTEST_NOT_FOUND"
	CodeNotFound        Code = "NOT_FOUND"

	// Protocol errors
	CodeMalformedMessage Code = "MALFORMED_MESSAGE"
	CodeUnknownMessage   Code = "UNKNOWN_MESSAGE"

	// Infrastructure errors
	CodeStorage           Code = "STORAGE"
	CodeTransientExternal Code = "TRANSIENT_EXTERNAL"
)

// Class groups codes by how the router surfaces them to clients.
type Class int

const (
	// ClassInternal errors close the session or surface as ERROR events.
	ClassInternal Class = iota
	// ClassPermissionDenied errors surface as ACTION_REJECTED.
	ClassPermissionDenied
	// ClassPreconditionFailed errors surface as ACTION_REJECTED.
	ClassPreconditionFailed
	// ClassNotFound errors surface as ACTION_REJECTED.
	ClassNotFound
	// ClassMalformed errors surface as ERROR events.
	ClassMalformed
)

// ErrorClass maps domain codes to router response classes.
func (c Code) ErrorClass() Class {
	switch c {
	case CodeGMRequired,
		CodeNotController,
		CodeNotActiveEntity,
		CodePermissionDenied:
		return ClassPermissionDenied

	case CodeInsufficientAP,
		CodeInsufficientEnergy,
		CodeNoActiveCombat,
		CodeNoEntities,
		CodeCellOccupied,
		CodeContestResolved,
		CodeAlreadyChanneling,
		CodeNotChanneling,
		CodeSpellNotCharged,
		CodeInvalidPhase,
		CodePreconditionFailed:
		return ClassPreconditionFailed

	case CodeEntityNotFound,
		CodeContestNotFound,
		CodeNotFound:
		return ClassNotFound

	case CodeMalformedMessage,
		CodeUnknownMessage:
		return ClassMalformed

	default:
		return ClassInternal
	}
}

// Rejectable reports whether the code should surface as ACTION_REJECTED
// rather than an ERROR event.
func (c Code) Rejectable() bool {
	switch c.ErrorClass() {
	case ClassPermissionDenied, ClassPreconditionFailed, ClassNotFound:
		return true
	default:
		return false
	}
}
