package registry

// Status is the lifecycle state of a submission as reported by the contract.
// The zero value is StatusNone.
type Status uint8

const (
	StatusNone Status = iota
	StatusVouching
	StatusPendingRegistration
	StatusPendingRemoval
	// StatusError marks a status code outside the contract's known domain.
	// It is stored and surfaced to readers, never coerced back to None.
	StatusError
)

// StatusFromCode classifies a raw on-chain status code. It is total: any
// code outside [0,3] maps to StatusError.
func StatusFromCode(code uint8) Status {
	switch code {
	case 0:
		return StatusNone
	case 1:
		return StatusVouching
	case 2:
		return StatusPendingRegistration
	case 3:
		return StatusPendingRemoval
	default:
		return StatusError
	}
}

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusVouching:
		return "Vouching"
	case StatusPendingRegistration:
		return "PendingRegistration"
	case StatusPendingRemoval:
		return "PendingRemoval"
	default:
		return "Error"
	}
}

// Reason is the classified justification of a challenge.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonIncorrectSubmission
	ReasonDeceased
	ReasonDuplicate
	ReasonDoesNotExist
	// ReasonError marks a reason code outside the contract's known domain.
	ReasonError
)

// ReasonFromCode classifies a raw on-chain reason code. It is total: any
// code outside [0,4] maps to ReasonError.
func ReasonFromCode(code uint8) Reason {
	switch code {
	case 0:
		return ReasonNone
	case 1:
		return ReasonIncorrectSubmission
	case 2:
		return ReasonDeceased
	case 3:
		return ReasonDuplicate
	case 4:
		return ReasonDoesNotExist
	default:
		return ReasonError
	}
}

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonIncorrectSubmission:
		return "IncorrectSubmission"
	case ReasonDeceased:
		return "Deceased"
	case ReasonDuplicate:
		return "Duplicate"
	case ReasonDoesNotExist:
		return "DoesNotExist"
	default:
		return "Error"
	}
}
