package dispatch

// Stage is a step of request processing.
type Stage uint8

const (
	StageReceived Stage = iota
	StageMatched
	StageValidated
	StageInvoked
	StageResponded
	StageRejected
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "RECEIVED"
	case StageMatched:
		return "MATCHED"
	case StageValidated:
		return "VALIDATED"
	case StageInvoked:
		return "INVOKED"
	case StageResponded:
		return "RESPONDED"
	case StageRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}
