package wire

// Status represents a response status code.
type Status uint8

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0

	// StatusNotFound indicates no route matches the path and method.
	StatusNotFound Status = 1

	// StatusBadParameters indicates the parameters could not be bound to the
	// route's schema (missing, mistyped or out of range).
	StatusBadParameters Status = 2

	// StatusContractViolation indicates the handler produced a result that
	// does not match the route's declared response kind.
	StatusContractViolation Status = 3

	// StatusHandlerFailure indicates the handler reported an operation error.
	// Response.Code carries the operation-specific code.
	StatusHandlerFailure Status = 4

	// StatusBadRequest indicates a malformed wire request.
	StatusBadRequest Status = 5
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusBadParameters:
		return "BAD_PARAMETERS"
	case StatusContractViolation:
		return "CONTRACT_VIOLATION"
	case StatusHandlerFailure:
		return "HANDLER_FAILURE"
	case StatusBadRequest:
		return "BAD_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusSuccess
}

// IsProtocolError reports whether the failure happened before the handler
// ran (or because of it breaking its contract) rather than inside it.
func (s Status) IsProtocolError() bool {
	return s != StatusSuccess && s != StatusHandlerFailure
}
