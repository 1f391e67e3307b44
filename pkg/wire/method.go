package wire

import (
	"fmt"
	"strings"
)

// Method is the HTTP-like verb of a route.
type Method uint8

const (
	MethodGet    Method = 1
	MethodPut    Method = 2
	MethodPost   Method = 3
	MethodDelete Method = 4
)

// String returns the verb.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPut:
		return "PUT"
	case MethodPost:
		return "POST"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether m is a supported verb.
func (m Method) IsValid() bool {
	return m >= MethodGet && m <= MethodDelete
}

// ParseMethod parses a verb, case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(s) {
	case "GET":
		return MethodGet, nil
	case "PUT":
		return MethodPut, nil
	case "POST":
		return MethodPost, nil
	case "DELETE":
		return MethodDelete, nil
	}
	return 0, fmt.Errorf("unsupported method %q", s)
}

// ResponseKind is the shape of a response. A route declares exactly one.
type ResponseKind uint8

const (
	// ResponseOk is a bare success or failure status.
	ResponseOk ResponseKind = 0
	// ResponseSerial carries a value payload.
	ResponseSerial ResponseKind = 1
	// ResponseInfo carries a serialized device descriptor or a subset of it.
	ResponseInfo ResponseKind = 2
	// ResponseStream carries a sequence of binary chunks.
	ResponseStream ResponseKind = 3
)

// String returns the response kind name.
func (k ResponseKind) String() string {
	switch k {
	case ResponseOk:
		return "OK"
	case ResponseSerial:
		return "SERIAL"
	case ResponseInfo:
		return "INFO"
	case ResponseStream:
		return "STREAM"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether k is a known response kind.
func (k ResponseKind) IsValid() bool {
	return k <= ResponseStream
}
