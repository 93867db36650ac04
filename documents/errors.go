package documents

import "fmt"

// PayloadType identifies the input format a payload claimed to be.
type PayloadType uint8

const (
	// PayloadCSV is delimited text with a header row.
	PayloadCSV PayloadType = iota
	// PayloadNDJSON is one JSON object per line.
	PayloadNDJSON
	// PayloadJSON is a whole-document JSON array of objects.
	PayloadJSON
)

func (p PayloadType) String() string {
	switch p {
	case PayloadCSV:
		return "csv"
	case PayloadNDJSON:
		return "ndjson"
	case PayloadJSON:
		return "json"
	default:
		return "unknown"
	}
}

// maxDiagnostic bounds embedded parser messages; anything longer is
// truncated with an ellipsis in its middle, since parser diagnostics
// may quote arbitrarily long user input.
const maxDiagnostic = 100

// FormatError classifies a payload reader failure. Malformed reports
// whether the input itself was at fault (parse error) as opposed to an
// internal I/O or storage fault.
type FormatError struct {
	Payload   PayloadType
	malformed bool
	cause     error
}

func (e *FormatError) Error() string {
	if e.malformed {
		return fmt.Sprintf("the %s payload provided is malformed: %s", e.Payload, truncate(e.cause.Error()))
	}
	return fmt.Sprintf("internal error while reading %s payload: %v", e.Payload, e.cause)
}

// Malformed reports whether the input itself was invalid.
func (e *FormatError) Malformed() bool { return e.malformed }

func (e *FormatError) Unwrap() error { return e.cause }

func malformedErr(p PayloadType, cause error) *FormatError {
	return &FormatError{Payload: p, malformed: true, cause: cause}
}

func internalErr(p PayloadType, cause error) *FormatError {
	return &FormatError{Payload: p, cause: cause}
}

// truncate keeps the head and tail of an overlong diagnostic.
func truncate(s string) string {
	const ellipsis = "..."
	if len(s) <= maxDiagnostic+len(ellipsis) {
		return s
	}
	head := maxDiagnostic / 2
	tail := maxDiagnostic - head
	return s[:head] + ellipsis + s[len(s)-tail:]
}
