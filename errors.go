package mp4parse

import (
	"errors"
	"fmt"
	"io"
)

// Code classifies a parse failure. The values match the status enum of
// the C API, so mapping an error onto the FFI surface is a plain
// conversion.
type Code int32

const (
	// CodeOK is success; it never appears inside an Error.
	CodeOK Code = 0
	// CodeBadArg is a null or out-of-range argument, or any call on
	// an already-poisoned parser.
	CodeBadArg Code = 1
	// CodeInvalid is structurally malformed box data, a missing
	// required track field, a type-mismatched query, or the absence
	// of the mandatory moov box.
	CodeInvalid Code = 2
	// CodeUnsupported is a recognized but unhandled feature path,
	// such as querying a track of unknown type.
	CodeUnsupported Code = 3
	// CodeEOF is a stream that ended while more data was expected
	// mid-structure. Clean end of the box tree is not an error.
	CodeEOF Code = 4
	// CodeAssert is an internal invariant failure caught at the
	// isolation boundary during a read.
	CodeAssert Code = 5
	// CodeIO is a failure reported by the byte source.
	CodeIO Code = 6
)

// String returns the string representation of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeBadArg:
		return "bad argument"
	case CodeInvalid:
		return "invalid data"
	case CodeUnsupported:
		return "unsupported"
	case CodeEOF:
		return "unexpected end of stream"
	case CodeAssert:
		return "assertion caught"
	case CodeIO:
		return "I/O error"
	default:
		return fmt.Sprintf("code(%d)", int32(c))
	}
}

// Error is a decode failure.
type Error struct {
	Code Code   // Failure classification
	Op   string // Operation that failed, e.g. "mvhd"
	Msg  string // Human-readable detail
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("mp4parse %s: %s (%s)", e.Op, e.Msg, e.Code)
}

func invalid(op, msg string) error {
	return &Error{Code: CodeInvalid, Op: op, Msg: msg}
}

func truncated(op string) error {
	return &Error{Code: CodeEOF, Op: op, Msg: "truncated box"}
}

// IsEOF returns true if the error indicates a mid-structure
// end-of-stream.
func IsEOF(err error) bool {
	return ErrorCode(err) == CodeEOF
}

// IsInvalid returns true if the error indicates malformed data.
func IsInvalid(err error) bool {
	return ErrorCode(err) == CodeInvalid
}

// ErrorCode classifies an error from this package. Raw io errors from
// the byte source map to CodeEOF or CodeIO; nil maps to CodeOK.
func ErrorCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CodeEOF
	}
	return CodeIO
}
