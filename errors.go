package custody

import "errors"

// Code is the single result code reported to the host for an invocation.
type Code uint32

// The available result codes.
const (
	CodeOK Code = iota
	CodeInvalidAmount
	CodeInsufficientFunds
	CodeInsufficientLocked
	CodeLockNotFound
	CodeOverflow
	CodeMalformedBuffer
	CodeBufferTooSmall
	CodeTruncatedInstruction
	CodeUnknownOpcode
	CodeIncorrectOwner
	CodeTransferFailed
	CodeInternal Code = 255
)

var codeNames = map[Code]string{
	CodeOK:                   "ok",
	CodeInvalidAmount:        "invalid amount",
	CodeInsufficientFunds:    "insufficient funds",
	CodeInsufficientLocked:   "insufficient locked",
	CodeLockNotFound:         "lock not found",
	CodeOverflow:             "overflow",
	CodeMalformedBuffer:      "malformed buffer",
	CodeBufferTooSmall:       "buffer too small",
	CodeTruncatedInstruction: "truncated instruction",
	CodeUnknownOpcode:        "unknown opcode",
	CodeIncorrectOwner:       "incorrect owner",
	CodeTransferFailed:       "transfer failed",
	CodeInternal:             "internal",
}

// String returns the name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "unknown"
}

// Error is a ledger error carrying a result code.
type Error struct {
	Code Code
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "custody: " + e.Code.String()
}

// The ledger errors. Every failed invocation reports exactly one of them.
var (
	ErrInvalidAmount        = &Error{Code: CodeInvalidAmount}
	ErrInsufficientFunds    = &Error{Code: CodeInsufficientFunds}
	ErrInsufficientLocked   = &Error{Code: CodeInsufficientLocked}
	ErrLockNotFound         = &Error{Code: CodeLockNotFound}
	ErrOverflow             = &Error{Code: CodeOverflow}
	ErrMalformedBuffer      = &Error{Code: CodeMalformedBuffer}
	ErrBufferTooSmall       = &Error{Code: CodeBufferTooSmall}
	ErrTruncatedInstruction = &Error{Code: CodeTruncatedInstruction}
	ErrUnknownOpcode        = &Error{Code: CodeUnknownOpcode}
	ErrIncorrectOwner       = &Error{Code: CodeIncorrectOwner}
	ErrTransferFailed       = &Error{Code: CodeTransferFailed}
)

// CodeOf returns the result code for the provided error. Errors that do not
// wrap a ledger error yield CodeInternal.
func CodeOf(err error) Code {
	// check nil
	if err == nil {
		return CodeOK
	}

	// unwrap ledger error
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return CodeInternal
}
