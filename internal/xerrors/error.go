// Package xerrors provides the structured error type shared by every
// decoding and tracing layer of this module.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by which layer raised it, per the error
// handling design: Framing, Payload, Binary, Protocol, Configuration.
type Kind uint8

const (
	// Framing covers buffer exhaustion, out-of-range fields and
	// reserved encodings at the bit-decoder and envelope level.
	Framing Kind = iota
	// Payload covers unknown trace types, oversized payloads and
	// inconsistent field combinations.
	Payload
	// Binary covers misses or decode failures at an address the
	// tracer needed to walk.
	Binary
	// Protocol covers branch map overflow, unexpected payloads for
	// the current tracer state and walks that fail to reach a
	// reported PC.
	Protocol
	// Configuration covers unit option and field-width combinations
	// that are inconsistent with the payload being decoded.
	Configuration
)

func (k Kind) String() string {
	switch k {
	case Framing:
		return "framing"
	case Payload:
		return "payload"
	case Binary:
		return "binary"
	case Protocol:
		return "protocol"
	case Configuration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the library's structured error value. It records which
// layer raised the error, the PC or bit position involved (if any) and
// an underlying cause, if the error wraps one.
type Error struct {
	Kind    Kind
	Addr    uint64
	HasAddr bool
	Message string
	Cause   error
}

// New creates an Error of the given kind with no address context.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// NewAt creates an Error tagged with the PC or bit position at which
// it occurred.
func NewAt(kind Kind, addr uint64, msg string) *Error {
	return &Error{Kind: kind, Addr: addr, HasAddr: true, Message: msg}
}

// Wrap creates an Error of the given kind that carries cause as
// additional context, surfaced to the caller via Unwrap.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// WrapAt is Wrap plus an address tag.
func WrapAt(kind Kind, addr uint64, cause error, msg string) *Error {
	return &Error{Kind: kind, Addr: addr, HasAddr: true, Message: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.HasAddr {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (at 0x%x): %v", e.Kind, e.Message, e.Addr, e.Cause)
		}
		return fmt.Sprintf("%s: %s (at 0x%x)", e.Kind, e.Message, e.Addr)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows kind comparisons such as
// errors.Is(err, xerrors.New(xerrors.Framing, "")): any *Error target
// matches when its Kind equals e's, whatever its message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}
