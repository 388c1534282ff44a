package vm

import "fmt"

// FaultCode identifies the type of VM fault.
type FaultCode int

// Stable fault codes - do not change values.
const (
	FaultHeapFull       FaultCode = 2001 // VM2001: no free slot after collection
	FaultStackOverflow  FaultCode = 2002 // VM2002: evaluation stack at capacity
	FaultStackUnderflow FaultCode = 2003 // VM2003: not enough operands
	FaultInvalidHandle  FaultCode = 2004 // VM2004: handle names no allocated cell

	FaultReplayLogExhausted     FaultCode = 2101 // VM2101: log ended before the run did
	FaultReplayMismatch         FaultCode = 2102 // VM2102: run diverged from the log
	FaultInvalidReplayLogFormat FaultCode = 2103 // VM2103: log failed to parse

	FaultInternal FaultCode = 2999 // VM2999: broken VM invariant
)

// String returns the code as "VM2001" format.
func (c FaultCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// VMError represents a failed VM operation.
//
// Faults in the public taxonomy (heap full, stack overflow/underflow, invalid
// handle, replay divergence) are returned to the caller of the operation that
// induced them. FaultInternal is different: it marks a broken VM invariant
// and is thrown with panic rather than returned.
type VMError struct {
	Code    FaultCode
	Message string
}

// Error implements the error interface.
func (e *VMError) Error() string {
	return fmt.Sprintf("fault %s: %s", e.Code, e.Message)
}

func errHeapFull(capacity int) *VMError {
	return &VMError{
		Code:    FaultHeapFull,
		Message: fmt.Sprintf("heap full: all %d slots allocated", capacity),
	}
}

func errStackOverflow(max int) *VMError {
	return &VMError{
		Code:    FaultStackOverflow,
		Message: fmt.Sprintf("stack overflow: stack at capacity %d", max),
	}
}

func errStackUnderflow(op string, have, need int) *VMError {
	return &VMError{
		Code:    FaultStackUnderflow,
		Message: fmt.Sprintf("stack underflow: %s needs %d operands, have %d", op, need, have),
	}
}

func errInvalidHandle(h Handle) *VMError {
	return &VMError{
		Code:    FaultInvalidHandle,
		Message: fmt.Sprintf("invalid handle #%d", h),
	}
}

// internalFault builds the error thrown on invariant violations. Callers
// panic with the result; the condition is a VM bug, not a caller mistake.
func internalFault(format string, args ...any) *VMError {
	return &VMError{
		Code:    FaultInternal,
		Message: fmt.Sprintf(format, args...),
	}
}
