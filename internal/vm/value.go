// Package vm implements a small stack machine over a mark-and-sweep heap.
package vm

import "fmt"

// Handle is a stable index of a heap slot. A handle stays valid for the
// lifetime of the cell it names; the slot may be reused after a sweep frees
// the cell.
type Handle uint32

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	// VKInvalid represents the payload of an unallocated slot.
	VKInvalid ValueKind = iota
	// VKInt represents a signed integer cell.
	VKInt
	// VKPair represents a cell holding handles to two other cells.
	VKPair
)

// String returns a human-readable name for the value kind.
func (k ValueKind) String() string {
	switch k {
	case VKInvalid:
		return "invalid"
	case VKInt:
		return "int"
	case VKPair:
		return "pair"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is the payload of one heap cell. Pair children are immutable after
// construction; there is no mutation API.
type Value struct {
	Kind   ValueKind
	Int    int64  // For VKInt
	First  Handle // For VKPair
	Second Handle // For VKPair
}

// IntValue builds an integer cell payload.
func IntValue(n int64) Value {
	return Value{Kind: VKInt, Int: n}
}

// PairValue builds a pair cell payload. Both handles must name allocated
// cells at construction time; the heap checks this on allocation.
func PairValue(first, second Handle) Value {
	return Value{Kind: VKPair, First: first, Second: second}
}

// IsPair reports whether the value has children the collector must trace.
func (v Value) IsPair() bool {
	return v.Kind == VKPair
}

// String formats the value as "int(22)" or "pair(#0, #1)".
func (v Value) String() string {
	switch v.Kind {
	case VKInt:
		return fmt.Sprintf("int(%d)", v.Int)
	case VKPair:
		return fmt.Sprintf("pair(#%d, #%d)", v.First, v.Second)
	default:
		return "<invalid>"
	}
}
