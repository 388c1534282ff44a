// Package testkit provides shared checks for pairvm tests.
package testkit

import (
	"fmt"

	"pairvm/internal/vm"
)

// CheckVMInvariants runs the heap and collector invariants that must hold in
// every reachable VM state:
// 1) the live count equals the number of allocated cells
// 2) every handle on the evaluation stack names an allocated cell
// 3) outside a collection cycle, every mark bit is false
// 4) the GC threshold stays within [1, capacity]
// 5) every allocated pair references only allocated cells
func CheckVMInvariants(v *vm.VM) error {
	if v == nil {
		return fmt.Errorf("nil vm")
	}
	stats := v.Stats()
	cells := v.Cells()

	// 1) live count consistency
	if stats.Live != len(cells) {
		return fmt.Errorf("live count %d != %d allocated cells", stats.Live, len(cells))
	}

	// 2) roots allocated
	for _, root := range v.Roots() {
		if !v.Allocated(root) {
			return fmt.Errorf("stack handle #%d names no allocated cell", root)
		}
	}

	// 3) marks clear between cycles; 5) pair children allocated
	for _, h := range cells {
		if v.Marked(h) {
			return fmt.Errorf("cell #%d marked outside a collection cycle", h)
		}
		val, vmErr := v.Get(h)
		if vmErr != nil {
			return fmt.Errorf("cell #%d: %v", h, vmErr)
		}
		if !val.IsPair() {
			continue
		}
		for _, child := range []vm.Handle{val.First, val.Second} {
			if !v.Allocated(child) {
				return fmt.Errorf("pair #%d references unallocated cell #%d", h, child)
			}
		}
	}

	// 4) threshold bounds
	if stats.Threshold < 1 || stats.Threshold > stats.Capacity {
		return fmt.Errorf("threshold %d outside [1, %d]", stats.Threshold, stats.Capacity)
	}

	return nil
}
