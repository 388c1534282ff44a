package vm

import (
	"fmt"
	"strings"
)

// DumpString renders every live cell in ascending handle order, one line per
// cell, with the root set appended. The output is deterministic and is what
// the dump script op and golden assertions compare against.
func (vm *VM) DumpString() string {
	if vm == nil {
		return ""
	}
	var sb strings.Builder
	vm.heap.eachAllocated(func(h Handle, v Value) {
		rooted := ""
		for _, r := range vm.stack.roots() {
			if r == h {
				rooted = " rooted"
				break
			}
		}
		fmt.Fprintf(&sb, "#%d %s%s\n", h, v, rooted)
	})
	roots := vm.stack.roots()
	parts := make([]string, len(roots))
	for i, r := range roots {
		parts[i] = fmt.Sprintf("#%d", r)
	}
	fmt.Fprintf(&sb, "stack: [%s]\n", strings.Join(parts, " "))
	return sb.String()
}
