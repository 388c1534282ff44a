package vm

// gcPhase tracks where the collector is inside a cycle. The phase is never
// observable from the public API because no operation suspends mid-cycle;
// it exists so re-entry trips an assertion instead of corrupting the heap.
type gcPhase uint8

const (
	phaseIdle gcPhase = iota
	phaseMarking
	phaseSweeping
)

// String returns the string representation of the phase.
func (p gcPhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseMarking:
		return "marking"
	case phaseSweeping:
		return "sweeping"
	default:
		return "unknown"
	}
}

// GC runs one full mark-and-sweep cycle. Running it twice in a row has the
// same observable effect as running it once. Collection itself cannot fail;
// under replay a divergence from the log panics with a *VMError, matching
// how invariant violations surface.
func (vm *VM) GC() {
	if vmErr := vm.collect("explicit"); vmErr != nil {
		panic(vmErr)
	}
}

func (vm *VM) collect(reason string) *VMError {
	if vm.phase != phaseIdle {
		panic(internalFault("collector re-entered in phase %s", vm.phase))
	}
	before := vm.heap.Live()
	vm.Trace.TraceGCBegin(reason, before, vm.threshold)

	vm.phase = phaseMarking
	for _, root := range vm.stack.roots() {
		vm.mark(root)
	}

	vm.phase = phaseSweeping
	vm.sweep()

	vm.phase = phaseIdle
	vm.threshold = clampThreshold(2*vm.heap.Live(), vm.heap.Capacity())
	vm.collections++

	freed := before - vm.heap.Live()
	vm.Trace.TraceGCEnd(freed, vm.heap.Live(), vm.threshold)
	vm.Recorder.RecordGC(reason, freed, vm.heap.Live(), vm.threshold)
	return vm.Replayer.ExpectGC(reason, freed, vm.heap.Live(), vm.threshold)
}

// mark sets the reachability bit on the cell at h and on every cell
// reachable from it. The early return on an already-marked cell is what
// bounds the walk on cyclic pair graphs; it must stay even though the
// allocation API cannot construct a cycle today.
func (vm *VM) mark(h Handle) {
	s := vm.heap.mustSlot(h)
	if s.marked {
		return
	}
	s.marked = true
	vm.Trace.TraceMark(h)
	if s.value.IsPair() {
		vm.mark(s.value.First)
		vm.mark(s.value.Second)
	}
}

// sweep scans every slot in ascending handle order: survivors get their mark
// bit cleared, unmarked cells are released. The scan must not stop at the
// first unallocated slot; earlier sweeps leave gaps.
func (vm *VM) sweep() {
	var dead []Handle
	vm.heap.eachAllocated(func(h Handle, _ Value) {
		s := vm.heap.mustSlot(h)
		if s.marked {
			s.marked = false
			return
		}
		dead = append(dead, h)
	})
	for _, h := range dead {
		vm.heap.release(h)
	}
}

func clampThreshold(n, capacity int) int {
	if n < 1 {
		return 1
	}
	if n > capacity {
		return capacity
	}
	return n
}
