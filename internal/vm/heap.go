package vm

import (
	"fortio.org/safecast"
)

// slot carries cell metadata separately from the payload, so the mark bit
// never influences Value layout and the sweep scan stays cache-friendly.
type slot struct {
	allocated bool
	marked    bool
	value     Value
}

// Heap is a fixed-capacity arena of cells addressed by Handle.
// Allocation always takes the lowest-indexed free slot, which keeps handles
// small and the live set contiguous in the common case.
type Heap struct {
	slots []slot
	live  int

	// Lifetime counters. Every allocation must be balanced by exactly one
	// release, either from a sweep or from VM teardown.
	allocs uint64
	frees  uint64

	vm *VM
}

func newHeap(capacity int, vm *VM) *Heap {
	return &Heap{
		slots: make([]slot, capacity),
		vm:    vm,
	}
}

// Capacity returns the number of slots in the arena.
func (h *Heap) Capacity() int {
	return len(h.slots)
}

// Live returns the number of currently-allocated cells.
func (h *Heap) Live() int {
	return h.live
}

// Counters returns the lifetime allocation and release counts.
func (h *Heap) Counters() (allocs, frees uint64) {
	return h.allocs, h.frees
}

// Allocate reserves the lowest-indexed free slot for v and returns its
// handle. Pair payloads must reference allocated cells.
func (h *Heap) Allocate(v Value) (Handle, *VMError) {
	if v.IsPair() {
		for _, child := range [2]Handle{v.First, v.Second} {
			if !h.Allocated(child) {
				panic(internalFault("pair child #%d is not allocated", child))
			}
		}
	}
	for i := range h.slots {
		s := &h.slots[i]
		if s.allocated {
			continue
		}
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			panic(internalFault("slot index overflow: %v", err))
		}
		handle := Handle(idx)
		s.allocated = true
		s.marked = false
		s.value = v
		h.live++
		h.allocs++
		if h.vm != nil {
			h.vm.Trace.TraceAlloc(handle, v)
		}
		return handle, nil
	}
	return 0, errHeapFull(len(h.slots))
}

// Get returns a copy of the cell payload stored at handle.
func (h *Heap) Get(handle Handle) (Value, *VMError) {
	s, ok := h.lookup(handle)
	if !ok || !s.allocated {
		return Value{}, errInvalidHandle(handle)
	}
	return s.value, nil
}

// Allocated reports whether handle names a currently-allocated cell.
func (h *Heap) Allocated(handle Handle) bool {
	s, ok := h.lookup(handle)
	return ok && s.allocated
}

// Marked reports the mark bit of an allocated cell. Outside a collection
// cycle every mark bit is false.
func (h *Heap) Marked(handle Handle) bool {
	return h.mustSlot(handle).marked
}

// release frees one cell. Used only by the sweep phase and by teardown.
func (h *Heap) release(handle Handle) {
	s := h.mustSlot(handle)
	if h.vm != nil {
		h.vm.Trace.TraceFree(handle, s.value)
	}
	s.allocated = false
	s.marked = false
	s.value = Value{}
	h.live--
	h.frees++
}

// eachAllocated visits every allocated cell in ascending handle order.
func (h *Heap) eachAllocated(fn func(handle Handle, v Value)) {
	for i := range h.slots {
		if !h.slots[i].allocated {
			continue
		}
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			panic(internalFault("slot index overflow: %v", err))
		}
		fn(Handle(idx), h.slots[i].value)
	}
}

func (h *Heap) lookup(handle Handle) (*slot, bool) {
	if int(handle) >= len(h.slots) {
		return nil, false
	}
	return &h.slots[handle], true
}

// mustSlot resolves a handle the VM itself produced. A miss here is a
// broken invariant, not a caller mistake.
func (h *Heap) mustSlot(handle Handle) *slot {
	s, ok := h.lookup(handle)
	if !ok || !s.allocated {
		panic(internalFault("handle #%d does not name an allocated cell", handle))
	}
	return s
}
