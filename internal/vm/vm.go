package vm

// Default limits. These are the reference values; tests and the driver can
// override them through Config.
const (
	// DefaultCapacity is the number of heap slots.
	DefaultCapacity = 1024
	// DefaultStackMax is the evaluation stack limit.
	DefaultStackMax = 256
	// DefaultGCThreshold is the live-cell count that triggers the first
	// collection. Later thresholds adapt to the surviving live set.
	DefaultGCThreshold = 128
)

// Config tunes a VM instance. Zero fields fall back to the package defaults.
type Config struct {
	Capacity    int
	StackMax    int
	GCThreshold int
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.StackMax <= 0 {
		c.StackMax = DefaultStackMax
	}
	if c.GCThreshold <= 0 {
		c.GCThreshold = DefaultGCThreshold
	}
	if c.GCThreshold > c.Capacity {
		c.GCThreshold = c.Capacity
	}
	return c
}

// Stats is a point-in-time snapshot of VM aggregates.
type Stats struct {
	Live        int
	Threshold   int
	StackSize   int
	Capacity    int
	Collections uint64
	Allocs      uint64
	Frees       uint64
}

// VM owns one heap and one evaluation stack and drives collection.
// It is single-threaded; callers must serialize access externally.
type VM struct {
	heap  *Heap
	stack *evalStack

	threshold   int
	phase       gcPhase
	collections uint64

	cfg Config

	// Trace, Recorder and Replayer are optional observers. A nil value
	// disables the corresponding surface.
	Trace    *Tracer
	Recorder *Recorder
	Replayer *Replayer
}

// New creates a VM with the given limits.
func New(cfg Config) *VM {
	cfg = cfg.withDefaults()
	vm := &VM{
		threshold: cfg.GCThreshold,
		cfg:       cfg,
	}
	vm.heap = newHeap(cfg.Capacity, vm)
	vm.stack = newEvalStack(cfg.StackMax)
	return vm
}

// Config returns the limits the VM was created with.
func (vm *VM) Config() Config {
	return vm.cfg
}

// PushInt allocates an integer cell and pushes its handle.
func (vm *VM) PushInt(n int64) (Handle, *VMError) {
	if vm.stack.full() {
		return 0, errStackOverflow(vm.stack.max)
	}
	h, vmErr := vm.allocate(IntValue(n))
	if vmErr != nil {
		return 0, vmErr
	}
	vm.stack.push(h)
	vm.Trace.TracePush(h)
	if vmErr := vm.Replayer.ExpectOp("push_int", n, h); vmErr != nil {
		return 0, vmErr
	}
	vm.Recorder.RecordOp("push_int", n, h)
	return h, nil
}

// PushPair pops two handles, allocates a pair cell, and pushes its handle.
// The first pop becomes the pair's First field, the second pop Second.
func (vm *VM) PushPair() (Handle, *VMError) {
	if vm.stack.size() < 2 {
		return 0, errStackUnderflow("push_pair", vm.stack.size(), 2)
	}
	// The operands stay on the stack until the allocation lands: they must
	// remain rooted if the trigger check starts a collection, and a heap-full
	// failure must leave the stack untouched.
	first := vm.stack.peek(0)
	second := vm.stack.peek(1)
	h, vmErr := vm.allocate(PairValue(first, second))
	if vmErr != nil {
		return 0, vmErr
	}
	vm.stack.pop()
	vm.stack.pop()
	vm.stack.push(h)
	vm.Trace.TracePush(h)
	if vmErr := vm.Replayer.ExpectOp("push_pair", 0, h); vmErr != nil {
		return 0, vmErr
	}
	vm.Recorder.RecordOp("push_pair", 0, h)
	return h, nil
}

// Pop removes and returns the top handle. The cell stays on the heap until a
// sweep observes it unreachable.
func (vm *VM) Pop() (Handle, *VMError) {
	if vm.stack.size() == 0 {
		return 0, errStackUnderflow("pop", 0, 1)
	}
	h := vm.stack.pop()
	vm.Trace.TracePop(h)
	if vmErr := vm.Replayer.ExpectOp("pop", 0, h); vmErr != nil {
		return 0, vmErr
	}
	vm.Recorder.RecordOp("pop", 0, h)
	return h, nil
}

// Peek returns the handle at the given depth from the top without modifying
// the stack.
func (vm *VM) Peek(depth int) (Handle, *VMError) {
	if depth < 0 || depth >= vm.stack.size() {
		return 0, errStackUnderflow("peek", vm.stack.size(), depth+1)
	}
	return vm.stack.peek(depth), nil
}

// Get returns a copy of the cell payload stored at h.
func (vm *VM) Get(h Handle) (Value, *VMError) {
	return vm.heap.Get(h)
}

// Stats reports current VM aggregates.
func (vm *VM) Stats() Stats {
	allocs, frees := vm.heap.Counters()
	return Stats{
		Live:        vm.heap.Live(),
		Threshold:   vm.threshold,
		StackSize:   vm.stack.size(),
		Capacity:    vm.heap.Capacity(),
		Collections: vm.collections,
		Allocs:      allocs,
		Frees:       frees,
	}
}

// StackSize returns the number of handles on the evaluation stack.
func (vm *VM) StackSize() int {
	return vm.stack.size()
}

// Roots returns a copy of the evaluation stack, bottom to top.
func (vm *VM) Roots() []Handle {
	return append([]Handle(nil), vm.stack.roots()...)
}

// Cells returns the handles of all allocated cells in ascending order.
func (vm *VM) Cells() []Handle {
	out := make([]Handle, 0, vm.heap.Live())
	vm.heap.eachAllocated(func(h Handle, _ Value) {
		out = append(out, h)
	})
	return out
}

// Allocated reports whether h names a currently-allocated cell.
func (vm *VM) Allocated(h Handle) bool {
	return vm.heap.Allocated(h)
}

// Marked reports the mark bit of an allocated cell.
func (vm *VM) Marked(h Handle) bool {
	return vm.heap.Marked(h)
}

// Close releases every still-allocated cell and empties the stack. The VM
// must not be used afterwards except for Stats.
func (vm *VM) Close() {
	vm.stack.reset()
	for _, h := range vm.Cells() {
		vm.heap.release(h)
	}
}

// allocate runs the collection trigger check and reserves a heap slot.
// Checking before rather than after ensures a cycle never starts with a
// full heap.
func (vm *VM) allocate(v Value) (Handle, *VMError) {
	if vm.heap.Live() >= vm.threshold {
		if vmErr := vm.collect("threshold"); vmErr != nil {
			return 0, vmErr
		}
	}
	return vm.heap.Allocate(v)
}
