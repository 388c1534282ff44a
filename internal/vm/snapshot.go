package vm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when SnapshotPayload format changes
const snapshotSchemaVersion uint16 = 1

// SnapshotPayload stores a complete serializable image of a VM: limits,
// live cells, root set and counters. A loaded payload must satisfy every
// heap invariant or loading fails.
type SnapshotPayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Capacity    uint32
	StackMax    uint32
	Threshold   uint32
	Collections uint64
	Allocs      uint64
	Frees       uint64

	// Live cells in ascending handle order
	Cells []SnapshotCell

	// Evaluation stack, bottom to top
	Stack []uint32
}

// SnapshotCell is one allocated cell in a snapshot.
type SnapshotCell struct {
	H      uint32
	Kind   uint8
	Int    int64
	First  uint32
	Second uint32
}

// WriteSnapshot serializes the VM state to path. The write is atomic: a
// temp file in the same directory is renamed over the target.
func (vm *VM) WriteSnapshot(path string) error {
	payload, err := vm.snapshotPayload()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// LoadSnapshot reads a snapshot from path and reconstructs the VM. Returns
// ok=false when the file does not exist.
func LoadSnapshot(path string) (*VM, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() {
		_ = f.Close()
	}()

	var payload SnapshotPayload
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&payload); err != nil {
		return nil, true, fmt.Errorf("%s: corrupt snapshot: %w", path, err)
	}
	vm, err := vmFromPayload(&payload)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", path, err)
	}
	return vm, true, nil
}

func (vm *VM) snapshotPayload() (*SnapshotPayload, error) {
	capacity, err := safecast.Conv[uint32](vm.heap.Capacity())
	if err != nil {
		return nil, err
	}
	stackMax, err := safecast.Conv[uint32](vm.stack.max)
	if err != nil {
		return nil, err
	}
	threshold, err := safecast.Conv[uint32](vm.threshold)
	if err != nil {
		return nil, err
	}
	allocs, frees := vm.heap.Counters()
	payload := &SnapshotPayload{
		Schema:      snapshotSchemaVersion,
		Capacity:    capacity,
		StackMax:    stackMax,
		Threshold:   threshold,
		Collections: vm.collections,
		Allocs:      allocs,
		Frees:       frees,
	}
	vm.heap.eachAllocated(func(h Handle, v Value) {
		payload.Cells = append(payload.Cells, SnapshotCell{
			H:      uint32(h),
			Kind:   uint8(v.Kind),
			Int:    v.Int,
			First:  uint32(v.First),
			Second: uint32(v.Second),
		})
	})
	for _, h := range vm.stack.roots() {
		payload.Stack = append(payload.Stack, uint32(h))
	}
	return payload, nil
}

func vmFromPayload(p *SnapshotPayload) (*VM, error) {
	if p.Schema != snapshotSchemaVersion {
		return nil, fmt.Errorf("unsupported snapshot schema %d (want %d)", p.Schema, snapshotSchemaVersion)
	}
	capacity, err := safecast.Conv[int](p.Capacity)
	if err != nil {
		return nil, err
	}
	stackMax, err := safecast.Conv[int](p.StackMax)
	if err != nil {
		return nil, err
	}
	threshold, err := safecast.Conv[int](p.Threshold)
	if err != nil {
		return nil, err
	}
	if capacity < 1 {
		return nil, fmt.Errorf("invalid capacity %d", capacity)
	}
	if threshold < 1 || threshold > capacity {
		return nil, fmt.Errorf("threshold %d outside [1, %d]", threshold, capacity)
	}
	if len(p.Stack) > stackMax {
		return nil, fmt.Errorf("stack size %d exceeds limit %d", len(p.Stack), stackMax)
	}

	vm := New(Config{Capacity: capacity, StackMax: stackMax, GCThreshold: threshold})
	vm.threshold = threshold
	vm.collections = p.Collections

	prev := -1
	for _, c := range p.Cells {
		if int(c.H) >= capacity {
			return nil, fmt.Errorf("cell handle #%d outside capacity %d", c.H, capacity)
		}
		if int(c.H) <= prev {
			return nil, fmt.Errorf("cell handles not strictly ascending at #%d", c.H)
		}
		prev = int(c.H)
		s := &vm.heap.slots[c.H]
		s.allocated = true
		switch ValueKind(c.Kind) {
		case VKInt:
			s.value = IntValue(c.Int)
		case VKPair:
			s.value = PairValue(Handle(c.First), Handle(c.Second))
		default:
			return nil, fmt.Errorf("cell #%d has invalid kind %d", c.H, c.Kind)
		}
		vm.heap.live++
	}
	vm.heap.allocs = p.Allocs
	vm.heap.frees = p.Frees

	// Cross-checks: pairs and roots must reference allocated cells.
	var checkErr error
	vm.heap.eachAllocated(func(h Handle, v Value) {
		if checkErr != nil || !v.IsPair() {
			return
		}
		for _, child := range [2]Handle{v.First, v.Second} {
			if !vm.heap.Allocated(child) {
				checkErr = fmt.Errorf("pair #%d references unallocated cell #%d", h, child)
				return
			}
		}
	})
	if checkErr != nil {
		return nil, checkErr
	}
	for _, raw := range p.Stack {
		h := Handle(raw)
		if !vm.heap.Allocated(h) {
			return nil, fmt.Errorf("stack references unallocated cell #%d", h)
		}
		vm.stack.push(h)
	}
	return vm, nil
}
