package vm

import "testing"

// forgeCycle builds two rooted pairs and rewires them into a cycle by
// mutating slots directly. The public API cannot construct cycles because
// pair children must pre-exist, but the collector must tolerate them.
func forgeCycle(t *testing.T, v *VM) (a, b Handle) {
	t.Helper()
	push := func(n int64) Handle {
		h, vmErr := v.PushInt(n)
		if vmErr != nil {
			t.Fatalf("PushInt(%d): %v", n, vmErr)
		}
		return h
	}
	pair := func() Handle {
		h, vmErr := v.PushPair()
		if vmErr != nil {
			t.Fatalf("PushPair: %v", vmErr)
		}
		return h
	}

	push(1)
	push(2)
	a = pair()
	push(3)
	push(4)
	b = pair()

	v.heap.mustSlot(a).value.Second = b
	v.heap.mustSlot(b).value.Second = a
	return a, b
}

func TestGCCycleToleranceMarkingTerminates(t *testing.T) {
	v := New(Config{})
	a, b := forgeCycle(t, v)

	// Both pairs are rooted; marking must terminate and keep the cycle.
	v.GC()
	if !v.Allocated(a) || !v.Allocated(b) {
		t.Fatalf("cycle cells reclaimed while rooted: a=%v b=%v", v.Allocated(a), v.Allocated(b))
	}
}

func TestGCCycleReclaimedOnceUnrooted(t *testing.T) {
	v := New(Config{})
	a, b := forgeCycle(t, v)

	// Disconnect the cycle from the roots; a collection must reclaim every
	// cell in it even though the cells reference each other.
	for v.stack.size() > 0 {
		if _, vmErr := v.Pop(); vmErr != nil {
			t.Fatalf("Pop: %v", vmErr)
		}
	}
	v.GC()

	if v.Allocated(a) || v.Allocated(b) {
		t.Fatalf("cycle cells survive unrooted: a=%v b=%v", v.Allocated(a), v.Allocated(b))
	}
	if v.heap.Live() != 0 {
		t.Errorf("live = %d, want 0", v.heap.Live())
	}
}

func TestGCCollectorReentryPanics(t *testing.T) {
	v := New(Config{})
	v.phase = phaseMarking

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic, got nil")
		}
		err, ok := r.(*VMError)
		if !ok {
			t.Fatalf("unexpected panic type: %T", r)
		}
		if err.Code != FaultInternal {
			t.Fatalf("expected %v, got %v", FaultInternal, err.Code)
		}
	}()
	v.GC()
}

func TestGCPhaseString(t *testing.T) {
	cases := map[gcPhase]string{
		phaseIdle:     "idle",
		phaseMarking:  "marking",
		phaseSweeping: "sweeping",
	}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", phase, got, want)
		}
	}
}
