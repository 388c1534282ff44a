package vm_test

import (
	"os"
	"path/filepath"
	"testing"

	"pairvm/internal/testkit"
	"pairvm/internal/vm"
)

func TestSnapshotRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.snap")

	v := vm.New(vm.Config{Capacity: 32, StackMax: 16, GCThreshold: 4})
	mustPushInt(t, v, 11)
	mustPushInt(t, v, 22)
	mustPushPair(t, v)
	mustPushInt(t, v, 33)
	if _, vmErr := v.Pop(); vmErr != nil {
		t.Fatalf("Pop: %v", vmErr)
	}
	v.GC()

	if err := v.WriteSnapshot(path); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	loaded, ok, err := vm.LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !ok {
		t.Fatal("LoadSnapshot: snapshot not found")
	}

	want := v.Stats()
	got := loaded.Stats()
	if got != want {
		t.Errorf("stats differ after roundtrip:\n got %+v\nwant %+v", got, want)
	}

	wantCells := v.Cells()
	gotCells := loaded.Cells()
	if len(wantCells) != len(gotCells) {
		t.Fatalf("cell count differs: %d vs %d", len(gotCells), len(wantCells))
	}
	for i, h := range wantCells {
		if gotCells[i] != h {
			t.Fatalf("cell set differs at %d: #%d vs #%d", i, gotCells[i], h)
		}
		wantVal, _ := v.Get(h)
		gotVal, vmErr := loaded.Get(h)
		if vmErr != nil {
			t.Fatalf("Get(#%d): %v", h, vmErr)
		}
		if gotVal != wantVal {
			t.Errorf("cell #%d differs: %s vs %s", h, gotVal, wantVal)
		}
	}

	wantRoots := v.Roots()
	gotRoots := loaded.Roots()
	if len(wantRoots) != len(gotRoots) {
		t.Fatalf("root count differs: %d vs %d", len(gotRoots), len(wantRoots))
	}
	for i := range wantRoots {
		if gotRoots[i] != wantRoots[i] {
			t.Errorf("root %d differs: #%d vs #%d", i, gotRoots[i], wantRoots[i])
		}
	}

	if err := testkit.CheckVMInvariants(loaded); err != nil {
		t.Fatalf("invariant violated after load: %v", err)
	}

	// The resumed VM keeps working.
	mustPushInt(t, loaded, 44)
	loaded.GC()
	if err := testkit.CheckVMInvariants(loaded); err != nil {
		t.Fatalf("invariant violated after resume ops: %v", err)
	}
}

func TestSnapshotMissingFile(t *testing.T) {
	_, ok, err := vm.LoadSnapshot(filepath.Join(t.TempDir(), "absent.snap"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("ok = true for a missing snapshot")
	}
}

func TestSnapshotCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.snap")
	if err := os.WriteFile(path, []byte("definitely not msgpack"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, ok, err := vm.LoadSnapshot(path)
	if !ok {
		t.Fatal("ok = false for an existing file")
	}
	if err == nil {
		t.Fatal("expected corruption error, got nil")
	}
}
