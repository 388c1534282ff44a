package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"pairvm/internal/vm"
)

// runScenario drives the same op sequence used by the recording tests.
func runScenario(t *testing.T, v *vm.VM) {
	t.Helper()
	mustPushInt(t, v, 11)
	mustPushInt(t, v, 22)
	mustPushPair(t, v)
	mustPushInt(t, v, 33)
	if _, vmErr := v.Pop(); vmErr != nil {
		t.Fatalf("Pop: %v", vmErr)
	}
	v.GC()
}

func TestRecordThenReplayMatches(t *testing.T) {
	cfg := vm.Config{Capacity: 16, StackMax: 8, GCThreshold: 4}

	var log bytes.Buffer
	rec := vm.New(cfg)
	rec.Recorder = vm.NewRecorder(&log, cfg)
	runScenario(t, rec)
	rec.Recorder.RecordExit(0)
	if err := rec.Recorder.Err(); err != nil {
		t.Fatalf("recorder error: %v", err)
	}

	rep := vm.New(cfg)
	rep.Replayer = vm.NewReplayerFromBytes(log.Bytes())
	if err := rep.Replayer.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	runScenario(t, rep)
	if vmErr := rep.Replayer.FinalizeExit(0); vmErr != nil {
		t.Fatalf("FinalizeExit: %v", vmErr)
	}
	if rem := rep.Replayer.Remaining(); rem != 0 {
		t.Errorf("Remaining() = %d, want 0", rem)
	}
}

func TestReplayDetectsDivergence(t *testing.T) {
	cfg := vm.Config{Capacity: 16, StackMax: 8, GCThreshold: 4}

	var log bytes.Buffer
	rec := vm.New(cfg)
	rec.Recorder = vm.NewRecorder(&log, cfg)
	mustPushInt(t, rec, 11)
	rec.Recorder.RecordExit(0)

	rep := vm.New(cfg)
	rep.Replayer = vm.NewReplayerFromBytes(log.Bytes())
	_, vmErr := rep.PushInt(99)
	if vmErr == nil {
		t.Fatal("expected fault, got nil")
	}
	if vmErr.Code != vm.FaultReplayMismatch {
		t.Fatalf("expected %v, got %v", vm.FaultReplayMismatch, vmErr.Code)
	}
}

func TestReplayDetectsExhaustion(t *testing.T) {
	cfg := vm.Config{Capacity: 16, StackMax: 8, GCThreshold: 4}

	// A log truncated before its terminal event: header plus one op.
	var log bytes.Buffer
	rec := vm.New(cfg)
	rec.Recorder = vm.NewRecorder(&log, cfg)
	mustPushInt(t, rec, 11)

	rep := vm.New(cfg)
	rep.Replayer = vm.NewReplayerFromBytes(log.Bytes())
	mustPushInt(t, rep, 11)

	_, vmErr := rep.PushInt(22)
	if vmErr == nil {
		t.Fatal("expected fault, got nil")
	}
	if vmErr.Code != vm.FaultReplayLogExhausted {
		t.Fatalf("expected %v, got %v", vm.FaultReplayLogExhausted, vmErr.Code)
	}
}

func TestReplayRejectsEventsAfterFault(t *testing.T) {
	cfg := vm.Config{Capacity: 16, StackMax: 8, GCThreshold: 4}

	var log bytes.Buffer
	rec := vm.New(cfg)
	rec.Recorder = vm.NewRecorder(&log, cfg)
	_, vmErr := rec.Pop()
	if vmErr == nil {
		t.Fatal("expected underflow fault")
	}
	rec.Recorder.RecordFault(vmErr)

	// A hand-edited log with an event after the terminal fault line.
	tampered := log.String() + `{"kind":"op","name":"pop","h":0}` + "\n"

	rep := vm.New(cfg)
	rep.Replayer = vm.NewReplayerFromBytes([]byte(tampered))
	_, popErr := rep.Pop()
	if popErr == nil {
		t.Fatal("expected underflow fault")
	}
	got := rep.Replayer.CheckFault(popErr)
	if got == nil || got.Code != vm.FaultReplayMismatch {
		t.Fatalf("expected %v for trailing events, got %v", vm.FaultReplayMismatch, got)
	}
}

func TestReplayValidatePolicyMismatch(t *testing.T) {
	cfg := vm.Config{Capacity: 16, StackMax: 8, GCThreshold: 4}

	var log bytes.Buffer
	rec := vm.New(cfg)
	rec.Recorder = vm.NewRecorder(&log, cfg)
	rec.Recorder.RecordExit(0)

	r := vm.NewReplayerFromBytes(log.Bytes())
	other := vm.Config{Capacity: 32, StackMax: 8, GCThreshold: 4}
	if err := r.Validate(other); err == nil {
		t.Fatal("expected policy mismatch error, got nil")
	}
	if err := r.Validate(cfg); err != nil {
		t.Fatalf("Validate with matching limits: %v", err)
	}
}

func TestReplayRejectsGarbage(t *testing.T) {
	r := vm.NewReplayerFromBytes([]byte("not json\n"))
	if err := r.Validate(vm.Config{}); err == nil {
		t.Fatal("expected parse error, got nil")
	}

	empty := vm.NewReplayerFromBytes(nil)
	if err := empty.Validate(vm.Config{}); err == nil || !strings.Contains(err.Error(), "missing header") {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestRecorderLogShape(t *testing.T) {
	cfg := vm.Config{Capacity: 16, StackMax: 8, GCThreshold: 4}

	var log bytes.Buffer
	v := vm.New(cfg)
	v.Recorder = vm.NewRecorder(&log, cfg)
	mustPushInt(t, v, 22)
	v.GC()
	_, vmErr := v.Pop()
	if vmErr != nil {
		t.Fatalf("Pop: %v", vmErr)
	}
	_, vmErr = v.Pop()
	if vmErr == nil {
		t.Fatal("expected underflow fault")
	}
	v.Recorder.RecordFault(vmErr)

	lines := strings.Split(strings.TrimSpace(log.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 log lines, got %d:\n%s", len(lines), log.String())
	}
	for i, want := range []string{
		`"kind":"header"`,
		`"name":"push_int"`,
		`"kind":"gc"`,
		`"name":"pop"`,
		`"kind":"fault"`,
	} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d missing %q: %s", i, want, lines[i])
		}
	}

	// A terminated log accepts no further events.
	v.Recorder.RecordExit(0)
	if got := len(strings.Split(strings.TrimSpace(log.String()), "\n")); got != 5 {
		t.Errorf("terminated log grew to %d lines", got)
	}
}
