package vm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type replayEvent struct {
	Kind  string
	Op    *LogOpEvent
	GC    *LogGCEvent
	Fault *LogFaultEvent
	Exit  *LogExitEvent
}

// Replayer reads a deterministic NDJSON execution log and validates a later
// run against it, event by event. A nil Replayer is a no-op.
type Replayer struct {
	header   LogHeader
	events   []replayEvent
	next     int
	parseErr error

	consumedTerm bool
}

func NewReplayerFromBytes(data []byte) *Replayer {
	r := &Replayer{}
	r.parse(bytes.NewReader(data))
	return r
}

func NewReplayerFromReader(rd io.Reader) *Replayer {
	r := &Replayer{}
	r.parse(rd)
	return r
}

// Validate checks the log header against the VM limits of this run.
func (r *Replayer) Validate(cfg Config) error {
	if r == nil {
		return fmt.Errorf("nil replayer")
	}
	if r.parseErr != nil {
		return r.parseErr
	}
	if r.header.Kind != "header" {
		return fmt.Errorf("missing header")
	}
	if r.header.V != 1 {
		return fmt.Errorf("unsupported log version %d", r.header.V)
	}
	want := NewLogHeader(cfg).Policy
	if r.header.Policy != want {
		return fmt.Errorf("log policy %+v does not match VM limits %+v", r.header.Policy, want)
	}
	return nil
}

// Remaining returns the number of unconsumed events.
func (r *Replayer) Remaining() int {
	if r == nil || r.next >= len(r.events) {
		return 0
	}
	return len(r.events) - r.next
}

// ExpectOp consumes the next event and checks it is the given operation with
// the given observable result. Collections interleave with operations in the
// log, so an op event where this run collected (or the reverse) is a
// divergence.
func (r *Replayer) ExpectOp(name string, n int64, h Handle) *VMError {
	if r == nil {
		return nil
	}
	if r.next >= len(r.events) {
		return &VMError{Code: FaultReplayLogExhausted, Message: "replay log exhausted"}
	}
	ev := r.events[r.next]
	if ev.Kind != "op" || ev.Op == nil {
		return replayMismatch(fmt.Sprintf("expected op %s, got %s event", name, ev.Kind))
	}
	if ev.Op.Name != name {
		return replayMismatch(fmt.Sprintf("expected op %s, got %s", name, ev.Op.Name))
	}
	if ev.Op.N != n || ev.Op.H != h {
		return replayMismatch(fmt.Sprintf("op %s: log has n=%d h=#%d, run produced n=%d h=#%d",
			name, ev.Op.N, ev.Op.H, n, h))
	}
	r.next++
	return nil
}

// ExpectGC consumes the next event and checks it is a collection with the
// same outcome.
func (r *Replayer) ExpectGC(reason string, freed, live, threshold int) *VMError {
	if r == nil {
		return nil
	}
	if r.next >= len(r.events) {
		return &VMError{Code: FaultReplayLogExhausted, Message: "replay log exhausted"}
	}
	ev := r.events[r.next]
	if ev.Kind != "gc" || ev.GC == nil {
		return replayMismatch(fmt.Sprintf("expected gc, got %s event", ev.Kind))
	}
	if ev.GC.Reason != reason || ev.GC.Freed != freed || ev.GC.Live != live || ev.GC.Threshold != threshold {
		return replayMismatch(fmt.Sprintf("gc: log has %+v, run produced reason=%s freed=%d live=%d threshold=%d",
			*ev.GC, reason, freed, live, threshold))
	}
	r.next++
	return nil
}

// CheckFault validates a fault surfaced by this run against the log. A fault
// is terminal, so a matched fault event must also be the last one.
func (r *Replayer) CheckFault(actual *VMError) *VMError {
	if r == nil || actual == nil {
		return actual
	}
	switch actual.Code {
	case FaultReplayLogExhausted, FaultReplayMismatch, FaultInvalidReplayLogFormat:
		return actual
	}
	if r.next >= len(r.events) {
		return &VMError{Code: FaultReplayLogExhausted, Message: "replay log exhausted"}
	}
	ev := r.events[r.next]
	if ev.Kind != "fault" || ev.Fault == nil {
		return replayMismatch(fmt.Sprintf("expected fault, got %s event", ev.Kind))
	}
	if ev.Fault.Code != actual.Code.String() || ev.Fault.Msg != actual.Message {
		return replayMismatch("fault does not match log")
	}
	r.next++
	r.consumedTerm = true
	if r.next != len(r.events) {
		return replayMismatch("extra log events after termination")
	}
	return actual
}

// FinalizeExit validates driver completion against the log and checks that
// no events remain.
func (r *Replayer) FinalizeExit(code int) *VMError {
	if r == nil {
		return nil
	}
	if r.consumedTerm {
		if r.next != len(r.events) {
			return replayMismatch("extra log events after termination")
		}
		return nil
	}
	if r.next >= len(r.events) {
		return &VMError{Code: FaultReplayLogExhausted, Message: "replay log exhausted"}
	}
	ev := r.events[r.next]
	if ev.Kind != "exit" || ev.Exit == nil {
		return replayMismatch(fmt.Sprintf("expected exit, got %s event", ev.Kind))
	}
	if ev.Exit.Code != code {
		return replayMismatch(fmt.Sprintf("expected exit code %d, got %d", ev.Exit.Code, code))
	}
	r.next++
	r.consumedTerm = true
	if r.next != len(r.events) {
		return replayMismatch("extra log events after termination")
	}
	return nil
}

func replayMismatch(msg string) *VMError {
	return &VMError{Code: FaultReplayMismatch, Message: "replay mismatch: " + msg}
}

func (r *Replayer) parse(rd io.Reader) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if r.parseErr != nil {
			continue
		}

		if line[0] != '{' {
			r.parseErr = fmt.Errorf("invalid JSON on line %d", lineNo)
			continue
		}

		if r.header.Kind == "" {
			var h LogHeader
			if err := json.Unmarshal([]byte(line), &h); err != nil {
				r.parseErr = fmt.Errorf("invalid header: %w", err)
				continue
			}
			r.header = h
			continue
		}

		var k struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal([]byte(line), &k); err != nil {
			r.parseErr = fmt.Errorf("invalid event on line %d: %w", lineNo, err)
			continue
		}
		switch k.Kind {
		case "op":
			var ev LogOpEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				r.parseErr = fmt.Errorf("invalid op event on line %d: %w", lineNo, err)
				continue
			}
			r.events = append(r.events, replayEvent{Kind: "op", Op: &ev})
		case "gc":
			var ev LogGCEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				r.parseErr = fmt.Errorf("invalid gc event on line %d: %w", lineNo, err)
				continue
			}
			r.events = append(r.events, replayEvent{Kind: "gc", GC: &ev})
		case "fault":
			var ev LogFaultEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				r.parseErr = fmt.Errorf("invalid fault event on line %d: %w", lineNo, err)
				continue
			}
			r.events = append(r.events, replayEvent{Kind: "fault", Fault: &ev})
		case "exit":
			var ev LogExitEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				r.parseErr = fmt.Errorf("invalid exit event on line %d: %w", lineNo, err)
				continue
			}
			r.events = append(r.events, replayEvent{Kind: "exit", Exit: &ev})
		default:
			r.parseErr = fmt.Errorf("unknown event kind %q on line %d", k.Kind, lineNo)
		}
	}
	if err := sc.Err(); err != nil && r.parseErr == nil {
		r.parseErr = err
	}
	if r.header.Kind == "" && r.parseErr == nil {
		r.parseErr = fmt.Errorf("missing header")
	}
}
