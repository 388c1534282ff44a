package vm

import (
	"encoding/json"
	"io"
	"sync"
)

// Recorder writes a deterministic NDJSON execution log.
// A nil Recorder is a no-op.
type Recorder struct {
	mu   sync.Mutex
	enc  *json.Encoder
	err  error
	done bool
}

// NewRecorder creates a recorder writing to w and emits the header line.
func NewRecorder(w io.Writer, cfg Config) *Recorder {
	r := &Recorder{enc: json.NewEncoder(w)}
	r.enc.SetEscapeHTML(false)
	r.err = r.enc.Encode(NewLogHeader(cfg))
	return r
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done reports whether a terminal event has been recorded.
func (r *Recorder) Done() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// RecordOp logs one successful public operation.
func (r *Recorder) RecordOp(name string, n int64, h Handle) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.err != nil {
		return
	}
	r.recordLocked(LogOpEvent{Kind: "op", Name: name, N: n, H: h})
}

// RecordGC logs one completed collection cycle.
func (r *Recorder) RecordGC(reason string, freed, live, threshold int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.err != nil {
		return
	}
	r.recordLocked(LogGCEvent{
		Kind:      "gc",
		Reason:    reason,
		Freed:     freed,
		Live:      live,
		Threshold: threshold,
	})
}

// RecordFault logs a fault and terminates the log.
func (r *Recorder) RecordFault(vmErr *VMError) {
	if r == nil || vmErr == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.err != nil {
		return
	}
	r.recordLocked(LogFaultEvent{
		Kind: "fault",
		Code: vmErr.Code.String(),
		Msg:  vmErr.Message,
	})
	r.done = true
}

// RecordExit logs driver completion and terminates the log.
func (r *Recorder) RecordExit(code int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.err != nil {
		return
	}
	r.recordLocked(LogExitEvent{Kind: "exit", Code: code})
	r.done = true
}

func (r *Recorder) recordLocked(ev any) {
	if err := r.enc.Encode(ev); err != nil && r.err == nil {
		r.err = err
	}
}
