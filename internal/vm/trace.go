package vm

import (
	"fmt"
	"io"
)

// Tracer outputs heap, stack and collector traces for debugging.
// A nil Tracer is a no-op.
type Tracer struct {
	w io.Writer
}

// NewTracer creates a new tracer that writes to w.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

func (t *Tracer) TraceAlloc(h Handle, v Value) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[heap] alloc %s#%d\n", v.Kind, h)
}

func (t *Tracer) TraceFree(h Handle, v Value) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[heap] free %s#%d\n", v.Kind, h)
}

func (t *Tracer) TracePush(h Handle) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[stack] push #%d\n", h)
}

func (t *Tracer) TracePop(h Handle) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[stack] pop #%d\n", h)
}

// TraceGCBegin traces the start of a collection cycle.
// Format: [gc] begin reason=<reason> live=<n> threshold=<n>
func (t *Tracer) TraceGCBegin(reason string, live, threshold int) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[gc] begin reason=%s live=%d threshold=%d\n", reason, live, threshold)
}

func (t *Tracer) TraceMark(h Handle) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[gc] mark #%d\n", h)
}

// TraceGCEnd traces the end of a collection cycle.
// Format: [gc] end freed=<n> live=<n> threshold=<n>
func (t *Tracer) TraceGCEnd(freed, live, threshold int) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[gc] end freed=%d live=%d threshold=%d\n", freed, live, threshold)
}
