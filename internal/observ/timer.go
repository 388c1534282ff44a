// Package observ times the driver's execution phases.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Timer measures the named phases of a single driver run. Phases are
// identified by the index Begin returns; End with an unknown index is
// ignored.
type Timer struct {
	phases []phase
}

type phase struct {
	name  string
	note  string
	start time.Time
	dur   time.Duration
}

func NewTimer() *Timer { return &Timer{} }

// Begin opens a phase and returns its index for End.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, phase{name: name, start: time.Now()})
	return len(t.phases) - 1
}

// End closes the phase, attaching an optional note shown next to it.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	t.phases[idx].dur = time.Since(t.phases[idx].start)
	t.phases[idx].note = note
}

// PhaseReport is the serializable form of one timed phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates all timed phases.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report converts the recorded phases to milliseconds and totals them.
func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	r := Report{Phases: make([]PhaseReport, len(t.phases))}
	for i, p := range t.phases {
		ms := float64(p.dur) / float64(time.Millisecond)
		r.Phases[i] = PhaseReport{Name: p.name, DurationMS: ms, Note: p.note}
		r.TotalMS += ms
	}
	return r
}

// Summary renders the report for --timings output.
func (t *Timer) Summary() string {
	r := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range r.Phases {
		fmt.Fprintf(&sb, "  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			fmt.Fprintf(&sb, "  // %s", p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-20s %7.2f ms\n", "total", r.TotalMS)
	return sb.String()
}
