package program

import (
	"fmt"
	"io"

	"pairvm/internal/vm"
)

// Exec runs a parsed program against a VM. Output ops (dump, stats) write to
// out. Execution stops at the first fault, which is recorded in the VM's op
// log (when recording) and returned.
func Exec(p *Program, v *vm.VM, out io.Writer) (vmErr *vm.VMError) {
	defer func() {
		// Replay divergence inside an infallible operation surfaces as a
		// panic carrying a *VMError; everything else propagates.
		if r := recover(); r != nil {
			if e, ok := r.(*vm.VMError); ok {
				vmErr = e
				return
			}
			panic(r)
		}
	}()
	for _, op := range p.Ops {
		if vmErr := execOp(op, v, out); vmErr != nil {
			v.Recorder.RecordFault(vmErr)
			return v.Replayer.CheckFault(vmErr)
		}
	}
	return nil
}

func execOp(op Op, v *vm.VM, out io.Writer) *vm.VMError {
	switch op.Kind {
	case OpPushInt:
		_, vmErr := v.PushInt(op.N)
		return vmErr
	case OpPushPair:
		_, vmErr := v.PushPair()
		return vmErr
	case OpPop:
		_, vmErr := v.Pop()
		return vmErr
	case OpGC:
		v.GC()
		return nil
	case OpDump:
		if out != nil {
			fmt.Fprint(out, v.DumpString())
		}
		return nil
	case OpStats:
		if out != nil {
			s := v.Stats()
			fmt.Fprintf(out, "live=%d threshold=%d stack=%d collections=%d\n",
				s.Live, s.Threshold, s.StackSize, s.Collections)
		}
		return nil
	default:
		panic(&vm.VMError{
			Code:    vm.FaultInternal,
			Message: fmt.Sprintf("unknown op kind %d at line %d", op.Kind, op.Line),
		})
	}
}
