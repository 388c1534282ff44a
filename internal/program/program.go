// Package program parses pairvm scenario scripts.
//
// A script is a sequence of lines, one operation per line. Blank lines and
// lines starting with '#' are skipped. Operations:
//
//	push_int <n>
//	push_pair
//	pop
//	gc
//	dump
//	stats
package program

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// OpKind identifies one scripted operation.
type OpKind uint8

const (
	OpPushInt OpKind = iota + 1
	OpPushPair
	OpPop
	OpGC
	OpDump
	OpStats
)

// String returns the script spelling of the op.
func (k OpKind) String() string {
	switch k {
	case OpPushInt:
		return "push_int"
	case OpPushPair:
		return "push_pair"
	case OpPop:
		return "pop"
	case OpGC:
		return "gc"
	case OpDump:
		return "dump"
	case OpStats:
		return "stats"
	default:
		return fmt.Sprintf("OpKind(%d)", k)
	}
}

// Op is one parsed operation. Line is 1-based and points at the source line
// for error reporting.
type Op struct {
	Kind OpKind
	N    int64 // for OpPushInt
	Line int
}

// Program is a parsed scenario script.
type Program struct {
	Ops []Op
}

// ParseFile reads and parses the script at path.
func ParseFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse reads a script from r.
func Parse(r io.Reader) (*Program, error) {
	sc := bufio.NewScanner(r)
	p := &Program{}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		op := Op{Line: lineNo}
		switch fields[0] {
		case "push_int":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: push_int takes exactly one argument", lineNo)
			}
			n, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid integer %q", lineNo, fields[1])
			}
			op.Kind = OpPushInt
			op.N = n
		case "push_pair", "pop", "gc", "dump", "stats":
			if len(fields) != 1 {
				return nil, fmt.Errorf("line %d: %s takes no arguments", lineNo, fields[0])
			}
			switch fields[0] {
			case "push_pair":
				op.Kind = OpPushPair
			case "pop":
				op.Kind = OpPop
			case "gc":
				op.Kind = OpGC
			case "dump":
				op.Kind = OpDump
			case "stats":
				op.Kind = OpStats
			}
		default:
			return nil, fmt.Errorf("line %d: unknown operation %q", lineNo, fields[0])
		}
		p.Ops = append(p.Ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p, nil
}
