package vm

// evalStack is the fixed-capacity LIFO of handles the collector roots from.
// Every handle held here must name an allocated cell; the VM checks capacity
// before pushing, so push and pop treat violations as broken invariants.
type evalStack struct {
	items []Handle
	max   int
}

func newEvalStack(max int) *evalStack {
	return &evalStack{
		items: make([]Handle, 0, max),
		max:   max,
	}
}

func (s *evalStack) size() int {
	return len(s.items)
}

func (s *evalStack) full() bool {
	return len(s.items) >= s.max
}

func (s *evalStack) push(h Handle) {
	if s.full() {
		panic(internalFault("push onto full stack (max %d)", s.max))
	}
	s.items = append(s.items, h)
}

func (s *evalStack) pop() Handle {
	if len(s.items) == 0 {
		panic(internalFault("pop from empty stack"))
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return top
}

// peek returns the handle at the given depth from the top.
func (s *evalStack) peek(depth int) Handle {
	if depth < 0 || depth >= len(s.items) {
		panic(internalFault("peek depth %d out of range for stack size %d", depth, len(s.items)))
	}
	return s.items[len(s.items)-1-depth]
}

// roots returns the current root set. Marking is idempotent, so the order
// does not matter; bottom-to-top is used because it is the storage order.
func (s *evalStack) roots() []Handle {
	return s.items
}

func (s *evalStack) reset() {
	s.items = s.items[:0]
}
