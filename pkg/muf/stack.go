package muf

// Stack is the data stack shared by every word in a run. Index 1 is the top.
type Stack struct {
	items []Datum
}

// NewStack returns a stack holding items, last item on top.
func NewStack(items ...Datum) *Stack {
	s := &Stack{items: make([]Datum, 0, len(items)+16)}
	s.items = append(s.items, items...)
	return s
}

// Len returns the depth.
func (s *Stack) Len() int { return len(s.items) }

// Push adds values in order; the last one ends on top.
func (s *Stack) Push(d ...Datum) {
	for _, v := range d {
		v.Pos = nil
		s.items = append(s.items, v)
	}
}

// Pop removes and returns the top. Callers check depth first.
func (s *Stack) Pop() Datum {
	d := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return d
}

// PopN removes the top n values and returns them bottom-first.
func (s *Stack) PopN(n int) []Datum {
	cut := len(s.items) - n
	out := make([]Datum, n)
	copy(out, s.items[cut:])
	s.items = s.items[:cut]
	return out
}

// Peek returns the value at depth n without removing it.
func (s *Stack) Peek(n int) Datum {
	return s.items[len(s.items)-n]
}

// Set replaces the value at depth n.
func (s *Stack) Set(n int, d Datum) {
	d.Pos = nil
	s.items[len(s.items)-n] = d
}

// Remove deletes the value at depth n and returns it.
func (s *Stack) Remove(n int) Datum {
	i := len(s.items) - n
	d := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return d
}

// Insert places d so that it ends up at depth n.
func (s *Stack) Insert(n int, d Datum) {
	d.Pos = nil
	i := len(s.items) - n + 1
	s.items = append(s.items, Datum{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = d
}

// Items returns a copy, bottom-first.
func (s *Stack) Items() []Datum {
	out := make([]Datum, len(s.items))
	copy(out, s.items)
	return out
}

// Top returns the top value and whether the stack is non-empty.
func (s *Stack) Top() (Datum, bool) {
	if len(s.items) == 0 {
		return Datum{}, false
	}
	return s.items[len(s.items)-1], true
}

// Clear empties the stack.
func (s *Stack) Clear() { s.items = s.items[:0] }
