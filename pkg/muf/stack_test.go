package muf

import "testing"

func ints(s *Stack) []int64 {
	var out []int64
	for _, d := range s.Items() {
		out = append(out, d.Int)
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStackOps(t *testing.T) {
	s := NewStack(IntDatum(1), IntDatum(2), IntDatum(3), IntDatum(4))
	if s.Peek(1).Int != 4 || s.Peek(4).Int != 1 {
		t.Fatalf("Peek: top %d bottom %d", s.Peek(1).Int, s.Peek(4).Int)
	}
	got := s.PopN(2)
	if got[0].Int != 3 || got[1].Int != 4 {
		t.Errorf("PopN returned %v, want bottom-first [3 4]", got)
	}
	s.Insert(2, IntDatum(9))
	if want := []int64{1, 9, 2}; !equalInts(ints(s), want) {
		t.Errorf("Insert(2) = %v, want %v", ints(s), want)
	}
	if d := s.Remove(3); d.Int != 1 {
		t.Errorf("Remove(3) = %d", d.Int)
	}
	s.Insert(s.Len()+1, IntDatum(0))
	if want := []int64{0, 9, 2}; !equalInts(ints(s), want) {
		t.Errorf("Insert at bottom = %v, want %v", ints(s), want)
	}
	s.Clear()
	if _, ok := s.Top(); ok {
		t.Error("Top on empty stack")
	}
}

func TestPushDropsProvenance(t *testing.T) {
	s := NewStack()
	s.Push(IntDatum(1).WithPos(&SourcePos{Line: 1}))
	if s.Peek(1).Pos != nil {
		t.Error("values on the stack should not carry source positions")
	}
}

func TestScope(t *testing.T) {
	sc := NewScope()
	if r := sc.Declare("Count", IntDatum(0), false); !r.Successful() {
		t.Fatal(r.Reason)
	}
	if r := sc.Declare("count", IntDatum(1), false); r.Kind != VariableAlreadyDefined {
		t.Errorf("redeclare kind = %s", r.Kind)
	}
	sc.Declare("limit", IntDatum(10), true)
	if r := sc.Set("limit", IntDatum(1)); r.Kind != VariableIsConstant {
		t.Errorf("set constant kind = %s", r.Kind)
	}
	if r := sc.Set("missing", IntDatum(1)); r.Kind != VariableNotFound {
		t.Errorf("set missing kind = %s", r.Kind)
	}
	sc.Set("COUNT", IntDatum(5))
	if v, _ := sc.Lookup("count"); v.Value.Int != 5 {
		t.Errorf("count = %d", v.Value.Int)
	}
	if names := sc.Names(); len(names) != 2 || names[0] != "Count" {
		t.Errorf("Names = %v", names)
	}
}
