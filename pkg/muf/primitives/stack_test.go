package primitives

import (
	"math"
	"testing"

	"github.com/crystal-mush/gomuck/pkg/muf"
)

func TestUnderflowLeavesStackUntouched(t *testing.T) {
	f := newFixture(t)
	arity := map[string]int{
		"POP": 1, "DUP": 1, "?DUP": 1, "NIP": 2, "SWAP": 2, "OVER": 2, "ROT": 3, "-ROT": 3,
		"+": 2, "-": 2, "*": 2, "/": 2, "%": 2, "ABS": 1, "BITAND": 2, "POW": 2,
		"=": 2, "<": 2, "AND": 2, "NOT": 1,
		"INTOSTR": 1, "ATOI": 1, "DBREF": 1,
		"STRCAT": 2, "STRLEN": 1, "STRNCMP": 3, "STRCUT": 2, "MIDSTR": 3, "SUBST": 3, "SMATCH": 2,
		"ARRAY_COUNT": 1, "ARRAY_GETITEM": 2, "ARRAY_SETITEM": 3,
		"GETPROP": 2, "SETPROP": 3, "ADDPROP": 4, "REMOVE_PROP": 2,
		"NAME": 1, "ADDPENNIES": 2, "NOTIFY": 2, "FORCE": 2,
		"@": 1, "!": 2, "TIMEFMT": 2, "SETSEED": 1, "SETMODE": 1, "CALL": 1,
	}
	for name, n := range arity {
		for depth := 0; depth < n; depth++ {
			items := ints(make([]int64, depth)...)
			st, r := f.apply(t, name, items...)
			if r.Kind != muf.StackUnderflow {
				t.Errorf("%s with %d items: kind = %s (%s)", name, depth, r.Kind, r.Reason)
				continue
			}
			if !sameStack(st.Items(), items) {
				t.Errorf("%s with %d items modified the stack: %v", name, depth, st.Items())
			}
		}
	}

	// Counts far beyond the stack must not wrap around the depth check.
	huge := []struct {
		name  string
		items []muf.Datum
	}{
		{"POPN", ints(math.MaxInt64)},
		{"DUPN", ints(1, math.MaxInt64)},
		{"REVERSE", ints(1, math.MaxInt64)},
		{"PICK", ints(1, math.MaxInt64)},
		{"PUT", ints(1, math.MaxInt64)},
		{"ROTATE", ints(1, math.MaxInt64)},
		{"ROTATE", ints(1, math.MinInt64)},
		{"ARRAY_MAKE", ints(1, math.MaxInt64)},
		{"ARRAY_MAKE_DICT", ints(1, 2, math.MaxInt64)},
		{"ARRAY_MAKE_DICT", ints(1, 2, math.MaxInt64/2+1)},
		{"NOTIFY_EXCLUDE", []muf.Datum{muf.RefDatum(0), muf.IntDatum(math.MaxInt64), muf.StringDatum("x")}},
	}
	for _, tt := range huge {
		st, r := f.apply(t, tt.name, tt.items...)
		if r.Kind != muf.StackUnderflow {
			t.Errorf("%s %v: kind = %s (%s)", tt.name, tt.items, r.Kind, r.Reason)
			continue
		}
		if !sameStack(st.Items(), tt.items) {
			t.Errorf("%s %v modified the stack: %v", tt.name, tt.items, st.Items())
		}
	}
}

func TestTypeMismatchLeavesStackUntouched(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		items []muf.Datum
	}{
		{"+", []muf.Datum{muf.StringDatum("a"), muf.IntDatum(1)}},
		{"-", []muf.Datum{muf.IntDatum(1), muf.RefDatum(2)}},
		{"*", []muf.Datum{muf.RefDatum(2), muf.IntDatum(3)}},
		{"BITOR", []muf.Datum{muf.FloatDatum(1), muf.IntDatum(1)}},
		{"<", []muf.Datum{muf.StringDatum("a"), muf.StringDatum("b")}},
		{"=", []muf.Datum{muf.IntDatum(1), muf.RefDatum(1)}},
		{"STRCAT", []muf.Datum{muf.StringDatum("a"), muf.IntDatum(1)}},
		{"STRLEN", []muf.Datum{muf.IntDatum(5)}},
		{"MIDSTR", []muf.Datum{muf.StringDatum("abc"), muf.StringDatum("1"), muf.IntDatum(1)}},
		{"ATOI", []muf.Datum{muf.IntDatum(5)}},
		{"PICK", []muf.Datum{muf.IntDatum(1), muf.StringDatum("1")}},
		{"ARRAY_COUNT", []muf.Datum{muf.StringDatum("x")}},
		{"ARRAY_GETITEM", []muf.Datum{muf.ListDatum(), muf.FloatDatum(1)}},
		{"GETPROP", []muf.Datum{muf.IntDatum(2), muf.StringDatum("x")}},
		{"SETPROP", []muf.Datum{muf.RefDatum(2), muf.StringDatum("x"), muf.ListDatum()}},
		{"NAME", []muf.Datum{muf.StringDatum("#2")}},
		{"NOTIFY", []muf.Datum{muf.StringDatum("hi"), muf.RefDatum(2)}},
		{"@", []muf.Datum{muf.StringDatum("x")}},
		{"SETMODE", []muf.Datum{muf.StringDatum("0")}},
		{"CALL", []muf.Datum{muf.IntDatum(4)}},
	}
	for _, tt := range tests {
		st, r := f.apply(t, tt.name, tt.items...)
		if r.Kind != muf.TypeMismatch {
			t.Errorf("%s %v: kind = %s (%s)", tt.name, tt.items, r.Kind, r.Reason)
			continue
		}
		if !sameStack(st.Items(), tt.items) {
			t.Errorf("%s modified the stack: %v", tt.name, st.Items())
		}
	}
}

func TestStackShuffling(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		want []muf.Datum
	}{
		{"1 2 pop", ints(1)},
		{"1 2 3 2 popn", ints(1)},
		{"1 dup", ints(1, 1)},
		{"0 ?dup 5 ?dup", ints(0, 5, 5)},
		{"1 2 2 dupn", ints(1, 2, 1, 2)},
		{"1 2 nip", ints(2)},
		{"1 2 swap", ints(2, 1)},
		{"1 2 over", ints(1, 2, 1)},
		{"1 2 3 rot", ints(2, 3, 1)},
		{"1 2 3 -rot", ints(3, 1, 2)},
		{"1 2 3 4 4 rotate", ints(2, 3, 4, 1)},
		{"1 2 3 4 -4 rotate", ints(4, 1, 2, 3)},
		{"1 2 3 3 pick", ints(1, 2, 3, 1)},
		{"1 2 3 9 2 put", ints(1, 9, 3)},
		{"1 2 3 3 reverse", ints(3, 2, 1)},
		{"1 2 3 3 lreverse", ints(3, 2, 1, 3)},
		{"7 7 depth", ints(7, 7, 2)},
		{"{ 1 2 3 }", ints(1, 2, 3, 3)},
		{"9 { }", ints(9, 0)},
	}
	for _, tt := range tests {
		expectItems(t, tt.src, f.mustRun(t, tt.src), tt.want)
	}
}

func TestShufflingEquivalences(t *testing.T) {
	f := newFixture(t)
	pairs := [][2]string{
		{"1 pick", "dup"},
		{"2 pick", "over"},
		{"3 rotate", "rot"},
		{"-3 rotate", "-rot"},
		{"5 reverse 5 reverse", ""},
		{"2 reverse", "swap"},
	}
	base := "10 20 30 40 50 "
	for _, pr := range pairs {
		a := f.mustRun(t, base+pr[0])
		b := f.mustRun(t, base+pr[1])
		if !sameStack(a, b) {
			t.Errorf("%q gives %v but %q gives %v", pr[0], a, pr[1], b)
		}
	}
}

func TestStackDomainErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		kind muf.ErrorKind
	}{
		{"1 0 pick", muf.InvalidValue},
		{"1 -1 popn", muf.InvalidValue},
		{"1 2 5 reverse", muf.StackUnderflow},
		{"1 5 rotate", muf.StackUnderflow},
		{"1 2 }", muf.StackUnderflow},
	}
	for _, tt := range tests {
		if _, r := f.run(t, tt.src); r.Kind != tt.kind {
			t.Errorf("%q: kind = %s (%s), want %s", tt.src, r.Kind, r.Reason, tt.kind)
		}
	}
}

func TestMarkerStaysOnStackUntilClosed(t *testing.T) {
	f := newFixture(t)
	got := f.mustRun(t, "{ 1")
	if len(got) != 2 || got[0].Type != muf.TypeMarker {
		t.Errorf("stack = %v", got)
	}
	if got := f.mustRun(t, "#2 { #3 }"); !sameStack(got, []muf.Datum{muf.RefDatum(2), muf.RefDatum(3), muf.IntDatum(1)}) {
		t.Errorf("stack = %v", got)
	}
}
