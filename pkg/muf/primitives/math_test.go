package primitives

import (
	"math"
	"testing"

	"github.com/crystal-mush/gomuck/pkg/muf"
)

func TestArithmeticClosure(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		want muf.Datum
	}{
		{"2 3 +", muf.IntDatum(5)},
		{"2 3 -", muf.IntDatum(-1)},
		{"4 3 *", muf.IntDatum(12)},
		{"7 2 /", muf.IntDatum(3)},
		{"7 2 %", muf.IntDatum(1)},
		{"-7 2 /", muf.IntDatum(-3)},
		{"2 0.5 +", muf.FloatDatum(2.5)},
		{"1.5 2 *", muf.FloatDatum(3)},
		{"7.0 2 /", muf.FloatDatum(3.5)},
		{"7.5 2 %", muf.FloatDatum(1.5)},
		{"#10 5 +", muf.RefDatum(15)},
		{"5 #10 +", muf.RefDatum(15)},
		{"#10 3 -", muf.RefDatum(7)},
		{"-4 abs", muf.IntDatum(4)},
		{"-2.5 abs", muf.FloatDatum(2.5)},
		{"-9 sign", muf.IntDatum(-1)},
		{"0.0 sign", muf.IntDatum(0)},
		{"4 ++", muf.IntDatum(5)},
		{"#4 --", muf.RefDatum(3)},
		{"1.5 ++", muf.FloatDatum(2.5)},
		{"3.9 int", muf.IntDatum(3)},
		{"#12 int", muf.IntDatum(12)},
		{"3 float", muf.FloatDatum(3)},
		{"2.5 floor", muf.FloatDatum(2)},
		{"2.1 ceil", muf.FloatDatum(3)},
		{"2.5 round", muf.FloatDatum(3)},
		{"16 sqrt", muf.FloatDatum(4)},
		{"2 10 pow", muf.FloatDatum(1024)},
		{"12 10 bitor", muf.IntDatum(14)},
		{"12 10 bitand", muf.IntDatum(8)},
		{"12 10 bitxor", muf.IntDatum(6)},
		{"1 4 bitshift", muf.IntDatum(16)},
		{"16 -2 bitshift", muf.IntDatum(4)},
		{"1 64 bitshift", muf.IntDatum(0)},
	}
	for _, tt := range tests {
		got := f.mustRun(t, tt.src)
		if len(got) != 1 || !got[0].Equal(tt.want) || got[0].Type != tt.want.Type {
			t.Errorf("%q = %v, want %s", tt.src, got, tt.want)
		}
	}
}

func TestArithmeticErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		kind muf.ErrorKind
	}{
		{"1 0 /", muf.DivisionByZero},
		{"1 0 %", muf.DivisionByZero},
		{"1.0 0 /", muf.DivisionByZero},
		{"1 0.0 %", muf.DivisionByZero},
		{"-1 sqrt", muf.InvalidValue},
		{"-8 0.5 pow", muf.InvalidValue},
		{"\"x\" ++", muf.TypeMismatch},
		{"\"x\" int", muf.TypeMismatch},
	}
	for _, tt := range tests {
		inv, r := f.run(t, tt.src)
		if r.Kind != tt.kind {
			t.Errorf("%q: kind = %s (%s), want %s", tt.src, r.Kind, r.Reason, tt.kind)
		}
		if tt.kind == muf.DivisionByZero && inv.Stack.Len() != 2 {
			t.Errorf("%q: operands not preserved: %v", tt.src, inv.Stack.Items())
		}
	}
}

func TestIncrementVariable(t *testing.T) {
	f := newFixture(t)
	got := f.mustRun(t, ": main var n 5 n ! n ++ n ++ n -- n @ ;")
	expectItems(t, "n ++", got, ints(6))

	if _, r := f.run(t, ": main var s \"a\" s ! s ++ ;"); r.Kind != muf.TypeMismatch {
		t.Errorf("++ on a string variable: %s", r.Kind)
	}
	if _, r := f.run(t, ": main me ++ ;"); r.Kind != muf.VariableIsConstant {
		t.Errorf("++ on a pseudo-variable: %s", r.Kind)
	}
}

func TestIntRejectsNonFinite(t *testing.T) {
	f := newFixture(t)
	_, r := f.apply(t, "INT", muf.FloatDatum(math.Inf(1)))
	if r.Kind != muf.InvalidValue {
		t.Errorf("INT of +Inf: %s", r.Kind)
	}
}

func TestTruthTable(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		lit  string
		want int64
	}{
		{"0", 0}, {"1", 1}, {"-3", 1},
		{"0.0", 0}, {"0.1", 1},
		{"#-1", 0}, {"#0", 1}, {"#5", 1},
		{`""`, 0}, {`"0"`, 1}, {`" "`, 1},
	}
	for _, tt := range tests {
		src := tt.lit + " not not"
		got := f.mustRun(t, src)
		expectItems(t, src, got, ints(tt.want))
	}
}

func TestComparisonsAndLogic(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		want int64
	}{
		{"1 1 =", 1},
		{"1 1.0 =", 1},
		{"#3 #3 =", 1},
		{"1 2 !=", 1},
		{"1 2 <", 1},
		{"2.5 2 >", 1},
		{"2 2 <=", 1},
		{"#1 #2 >=", 0},
		{"1 0 and", 0},
		{"1 \"x\" and", 1},
		{"0 \"\" or", 0},
		{"#0 0 or", 1},
		{"1 1 xor", 0},
		{"1 0 xor", 1},
		{"0 not", 1},
	}
	for _, tt := range tests {
		expectItems(t, tt.src, f.mustRun(t, tt.src), ints(tt.want))
	}
}

func TestConversions(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		want muf.Datum
	}{
		{"5 int?", muf.IntDatum(1)},
		{"5.0 int?", muf.IntDatum(0)},
		{"5.0 float?", muf.IntDatum(1)},
		{"\"x\" string?", muf.IntDatum(1)},
		{"#1 dbref?", muf.IntDatum(1)},
		{"0 array_make array?", muf.IntDatum(1)},
		{"\"12\" number?", muf.IntDatum(1)},
		{"\" 1.5 \" number?", muf.IntDatum(1)},
		{"\"twelve\" number?", muf.IntDatum(0)},
		{"3 number?", muf.IntDatum(1)},
		{"42 intostr", muf.StringDatum("42")},
		{"#7 intostr", muf.StringDatum("#7")},
		{"2.5 intostr", muf.StringDatum("2.5")},
		{"\"17abc\" atoi", muf.IntDatum(17)},
		{"\"-5\" atoi", muf.IntDatum(-5)},
		{"\"abc\" atoi", muf.IntDatum(0)},
		{"\" 2.25\" strtof", muf.FloatDatum(2.25)},
		{"3 ftostr", muf.StringDatum("3.0")},
		{"9 dbref", muf.RefDatum(9)},
		{"\"#9\" dbref", muf.RefDatum(9)},
		{"\"9\" dbref", muf.RefDatum(9)},
	}
	for _, tt := range tests {
		got := f.mustRun(t, tt.src)
		if len(got) != 1 || !got[0].Equal(tt.want) || got[0].Type != tt.want.Type {
			t.Errorf("%q = %v, want %s", tt.src, got, tt.want)
		}
	}

	for _, src := range []string{`"abc" strtof`, `"abc" dbref`} {
		if _, r := f.run(t, src); r.Kind != muf.InvalidValue {
			t.Errorf("%q: kind = %s", src, r.Kind)
		}
	}
}
