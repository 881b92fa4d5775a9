package primitives

import (
	"testing"

	"github.com/crystal-mush/gomuck/pkg/muf"
)

func strs(ss ...string) []muf.Datum {
	out := make([]muf.Datum, len(ss))
	for i, s := range ss {
		out[i] = muf.StringDatum(s)
	}
	return out
}

func TestStringPrimitives(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		want []muf.Datum
	}{
		{`"foo" "bar" strcat`, strs("foobar")},
		{`"hello" strlen`, ints(5)},
		{`"" strlen`, ints(0)},
		{`"abc" "abd" strcmp`, ints(-1)},
		{`"ABC" "abc" strcmp`, ints(-1)},
		{`"ABC" "abc" stringcmp`, ints(0)},
		{`"b" "A" stringcmp`, ints(1)},
		{`"abcdef" "abcxyz" 3 strncmp`, ints(0)},
		{`"abcdef" "abcxyz" 4 strncmp`, ints(-1)},
		{`"hello" 2 strcut`, strs("he", "llo")},
		{`"hello" 10 strcut`, strs("hello", "")},
		{`"hello" 0 strcut`, strs("", "hello")},
		{`"hello" 2 3 midstr`, strs("ell")},
		{`"hello" 4 10 midstr`, strs("lo")},
		{`"hello" 9 2 midstr`, strs("")},
		{`"hello" 2 9223372036854775807 midstr`, strs("ello")},
		{`"hello" 9223372036854775807 1 midstr`, strs("")},
		{`"hello" 9223372036854775807 strcut`, strs("hello", "")},
		{`"a=b=c" "=" split`, strs("a", "b=c")},
		{`"a=b=c" "=" rsplit`, strs("a=b", "c")},
		{`"abc" "=" split`, strs("abc", "")},
		{`"a-b-c" "+" "-" subst`, strs("a+b+c")},
		{`"hello" "l" instr`, ints(3)},
		{`"hello" "l" rinstr`, ints(4)},
		{`"hello" "z" instr`, ints(0)},
		{`"hello" "" instr`, ints(0)},
		{`"MiXeD" toupper`, strs("MIXED")},
		{`"MiXeD" tolower`, strs("mixed")},
		{`"  pad  " striplead`, strs("pad  ")},
		{`"  pad  " striptail`, strs("  pad")},
		{`"  pad  " strip`, strs("pad")},
		{`"Hello world" "HELLO" stringpfx`, ints(1)},
		{`"Hello" "world" stringpfx`, ints(0)},
	}
	for _, tt := range tests {
		expectItems(t, tt.src, f.mustRun(t, tt.src), tt.want)
	}
}

func TestStringDomainErrors(t *testing.T) {
	f := newFixture(t)
	for _, src := range []string{
		`"abc" -1 strcut`,
		`"abc" 0 1 midstr`,
		`"abc" 1 -1 midstr`,
		`"abc" "b" "" subst`,
		`"a" "b" -1 strncmp`,
	} {
		if _, r := f.run(t, src); r.Kind != muf.InvalidValue {
			t.Errorf("%q: kind = %s", src, r.Kind)
		}
	}
}

func TestSMatch(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		s, pattern string
		want       bool
	}{
		{"dog", "d?g", true},
		{"dg", "d?g", false},
		{"dog", "d*g", true},
		{"dg", "d*g", true},
		{"DOG", "d?g", true},
		{"Mr.", "M[rs].", true},
		{"Ms.", "M[rs].", true},
		{"Mx.", "M[rs].", false},
		{"Mr!", "M[rs].", false},
		{"cat", "[^d]at", true},
		{"dat", "[^d]at", false},
		{"b", "[a-c]", true},
		{"Moira snores", "{Moira|Chupchup}*", true},
		{"Chupchup snores", "{Moira|Chupchup}*", true},
		{"Moira' snores", "{Moira|Chupchup}*", false},
		{"Moira", "{Moira|Chupchup}*", true},
		{"Foxen", "{^Foxen|Fiera}", false},
		{"Fiera", "{^Foxen|Fiera}", false},
		{"Sean", "{^Foxen|Fiera}", true},
		{"say hi to Bob", "say * {Bob|Carol}", true},
		{"say hi to Bobby", "say * {Bob|Carol}", false},
		{"a*b", `a\*b`, true},
		{"axb", `a\*b`, false},
	}
	for _, tt := range tests {
		src := muf.StringDatum(tt.s).String() + " " + muf.StringDatum(tt.pattern).String() + " smatch"
		got := f.mustRun(t, src)
		want := int64(0)
		if tt.want {
			want = 1
		}
		if len(got) != 1 || got[0].Int != want {
			t.Errorf("%q smatch %q = %v, want %v", tt.s, tt.pattern, got, tt.want)
		}
	}
}

func TestSMatchBadPattern(t *testing.T) {
	for _, pattern := range []string{"[abc", "{a|b", "x[]"} {
		if _, err := compileGlob(pattern); err == nil {
			t.Errorf("compileGlob(%q) should fail", pattern)
		}
	}
	f := newFixture(t)
	st, r := f.apply(t, "SMATCH", muf.StringDatum("x"), muf.StringDatum("[x"))
	if r.Kind != muf.InvalidValue || st.Len() != 2 {
		t.Errorf("bad pattern: %s, stack %v", r.Kind, st.Items())
	}
}

func TestCompileGlobCaches(t *testing.T) {
	a, err := compileGlob("cache?me")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := compileGlob("cache?me")
	if a != b {
		t.Error("repeated pattern was recompiled")
	}
}
