package primitives

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crystal-mush/gomuck/pkg/muf"
)

// Casers are stateful, so each call builds its own.
func toUpper(s string) string { return cases.Upper(language.Und).String(s) }
func toLower(s string) string { return cases.Lower(language.Und).String(s) }
func fold(s string) string { return cases.Fold().String(s) }

func registerStrings(b *muf.RegistryBuilder) {
	b.Register("STRCAT", primStrCat)
	b.Register("STRLEN", primStrLen)
	b.Register("STRCMP", primStrCmp)
	b.Register("STRINGCMP", primStringCmp)
	b.Register("STRNCMP", primStrNCmp)
	b.Register("STRCUT", primStrCut)
	b.Register("MIDSTR", primMidStr)
	b.Register("SPLIT", splitter(strings.Index))
	b.Register("RSPLIT", splitter(strings.LastIndex))
	b.Register("SUBST", primSubst)
	b.Register("INSTR", finder(strings.Index))
	b.Register("RINSTR", finder(strings.LastIndex))
	b.Register("TOUPPER", mapString(toUpper))
	b.Register("TOLOWER", mapString(toLower))
	b.Register("STRIPLEAD", mapString(func(s string) string { return strings.TrimLeft(s, " \t") }))
	b.Register("STRIPTAIL", mapString(func(s string) string { return strings.TrimRight(s, " \t") }))
	b.Register("STRIP", mapString(func(s string) string { return strings.Trim(s, " \t") }))
	b.Register("SMATCH", primSMatch)
	b.Register("STRINGPFX", primStringPfx)
}

// ( s1 s2 -- s )
func primStrCat(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeString); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	p.Stack.Push(muf.StringDatum(xs[0].Str + xs[1].Str))
	return muf.Success()
}

// ( s -- i )
func primStrLen(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString); !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.IntDatum(int64(len(p.Stack.Peek(1).Str))))
	return muf.Success()
}

// ( s1 s2 -- i ) case-sensitive; -1, 0 or 1.
func primStrCmp(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeString); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	p.Stack.Push(muf.IntDatum(int64(strings.Compare(xs[0].Str, xs[1].Str))))
	return muf.Success()
}

// ( s1 s2 -- i ) case-insensitive.
func primStringCmp(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeString); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	c := strings.Compare(fold(xs[0].Str), fold(xs[1].Str))
	p.Stack.Push(muf.IntDatum(int64(c)))
	return muf.Success()
}

// ( s1 s2 n -- i ) compares at most n bytes.
func primStrNCmp(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeString, muf.TypeInteger); !r.Successful() {
		return r
	}
	n := p.Stack.Peek(1).Int
	if n < 0 {
		return fail(muf.InvalidValue, "STRNCMP: negative length %d", n)
	}
	xs := p.Stack.PopN(3)
	a, b := clip(xs[0].Str, int(n)), clip(xs[1].Str, int(n))
	p.Stack.Push(muf.IntDatum(int64(strings.Compare(a, b))))
	return muf.Success()
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ( s i -- s1 s2 ) splits after the first i characters.
func primStrCut(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeInteger); !r.Successful() {
		return r
	}
	i := p.Stack.Peek(1).Int
	if i < 0 {
		return fail(muf.InvalidValue, "STRCUT: negative position %d", i)
	}
	xs := p.Stack.PopN(2)
	s := xs[0].Str
	cut := int(min(i, int64(len(s))))
	p.Stack.Push(muf.StringDatum(s[:cut]), muf.StringDatum(s[cut:]))
	return muf.Success()
}

// ( s start len -- s ) start is 1-based.
func primMidStr(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeInteger, muf.TypeInteger); !r.Successful() {
		return r
	}
	start, n := p.Stack.Peek(2).Int, p.Stack.Peek(1).Int
	if start < 1 {
		return fail(muf.InvalidValue, "MIDSTR: start %d is before the string", start)
	}
	if n < 0 {
		return fail(muf.InvalidValue, "MIDSTR: negative length %d", n)
	}
	xs := p.Stack.PopN(3)
	s := xs[0].Str
	from := int(min(start-1, int64(len(s))))
	to := from + int(min(n, int64(len(s)-from)))
	p.Stack.Push(muf.StringDatum(s[from:to]))
	return muf.Success()
}

// splitter builds SPLIT and RSPLIT: ( s sep -- before after ).
func splitter(index func(s, sep string) int) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Expect(muf.TypeString, muf.TypeString); !r.Successful() {
			return r
		}
		xs := p.Stack.PopN(2)
		s, sep := xs[0].Str, xs[1].Str
		i := -1
		if sep != "" {
			i = index(s, sep)
		}
		if i < 0 {
			p.Stack.Push(muf.StringDatum(s), muf.StringDatum(""))
			return muf.Success()
		}
		p.Stack.Push(muf.StringDatum(s[:i]), muf.StringDatum(s[i+len(sep):]))
		return muf.Success()
	}
}

// ( s new old -- s )
func primSubst(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeString, muf.TypeString); !r.Successful() {
		return r
	}
	if p.Stack.Peek(1).Str == "" {
		return fail(muf.InvalidValue, "SUBST: empty search string")
	}
	xs := p.Stack.PopN(3)
	p.Stack.Push(muf.StringDatum(strings.ReplaceAll(xs[0].Str, xs[2].Str, xs[1].Str)))
	return muf.Success()
}

// finder builds INSTR and RINSTR: ( s sub -- i ), 1-based, 0 when absent.
func finder(index func(s, sub string) int) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Expect(muf.TypeString, muf.TypeString); !r.Successful() {
			return r
		}
		xs := p.Stack.PopN(2)
		if xs[1].Str == "" {
			p.Stack.Push(muf.IntDatum(0))
			return muf.Success()
		}
		p.Stack.Push(muf.IntDatum(int64(index(xs[0].Str, xs[1].Str) + 1)))
		return muf.Success()
	}
}

func mapString(fn func(string) string) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Expect(muf.TypeString); !r.Successful() {
			return r
		}
		p.Stack.Set(1, muf.StringDatum(fn(p.Stack.Peek(1).Str)))
		return muf.Success()
	}
}

// ( s pattern -- i )
func primSMatch(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeString); !r.Successful() {
		return r
	}
	m, err := compileGlob(p.Stack.Peek(1).Str)
	if err != nil {
		return fail(muf.InvalidValue, "SMATCH: %v", err)
	}
	xs := p.Stack.PopN(2)
	p.Stack.Push(muf.BoolDatum(m.match(xs[0].Str)))
	return muf.Success()
}

// ( s prefix -- i ) case-insensitive.
func primStringPfx(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeString); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	p.Stack.Push(muf.BoolDatum(strings.HasPrefix(fold(xs[0].Str), fold(xs[1].Str))))
	return muf.Success()
}
