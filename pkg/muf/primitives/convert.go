package primitives

import (
	"strconv"
	"strings"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerConvert(b *muf.RegistryBuilder) {
	b.Register("INT?", isType(muf.TypeInteger))
	b.Register("FLOAT?", isType(muf.TypeFloat))
	b.Register("STRING?", isType(muf.TypeString))
	b.Register("DBREF?", isType(muf.TypeDbRef))
	b.Register("ARRAY?", isType(muf.TypeArray))
	b.Register("LOCK?", isType(muf.TypeLock))
	b.Register("NUMBER?", primIsNumber)
	b.Register("INTOSTR", primIntoStr)
	b.Register("ATOI", primAtoi)
	b.Register("STRTOF", primStrToF)
	b.Register("FTOSTR", primFToStr)
	b.Register("DBREF", primDbRef)
}

func isType(t muf.DatumType) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Need(1); !r.Successful() {
			return r
		}
		p.Stack.Set(1, muf.BoolDatum(p.Stack.Peek(1).Type == t))
		return muf.Success()
	}
}

// ( x -- i ) true for numbers and for strings that read as one.
func primIsNumber(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	d := p.Stack.Peek(1)
	is := d.IsNumber()
	if d.Type == muf.TypeString {
		lit, found := muf.InferLiteral(strings.TrimSpace(d.Str))
		is = found && lit.IsNumber()
	}
	p.Stack.Set(1, muf.BoolDatum(is))
	return muf.Success()
}

// ( x -- s )
func primIntoStr(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	d := p.Stack.Peek(1)
	switch d.Type {
	case muf.TypeString, muf.TypeInteger, muf.TypeFloat, muf.TypeDbRef:
		p.Stack.Set(1, muf.StringDatum(d.Text()))
		return muf.Success()
	}
	return fail(muf.TypeMismatch, "INTOSTR: cannot convert %s", d.Type)
}

// leadingInt parses an optional sign and leading digits, ignoring the rest.
func leadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.ParseInt(s[:end], 10, 64)
	return n
}

// ( s -- i ) non-numeric text yields 0.
func primAtoi(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString); !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.IntDatum(leadingInt(p.Stack.Peek(1).Str)))
	return muf.Success()
}

// ( s -- f )
func primStrToF(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString); !r.Successful() {
		return r
	}
	s := strings.TrimSpace(p.Stack.Peek(1).Str)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fail(muf.InvalidValue, "STRTOF: %q is not a number", s)
	}
	p.Stack.Set(1, muf.FloatDatum(f))
	return muf.Success()
}

// ( n -- s )
func primFToStr(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeNumber); !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.StringDatum(muf.FormatFloat(p.Stack.Peek(1).AsFloat())))
	return muf.Success()
}

// ( i -- d ) also accepts "#n" strings.
func primDbRef(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	d := p.Stack.Peek(1)
	switch d.Type {
	case muf.TypeInteger:
		p.Stack.Set(1, muf.RefDatum(gamedb.DBRef(d.Int)))
	case muf.TypeDbRef:
	case muf.TypeString:
		lit, found := muf.InferLiteral(strings.TrimSpace(d.Str))
		if !found || (lit.Type != muf.TypeDbRef && lit.Type != muf.TypeInteger) {
			return fail(muf.InvalidValue, "DBREF: %q is not an object reference", d.Str)
		}
		if lit.Type == muf.TypeInteger {
			lit = muf.RefDatum(gamedb.DBRef(lit.Int))
		}
		p.Stack.Set(1, lit)
	default:
		return fail(muf.TypeMismatch, "DBREF: expected integer, got %s", d.Type)
	}
	return muf.Success()
}
