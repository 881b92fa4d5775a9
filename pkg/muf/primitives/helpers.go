package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func fail(kind muf.ErrorKind, format string, args ...any) muf.Result {
	return muf.Fail(kind, format, args...)
}

// countArg reads a non-negative Integer count from the top of the stack without
// popping it. A count larger than the stack is an underflow, so the int
// returned is always small enough for depth arithmetic.
func countArg(p *muf.Params) (int, muf.Result) {
	if r := p.Expect(muf.TypeInteger); !r.Successful() {
		return 0, r
	}
	n := p.Stack.Peek(1).Int
	if n < 0 {
		return 0, fail(muf.InvalidValue, "%s: negative count %d", p.Name, n)
	}
	if n >= int64(p.Stack.Len()) {
		return 0, underflow(p, n)
	}
	return int(n), muf.Success()
}

// needAfterCount checks that n more items sit below the count on top.
func needAfterCount(p *muf.Params, n int) muf.Result {
	if n < 0 || n > p.Stack.Len()-1 {
		return underflow(p, int64(n))
	}
	return muf.Success()
}

// underflow reports that n items were wanted below the count on top.
func underflow(p *muf.Params, n int64) muf.Result {
	return fail(muf.StackUnderflow, "%s needs %d stack items below the count, found %d", p.Name, n, p.Stack.Len()-1)
}

func propToDatum(v gamedb.PropValue) muf.Datum {
	switch v.Kind {
	case gamedb.PropInteger:
		return muf.IntDatum(v.Int)
	case gamedb.PropFloat:
		return muf.FloatDatum(v.Float)
	case gamedb.PropDBRef:
		return muf.RefDatum(v.Ref)
	case gamedb.PropLock:
		return muf.LockDatum(v.Str)
	}
	return muf.StringDatum(v.Str)
}

func datumToProp(d muf.Datum) (gamedb.PropValue, bool) {
	switch d.Type {
	case muf.TypeString:
		return gamedb.StringProp(d.Str), true
	case muf.TypeInteger:
		return gamedb.IntProp(d.Int), true
	case muf.TypeFloat:
		return gamedb.FloatProp(d.Float), true
	case muf.TypeDbRef:
		return gamedb.RefProp(d.Ref), true
	case muf.TypeLock:
		return gamedb.LockProp(d.Str), true
	}
	return gamedb.PropValue{}, false
}
