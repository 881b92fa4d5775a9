package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerStack(b *muf.RegistryBuilder) {
	b.Register("POP", primPop)
	b.Register("POPN", primPopN)
	b.Register("DUP", primDup)
	b.Register("?DUP", primQDup)
	b.Register("DUPN", primDupN)
	b.Register("NIP", primNip)
	b.Register("SWAP", primSwap)
	b.Register("OVER", primOver)
	b.Register("ROT", primRot)
	b.Register("-ROT", primMinusRot)
	b.Register("ROTATE", primRotate)
	b.Register("PICK", primPick)
	b.Register("PUT", primPut)
	b.Register("REVERSE", primReverse)
	b.Register("LREVERSE", primLReverse)
	b.Register("DEPTH", primDepth)
	b.Register("{", primMark)
	b.Register("}", primCountToMark)
}

// ( x -- )
func primPop(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	p.Stack.Pop()
	return muf.Success()
}

// ( x1..xn n -- )
func primPopN(p *muf.Params) muf.Result {
	n, r := countArg(p)
	if !r.Successful() {
		return r
	}
	if r := needAfterCount(p, n); !r.Successful() {
		return r
	}
	p.Stack.PopN(n + 1)
	return muf.Success()
}

// ( x -- x x )
func primDup(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	p.Stack.Push(p.Stack.Peek(1))
	return muf.Success()
}

// ( x -- x x ) when x is true, ( x -- x ) otherwise.
func primQDup(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	if top := p.Stack.Peek(1); top.Truthy() {
		p.Stack.Push(top)
	}
	return muf.Success()
}

// ( x1..xn n -- x1..xn x1..xn )
func primDupN(p *muf.Params) muf.Result {
	n, r := countArg(p)
	if !r.Successful() {
		return r
	}
	if r := needAfterCount(p, n); !r.Successful() {
		return r
	}
	p.Stack.Pop()
	items := p.Stack.PopN(n)
	p.Stack.Push(items...)
	p.Stack.Push(items...)
	return muf.Success()
}

// ( x y -- y )
func primNip(p *muf.Params) muf.Result {
	if r := p.Need(2); !r.Successful() {
		return r
	}
	p.Stack.Remove(2)
	return muf.Success()
}

// ( x y -- y x )
func primSwap(p *muf.Params) muf.Result {
	if r := p.Need(2); !r.Successful() {
		return r
	}
	y, x := p.Stack.Pop(), p.Stack.Pop()
	p.Stack.Push(y, x)
	return muf.Success()
}

// ( x y -- x y x )
func primOver(p *muf.Params) muf.Result {
	if r := p.Need(2); !r.Successful() {
		return r
	}
	p.Stack.Push(p.Stack.Peek(2))
	return muf.Success()
}

// ( x y z -- y z x )
func primRot(p *muf.Params) muf.Result {
	if r := p.Need(3); !r.Successful() {
		return r
	}
	p.Stack.Push(p.Stack.Remove(3))
	return muf.Success()
}

// ( x y z -- z x y )
func primMinusRot(p *muf.Params) muf.Result {
	if r := p.Need(3); !r.Successful() {
		return r
	}
	p.Stack.Insert(3, p.Stack.Pop())
	return muf.Success()
}

// ( xn..x1 n -- xn-1..x1 xn ). A negative n moves the top down instead.
func primRotate(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeInteger); !r.Successful() {
		return r
	}
	n := p.Stack.Peek(1).Int
	depth := n
	if depth < 0 {
		depth = -depth
	}
	// -MinInt64 is still negative.
	if depth < 0 || depth >= int64(p.Stack.Len()) {
		return underflow(p, depth)
	}
	p.Stack.Pop()
	switch {
	case n > 0:
		p.Stack.Push(p.Stack.Remove(int(n)))
	case n < 0:
		p.Stack.Insert(int(depth), p.Stack.Pop())
	}
	return muf.Success()
}

// ( xn..x1 n -- xn..x1 xn )
func primPick(p *muf.Params) muf.Result {
	n, r := countArg(p)
	if !r.Successful() {
		return r
	}
	if n < 1 {
		return fail(muf.InvalidValue, "PICK: depth must be at least 1")
	}
	if r := needAfterCount(p, n); !r.Successful() {
		return r
	}
	p.Stack.Pop()
	p.Stack.Push(p.Stack.Peek(n))
	return muf.Success()
}

// ( xn..x1 y n -- y..x1 ) replaces the nth item with y.
func primPut(p *muf.Params) muf.Result {
	n, r := countArg(p)
	if !r.Successful() {
		return r
	}
	if n < 1 {
		return fail(muf.InvalidValue, "PUT: depth must be at least 1")
	}
	if r := needAfterCount(p, n+1); !r.Successful() {
		return r
	}
	p.Stack.Pop()
	y := p.Stack.Pop()
	p.Stack.Set(n, y)
	return muf.Success()
}

func reverseTop(p *muf.Params, keepCount bool) muf.Result {
	n, r := countArg(p)
	if !r.Successful() {
		return r
	}
	if r := needAfterCount(p, n); !r.Successful() {
		return r
	}
	count := p.Stack.Pop()
	items := p.Stack.PopN(n)
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	p.Stack.Push(items...)
	if keepCount {
		p.Stack.Push(count)
	}
	return muf.Success()
}

// ( x1..xn n -- xn..x1 )
func primReverse(p *muf.Params) muf.Result { return reverseTop(p, false) }

// ( x1..xn n -- xn..x1 n )
func primLReverse(p *muf.Params) muf.Result { return reverseTop(p, true) }

// ( -- i )
func primDepth(p *muf.Params) muf.Result {
	p.Stack.Push(muf.IntDatum(int64(p.Stack.Len())))
	return muf.Success()
}

// ( -- mark )
func primMark(p *muf.Params) muf.Result {
	p.Stack.Push(muf.MarkerDatum())
	return muf.Success()
}

// ( mark x1..xn -- x1..xn n )
func primCountToMark(p *muf.Params) muf.Result {
	for i := 1; i <= p.Stack.Len(); i++ {
		if p.Stack.Peek(i).Type == muf.TypeMarker {
			p.Stack.Remove(i)
			p.Stack.Push(muf.IntDatum(int64(i - 1)))
			return muf.Success()
		}
	}
	return fail(muf.StackUnderflow, "}: no matching {")
}
