package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerLogic(b *muf.RegistryBuilder) {
	b.Register("=", compare(func(c int) bool { return c == 0 }))
	b.Register("!=", compare(func(c int) bool { return c != 0 }))
	b.Register("<", compare(func(c int) bool { return c < 0 }))
	b.Register(">", compare(func(c int) bool { return c > 0 }))
	b.Register("<=", compare(func(c int) bool { return c <= 0 }))
	b.Register(">=", compare(func(c int) bool { return c >= 0 }))
	b.Register("AND", logical(func(x, y bool) bool { return x && y }))
	b.Register("OR", logical(func(x, y bool) bool { return x || y }))
	b.Register("XOR", logical(func(x, y bool) bool { return x != y }))
	b.Register("NOT", primNot)
}

// order compares numbers with numbers and dbrefs with dbrefs.
func order(x, y muf.Datum) (int, bool) {
	switch {
	case x.Type == muf.TypeInteger && y.Type == muf.TypeInteger:
		return cmp64(x.Int, y.Int), true
	case x.IsNumber() && y.IsNumber():
		a, b := x.AsFloat(), y.AsFloat()
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	case x.Type == muf.TypeDbRef && y.Type == muf.TypeDbRef:
		return cmp64(int64(x.Ref), int64(y.Ref)), true
	}
	return 0, false
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compare(test func(int) bool) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Need(2); !r.Successful() {
			return r
		}
		x, y := p.Stack.Peek(2), p.Stack.Peek(1)
		c, comparable := order(x, y)
		if !comparable {
			return fail(muf.TypeMismatch, "%s: cannot compare %s with %s", p.Name, x.Type, y.Type)
		}
		p.Stack.PopN(2)
		p.Stack.Push(muf.BoolDatum(test(c)))
		return muf.Success()
	}
}

func logical(fn func(x, y bool) bool) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Need(2); !r.Successful() {
			return r
		}
		xs := p.Stack.PopN(2)
		p.Stack.Push(muf.BoolDatum(fn(xs[0].Truthy(), xs[1].Truthy())))
		return muf.Success()
	}
}

// ( x -- i )
func primNot(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.BoolDatum(!p.Stack.Peek(1).Truthy()))
	return muf.Success()
}
