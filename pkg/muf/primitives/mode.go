package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerMode(b *muf.RegistryBuilder) {
	b.Register("SETMODE", primSetMode)
	b.Register("MODE", primMode)
}

// ( i -- )
func primSetMode(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeInteger); !r.Successful() {
		return r
	}
	n := p.Stack.Peek(1).Int
	if !muf.ValidMode(n) {
		return fail(muf.InvalidValue, "SETMODE: unknown mode %d", n)
	}
	p.Stack.Pop()
	p.Inv.Mode = muf.Mode(n)
	return muf.Success()
}

// ( -- i )
func primMode(p *muf.Params) muf.Result {
	p.Stack.Push(muf.IntDatum(int64(p.Inv.Mode)))
	return muf.Success()
}
