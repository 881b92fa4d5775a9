package primitives

import (
	"math/rand/v2"

	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerRandom(b *muf.RegistryBuilder) {
	b.Register("RANDOM", primRandom)
	b.Register("SRAND", primSRand)
	b.Register("SETSEED", primSetSeed)
	b.Register("GETSEED", primGetSeed)
}

// ( -- i ) non-negative, from the process-wide generator.
func primRandom(p *muf.Params) muf.Result {
	p.Stack.Push(muf.IntDatum(rand.Int64N(1 << 31)))
	return muf.Success()
}

// ( -- i ) from the run's seeded generator.
func primSRand(p *muf.Params) muf.Result {
	p.Stack.Push(muf.IntDatum(p.Inv.Rand().Int64N(1 << 31)))
	return muf.Success()
}

// ( s -- )
func primSetSeed(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString); !r.Successful() {
		return r
	}
	p.Inv.SetSeed(p.Stack.Pop().Str)
	return muf.Success()
}

// ( -- s )
func primGetSeed(p *muf.Params) muf.Result {
	p.Stack.Push(muf.StringDatum(p.Inv.Seed()))
	return muf.Success()
}
