package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerConn(b *muf.RegistryBuilder) {
	b.Register("AWAKE?", primAwake)
	b.Register("CONIDLE", primConIdle)
	b.Register("DESCRIPTORS", primDescriptors)
}

// ( d -- i ) number of connections the player has open.
func primAwake(p *muf.Params) muf.Result {
	obj, r := objectArg(p)
	if !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.IntDatum(int64(p.World.ConnectionCount(obj.DBRef))))
	return muf.Success()
}

// ( i -- i ) idle seconds for a descriptor.
func primConIdle(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeInteger); !r.Successful() {
		return r
	}
	desc := p.Stack.Peek(1).Int
	idle, found := p.World.DescriptorIdle(int(desc))
	if !found {
		return fail(muf.InvalidValue, "CONIDLE: invalid descriptor %d", desc)
	}
	p.Stack.Set(1, muf.IntDatum(int64(idle.Seconds())))
	return muf.Success()
}

// ( d -- i1..in n )
func primDescriptors(p *muf.Params) muf.Result {
	obj, r := objectArg(p)
	if !r.Successful() {
		return r
	}
	p.Stack.Pop()
	descs := p.World.Descriptors(obj.DBRef)
	for _, d := range descs {
		p.Stack.Push(muf.IntDatum(int64(d)))
	}
	p.Stack.Push(muf.IntDatum(int64(len(descs))))
	return muf.Success()
}
