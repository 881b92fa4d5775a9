package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerVars(b *muf.RegistryBuilder) {
	b.Register("@", primFetch)
	b.Register("!", primStore)
}

// ( v -- x )
func primFetch(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeVariable); !r.Successful() {
		return r
	}
	name := p.Stack.Peek(1).Str
	v, found := p.Vars.LookupVar(name)
	if !found {
		return fail(muf.VariableNotFound, "@: variable %q not found", name)
	}
	p.Stack.Set(1, v.Value)
	return muf.Success()
}

// ( x v -- ) the engine applies the write to the owning scope.
func primStore(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeAny, muf.TypeVariable); !r.Successful() {
		return r
	}
	name := p.Stack.Peek(1).Str
	v, found := p.Vars.LookupVar(name)
	if !found {
		return fail(muf.VariableNotFound, "!: variable %q not found", name)
	}
	if v.IsConstant {
		return fail(muf.VariableIsConstant, "!: variable %q is constant", name)
	}
	xs := p.Stack.PopN(2)
	return muf.Success().WithDirty(v.Name, xs[0])
}
