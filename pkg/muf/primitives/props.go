package primitives

import (
	"strings"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerProps(b *muf.RegistryBuilder) {
	b.Register("GETPROP", primGetProp)
	b.Register("GETPROPSTR", primGetPropStr)
	b.Register("GETPROPVAL", primGetPropVal)
	b.Register("GETPROPFVAL", primGetPropFVal)
	b.Register("SETPROP", primSetProp)
	b.Register("ADDPROP", primAddProp)
	b.Register("REMOVE_PROP", primRemoveProp)
	b.Register("PROPDIR?", primIsPropDir)
	b.Register("NEXTPROP", primNextProp)
}

func isWizard(p *muf.Params) bool {
	obj, found := p.World.Get(p.Caller())
	return found && obj.IsWizard()
}

// Paths under @ are wizard-only; paths under ~ are readable by anyone but
// only wizards may change them.
func canReadProp(p *muf.Params, path string) bool {
	return !strings.HasPrefix(gamedb.NormalizePath(path), "@") || isWizard(p)
}

func canWriteProp(p *muf.Params, ref gamedb.DBRef, path string) bool {
	np := gamedb.NormalizePath(path)
	if strings.HasPrefix(np, "@") || strings.HasPrefix(np, "~") {
		return isWizard(p)
	}
	return p.Controls(ref)
}

// propArgs validates ( d s ) at the top of the stack and the caller's access.
func propArgs(p *muf.Params, write bool) muf.Result {
	if r := p.Expect(muf.TypeDbRef, muf.TypeString); !r.Successful() {
		return r
	}
	ref, path := p.Stack.Peek(2).Ref, p.Stack.Peek(1).Str
	if _, r := p.Object(ref); !r.Successful() {
		return r
	}
	if gamedb.NormalizePath(path) == "" && write {
		return fail(muf.InvalidValue, "%s: empty property path", p.Name)
	}
	if !write && !canReadProp(p, path) {
		return fail(muf.InsufficientPermission, "%s: cannot read %s", p.Name, path)
	}
	return muf.Success()
}

// getProp pops ( d s ) and returns the stored value.
func getProp(p *muf.Params) (gamedb.PropValue, bool, muf.Result) {
	if r := propArgs(p, false); !r.Successful() {
		return gamedb.PropValue{}, false, r
	}
	xs := p.Stack.PopN(2)
	v, found := p.World.GetPropertyPath(xs[0].Ref, xs[1].Str)
	return v, found, muf.Success()
}

// ( d s -- x ) a missing property yields 0.
func primGetProp(p *muf.Params) muf.Result {
	v, found, r := getProp(p)
	if !r.Successful() {
		return r
	}
	if !found {
		p.Stack.Push(muf.IntDatum(0))
	} else {
		p.Stack.Push(propToDatum(v))
	}
	return muf.Success()
}

// ( d s -- s ) a missing property yields "".
func primGetPropStr(p *muf.Params) muf.Result {
	v, found, r := getProp(p)
	if !r.Successful() {
		return r
	}
	s := ""
	if found {
		s = v.Text()
	}
	p.Stack.Push(muf.StringDatum(s))
	return muf.Success()
}

// ( d s -- i ) non-integer values yield 0.
func primGetPropVal(p *muf.Params) muf.Result {
	v, found, r := getProp(p)
	if !r.Successful() {
		return r
	}
	var n int64
	if found && v.Kind == gamedb.PropInteger {
		n = v.Int
	}
	p.Stack.Push(muf.IntDatum(n))
	return muf.Success()
}

// ( d s -- f ) non-numeric values yield 0.0.
func primGetPropFVal(p *muf.Params) muf.Result {
	v, found, r := getProp(p)
	if !r.Successful() {
		return r
	}
	var f float64
	if found {
		switch v.Kind {
		case gamedb.PropFloat:
			f = v.Float
		case gamedb.PropInteger:
			f = float64(v.Int)
		}
	}
	p.Stack.Push(muf.FloatDatum(f))
	return muf.Success()
}

func writeProp(p *muf.Params, ref gamedb.DBRef, path string, v gamedb.PropValue) muf.Result {
	if !canWriteProp(p, ref, path) {
		return fail(muf.InsufficientPermission, "%s: permission denied on %s", p.Name, ref)
	}
	if err := p.World.SetPropertyPath(ref, path, v); err != nil {
		return fail(muf.InternalError, "%s: %v", p.Name, err)
	}
	return muf.Success()
}

// ( d s x -- )
func primSetProp(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeDbRef, muf.TypeString, muf.TypeAny); !r.Successful() {
		return r
	}
	x := p.Stack.Peek(1)
	v, valid := datumToProp(x)
	if !valid {
		return fail(muf.TypeMismatch, "SETPROP: cannot store %s", x.Type)
	}
	ref, path := p.Stack.Peek(3).Ref, p.Stack.Peek(2).Str
	if _, r := p.Object(ref); !r.Successful() {
		return r
	}
	if gamedb.NormalizePath(path) == "" {
		return fail(muf.InvalidValue, "SETPROP: empty property path")
	}
	if r := writeProp(p, ref, path, v); !r.Successful() {
		return r
	}
	p.Stack.PopN(3)
	return muf.Success()
}

// ( d s s2 i -- ) stores s2 when non-empty, otherwise the integer.
func primAddProp(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeDbRef, muf.TypeString, muf.TypeString, muf.TypeInteger); !r.Successful() {
		return r
	}
	ref, path := p.Stack.Peek(4).Ref, p.Stack.Peek(3).Str
	s, n := p.Stack.Peek(2).Str, p.Stack.Peek(1).Int
	if _, r := p.Object(ref); !r.Successful() {
		return r
	}
	if gamedb.NormalizePath(path) == "" {
		return fail(muf.InvalidValue, "ADDPROP: empty property path")
	}
	v := gamedb.IntProp(n)
	if s != "" {
		v = gamedb.StringProp(s)
	}
	if r := writeProp(p, ref, path, v); !r.Successful() {
		return r
	}
	p.Stack.PopN(4)
	return muf.Success()
}

// ( d s -- ) removes the property and everything below it.
func primRemoveProp(p *muf.Params) muf.Result {
	if r := propArgs(p, true); !r.Successful() {
		return r
	}
	ref, path := p.Stack.Peek(2).Ref, p.Stack.Peek(1).Str
	if !canWriteProp(p, ref, path) {
		return fail(muf.InsufficientPermission, "REMOVE_PROP: permission denied on %s", ref)
	}
	if err := p.World.ClearPropertyPath(ref, path); err != nil {
		return fail(muf.InternalError, "REMOVE_PROP: %v", err)
	}
	p.Stack.PopN(2)
	return muf.Success()
}

// ( d s -- i )
func primIsPropDir(p *muf.Params) muf.Result {
	if r := propArgs(p, false); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	p.Stack.Push(muf.BoolDatum(len(p.World.PropDir(xs[0].Ref, xs[1].Str)) > 0))
	return muf.Success()
}

// ( d s -- s ) "dir/" yields the first child; "" means no more.
func primNextProp(p *muf.Params) muf.Result {
	if r := propArgs(p, false); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	next := p.World.NextProp(xs[0].Ref, xs[1].Str)
	for next != "" && !canReadProp(p, next) {
		next = p.World.NextProp(xs[0].Ref, next)
	}
	p.Stack.Push(muf.StringDatum(next))
	return muf.Success()
}
