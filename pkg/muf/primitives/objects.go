package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerObjects(b *muf.RegistryBuilder) {
	b.Register("NAME", primName)
	b.Register("OWNER", refField(func(o gamedb.Object) gamedb.DBRef { return o.Owner }))
	b.Register("LOCATION", refField(func(o gamedb.Object) gamedb.DBRef { return o.Location }))
	b.Register("GETLINK", refField(func(o gamedb.Object) gamedb.DBRef {
		if len(o.Links) == 0 {
			return gamedb.Nothing
		}
		return o.Links[0]
	}))
	b.Register("CONTENTS", chainStart(func(o gamedb.Object) gamedb.DBRef { return o.Contents }))
	b.Register("EXITS", chainStart(func(o gamedb.Object) gamedb.DBRef { return o.Exits }))
	b.Register("NEXT", chainStart(func(o gamedb.Object) gamedb.DBRef { return o.Next }))
	b.Register("PENNIES", primPennies)
	b.Register("ADDPENNIES", primAddPennies)
	b.Register("OK?", primOK)
	b.Register("PLAYER?", typeCheck(gamedb.TypePlayer))
	b.Register("ROOM?", typeCheck(gamedb.TypeRoom))
	b.Register("THING?", typeCheck(gamedb.TypeThing))
	b.Register("EXIT?", typeCheck(gamedb.TypeExit))
	b.Register("PROGRAM?", typeCheck(gamedb.TypeProgram))
	b.Register("MATCH", primMatch)
	b.Register("PMATCH", primPMatch)
	b.Register("PROG", primProg)
}

// objectArg validates ( d ) on top and returns the object.
func objectArg(p *muf.Params) (gamedb.Object, muf.Result) {
	if r := p.Expect(muf.TypeDbRef); !r.Successful() {
		return gamedb.Object{}, r
	}
	return p.Object(p.Stack.Peek(1).Ref)
}

// ( d -- s )
func primName(p *muf.Params) muf.Result {
	obj, r := objectArg(p)
	if !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.StringDatum(obj.Name))
	return muf.Success()
}

func refField(get func(gamedb.Object) gamedb.DBRef) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		obj, r := objectArg(p)
		if !r.Successful() {
			return r
		}
		p.Stack.Set(1, muf.RefDatum(get(obj)))
		return muf.Success()
	}
}

// chainStart builds CONTENTS, EXITS and NEXT, which walk the linked lists
// threaded through Next and report the item reached.
func chainStart(get func(gamedb.Object) gamedb.DBRef) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		obj, r := objectArg(p)
		if !r.Successful() {
			return r
		}
		ref := get(obj)
		p.Stack.Set(1, muf.RefDatum(ref))
		return muf.Success().WithListItem(ref)
	}
}

// ( d -- i )
func primPennies(p *muf.Params) muf.Result {
	obj, r := objectArg(p)
	if !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.IntDatum(int64(obj.Pennies)))
	return muf.Success()
}

// ( d i -- )
func primAddPennies(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeDbRef, muf.TypeInteger); !r.Successful() {
		return r
	}
	ref, n := p.Stack.Peek(2).Ref, p.Stack.Peek(1).Int
	obj, r := p.Object(ref)
	if !r.Successful() {
		return r
	}
	if obj.Type != gamedb.TypePlayer && obj.Type != gamedb.TypeThing {
		return fail(muf.InvalidValue, "ADDPENNIES: %s cannot hold pennies", ref)
	}
	if !isWizard(p) && (n > 0 || !p.Controls(ref)) {
		return fail(muf.InsufficientPermission, "ADDPENNIES: permission denied")
	}
	if int64(obj.Pennies)+n < 0 {
		return fail(muf.InvalidValue, "ADDPENNIES: %s would go below zero", ref)
	}
	if err := p.World.AddPennies(ref, int(n)); err != nil {
		return fail(muf.InternalError, "ADDPENNIES: %v", err)
	}
	p.Stack.PopN(2)
	return muf.Success()
}

// ( d -- i ) true for a reference to a live object.
func primOK(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeDbRef); !r.Successful() {
		return r
	}
	obj, found := p.World.Get(p.Stack.Peek(1).Ref)
	p.Stack.Set(1, muf.BoolDatum(found && !obj.IsGarbage()))
	return muf.Success()
}

func typeCheck(t gamedb.ObjectType) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Expect(muf.TypeDbRef); !r.Successful() {
			return r
		}
		obj, found := p.World.Get(p.Stack.Peek(1).Ref)
		p.Stack.Set(1, muf.BoolDatum(found && obj.Type == t))
		return muf.Success()
	}
}

// ( s -- d ) #-1 when nothing matches, #-2 when ambiguous.
func primMatch(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString); !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.RefDatum(p.World.Match(p.Caller(), p.Stack.Peek(1).Str)))
	return muf.Success()
}

// ( s -- d )
func primPMatch(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString); !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.RefDatum(p.World.MatchPlayer(p.Stack.Peek(1).Str)))
	return muf.Success()
}

// ( -- d )
func primProg(p *muf.Params) muf.Result {
	p.Stack.Push(muf.RefDatum(p.Inv.Program))
	return muf.Success()
}
