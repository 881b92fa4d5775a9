package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerNotify(b *muf.RegistryBuilder) {
	b.Register("NOTIFY", primNotify)
	b.Register("NOTIFY_EXCLUDE", primNotifyExclude)
	b.Register("FORCE", primForce)
}

// ( d s -- )
func primNotify(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeDbRef, muf.TypeString); !r.Successful() {
		return r
	}
	if _, r := p.Object(p.Stack.Peek(2).Ref); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	p.World.Notify(xs[0].Ref, xs[1].Str)
	return muf.Success()
}

// ( d dn..d1 n s -- ) tells everything in room d except the listed refs.
func primNotifyExclude(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeInteger, muf.TypeString); !r.Successful() {
		return r
	}
	n := p.Stack.Peek(2).Int
	if n < 0 {
		return fail(muf.InvalidValue, "NOTIFY_EXCLUDE: negative count %d", n)
	}
	if n > int64(p.Stack.Len()-3) {
		return fail(muf.StackUnderflow, "NOTIFY_EXCLUDE needs %d excluded dbrefs and a room, found %d stack items", n, p.Stack.Len()-2)
	}
	for i := 3; i <= int(n)+3; i++ {
		if d := p.Stack.Peek(i); d.Type != muf.TypeDbRef {
			return fail(muf.TypeMismatch, "NOTIFY_EXCLUDE: expected dbref at depth %d, got %s", i, d.Type)
		}
	}
	room := p.Stack.Peek(int(n) + 3).Ref
	if _, r := p.Object(room); !r.Successful() {
		return r
	}
	text := p.Stack.Pop().Str
	p.Stack.Pop()
	refs := p.Stack.PopN(int(n))
	p.Stack.Pop()
	exclude := make([]gamedb.DBRef, len(refs))
	for i, d := range refs {
		exclude[i] = d.Ref
	}
	p.World.NotifyExcluding(room, text, exclude)
	return muf.Success()
}

// ( d s -- ) makes d run s as a command. Wizard only.
func primForce(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeDbRef, muf.TypeString); !r.Successful() {
		return r
	}
	obj, r := p.Object(p.Stack.Peek(2).Ref)
	if !r.Successful() {
		return r
	}
	if !isWizard(p) {
		return fail(muf.InsufficientPermission, "FORCE: wizard only")
	}
	if obj.Type != gamedb.TypePlayer && obj.Type != gamedb.TypeThing {
		return fail(muf.InvalidValue, "FORCE: cannot force %s", obj.Type)
	}
	xs := p.Stack.PopN(2)
	if err := p.World.Force(p.Ctx, p.Caller(), xs[0].Ref, xs[1].Str); err != nil {
		return fail(muf.InternalError, "FORCE: %v", err)
	}
	return muf.Success()
}
