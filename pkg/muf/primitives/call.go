package primitives

import (
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerCall(b *muf.RegistryBuilder) {
	b.Register("CALL", primCall)
}

// ( d -- ?? ) or ( d s -- ?? ) runs the entry word, or the named public
// word, of program d on the shared stack.
func primCall(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	depth := 1
	if p.Stack.Peek(1).Type == muf.TypeString {
		if r := p.Expect(muf.TypeDbRef, muf.TypeString); !r.Successful() {
			return r
		}
		depth = 2
	} else if r := p.Expect(muf.TypeDbRef); !r.Successful() {
		return r
	}
	ref := p.Stack.Peek(depth).Ref
	obj, r := p.Object(ref)
	if !r.Successful() {
		return r
	}
	if obj.Type != gamedb.TypeProgram {
		return fail(muf.InvalidValue, "CALL: %s is not a program", ref)
	}
	if p.Call == nil {
		return fail(muf.InternalError, "CALL: no program loader")
	}
	word := ""
	if depth == 2 {
		word = p.Stack.Pop().Str
	}
	p.Stack.Pop()
	return p.Call(ref, word)
}
