package muf

import (
	"context"
	"sort"
	"strings"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// PrimitiveFunc implements one built-in word. It works on p.Stack directly
// and reports failures through the returned Result.
type PrimitiveFunc func(p *Params) Result

// Params is everything a primitive can see while it runs.
type Params struct {
	Ctx   context.Context
	Name  string // canonical primitive name
	Stack *Stack
	Vars  VarView
	Inv   *Invocation
	World World

	// Call runs a public word of another program on the shared stack.
	Call func(prog gamedb.DBRef, word string) Result
}

// Need fails with STACK_UNDERFLOW unless the stack holds n values.
func (p *Params) Need(n int) Result {
	if p.Stack.Len() < n {
		return Fail(StackUnderflow, "%s needs %d stack items, found %d", p.Name, n, p.Stack.Len())
	}
	return Success()
}

// Expect checks depth and kinds of the top len(types) values without
// popping them. types are listed bottom-first, the way MUF documents
// arguments: Expect(TypeDbRef, TypeString) means "d s".
func (p *Params) Expect(types ...DatumType) Result {
	if r := p.Need(len(types)); !r.Successful() {
		return r
	}
	for i, want := range types {
		got := p.Stack.Peek(len(types) - i)
		if !typeMatches(got, want) {
			return Fail(TypeMismatch, "%s argument %d: expected %s, got %s", p.Name, i+1, want, got.Type)
		}
	}
	return Success()
}

func typeMatches(d Datum, want DatumType) bool {
	switch want {
	case TypeAny:
		return true
	case TypeNumber:
		return d.IsNumber()
	}
	return d.Type == want
}

// Caller is the effective identity for permission checks.
func (p *Params) Caller() gamedb.DBRef { return p.Inv.Actor }

// Controls reports whether the caller may modify target.
func (p *Params) Controls(target gamedb.DBRef) bool {
	return Controls(p.World, p.Inv.Actor, target)
}

// Object fetches a valid object or fails with NO_SUCH_OBJECT.
func (p *Params) Object(ref gamedb.DBRef) (gamedb.Object, Result) {
	obj, ok := p.World.Get(ref)
	if !ok || obj.IsGarbage() {
		return obj, Fail(NoSuchObject, "%s: no such object %s", p.Name, ref)
	}
	return obj, Success()
}

// Registry maps canonical uppercase names to primitives. It is immutable
// once built and safe to share between engines.
type Registry struct {
	prims map[string]PrimitiveFunc
	names []string
}

// RegistryBuilder collects primitives before freezing them into a Registry.
type RegistryBuilder struct {
	prims map[string]PrimitiveFunc
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{prims: make(map[string]PrimitiveFunc)}
}

// Register adds a primitive under name, which is uppercased.
func (b *RegistryBuilder) Register(name string, fn PrimitiveFunc) {
	b.prims[strings.ToUpper(name)] = fn
}

// Alias makes alias resolve to the primitive registered as target.
func (b *RegistryBuilder) Alias(alias, target string) {
	if fn, ok := b.prims[strings.ToUpper(target)]; ok {
		b.prims[strings.ToUpper(alias)] = fn
	}
}

// Build freezes the builder's contents.
func (b *RegistryBuilder) Build() *Registry {
	r := &Registry{prims: make(map[string]PrimitiveFunc, len(b.prims))}
	for k, v := range b.prims {
		r.prims[k] = v
		r.names = append(r.names, k)
	}
	sort.Strings(r.names)
	return r
}

// Lookup finds a primitive by name, case-insensitively.
func (r *Registry) Lookup(name string) (PrimitiveFunc, bool) {
	fn, ok := r.prims[strings.ToUpper(name)]
	return fn, ok
}

// Has reports whether name is a primitive.
func (r *Registry) Has(name string) bool {
	_, ok := r.prims[strings.ToUpper(name)]
	return ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
