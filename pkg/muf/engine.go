package muf

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// DefaultMaxDepth bounds nested word calls.
const DefaultMaxDepth = 256

// Engine executes compiled programs. One Engine may run many invocations
// concurrently; each invocation is single-threaded.
type Engine struct {
	world    World
	registry *Registry
	loader   ProgramLoader
	maxSteps int
	maxDepth int

	mu    sync.Mutex
	arena map[arenaKey]*Scope
}

type arenaKey struct {
	run  RunHandle
	prog gamedb.DBRef
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoader lets CALL reach other programs.
func WithLoader(l ProgramLoader) Option { return func(e *Engine) { e.loader = l } }

// WithMaxSteps aborts runs with INTERRUPTED after n datums; 0 means no limit.
func WithMaxSteps(n int) Option { return func(e *Engine) { e.maxSteps = n } }

// WithMaxDepth bounds nested word calls.
func WithMaxDepth(n int) Option { return func(e *Engine) { e.maxDepth = n } }

// NewEngine returns an engine over world that dispatches through registry.
func NewEngine(world World, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		world:    world,
		registry: registry,
		maxDepth: DefaultMaxDepth,
		arena:    make(map[arenaKey]*Scope),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Registry returns the engine's primitive table.
func (e *Engine) Registry() *Registry { return e.registry }

// Tokenizer returns a tokenizer bound to the engine's registry.
func (e *Engine) Tokenizer() *Tokenizer { return NewTokenizer(e.registry) }

// Compile preprocesses and tokenizes source against this engine's world and registry.
func (e *Engine) Compile(actor, ref gamedb.DBRef, source string) (*Program, Result) {
	return Compile(NewPreprocessor(e.world), e.Tokenizer(), actor, ref, source)
}

// ActiveRuns counts program-local scopes currently held by running invocations.
func (e *Engine) ActiveRuns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	runs := make(map[RunHandle]bool)
	for k := range e.arena {
		runs[k.run] = true
	}
	return len(runs)
}

// Run executes the program's entry word.
func (e *Engine) Run(ctx context.Context, prog *Program, inv *Invocation) Result {
	w := prog.Entry()
	if w == nil {
		return Fail(SyntaxError, "program %s has no words", prog.Ref)
	}
	return e.RunWord(ctx, prog, w.name, inv)
}

// RunWord executes one named word of prog as a top-level run. The
// program-local scope lives until it returns.
func (e *Engine) RunWord(ctx context.Context, prog *Program, name string, inv *Invocation) Result {
	w, ok := prog.Word(name)
	if !ok {
		return Fail(SyntaxError, "no word %q in program %s", name, prog.Ref)
	}
	if inv.Stack == nil {
		inv.Stack = NewStack()
	}
	inv.handle = RunHandle(uuid.New())
	inv.Program = prog.Ref
	inv.Steps = 0
	defer e.release(inv.handle)

	r := e.callWord(ctx, inv, prog, w)
	r.Steps = inv.Steps
	if r.Successful() {
		if top, ok := inv.Stack.Top(); ok {
			r.Value = &top
		}
	}
	return r
}

// locals returns the program-local scope of prog within run, creating and
// seeding it on first use.
func (e *Engine) locals(run RunHandle, prog *Program) *Scope {
	key := arenaKey{run: run, prog: prog.Ref}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.arena[key]; ok {
		return s
	}
	s := NewScope()
	for _, n := range prog.Locals {
		s.Declare(n, IntDatum(0), false)
	}
	e.arena[key] = s
	return s
}

func (e *Engine) release(run RunHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.arena {
		if k.run == run {
			delete(e.arena, k)
		}
	}
}

// frame is the state of one word call.
type frame struct {
	prog    *Program
	word    *Word
	vars    *Scope
	locals  *Scope
	markers []marker
}

func (e *Engine) callWord(ctx context.Context, inv *Invocation, prog *Program, w *Word) Result {
	if inv.depth >= e.maxDepth {
		return Fail(InternalError, "call depth exceeds %d", e.maxDepth)
	}
	inv.depth++
	saved := inv.Program
	inv.Program = prog.Ref
	defer func() {
		inv.depth--
		inv.Program = saved
	}()

	f := &frame{
		prog:   prog,
		word:   w,
		vars:   NewScope(),
		locals: e.locals(inv.handle, prog),
	}

	for i := 0; i < len(w.datums); i++ {
		d := w.datums[i]
		if err := ctx.Err(); err != nil {
			return at(interrupted(err), d)
		}
		inv.Steps++
		if e.maxSteps > 0 && inv.Steps > e.maxSteps {
			return at(Fail(Interrupted, "step limit of %d exceeded", e.maxSteps), d)
		}

		if f.skipping() {
			if r := f.skip(d); !r.Successful() {
				return at(r, d)
			}
			continue
		}

		if d.Type == TypeUnknown {
			kw := strings.ToUpper(d.Str)
			if isKeyword(kw) {
				next, exit, r := e.control(f, inv, kw, i)
				if !r.Successful() {
					return at(r, d)
				}
				if exit {
					return Success()
				}
				i = next
				continue
			}
		}

		if r := e.step(ctx, f, inv, d); !r.Successful() {
			if r.Pos == nil {
				r = at(r, d)
			}
			return r
		}
	}

	if len(f.markers) > 0 {
		return Fail(SyntaxError, "word %s ends inside an unterminated %s", w.name, f.markers[len(f.markers)-1].element.opener())
	}
	return Success()
}

func interrupted(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return Fail(Interrupted, "run timed out")
	}
	return Fail(Interrupted, "run cancelled")
}

func at(r Result, d Datum) Result {
	if r.Pos == nil {
		r.Pos = d.Pos
	}
	return r
}

// resolution is how a datum is treated at execution time.
type resolution int

const (
	resolveLiteral resolution = iota
	resolvePseudoVar
	resolveUserVar
	resolveWord
	resolvePrimitive
	resolveError
)

// classify decides what d means in frame f.
func (e *Engine) classify(f *frame, inv *Invocation, d Datum) resolution {
	switch d.Type {
	case TypePrimitive:
		return resolvePrimitive
	case TypeVariable:
		if isPseudoVar(d.Str) {
			return resolvePseudoVar
		}
		return resolveUserVar
	case TypeUnknown:
		switch {
		case isPseudoVar(d.Str):
			return resolvePseudoVar
		case f.hasVar(inv, d.Str):
			return resolveUserVar
		}
		if _, ok := f.prog.Word(d.Str); ok {
			return resolveWord
		}
		if e.registry.Has(d.Str) {
			return resolvePrimitive
		}
		return resolveError
	}
	return resolveLiteral
}

func (e *Engine) step(ctx context.Context, f *frame, inv *Invocation, d Datum) Result {
	switch e.classify(f, inv, d) {
	case resolveLiteral:
		inv.Stack.Push(d)
	case resolvePseudoVar:
		inv.Stack.Push(VarDatum(strings.ToLower(d.Str)))
	case resolveUserVar:
		v, ok := f.lookup(inv, d.Str)
		if !ok {
			return Fail(VariableNotFound, "variable %q not found", d.Str)
		}
		if v.IsConstant && d.Type == TypeUnknown {
			inv.Stack.Push(v.Value)
		} else {
			inv.Stack.Push(VarDatum(v.Name))
		}
	case resolveWord:
		w, _ := f.prog.Word(d.Str)
		return e.callWord(ctx, inv, f.prog, w)
	case resolvePrimitive:
		return e.dispatch(ctx, f, inv, strings.ToUpper(d.Str))
	default:
		return Fail(SyntaxError, "unknown word %q", d.Str)
	}
	return Success()
}

func (e *Engine) dispatch(ctx context.Context, f *frame, inv *Invocation, name string) Result {
	fn, ok := e.registry.Lookup(name)
	if !ok {
		return Fail(SyntaxError, "unknown primitive %q", name)
	}
	p := &Params{
		Ctx:   ctx,
		Name:  name,
		Stack: inv.Stack,
		Vars:  frameView{f: f, inv: inv, world: e.world},
		Inv:   inv,
		World: e.world,
		Call: func(ref gamedb.DBRef, word string) Result {
			return e.callExternal(ctx, inv, ref, word)
		},
	}
	r := e.safeCall(fn, p)
	if !r.Successful() {
		return r
	}
	for name, val := range r.Dirty {
		if wr := f.assign(inv, name, val); !wr.Successful() {
			return wr
		}
	}
	if r.LastListItem != nil {
		inv.lastListItem = *r.LastListItem
	}
	return Success()
}

func (e *Engine) safeCall(fn PrimitiveFunc, p *Params) (r Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r = Fail(InternalError, "%s: %v", p.Name, rec)
			log.Printf("muf: primitive %s panicked: %v\n%s", p.Name, rec, debug.Stack())
		}
	}()
	return fn(p)
}

// callExternal runs a public word of another program on the current stack.
func (e *Engine) callExternal(ctx context.Context, inv *Invocation, ref gamedb.DBRef, word string) Result {
	if e.loader == nil {
		return Fail(InternalError, "CALL is not available")
	}
	prog, r := e.loader.LoadProgram(ProgramContext{Actor: inv.Actor, Program: inv.Program}, ref)
	if !r.Successful() {
		return r
	}
	var w *Word
	if word == "" {
		w = prog.Entry()
	} else {
		var ok bool
		w, ok = prog.Word(word)
		if !ok {
			return Fail(InvalidValue, "program %s has no word %q", ref, word)
		}
		if ref != inv.Program && !prog.IsPublic(word) {
			return Fail(InsufficientPermission, "word %q of %s is not public", word, ref)
		}
	}
	if w == nil {
		return Fail(InvalidValue, "program %s has no words", ref)
	}
	return e.callWord(ctx, inv, prog, w)
}

// pseudo-variables are read-only names computed from the invocation.
var pseudoVars = map[string]bool{"me": true, "loc": true, "here": true, "trigger": true, "command": true}

func isPseudoVar(name string) bool { return pseudoVars[strings.ToLower(name)] }

func pseudoValue(w World, inv *Invocation, name string) Datum {
	switch strings.ToLower(name) {
	case "me":
		return RefDatum(inv.Actor)
	case "loc", "here":
		if obj, ok := w.Get(inv.Actor); ok {
			return RefDatum(obj.Location)
		}
		return RefDatum(gamedb.Nothing)
	case "trigger":
		return RefDatum(inv.Trigger)
	case "command":
		return StringDatum(inv.Command)
	}
	return Datum{}
}

func (f *frame) hasVar(inv *Invocation, name string) bool {
	_, ok := f.lookup(inv, name)
	return ok
}

// lookup searches function scope, then program locals, then host constants.
func (f *frame) lookup(inv *Invocation, name string) (Variable, bool) {
	if v, ok := f.vars.Lookup(name); ok {
		return *v, true
	}
	if v, ok := f.locals.Lookup(name); ok {
		return *v, true
	}
	for k, c := range inv.Constants {
		if strings.EqualFold(k, name) {
			return Variable{Name: k, Value: c, IsConstant: true}, true
		}
	}
	return Variable{}, false
}

// assign writes a dirty variable back into whichever scope owns it.
func (f *frame) assign(inv *Invocation, name string, val Datum) Result {
	if isPseudoVar(name) {
		return Fail(VariableIsConstant, "variable %q is read-only", name)
	}
	if _, ok := f.vars.Lookup(name); ok {
		return f.vars.Set(name, val)
	}
	if _, ok := f.locals.Lookup(name); ok {
		return f.locals.Set(name, val)
	}
	for k := range inv.Constants {
		if strings.EqualFold(k, name) {
			return Fail(VariableIsConstant, "variable %q is constant", name)
		}
	}
	return Fail(VariableNotFound, "variable %q not found", name)
}

// frameView is the merged variable scope handed to primitives.
type frameView struct {
	f     *frame
	inv   *Invocation
	world World
}

func (v frameView) LookupVar(name string) (Variable, bool) {
	if isPseudoVar(name) {
		return Variable{Name: strings.ToLower(name), Value: pseudoValue(v.world, v.inv, name), IsConstant: true}, true
	}
	return v.f.lookup(v.inv, name)
}
