package primitives

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/crystal-mush/gomuck/pkg/events"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
	"github.com/crystal-mush/gomuck/pkg/world"
)

const (
	lobby   gamedb.DBRef = 0
	wizard  gamedb.DBRef = 1
	bob     gamedb.DBRef = 2
	widget  gamedb.DBRef = 3
	program gamedb.DBRef = 4
	door    gamedb.DBRef = 5
	carol   gamedb.DBRef = 6
)

type fixture struct {
	w     *world.World
	e     *muf.Engine
	reg   *muf.Registry
	actor gamedb.DBRef
}

// newFixture seeds a small world: the Lobby holds the Wizard, Bob, Carol,
// Bob's widget and the door exit. #4 is the program being run.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := world.New(nil, nil, nil)
	add := func(ref gamedb.DBRef, name string, typ gamedb.ObjectType, owner gamedb.DBRef, setup func(*gamedb.Object)) {
		obj := gamedb.NewObject(ref, name, typ, owner)
		obj.Location = lobby
		if ref == lobby {
			obj.Location = gamedb.Nothing
		}
		if setup != nil {
			setup(obj)
		}
		if err := w.Add(obj); err != nil {
			t.Fatalf("add %s: %v", ref, err)
		}
	}
	add(lobby, "Lobby", gamedb.TypeRoom, wizard, nil)
	add(wizard, "Wizard", gamedb.TypePlayer, wizard, func(o *gamedb.Object) { o.Flags = gamedb.FlagWizard })
	add(bob, "Bob", gamedb.TypePlayer, bob, func(o *gamedb.Object) { o.Pennies = 10 })
	add(widget, "widget", gamedb.TypeThing, bob, func(o *gamedb.Object) { o.Pennies = 3 })
	add(program, "test.muf", gamedb.TypeProgram, wizard, nil)
	add(door, "door;d", gamedb.TypeExit, wizard, func(o *gamedb.Object) { o.Links = []gamedb.DBRef{widget} })
	add(carol, "Carol", gamedb.TypePlayer, carol, nil)

	reg := NewRegistry()
	return &fixture{w: w, e: muf.NewEngine(w, reg), reg: reg, actor: wizard}
}

// as returns a copy of the fixture acting as actor.
func (f *fixture) as(actor gamedb.DBRef) *fixture {
	cp := *f
	cp.actor = actor
	return &cp
}

// run compiles and runs src as the fixture's actor.
func (f *fixture) run(t *testing.T, src string, pre ...muf.Datum) (*muf.Invocation, muf.Result) {
	t.Helper()
	prog, r := f.e.Compile(f.actor, program, src)
	if !r.Successful() {
		t.Fatalf("compile %q: %s: %s", src, r.Kind, r.Reason)
	}
	inv := muf.NewInvocation(f.actor, program, "test")
	inv.Stack.Push(pre...)
	return inv, f.e.Run(context.Background(), prog, inv)
}

// mustRun runs src and fails the test unless it succeeds.
func (f *fixture) mustRun(t *testing.T, src string, pre ...muf.Datum) []muf.Datum {
	t.Helper()
	inv, r := f.run(t, src, pre...)
	if !r.Successful() {
		t.Fatalf("%q: %s: %s", src, r.Kind, r.Reason)
	}
	return inv.Stack.Items()
}

// varMap is a VarView for calling primitives directly.
type varMap map[string]muf.Variable

func (v varMap) LookupVar(name string) (muf.Variable, bool) {
	x, ok := v[strings.ToLower(name)]
	return x, ok
}

// apply calls one primitive directly on a stack holding items.
func (f *fixture) apply(t *testing.T, name string, items ...muf.Datum) (*muf.Stack, muf.Result) {
	t.Helper()
	fn, ok := f.reg.Lookup(name)
	if !ok {
		t.Fatalf("no primitive %s", name)
	}
	inv := muf.NewInvocation(f.actor, program, "test")
	inv.Program = program
	inv.Stack.Push(items...)
	p := &muf.Params{
		Ctx:   context.Background(),
		Name:  strings.ToUpper(name),
		Stack: inv.Stack,
		Vars:  varMap{},
		Inv:   inv,
		World: f.w,
	}
	return inv.Stack, fn(p)
}

func sameStack(a, b []muf.Datum) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func expectItems(t *testing.T, src string, got, want []muf.Datum) {
	t.Helper()
	if !sameStack(got, want) {
		t.Errorf("%q: stack = %v, want %v", src, got, want)
	}
}

func ints(ns ...int64) []muf.Datum {
	out := make([]muf.Datum, len(ns))
	for i, n := range ns {
		out[i] = muf.IntDatum(n)
	}
	return out
}

type recorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recorder) Receive(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, ev.Text)
}

func (r *recorder) Closed() bool { return false }

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func (f *fixture) listen(ref gamedb.DBRef) *recorder {
	rec := &recorder{}
	f.w.Bus().Subscribe(ref, rec)
	return rec
}
