package primitives

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func refs(rs ...gamedb.DBRef) []muf.Datum {
	out := make([]muf.Datum, len(rs))
	for i, r := range rs {
		out[i] = muf.RefDatum(r)
	}
	return out
}

func TestObjectFields(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		want []muf.Datum
	}{
		{"#2 name", strs("Bob")},
		{"#3 owner", refs(bob)},
		{"#3 location", refs(lobby)},
		{"#5 getlink", refs(widget)},
		{"#2 getlink", refs(gamedb.Nothing)},
		{"#0 contents", refs(carol)},
		{"#6 next", refs(program)},
		{"#1 next", refs(gamedb.Nothing)},
		{"#0 exits", refs(door)},
		{"#2 pennies", ints(10)},
		{"#2 ok? #99 ok? #-1 ok?", ints(1, 0, 0)},
		{"#2 player? #0 room? #3 thing? #5 exit? #4 program?", ints(1, 1, 1, 1, 1)},
		{"#3 player? #99 room?", ints(0, 0)},
		{"prog", refs(program)},
	}
	for _, tt := range tests {
		expectItems(t, tt.src, f.mustRun(t, tt.src), tt.want)
	}
	if _, r := f.run(t, "#99 name"); r.Kind != muf.NoSuchObject {
		t.Errorf("NAME of a missing object: %s", r.Kind)
	}
}

func TestContentsWalk(t *testing.T) {
	f := newFixture(t)
	src := ": main #0 contents begin dup ok? while dup name swap next repeat pop ;"
	inv, r := f.run(t, src)
	if !r.Successful() {
		t.Fatal(r.Reason)
	}
	expectItems(t, src, inv.Stack.Items(), strs("Carol", "test.muf", "widget", "Bob", "Wizard"))
	if got := inv.LastListItem(); got != gamedb.Nothing {
		t.Errorf("LastListItem after exhausting the chain = %s", got)
	}

	inv, _ = f.run(t, "#0 contents")
	if got := inv.LastListItem(); got != carol {
		t.Errorf("LastListItem = %s, want %s", got, carol)
	}
}

func TestAddPennies(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		actor gamedb.DBRef
		src   string
		kind  muf.ErrorKind
	}{
		{wizard, "#2 5 addpennies", muf.OK},
		{bob, "#3 -1 addpennies", muf.OK},
		{bob, "#3 1 addpennies", muf.InsufficientPermission},
		{bob, "#6 -1 addpennies", muf.InsufficientPermission},
		{wizard, "#6 -1 addpennies", muf.InvalidValue},
		{wizard, "#0 1 addpennies", muf.InvalidValue},
		{wizard, "#99 1 addpennies", muf.NoSuchObject},
	}
	for _, tt := range tests {
		if _, r := f.as(tt.actor).run(t, tt.src); r.Kind != tt.kind {
			t.Errorf("%s: %q: kind = %s (%s), want %s", tt.actor, tt.src, r.Kind, r.Reason, tt.kind)
		}
	}
	if obj, _ := f.w.Get(bob); obj.Pennies != 15 {
		t.Errorf("Bob has %d pennies, want 15", obj.Pennies)
	}
	if obj, _ := f.w.Get(widget); obj.Pennies != 2 {
		t.Errorf("widget has %d pennies, want 2", obj.Pennies)
	}
}

func TestMatchPrimitives(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		src  string
		want gamedb.DBRef
	}{
		{`"Bob" match`, bob},
		{`"widg" match`, widget},
		{`"d" match`, door},
		{`"me" match`, wizard},
		{`"here" match`, lobby},
		{`"#6" match`, carol},
		{`"nothing at all" match`, gamedb.Nothing},
		{`"carol" pmatch`, carol},
		{`"*bob" pmatch`, bob},
		{`"widget" pmatch`, gamedb.Nothing},
	}
	for _, tt := range tests {
		expectItems(t, tt.src, f.mustRun(t, tt.src), refs(tt.want))
	}
}

func TestNotify(t *testing.T) {
	f := newFixture(t)
	bobHears, carolHears, wizHears := f.listen(bob), f.listen(carol), f.listen(wizard)

	f.mustRun(t, `#2 "psst" notify`)
	f.mustRun(t, `#0 #1 #6 2 "everyone else" notify_exclude`)
	f.mustRun(t, `#0 0 "all" notify_exclude`)

	if got := bobHears.got(); len(got) != 3 || got[0] != "psst" || got[1] != "everyone else" || got[2] != "all" {
		t.Errorf("Bob heard %q", got)
	}
	if got := carolHears.got(); len(got) != 1 || got[0] != "all" {
		t.Errorf("Carol heard %q", got)
	}
	if got := wizHears.got(); len(got) != 1 {
		t.Errorf("Wizard heard %q", got)
	}

	tests := []struct {
		src  string
		kind muf.ErrorKind
	}{
		{`#99 "x" notify`, muf.NoSuchObject},
		{`#0 #1 "x" 2 "s" notify_exclude`, muf.TypeMismatch},
		{`#0 #1 5 "s" notify_exclude`, muf.StackUnderflow},
		{`#0 -1 "s" notify_exclude`, muf.InvalidValue},
		{`#99 0 "s" notify_exclude`, muf.NoSuchObject},
	}
	for _, tt := range tests {
		inv, r := f.run(t, tt.src)
		if r.Kind != tt.kind {
			t.Errorf("%q: kind = %s (%s), want %s", tt.src, r.Kind, r.Reason, tt.kind)
		}
		if inv.Stack.Len() == 0 {
			t.Errorf("%q: failed call consumed its operands", tt.src)
		}
	}
}

func TestForce(t *testing.T) {
	f := newFixture(t)
	if _, r := f.run(t, `#2 "look" force`); r.Kind != muf.InternalError {
		t.Errorf("FORCE without a handler: %s", r.Kind)
	}

	var forced []string
	f.w.SetForceHandler(func(_ context.Context, actor, target gamedb.DBRef, command string) error {
		if command == "fail" {
			return errors.New("refused")
		}
		forced = append(forced, target.String()+" "+command)
		return nil
	})
	f.mustRun(t, `#2 "look" force #3 "drop me" force`)
	if len(forced) != 2 || forced[0] != "#2 look" || forced[1] != "#3 drop me" {
		t.Errorf("forced = %q", forced)
	}

	tests := []struct {
		actor gamedb.DBRef
		src   string
		kind  muf.ErrorKind
	}{
		{bob, `#3 "look" force`, muf.InsufficientPermission},
		{wizard, `#0 "look" force`, muf.InvalidValue},
		{wizard, `#99 "look" force`, muf.NoSuchObject},
		{wizard, `#2 "fail" force`, muf.InternalError},
	}
	for _, tt := range tests {
		if _, r := f.as(tt.actor).run(t, tt.src); r.Kind != tt.kind {
			t.Errorf("%q: kind = %s (%s), want %s", tt.src, r.Kind, r.Reason, tt.kind)
		}
	}
}

func TestConnectionPrimitives(t *testing.T) {
	f := newFixture(t)
	expectItems(t, "asleep", f.mustRun(t, "#2 awake? #2 descriptors"), ints(0, 0))

	s1 := f.w.Sessions.Connect(bob)
	s2 := f.w.Sessions.Connect(bob)
	f.w.Sessions.SetIdle(s1.ID, 2*time.Minute)

	expectItems(t, "awake", f.mustRun(t, "#2 awake?"), ints(2))
	expectItems(t, "descriptors", f.mustRun(t, "#2 descriptors"), ints(int64(s1.ID), int64(s2.ID), 2))

	inv, r := f.run(t, ": main conidle ;", muf.IntDatum(int64(s1.ID)))
	if !r.Successful() {
		t.Fatal(r.Reason)
	}
	if idle := inv.Stack.Peek(1).Int; idle < 120 {
		t.Errorf("CONIDLE = %d, want at least 120", idle)
	}
	if _, r := f.run(t, "9999 conidle"); r.Kind != muf.InvalidValue {
		t.Errorf("CONIDLE of a closed descriptor: %s", r.Kind)
	}
}

// srcLoader compiles library programs from in-memory source.
type srcLoader struct {
	e   *muf.Engine
	src map[gamedb.DBRef]string
}

func (l *srcLoader) LoadProgram(ctx muf.ProgramContext, ref gamedb.DBRef) (*muf.Program, muf.Result) {
	src, ok := l.src[ref]
	if !ok {
		return nil, muf.Fail(muf.NoSuchObject, "no program %s", ref)
	}
	return l.e.Compile(ctx.Actor, ref, src)
}

func TestCall(t *testing.T) {
	f := newFixture(t)
	const lib gamedb.DBRef = 7
	obj := gamedb.NewObject(lib, "lib-math.muf", gamedb.TypeProgram, wizard)
	obj.Location = wizard
	if err := f.w.Add(obj); err != nil {
		t.Fatal(err)
	}
	loader := &srcLoader{src: map[gamedb.DBRef]string{
		lib: ": double 2 * ;\n: whoami prog ;\n: secret 1 ;\npublic double\npublic whoami\n: main 100 ;",
	}}
	f.e = muf.NewEngine(f.w, f.reg, muf.WithLoader(loader))
	loader.e = f.e

	tests := []struct {
		src  string
		want []muf.Datum
	}{
		{"#7 call", ints(100)},
		{`21 #7 "double" call`, ints(42)},
		{`#7 "whoami" call prog`, refs(lib, program)},
	}
	for _, tt := range tests {
		expectItems(t, tt.src, f.mustRun(t, tt.src), tt.want)
	}

	errs := []struct {
		src  string
		kind muf.ErrorKind
	}{
		{`#7 "secret" call`, muf.InsufficientPermission},
		{`#7 "nope" call`, muf.InvalidValue},
		{`#3 call`, muf.InvalidValue},
		{`#99 call`, muf.NoSuchObject},
		{`1 "x" call`, muf.TypeMismatch},
	}
	for _, tt := range errs {
		if _, r := f.run(t, tt.src); r.Kind != tt.kind {
			t.Errorf("%q: kind = %s (%s), want %s", tt.src, r.Kind, r.Reason, tt.kind)
		}
	}

	// a program object with no source behind it
	orphan := gamedb.NewObject(8, "orphan.muf", gamedb.TypeProgram, wizard)
	f.w.Add(orphan)
	if _, r := f.run(t, "#8 call"); r.Kind != muf.NoSuchObject {
		t.Errorf("CALL of an unloadable program: %s", r.Kind)
	}
}

func TestCallWithoutLoader(t *testing.T) {
	f := newFixture(t)
	_, r := f.run(t, "#4 call")
	if r.Kind != muf.InternalError {
		t.Errorf("kind = %s", r.Kind)
	}
	// a direct call with no engine behind it
	st, r := f.apply(t, "CALL", muf.RefDatum(program))
	if r.Kind != muf.InternalError || st.Len() != 1 {
		t.Errorf("direct CALL: %s, stack %v", r.Kind, st.Items())
	}
}
