package worldfile

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/crystal-mush/gomuck/pkg/boltstore"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

func loadTiny(t *testing.T) *Seed {
	t.Helper()
	f, err := Load(filepath.Join("testdata", "tiny.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	seed, err := f.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return seed
}

func TestLoadBuildsWorld(t *testing.T) {
	seed := loadTiny(t)
	db := seed.DB

	if len(db.Objects) != 5 {
		t.Fatalf("expected 5 objects, got %d", len(db.Objects))
	}
	if got := db.Chain(db.Objects[0].Contents); !reflect.DeepEqual(got, []gamedb.DBRef{1, 2}) {
		t.Errorf("lobby contents = %v, want file order [#1 #2]", got)
	}
	if got := db.Chain(db.Objects[0].Exits); !reflect.DeepEqual(got, []gamedb.DBRef{4}) {
		t.Errorf("lobby exits = %v", got)
	}
	if got := db.Chain(db.Objects[1].Contents); !reflect.DeepEqual(got, []gamedb.DBRef{3}) {
		t.Errorf("wizard contents = %v", got)
	}

	wiz := db.Objects[1]
	if wiz.Owner != 1 || !wiz.IsWizard() || wiz.Pennies != 100 {
		t.Errorf("wizard = %+v", wiz)
	}
	if db.Objects[4].Type != gamedb.TypeExit || !reflect.DeepEqual(db.Objects[4].Links, []gamedb.DBRef{0}) {
		t.Errorf("exit = %+v", db.Objects[4])
	}

	want, err := os.ReadFile(filepath.Join("testdata", "hello.muf"))
	if err != nil {
		t.Fatal(err)
	}
	if seed.Sources[3] != string(want) {
		t.Errorf("program source = %q", seed.Sources[3])
	}
}

func TestPropTyping(t *testing.T) {
	bob := loadTiny(t).DB.Objects[2]
	tests := []struct {
		path string
		want gamedb.PropValue
	}{
		{"stats/str", gamedb.IntProp(12)},
		{"stats/dex", gamedb.FloatProp(9.5)},
		{"_/lok", gamedb.LockProp("me&!#3")},
		{"literal", gamedb.StringProp("#5")},
		{"ok", gamedb.IntProp(1)},
	}
	for _, tt := range tests {
		got, ok := bob.GetProp(tt.path)
		if !ok || got != tt.want {
			t.Errorf("%s = %+v (%v), want %+v", tt.path, got, ok, tt.want)
		}
	}
	home, _ := loadTiny(t).DB.Objects[1].GetProp("home")
	if home != gamedb.RefProp(0) {
		t.Errorf("home = %+v", home)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "objects:\n  - ref: 1\n    colour: red\n"},
		{"bad ref", "objects:\n  - ref: \"#x\"\n"},
		{"list prop", "objects:\n  - ref: 1\n    props:\n      tags: [a, b]\n"},
		{"props not a map", "objects:\n  - ref: 1\n    props: 3\n"},
	}
	for _, tt := range tests {
		if _, err := Parse(strings.NewReader(tt.yaml)); err == nil {
			t.Errorf("%s: expected a parse error", tt.name)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	const room = "  - {ref: 0, name: Here, type: room, owner: 1}\n  - {ref: 1, name: God, type: player, location: 0}\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"duplicate", "  - {ref: 1, name: Again, type: thing, owner: 1}\n", "defined twice"},
		{"unknown type", "  - {ref: 2, name: X, type: vehicle, owner: 1}\n", "unknown type"},
		{"garbage", "  - {ref: 2, name: X, type: garbage, owner: 1}\n", "unknown type"},
		{"missing owner", "  - {ref: 2, name: X, type: thing}\n", "missing owner"},
		{"missing name", "  - {ref: 2, type: thing, owner: 1}\n", "missing name"},
		{"bad owner", "  - {ref: 2, name: X, type: thing, owner: 9}\n", "owner #9"},
		{"bad location", "  - {ref: 2, name: X, type: thing, owner: 1, location: 9}\n", "location #9"},
		{"self location", "  - {ref: 2, name: X, type: thing, owner: 1, location: 2}\n", "inside itself"},
		{"bad link", "  - {ref: 2, name: X, type: exit, owner: 1, links: [9]}\n", "link #9"},
		{"unknown flag", "  - {ref: 2, name: X, type: thing, owner: 1, flags: [shiny]}\n", "unknown flag"},
		{"source on thing", "  - {ref: 2, name: X, type: thing, owner: 1, source: ': main ;'}\n", "source on a THING"},
		{"negative ref", "  - {ref: -4, name: X, type: thing, owner: 1}\n", "bad object reference"},
	}
	for _, tt := range tests {
		f, err := Parse(strings.NewReader("objects:\n" + room + tt.yaml))
		if err != nil {
			t.Errorf("%s: parse: %v", tt.name, err)
			continue
		}
		_, err = f.Build()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want %q", tt.name, err, tt.want)
		}
	}
}

func TestEmptyFile(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	seed, err := f.Build()
	if err != nil || len(seed.DB.Objects) != 0 {
		t.Errorf("empty seed: %v, %d objects", err, len(seed.DB.Objects))
	}
}

func TestWriteReadsBack(t *testing.T) {
	seed := loadTiny(t)
	seed.DB.Objects[2].SetProp("tricky", gamedb.StringProp("lock:not really"))
	seed.DB.Objects[2].SetProp("whole", gamedb.FloatProp(3))

	var buf bytes.Buffer
	sources := func(ref gamedb.DBRef) (string, bool) {
		src, ok := seed.Sources[ref]
		return src, ok
	}
	if err := Write(&buf, FromDatabase(seed.DB, sources)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse of written seed: %v\n%s", err, buf.String())
	}
	again, err := f.Build()
	if err != nil {
		t.Fatalf("Build of written seed: %v", err)
	}

	for ref, obj := range seed.DB.Objects {
		got := again.DB.Objects[ref]
		if got == nil {
			t.Errorf("%s lost", ref)
			continue
		}
		if !reflect.DeepEqual(got.Props, obj.Props) {
			t.Errorf("%s props = %+v, want %+v", ref, got.Props, obj.Props)
		}
		if got.Owner != obj.Owner || got.Flags != obj.Flags || got.Location != obj.Location {
			t.Errorf("%s = %+v, want %+v", ref, got, obj)
		}
	}
	if !reflect.DeepEqual(again.Sources, seed.Sources) {
		t.Errorf("sources = %v", again.Sources)
	}
}

func TestImportIntoStore(t *testing.T) {
	seed := loadTiny(t)
	path := filepath.Join(t.TempDir(), "game.bolt")
	store, err := boltstore.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := seed.Import(store); err != nil {
		t.Fatalf("Import: %v", err)
	}
	store.Close()

	store, err = boltstore.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.LoadAll(); err != nil {
		t.Fatal(err)
	}
	if n := len(store.DB().Objects); n != 5 {
		t.Errorf("reloaded %d objects", n)
	}
	if src, ok := store.ProgramSource(3); !ok || src != seed.Sources[3] {
		t.Errorf("stored source = %q, %v", src, ok)
	}
	if ref, ok := store.LookupPlayer("bob"); !ok || ref != 2 {
		t.Errorf("LookupPlayer(bob) = %s, %v", ref, ok)
	}
}
