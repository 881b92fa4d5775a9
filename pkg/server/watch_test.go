package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

type reload struct {
	ref gamedb.DBRef
	r   muf.Result
	err error
}

func waitReload(t *testing.T, ch <-chan reload) reload {
	t.Helper()
	select {
	case rl := <-ch:
		return rl
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}
	return reload{}
}

func TestWatchSourcesRecompiles(t *testing.T) {
	g := newTestGame(t, nil)
	heard := listen(g, wizard)

	path := filepath.Join(t.TempDir(), "greet.muf")
	if err := os.WriteFile(path, []byte(": main me @ \"v1\" notify ;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loads := make(chan reload, 8)
	sw, err := g.WatchSources(map[string]gamedb.DBRef{path: greet}, func(ref gamedb.DBRef, _ string, r muf.Result, err error) {
		loads <- reload{ref, r, err}
	})
	if err != nil {
		t.Fatalf("WatchSources: %v", err)
	}
	defer sw.Close()

	if err := os.WriteFile(path, []byte(": main me @ \"v2\" notify ;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// an editor may produce several write events; take the last good one
	for {
		rl := waitReload(t, loads)
		if rl.err != nil || rl.ref != greet {
			t.Fatalf("reload = %+v", rl)
		}
		src, _ := g.ProgramSource(greet)
		if rl.r.Successful() && strings.Contains(src, "v2") {
			break
		}
	}

	if _, r := g.RunProgram(context.Background(), wizard, greet, greet, ""); !r.Successful() {
		t.Fatalf("run after reload: %v", r.Err())
	}
	if got := heard.last(); got != "v2" {
		t.Errorf("heard %q, want v2", got)
	}
	if !heard.contains("Recompiled greet.muf (#3).") {
		t.Errorf("owner not told about recompile: %q", heard.got())
	}
}

func TestWatchSourcesReportsCompileErrors(t *testing.T) {
	g := newTestGame(t, nil)
	heard := listen(g, wizard)
	dir := t.TempDir()
	path := filepath.Join(dir, "spin.muf")

	loads := make(chan reload, 8)
	sw, err := g.WatchSources(map[string]gamedb.DBRef{path: spin}, func(ref gamedb.DBRef, _ string, r muf.Result, err error) {
		loads <- reload{ref, r, err}
	})
	if err != nil {
		t.Fatalf("WatchSources: %v", err)
	}
	defer sw.Close()

	// unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(": main 1 +\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// creating the file may be seen before its contents are written
	for {
		rl := waitReload(t, loads)
		if rl.ref != spin || rl.err != nil {
			t.Fatalf("reload = %+v", rl)
		}
		if rl.r.Kind == muf.SyntaxError {
			break
		}
	}
	if !heard.contains("Recompiling spin.muf (#6) failed") {
		t.Errorf("owner not told about failure: %q", heard.got())
	}
}

func TestWatchSourcesMissingDir(t *testing.T) {
	g := newTestGame(t, nil)
	_, err := g.WatchSources(map[string]gamedb.DBRef{
		filepath.Join(t.TempDir(), "gone", "x.muf"): greet,
	}, nil)
	if err == nil {
		t.Error("watching a missing directory should fail")
	}
}
