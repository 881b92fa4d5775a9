package server

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/crystal-mush/gomuck/pkg/archive"
	"github.com/crystal-mush/gomuck/pkg/worldfile"
)

func TestExportWorldKeepsSources(t *testing.T) {
	g := newTestGame(t, nil)
	var buf bytes.Buffer
	if err := g.ExportWorld(&buf); err != nil {
		t.Fatalf("ExportWorld: %v", err)
	}
	f, err := worldfile.Parse(&buf)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	seed, err := f.Build()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if f.Name != "GoMuck" || len(seed.DB.Objects) != 15 {
		t.Errorf("name %q, %d objects", f.Name, len(seed.DB.Objects))
	}
	want, _ := g.ProgramSource(greet)
	if seed.Sources[greet] != want {
		t.Errorf("greet source = %q", seed.Sources[greet])
	}
	if _, ok := seed.Sources[nosrc]; ok {
		t.Error("program without source gained one")
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	conf := seedConf(t)
	conf.BoltPath = filepath.Join(filepath.Dir(conf.WorldPath), "game.bolt")
	g, err := OpenGame(conf)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if _, err := g.Archive(""); err == nil {
		t.Error("Archive without a directory should fail")
	}
	dir := t.TempDir()
	path, err := g.Archive(dir)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	dest := t.TempDir()
	res, err := archive.RestoreArchive(archive.RestoreParams{
		ArchivePath: path,
		BoltDest:    filepath.Join(dest, "game.bolt"),
		JournalDest: filepath.Join(dest, "journal.db"),
		WorldDest:   filepath.Join(dest, "world.yaml"),
	})
	if err != nil {
		t.Fatalf("RestoreArchive: %v", err)
	}
	if res.FilesRestored != 3 || res.Manifest.Objects != 3 || res.Manifest.Programs != 1 {
		t.Errorf("restore = %+v", res)
	}

	// the restored bolt file opens as a game of its own
	restored := DefaultGameConf()
	restored.BoltPath = filepath.Join(dest, "game.bolt")
	restored.JournalPath = filepath.Join(dest, "journal.db")
	g2, err := OpenGame(restored)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer g2.Close()
	if src, ok := g2.ProgramSource(2); !ok || src == "" {
		t.Error("restored store lost program source")
	}
	if _, err := os.Stat(filepath.Join(dest, "world.yaml")); err != nil {
		t.Error(err)
	}
}
