package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func makeArchive(t *testing.T) (string, string) {
	t.Helper()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "journal.db"), "journal bytes")
	writeFile(t, filepath.Join(src, "game.yaml"), "mud_name: Test\n")
	writeFile(t, filepath.Join(src, "muf", "hello.muf"), ": main ;\n")
	writeFile(t, filepath.Join(src, "muf", "notes.txt"), "not a program")

	checkpointed := false
	path, err := CreateArchive(ArchiveParams{
		BoltSnapshotFunc: func(dest string) error {
			return os.WriteFile(dest, []byte("bolt bytes"), 0644)
		},
		JournalPath:           filepath.Join(src, "journal.db"),
		JournalCheckpointFunc: func() error { checkpointed = true; return nil },
		WorldFunc: func(w io.Writer) error {
			_, err := io.WriteString(w, "objects: []\n")
			return err
		},
		SourceDir:    filepath.Join(src, "muf"),
		ConfPath:     filepath.Join(src, "game.yaml"),
		ArchiveDir:   filepath.Join(src, "archives"),
		Server:       "GoMuck test",
		MudName:      "Test",
		ObjectCount:  12,
		ProgramCount: 3,
	})
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}
	if !checkpointed {
		t.Error("journal was not checkpointed")
	}
	return path, src
}

func TestCreateAndList(t *testing.T) {
	path, src := makeArchive(t)

	m, err := readManifest(path)
	if err != nil {
		t.Fatalf("readManifest: %v", err)
	}
	want := map[string]string{
		"data/game.bolt":   "bolt",
		"data/journal.db":  "journal",
		"world/world.yaml": "world",
		"src/hello.muf":    "src",
		"conf/game.yaml":   "conf",
	}
	if len(m.Files) != len(want) {
		t.Errorf("manifest has %d files: %v", len(m.Files), m.Files)
	}
	for name, kind := range want {
		if e, ok := m.Files[name]; !ok || e.Type != kind || e.SHA256 == "" {
			t.Errorf("%s: %+v", name, e)
		}
	}

	list, err := ListArchives(filepath.Join(src, "archives"))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].MudName != "Test" || list[0].Objects != 12 || list[0].Programs != 3 || list[0].Err != nil {
		t.Fatalf("ListArchives = %+v", list)
	}
	a := list[0]
	if got := a.Contents(); got != "bolt journal world conf 1 src" {
		t.Errorf("Contents = %q", got)
	}
	if len(a.Sources) != 1 || a.Sources[0] != "hello.muf" {
		t.Errorf("Sources = %v", a.Sources)
	}
	if a.Taken.IsZero() || a.Server != "GoMuck test" {
		t.Errorf("Taken %v, Server %q", a.Taken, a.Server)
	}
}

func TestListKeepsDamagedArchives(t *testing.T) {
	path, src := makeArchive(t)
	dir := filepath.Join(src, "archives")
	writeFile(t, filepath.Join(dir, "archive-broken.tar.gz"), "not gzip")

	list, err := ListArchives(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("listed %d archives", len(list))
	}
	for _, a := range list {
		switch a.Path {
		case path:
			if a.Err != nil || !a.Has("bolt") {
				t.Errorf("good archive: %+v", a)
			}
		default:
			if a.Err == nil || a.Contents() != "unreadable" || a.Has("bolt") {
				t.Errorf("damaged archive: %+v", a)
			}
		}
	}
}

func TestRestore(t *testing.T) {
	path, _ := makeArchive(t)
	dest := t.TempDir()
	conf := filepath.Join(dest, "game.yaml")
	writeFile(t, conf, "mud_name: Local\n")

	res, err := RestoreArchive(RestoreParams{
		ArchivePath: path,
		BoltDest:    filepath.Join(dest, "data", "game.bolt"),
		JournalDest: filepath.Join(dest, "data", "journal.db"),
		WorldDest:   filepath.Join(dest, "world.yaml"),
		SourceDest:  filepath.Join(dest, "muf"),
		ConfDest:    conf,
	})
	if err != nil {
		t.Fatalf("RestoreArchive: %v", err)
	}
	if res.FilesRestored != 4 {
		t.Errorf("restored %d files", res.FilesRestored)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "kept current config") {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if got := readFile(t, filepath.Join(dest, "data", "game.bolt")); got != "bolt bytes" {
		t.Errorf("bolt = %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "muf", "hello.muf")); got != ": main ;\n" {
		t.Errorf("source = %q", got)
	}
	if got := readFile(t, conf); got != "mud_name: Local\n" {
		t.Errorf("config overwritten: %q", got)
	}

	res, err = RestoreArchive(RestoreParams{ArchivePath: path, ConfDest: conf, OverwriteConf: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesRestored != 1 || readFile(t, conf) != "mud_name: Test\n" {
		t.Errorf("overwrite: %+v, conf %q", res, readFile(t, conf))
	}
}

func TestRestoreRejectsCorruptArchive(t *testing.T) {
	path, _ := makeArchive(t)

	// Rewrite the archive with one member's bytes changed.
	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	gr, err := gzip.NewReader(in)
	if err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(t.TempDir(), "bad.tar.gz")
	out, err := os.Create(bad)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(tr)
		if hdr.Name == "data/game.bolt" {
			data = []byte("BOLT BYTES")
		}
		hdr.Size = int64(len(data))
		tw.WriteHeader(hdr)
		tw.Write(data)
	}
	tw.Close()
	gw.Close()
	out.Close()
	in.Close()

	dest := filepath.Join(t.TempDir(), "game.bolt")
	_, err = RestoreArchive(RestoreParams{ArchivePath: bad, BoltDest: dest})
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("corrupt archive was partly restored")
	}
}
