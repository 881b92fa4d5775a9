package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ArchiveInfo describes one archive on disk, as far as its manifest tells.
type ArchiveInfo struct {
	Path     string
	Filename string
	Size     int64
	Taken    time.Time // manifest timestamp, or the file's mod time
	Server   string
	MudName  string
	Objects  int
	Programs int
	// Members counts manifest entries by type: bolt, journal, world, src, conf.
	Members map[string]int
	// Sources names the .muf files carried, sorted.
	Sources []string
	// Err is set when the manifest could not be read; only the file facts are filled in.
	Err error
}

// Has reports whether the archive carries a member of the given type.
func (a ArchiveInfo) Has(kind string) bool {
	return a.Members[kind] > 0
}

// Contents summarizes the members, e.g. "bolt journal world 3 src".
func (a ArchiveInfo) Contents() string {
	if a.Err != nil {
		return "unreadable"
	}
	var parts []string
	for _, kind := range []string{"bolt", "journal", "world", "conf"} {
		if a.Has(kind) {
			parts = append(parts, kind)
		}
	}
	if n := a.Members["src"]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d src", n))
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, " ")
}

// ListArchives describes every .tar.gz in dir, newest first. An archive with
// a damaged manifest is still listed, with Err set.
func ListArchives(dir string) ([]ArchiveInfo, error) {
	pattern := filepath.Join(dir, "*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("archive: glob %s: %w", pattern, err)
	}

	archives := make([]ArchiveInfo, 0, len(matches))
	for _, p := range matches {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		ai := ArchiveInfo{Path: p, Filename: filepath.Base(p), Size: fi.Size(), Taken: fi.ModTime()}
		m, err := readManifest(p)
		if err != nil {
			ai.Err = err
		} else {
			ai.describe(m)
		}
		archives = append(archives, ai)
	}

	sort.SliceStable(archives, func(i, j int) bool {
		return archives[i].Taken.After(archives[j].Taken)
	})
	return archives, nil
}

func (a *ArchiveInfo) describe(m *Manifest) {
	if t, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
		a.Taken = t
	}
	a.Server, a.MudName = m.Server, m.MudName
	a.Objects, a.Programs = m.Objects, m.Programs
	a.Members = make(map[string]int)
	for name, e := range m.Files {
		a.Members[e.Type]++
		if e.Type == "src" {
			a.Sources = append(a.Sources, path.Base(name))
		}
	}
	sort.Strings(a.Sources)
}

// readManifest finds manifest.json in a .tar.gz. It is the last member, so
// the whole stream is read.
func readManifest(archivePath string) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("archive: %s: %w", filepath.Base(archivePath), err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("archive: manifest.json not found in %s", filepath.Base(archivePath))
		}
		if err != nil {
			return nil, fmt.Errorf("archive: %s: %w", filepath.Base(archivePath), err)
		}
		if hdr.Name != "manifest.json" {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return nil, fmt.Errorf("archive: %s: manifest: %w", filepath.Base(archivePath), err)
		}
		return &m, nil
	}
}
