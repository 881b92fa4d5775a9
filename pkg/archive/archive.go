// Package archive writes and restores .tar.gz backups of a game: the bbolt
// database, the run journal, a YAML export of the world and the config.
// Every file is listed in manifest.json with its SHA-256.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive member names.
const (
	boltName    = "data/game.bolt"
	journalName = "data/journal.db"
	worldName   = "world/world.yaml"
	confDir     = "conf"
	srcDir      = "src"
)

// Manifest describes the contents of an archive.
type Manifest struct {
	Version   int                  `json:"version"`
	Server    string               `json:"server"`
	Timestamp string               `json:"timestamp"`
	MudName   string               `json:"mud_name"`
	Objects   int                  `json:"objects"`
	Programs  int                  `json:"programs"`
	Files     map[string]FileEntry `json:"files"`
}

// FileEntry describes a single file within the archive.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Type   string `json:"type"` // "bolt", "journal", "world", "src", "conf"
}

// ArchiveParams holds all inputs needed to create an archive.
type ArchiveParams struct {
	BoltSnapshotFunc      func(destPath string) error // Caller provides bolt snapshot closure (nil = skip)
	JournalPath           string                      // Path to the SQLite run journal (empty = skip)
	JournalCheckpointFunc func() error                // Checkpoint WAL before copy (nil = skip)
	WorldFunc             func(w io.Writer) error     // Writes the YAML world export (nil = skip)
	SourceDir             string                      // Directory of .muf files (empty = skip)
	ConfPath              string                      // Path to game config file (empty = skip)
	ArchiveDir            string                      // Output directory for the archive
	Server                string                      // Server version for manifest
	MudName               string                      // MUD name for manifest
	ObjectCount           int
	ProgramCount          int
}

// CreateArchive creates a .tar.gz archive of all game data and returns the archive path.
func CreateArchive(params ArchiveParams) (string, error) {
	if err := os.MkdirAll(params.ArchiveDir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", params.ArchiveDir, err)
	}

	now := time.Now()
	archivePath := filepath.Join(params.ArchiveDir, fmt.Sprintf("archive-%s.tar.gz", now.Format("20060102-150405")))

	tmpDir, err := os.MkdirTemp("", "muck-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// Stage everything that has to be produced or quiesced first, so the
	// tar stream only copies finished files.
	type member struct{ src, name, kind string }
	var members []member

	if params.BoltSnapshotFunc != nil {
		staged := filepath.Join(tmpDir, "game.bolt")
		if err := params.BoltSnapshotFunc(staged); err != nil {
			return "", fmt.Errorf("archive: bolt snapshot: %w", err)
		}
		members = append(members, member{staged, boltName, "bolt"})
	}
	if params.JournalPath != "" {
		if params.JournalCheckpointFunc != nil {
			if err := params.JournalCheckpointFunc(); err != nil {
				return "", fmt.Errorf("archive: journal checkpoint: %w", err)
			}
		}
		staged := filepath.Join(tmpDir, "journal.db")
		if err := copyFile(params.JournalPath, staged); err != nil {
			return "", fmt.Errorf("archive: copy journal: %w", err)
		}
		members = append(members, member{staged, journalName, "journal"})
	}
	if params.WorldFunc != nil {
		staged := filepath.Join(tmpDir, "world.yaml")
		if err := writeStaged(staged, params.WorldFunc); err != nil {
			return "", fmt.Errorf("archive: world export: %w", err)
		}
		members = append(members, member{staged, worldName, "world"})
	}
	if params.SourceDir != "" {
		files, _ := filepath.Glob(filepath.Join(params.SourceDir, "*.muf"))
		for _, f := range files {
			members = append(members, member{f, srcDir + "/" + filepath.Base(f), "src"})
		}
	}
	if params.ConfPath != "" {
		if _, err := os.Stat(params.ConfPath); err == nil {
			members = append(members, member{params.ConfPath, confDir + "/" + filepath.Base(params.ConfPath), "conf"})
		}
	}

	manifest := Manifest{
		Version:   1,
		Server:    params.Server,
		Timestamp: now.UTC().Format(time.RFC3339),
		MudName:   params.MudName,
		Objects:   params.ObjectCount,
		Programs:  params.ProgramCount,
		Files:     make(map[string]FileEntry, len(members)),
	}

	outFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", archivePath, err)
	}
	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	err = func() error {
		for _, m := range members {
			entry, err := addFileToTar(tw, m.src, m.name)
			if err != nil {
				return err
			}
			entry.Type = m.kind
			manifest.Files[m.name] = entry
		}

		// The manifest goes last so it can describe everything before it.
		manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("archive: marshal manifest: %w", err)
		}
		if err := tw.WriteHeader(&tar.Header{
			Name:    "manifest.json",
			Size:    int64(len(manifestJSON)),
			Mode:    0644,
			ModTime: now,
		}); err != nil {
			return fmt.Errorf("archive: write manifest header: %w", err)
		}
		if _, err := tw.Write(manifestJSON); err != nil {
			return fmt.Errorf("archive: write manifest: %w", err)
		}
		if err := tw.Close(); err != nil {
			return err
		}
		return gw.Close()
	}()
	if cerr := outFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(archivePath)
		return "", err
	}
	return archivePath, nil
}

func writeStaged(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// addFileToTar adds a single file to the tar archive with the given archive name,
// computing its SHA-256 while writing.
func addFileToTar(tw *tar.Writer, srcPath, archName string) (FileEntry, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: stat %s: %w", srcPath, err)
	}

	archName = strings.ReplaceAll(archName, "\\", "/")
	if err := tw.WriteHeader(&tar.Header{
		Name:    archName,
		Size:    info.Size(),
		Mode:    0644,
		ModTime: info.ModTime(),
	}); err != nil {
		return FileEntry{}, fmt.Errorf("archive: header %s: %w", archName, err)
	}

	h := sha256.New()
	written, err := io.Copy(tw, io.TeeReader(f, h))
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: write %s: %w", archName, err)
	}
	return FileEntry{
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   written,
	}, nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
