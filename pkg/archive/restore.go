package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RestoreParams holds all inputs needed to restore an archive.
// An empty destination skips that member.
type RestoreParams struct {
	ArchivePath string
	BoltDest    string // bbolt database path
	JournalDest string // run journal path
	WorldDest   string // YAML world export path
	SourceDest  string // directory for .muf files
	ConfDest    string // main config file path
	// OverwriteConf replaces an existing config that differs from the
	// archived one; otherwise the current file is kept with a warning.
	OverwriteConf bool
}

// RestoreResult summarizes a completed restore operation.
type RestoreResult struct {
	Manifest      Manifest
	FilesRestored int
	Warnings      []string
}

// RestoreArchive extracts and validates an archive, restoring files to their destinations.
// Nothing is written to a destination unless every checksum matches.
func RestoreArchive(params RestoreParams) (*RestoreResult, error) {
	result := &RestoreResult{}

	tmpDir, err := os.MkdirTemp("", "muck-restore-*")
	if err != nil {
		return nil, fmt.Errorf("restore: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extractArchive(params.ArchivePath, tmpDir); err != nil {
		return nil, fmt.Errorf("restore: extract: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("restore: manifest.json not found in archive")
	}
	if err := json.Unmarshal(data, &result.Manifest); err != nil {
		return nil, fmt.Errorf("restore: parse manifest: %w", err)
	}

	for archName, entry := range result.Manifest.Files {
		ok, err := validateChecksum(filepath.Join(tmpDir, filepath.FromSlash(archName)), entry.SHA256)
		if err != nil {
			return nil, fmt.Errorf("restore: checksum %s: %w", archName, err)
		}
		if !ok {
			return nil, fmt.Errorf("restore: checksum mismatch for %s; archive may be corrupt", archName)
		}
	}

	for _, f := range []struct{ name, dest string }{
		{boltName, params.BoltDest},
		{journalName, params.JournalDest},
		{worldName, params.WorldDest},
	} {
		src := filepath.Join(tmpDir, filepath.FromSlash(f.name))
		if _, err := os.Stat(src); err != nil || f.dest == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.dest), 0755); err != nil {
			return nil, fmt.Errorf("restore: create dir for %s: %w", f.name, err)
		}
		if err := copyFile(src, f.dest); err != nil {
			return nil, fmt.Errorf("restore: copy %s: %w", f.name, err)
		}
		result.FilesRestored++
	}

	if params.SourceDest != "" {
		files, _ := filepath.Glob(filepath.Join(tmpDir, srcDir, "*.muf"))
		if len(files) > 0 {
			if err := os.MkdirAll(params.SourceDest, 0755); err != nil {
				return nil, fmt.Errorf("restore: create source dir: %w", err)
			}
		}
		for _, f := range files {
			if err := copyFile(f, filepath.Join(params.SourceDest, filepath.Base(f))); err != nil {
				return nil, fmt.Errorf("restore: copy %s: %w", filepath.Base(f), err)
			}
			result.FilesRestored++
		}
	}

	if params.ConfDest != "" {
		src := filepath.Join(tmpDir, confDir, filepath.Base(params.ConfDest))
		if _, err := os.Stat(src); err == nil {
			restored, err := restoreConf(src, params.ConfDest, params.OverwriteConf)
			if err != nil {
				return nil, err
			}
			if restored {
				result.FilesRestored++
			} else {
				result.Warnings = append(result.Warnings, fmt.Sprintf("kept current config: %s", params.ConfDest))
			}
		}
	}

	return result, nil
}

// restoreConf copies src over dest when dest is missing, identical, or
// overwrite is set. It reports whether the archived copy is now in place.
func restoreConf(src, dest string, overwrite bool) (bool, error) {
	current, err := os.ReadFile(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return false, fmt.Errorf("restore: read %s: %w", dest, err)
	default:
		archived, err := os.ReadFile(src)
		if err != nil {
			return false, fmt.Errorf("restore: read archived config: %w", err)
		}
		if string(current) == string(archived) {
			return true, nil
		}
		if !overwrite {
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, fmt.Errorf("restore: create conf dir: %w", err)
	}
	if err := copyFile(src, dest); err != nil {
		return false, fmt.Errorf("restore: copy conf: %w", err)
	}
	return true, nil
}

// extractArchive extracts a .tar.gz to a destination directory.
func extractArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		// Refuse entries that would land outside destDir.
		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("invalid archive entry: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

// validateChecksum checks a file's SHA-256 against the expected hex string.
func validateChecksum(path, expected string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == expected, nil
}
