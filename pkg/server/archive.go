package server

import (
	"fmt"
	"io"
	"log"

	"github.com/crystal-mush/gomuck/pkg/archive"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/worldfile"
)

// Archive writes a backup of the game to dir, or to the configured
// archive_dir when dir is empty. The backup always holds a YAML export of
// the world with program sources; the bbolt snapshot, journal, config and
// source directory are included when the game has them.
func (g *Game) Archive(dir string) (string, error) {
	if dir == "" {
		dir = g.Conf.ArchiveDir
	}
	if dir == "" {
		return "", fmt.Errorf("server: archive: no archive_dir configured")
	}

	st := g.Stats()
	params := archive.ArchiveParams{
		WorldFunc:    g.ExportWorld,
		SourceDir:    g.Conf.SourceDir,
		ConfPath:     g.Conf.Path(),
		ArchiveDir:   dir,
		Server:       VersionString(),
		MudName:      g.Conf.MudName,
		ObjectCount:  st.Objects,
		ProgramCount: st.Programs,
	}
	if s := g.World.Store(); s != nil {
		params.BoltSnapshotFunc = s.Backup
	}
	if g.Journal != nil {
		params.JournalPath = g.Journal.Path()
		params.JournalCheckpointFunc = g.Journal.Checkpoint
	}

	path, err := archive.CreateArchive(params)
	if err != nil {
		return "", err
	}
	log.Printf("server: archive written to %s", path)
	return path, nil
}

// ExportWorld writes the current world, program sources included, in
// world seed form.
func (g *Game) ExportWorld(w io.Writer) error {
	var f *worldfile.File
	g.World.View(func(db *gamedb.Database) {
		f = worldfile.FromDatabase(db, g.ProgramSource)
	})
	f.Name = g.Conf.MudName
	return worldfile.Write(w, f)
}
