package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

// ReloadFunc is told about every reload a SourceWatcher performs. r is the
// compile result; err is set when the file could not be read or stored.
type ReloadFunc func(ref gamedb.DBRef, path string, r muf.Result, err error)

// SourceWatcher keeps program sources in step with files on disk.
type SourceWatcher struct {
	game    *Game
	watcher *fsnotify.Watcher
	onLoad  ReloadFunc

	mu    sync.Mutex
	files map[string]gamedb.DBRef // absolute path -> program
	done  chan struct{}
}

// WatchSources starts an fsnotify watcher on the directories holding files.
// Whenever a watched file is written, its text becomes the program's
// source, the program is recompiled and the owner is told the outcome.
// onLoad may be nil.
func (g *Game) WatchSources(files map[string]gamedb.DBRef, onLoad ReloadFunc) (*SourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("server: source watcher: %w", err)
	}
	sw := &SourceWatcher{
		game:    g,
		watcher: watcher,
		onLoad:  onLoad,
		files:   make(map[string]gamedb.DBRef),
		done:    make(chan struct{}),
	}

	// Watch directories, not files: editors often replace a file by renaming
	// over it, which drops a watch on the file itself.
	dirs := make(map[string]bool)
	for path, ref := range files {
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("server: source watcher: %w", err)
		}
		sw.files[abs] = ref
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("server: watch %s: %w", dir, err)
		}
		log.Printf("server: watching %s for source changes", dir)
	}

	go sw.loop()
	return sw, nil
}

func (sw *SourceWatcher) loop() {
	defer close(sw.done)
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			sw.mu.Lock()
			ref, tracked := sw.files[filepath.Clean(event.Name)]
			sw.mu.Unlock()
			if tracked {
				sw.reload(ref, event.Name)
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("server: source watcher error: %v", err)
		}
	}
}

// reload stores path as ref's source and recompiles it.
func (sw *SourceWatcher) reload(ref gamedb.DBRef, path string) {
	g := sw.game
	data, err := os.ReadFile(path)
	if err == nil {
		err = g.SetProgramSource(ref, string(data))
	}
	if err != nil {
		log.Printf("server: reload %s from %s: %v", ref, path, err)
		if sw.onLoad != nil {
			sw.onLoad(ref, path, muf.Fail(muf.InternalError, "%v", err), err)
		}
		return
	}

	_, r := g.Program(ref)
	name := filepath.Base(path)
	if obj, ok := g.World.Get(ref); ok {
		if r.Successful() {
			g.World.Notify(obj.Owner, fmt.Sprintf("Recompiled %s (%s).", name, ref))
		} else {
			g.World.Notify(obj.Owner, fmt.Sprintf("Recompiling %s (%s) failed: %v", name, ref, r.Err()))
		}
	}
	log.Printf("server: reloaded %s from %s: %s", ref, name, r.Kind)
	if sw.onLoad != nil {
		sw.onLoad(ref, path, r, nil)
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (sw *SourceWatcher) Close() error {
	err := sw.watcher.Close()
	<-sw.done
	return err
}
