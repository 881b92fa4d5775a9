package muf

import (
	"context"
	"errors"
	"time"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// fakeWorld is an unsynchronized in-memory World for package tests.
type fakeWorld struct {
	db      *gamedb.Database
	notices map[gamedb.DBRef][]string
}

func newFakeWorld() *fakeWorld {
	w := &fakeWorld{db: gamedb.NewDatabase(), notices: make(map[gamedb.DBRef][]string)}
	room := gamedb.NewObject(0, "Lobby", gamedb.TypeRoom, 1)
	wiz := gamedb.NewObject(1, "Wizard", gamedb.TypePlayer, 1)
	wiz.Flags = gamedb.FlagWizard
	wiz.Location = 0
	prog := gamedb.NewObject(2, "test.muf", gamedb.TypeProgram, 1)
	prog.Location = 1
	w.db.Add(room)
	w.db.Add(wiz)
	w.db.Add(prog)
	w.db.MoveTo(1, 0)
	return w
}

func (w *fakeWorld) Get(ref gamedb.DBRef) (gamedb.Object, bool) {
	obj, ok := w.db.Objects[ref]
	if !ok {
		return gamedb.Object{}, false
	}
	cp := *obj
	cp.Props = nil
	return cp, true
}

func (w *fakeWorld) GetPropertyPath(ref gamedb.DBRef, path string) (gamedb.PropValue, bool) {
	obj, ok := w.db.Objects[ref]
	if !ok {
		return gamedb.PropValue{}, false
	}
	return obj.GetProp(path)
}

func (w *fakeWorld) SetPropertyPath(ref gamedb.DBRef, path string, v gamedb.PropValue) error {
	obj, ok := w.db.Objects[ref]
	if !ok {
		return errors.New("no such object")
	}
	obj.SetProp(path, v)
	return nil
}

func (w *fakeWorld) ClearPropertyPath(ref gamedb.DBRef, path string) error {
	obj, ok := w.db.Objects[ref]
	if !ok {
		return errors.New("no such object")
	}
	obj.ClearProp(path)
	return nil
}

func (w *fakeWorld) PropDir(ref gamedb.DBRef, path string) []string {
	if obj, ok := w.db.Objects[ref]; ok {
		return obj.PropDir(path)
	}
	return nil
}

func (w *fakeWorld) NextProp(ref gamedb.DBRef, path string) string {
	if obj, ok := w.db.Objects[ref]; ok {
		return obj.NextProp(path)
	}
	return ""
}

func (w *fakeWorld) Notify(target gamedb.DBRef, text string) {
	w.notices[target] = append(w.notices[target], text)
}

func (w *fakeWorld) NotifyExcluding(room gamedb.DBRef, text string, exclude []gamedb.DBRef) {
	obj, ok := w.db.Objects[room]
	if !ok {
		return
	}
	skip := make(map[gamedb.DBRef]bool)
	for _, r := range exclude {
		skip[r] = true
	}
	for _, r := range w.db.Chain(obj.Contents) {
		if !skip[r] {
			w.Notify(r, text)
		}
	}
}

func (w *fakeWorld) ConnectionCount(gamedb.DBRef) int { return 0 }
func (w *fakeWorld) Descriptors(gamedb.DBRef) []int { return nil }
func (w *fakeWorld) DescriptorIdle(int) (time.Duration, bool) { return 0, false }
func (w *fakeWorld) Match(actor gamedb.DBRef, name string) gamedb.DBRef { return gamedb.Nothing }
func (w *fakeWorld) MatchPlayer(string) gamedb.DBRef { return gamedb.Nothing }
func (w *fakeWorld) Force(context.Context, gamedb.DBRef, gamedb.DBRef, string) error { return errors.New("unsupported") }
func (w *fakeWorld) AddPennies(gamedb.DBRef, int) error { return errors.New("unsupported") }
