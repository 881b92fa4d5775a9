package muf

import (
	"context"
	"time"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// World is the game-state surface the interpreter reads and mutates.
// Implementations must be safe for concurrent runs.
type World interface {
	// Get returns a snapshot of the object. Props is not populated; use
	// GetPropertyPath and PropDir for properties.
	Get(ref gamedb.DBRef) (gamedb.Object, bool)

	GetPropertyPath(ref gamedb.DBRef, path string) (gamedb.PropValue, bool)
	SetPropertyPath(ref gamedb.DBRef, path string, v gamedb.PropValue) error
	ClearPropertyPath(ref gamedb.DBRef, path string) error
	PropDir(ref gamedb.DBRef, path string) []string
	NextProp(ref gamedb.DBRef, path string) string

	// Notify sends text to one object's listeners.
	Notify(target gamedb.DBRef, text string)
	// NotifyExcluding sends text to everything in room except the excluded refs.
	NotifyExcluding(room gamedb.DBRef, text string, exclude []gamedb.DBRef)

	ConnectionCount(player gamedb.DBRef) int
	Descriptors(player gamedb.DBRef) []int
	DescriptorIdle(desc int) (time.Duration, bool)

	// Match resolves name from actor's point of view: me, here, #n,
	// inventory, then location contents and exits.
	Match(actor gamedb.DBRef, name string) gamedb.DBRef
	MatchPlayer(name string) gamedb.DBRef

	// Force runs command as target. ctx is the forcing run's context.
	Force(ctx context.Context, actor, target gamedb.DBRef, command string) error
	AddPennies(ref gamedb.DBRef, amount int) error
}

// ProgramLoader supplies compiled programs to CALL.
type ProgramLoader interface {
	LoadProgram(ctx ProgramContext, ref gamedb.DBRef) (*Program, Result)
}

// ProgramContext identifies who is asking for a program.
type ProgramContext struct {
	Actor   gamedb.DBRef
	Program gamedb.DBRef
}

// Controls reports whether subject may modify target: wizards control
// everything, owners control what they own, and everything controls itself.
func Controls(w World, subject, target gamedb.DBRef) bool {
	if subject == target {
		return true
	}
	s, ok := w.Get(subject)
	if !ok {
		return false
	}
	if s.IsWizard() {
		return true
	}
	t, ok := w.Get(target)
	return ok && t.Owner == subject
}
