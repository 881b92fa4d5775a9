package muf

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// Mode is the scheduling mode a program requests with SETMODE.
type Mode int

const (
	ModePreempt    Mode = 0
	ModeForeground Mode = 1
	ModeBackground Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModePreempt:
		return "preempt"
	case ModeForeground:
		return "foreground"
	case ModeBackground:
		return "background"
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// ValidMode reports whether n names a legal mode.
func ValidMode(n int64) bool { return n >= 0 && n <= 2 }

// RunHandle identifies one top-level run; program-local variables live
// under it until the run ends.
type RunHandle uuid.UUID

func (h RunHandle) String() string { return uuid.UUID(h).String() }

// Invocation is the per-run context: who is running, what triggered it,
// and the shared data stack.
type Invocation struct {
	Actor   gamedb.DBRef
	Trigger gamedb.DBRef
	Command string
	Program gamedb.DBRef // program currently executing; updated by CALL
	Mode    Mode
	Stack   *Stack

	// Constants are host-provided read-only names visible to every word.
	Constants map[string]Datum

	Steps int

	handle       RunHandle
	depth        int
	lastListItem gamedb.DBRef
	seed         string
	rng          *rand.Rand
}

// NewInvocation returns an invocation for actor with an empty stack.
func NewInvocation(actor, trigger gamedb.DBRef, command string) *Invocation {
	return &Invocation{
		Actor:        actor,
		Trigger:      trigger,
		Command:      command,
		Program:      gamedb.Nothing,
		Mode:         ModeForeground,
		Stack:        NewStack(),
		lastListItem: gamedb.Nothing,
	}
}

// Handle returns the run handle assigned by the engine.
func (inv *Invocation) Handle() RunHandle { return inv.handle }

// LastListItem is the last object reached by a Contents/Exits walk.
func (inv *Invocation) LastListItem() gamedb.DBRef { return inv.lastListItem }

// Seed returns the current SETSEED string.
func (inv *Invocation) Seed() string {
	if inv.seed == "" {
		inv.SetSeed(strconv.FormatInt(time.Now().UnixNano(), 36))
	}
	return inv.seed
}

// SetSeed reseeds the run's generator deterministically from s.
func (inv *Invocation) SetSeed(s string) {
	inv.seed = s
	h := xxhash.Sum64String(s)
	inv.rng = rand.New(rand.NewPCG(h, h^0x9e3779b97f4a7c15))
}

// Rand returns the run's generator, seeding it from the clock on first use.
func (inv *Invocation) Rand() *rand.Rand {
	if inv.rng == nil {
		inv.Seed()
	}
	return inv.rng
}
