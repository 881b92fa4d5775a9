// Package server hosts MUF programs: it owns the world, the engine, the
// compiled-program cache, the run journal and the metrics, and wires them
// together the way a running game uses them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crystal-mush/gomuck/pkg/boltstore"
	"github.com/crystal-mush/gomuck/pkg/events"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
	"github.com/crystal-mush/gomuck/pkg/muf/primitives"
	"github.com/crystal-mush/gomuck/pkg/world"
	"github.com/crystal-mush/gomuck/pkg/worldfile"
)

// maxForceDepth bounds FORCE chains that run programs that FORCE again.
const maxForceDepth = 8

// ErrHuh is returned by Execute when a command names no program action.
var ErrHuh = errors.New("huh?")

// Game is a program host.
type Game struct {
	World   *world.World
	Engine  *muf.Engine
	Conf    *GameConf
	Metrics *Metrics
	Journal *RunJournal // nil when journaling is disabled

	pp *muf.Preprocessor

	mu      sync.Mutex
	cache   map[gamedb.DBRef]*muf.Program
	gens    map[gamedb.DBRef]uint64 // bumped by SetProgramSource
	sources map[gamedb.DBRef]string // used when the world has no store
}

// forceDepthKey carries the FORCE nesting depth of a run's context.
type forceDepthKey struct{}

func forceDepth(ctx context.Context) int {
	n, _ := ctx.Value(forceDepthKey{}).(int)
	return n
}

// NewGame builds a host over w. The journal is left unset; see OpenGame.
func NewGame(w *world.World, conf *GameConf) *Game {
	if conf == nil {
		conf = DefaultGameConf()
	}
	g := &Game{
		World:   w,
		Conf:    conf,
		cache:   make(map[gamedb.DBRef]*muf.Program),
		gens:    make(map[gamedb.DBRef]uint64),
		sources: make(map[gamedb.DBRef]string),
	}
	g.Engine = muf.NewEngine(w, primitives.NewRegistry(),
		muf.WithLoader(g),
		muf.WithMaxSteps(conf.MaxSteps),
		muf.WithMaxDepth(conf.MaxDepth))
	g.pp = muf.NewPreprocessor(w)
	g.pp.EchoWarnings = conf.EchoWarnings
	g.Metrics = NewMetrics(g, time.Now())
	w.SetForceHandler(g.force)
	return g
}

// OpenGame opens the storage named by conf, seeds it from the world file
// when it is empty, and opens the run journal.
func OpenGame(conf *GameConf) (*Game, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	bus := events.NewBus()

	var w *world.World
	var seedSources map[gamedb.DBRef]string
	if conf.BoltPath != "" {
		store, err := boltstore.Open(conf.BoltPath)
		if err != nil {
			return nil, err
		}
		if !store.HasData() && conf.WorldPath != "" {
			seed, err := loadSeed(conf.WorldPath)
			if err == nil {
				err = seed.Import(store)
			}
			if err != nil {
				store.Close()
				return nil, err
			}
		} else if err := store.LoadAll(); err != nil {
			store.Close()
			return nil, err
		}
		w = world.FromStore(store, bus)
	} else {
		db := gamedb.NewDatabase()
		if conf.WorldPath != "" {
			seed, err := loadSeed(conf.WorldPath)
			if err != nil {
				return nil, err
			}
			db, seedSources = seed.DB, seed.Sources
		}
		w = world.New(db, nil, bus)
	}

	g := NewGame(w, conf)
	for ref, src := range seedSources {
		g.sources[ref] = src
	}
	if conf.JournalEnabled {
		j, err := OpenRunJournal(conf.JournalPath, 5)
		if err != nil {
			g.Close()
			return nil, err
		}
		g.Journal = j
	}
	log.Printf("server: %s ready (%s)", conf.MudName, VersionString())
	return g, nil
}

func loadSeed(path string) (*worldfile.Seed, error) {
	f, err := worldfile.Load(path)
	if err != nil {
		return nil, err
	}
	return f.Build()
}

// Close releases the journal and the bbolt store.
func (g *Game) Close() error {
	var errs []error
	if g.Journal != nil {
		errs = append(errs, g.Journal.Close())
	}
	if s := g.World.Store(); s != nil {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// ProgramSource returns the stored source of a program object.
func (g *Game) ProgramSource(ref gamedb.DBRef) (string, bool) {
	if s := g.World.Store(); s != nil {
		return s.ProgramSource(ref)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	src, ok := g.sources[ref]
	return src, ok
}

// SetProgramSource replaces a program's source and drops its compiled form.
func (g *Game) SetProgramSource(ref gamedb.DBRef, source string) error {
	obj, ok := g.World.Get(ref)
	if !ok {
		return fmt.Errorf("server: set source %s: no such object", ref)
	}
	if obj.Type != gamedb.TypeProgram {
		return fmt.Errorf("server: set source %s: not a program", ref)
	}
	if s := g.World.Store(); s != nil {
		if err := s.PutProgramSource(ref, source); err != nil {
			return fmt.Errorf("server: set source %s: %w", ref, err)
		}
	}
	g.mu.Lock()
	if g.World.Store() == nil {
		g.sources[ref] = source
	}
	delete(g.cache, ref)
	g.gens[ref]++
	g.mu.Unlock()
	return nil
}

// Program returns the compiled form of ref, compiling it on first use.
// Programs compile as their owner so the result does not depend on who
// runs them first.
func (g *Game) Program(ref gamedb.DBRef) (*muf.Program, muf.Result) {
	g.mu.Lock()
	prog, ok := g.cache[ref]
	gen := g.gens[ref]
	g.mu.Unlock()
	g.Metrics.ObserveCache(ok)
	if ok {
		return prog, muf.Success()
	}

	obj, ok := g.World.Get(ref)
	if !ok || obj.IsGarbage() {
		return nil, muf.Fail(muf.NoSuchObject, "no such program %s", ref)
	}
	if obj.Type != gamedb.TypeProgram {
		return nil, muf.Fail(muf.InvalidValue, "%s is not a program", ref)
	}
	src, ok := g.ProgramSource(ref)
	if !ok {
		return nil, muf.Fail(muf.NoSuchObject, "program %s has no source", ref)
	}

	prog, r := muf.Compile(g.pp, g.Engine.Tokenizer(), obj.Owner, ref, src)
	g.Metrics.ObserveCompile(r)
	if !r.Successful() {
		log.Printf("server: compile %s (%s): %v", ref, obj.Name, r.Err())
		return nil, r
	}
	g.storeCompiled(ref, gen, prog)
	return prog, r
}

// storeCompiled caches prog unless the source changed since generation gen
// was read; a compile that raced SetProgramSource is returned but not kept.
func (g *Game) storeCompiled(ref gamedb.DBRef, gen uint64, prog *muf.Program) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gens[ref] == gen {
		g.cache[ref] = prog
	}
}

// LoadProgram lets CALL reach other programs through the cache.
func (g *Game) LoadProgram(_ muf.ProgramContext, ref gamedb.DBRef) (*muf.Program, muf.Result) {
	return g.Program(ref)
}

// RunProgram compiles (or fetches) a program and runs its entry word as
// actor under the configured time and step budgets. A failure is reported
// to actor, and every run is counted and journaled.
func (g *Game) RunProgram(ctx context.Context, actor, ref, trigger gamedb.DBRef, command string) (*muf.Invocation, muf.Result) {
	start := time.Now()
	inv := muf.NewInvocation(actor, trigger, command)
	inv.Mode = muf.Mode(g.Conf.DefaultMode)

	prog, r := g.Program(ref)
	if r.Successful() {
		runCtx := ctx
		if d := g.Conf.RunTimeout(); d > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		r = g.Engine.Run(runCtx, prog, inv)
	}
	elapsed := time.Since(start)

	g.Metrics.ObserveRun(r, elapsed)
	if !r.Successful() {
		g.reportFailure(ctx, actor, ref, r)
	}
	g.journal(inv, ref, r, start, elapsed)
	return inv, r
}

func (g *Game) reportFailure(ctx context.Context, actor, ref gamedb.DBRef, r muf.Result) {
	msg := fmt.Sprintf("Program %s failed: %s", ref, r.Kind)
	if r.Reason != "" {
		msg += ": " + r.Reason
	}
	if r.Pos != nil {
		msg += " (" + r.Pos.String() + ")"
	}
	g.World.Notify(actor, msg)
	if r.Kind == muf.Interrupted && ctx.Err() != nil {
		return
	}
	log.Printf("server: run %s as %s: %v", ref, actor, r.Err())
}

func (g *Game) journal(inv *muf.Invocation, ref gamedb.DBRef, r muf.Result, start time.Time, elapsed time.Duration) {
	if g.Journal == nil {
		return
	}
	id := inv.Handle().String()
	if inv.Handle() == (muf.RunHandle{}) {
		id = uuid.NewString()
	}
	rec := RunRecord{
		ID:       id,
		Program:  ref,
		Actor:    inv.Actor,
		Trigger:  inv.Trigger,
		Command:  inv.Command,
		Kind:     r.Kind.String(),
		Reason:   r.Reason,
		Steps:    r.Steps,
		Duration: elapsed,
		Started:  start,
	}
	if r.Pos != nil {
		rec.Line, rec.Column, rec.Word = r.Pos.Line, r.Pos.Column, r.Pos.Word
	}
	if err := g.Journal.Record(context.Background(), rec); err != nil {
		log.Printf("server: %v", err)
	}
}

// Execute runs a command typed by player. The first word is matched as an
// action; if that action is linked to a program, the program runs with the
// action as trigger and the rest of the line as command.
func (g *Game) Execute(ctx context.Context, player gamedb.DBRef, line string) (muf.Result, error) {
	line = strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(line, " ")
	if verb == "" {
		return muf.Success(), nil
	}
	action := g.World.Match(player, verb)
	if action == gamedb.Ambiguous {
		g.World.Notify(player, "I don't know which one you mean!")
		return muf.Success(), fmt.Errorf("server: %q is ambiguous", verb)
	}
	obj, ok := g.World.Get(action)
	if !ok || obj.Type != gamedb.TypeExit || len(obj.Links) == 0 {
		g.World.Notify(player, `Huh?  (Type "help" for help.)`)
		return muf.Success(), ErrHuh
	}
	target, ok := g.World.Get(obj.Links[0])
	if !ok || target.Type != gamedb.TypeProgram {
		g.World.Notify(player, `Huh?  (Type "help" for help.)`)
		return muf.Success(), ErrHuh
	}
	_, r := g.RunProgram(ctx, player, target.DBRef, action, strings.TrimSpace(rest))
	return r, nil
}

// force is the world's FORCE handler: the target runs the command under
// the forcing run's context, one level deeper in its FORCE chain.
func (g *Game) force(ctx context.Context, actor, target gamedb.DBRef, command string) error {
	depth := forceDepth(ctx) + 1
	if depth > maxForceDepth {
		return fmt.Errorf("server: force chain deeper than %d", maxForceDepth)
	}
	r, err := g.Execute(context.WithValue(ctx, forceDepthKey{}, depth), target, command)
	if err != nil {
		return err
	}
	return r.Err()
}

// Stats is a snapshot of host state for metrics and status displays.
type Stats struct {
	Objects    int
	Programs   int
	Cached     int
	Sessions   int
	ActiveRuns int
}

// Stats counts objects, programs and live runs.
func (g *Game) Stats() Stats {
	var st Stats
	g.World.View(func(db *gamedb.Database) {
		st.Objects = len(db.Objects)
		for _, obj := range db.Objects {
			if obj.Type == gamedb.TypeProgram {
				st.Programs++
			}
		}
	})
	g.mu.Lock()
	st.Cached = len(g.cache)
	g.mu.Unlock()
	st.Sessions = g.World.Sessions.Count()
	st.ActiveRuns = g.Engine.ActiveRuns()
	return st
}
