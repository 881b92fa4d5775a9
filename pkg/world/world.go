// Package world is the live game state programs run against: the object
// database, optional bbolt persistence, the event bus and the session table.
package world

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/crystal-mush/gomuck/pkg/boltstore"
	"github.com/crystal-mush/gomuck/pkg/events"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

// Ensure World implements muf.World.
var _ muf.World = (*World)(nil)

// ForceFunc executes command as target. The host supplies it; the world
// only checks that target exists and announces the force on the bus.
type ForceFunc func(ctx context.Context, actor, target gamedb.DBRef, command string) error

// World implements the interpreter's view of the game. Every method is
// safe for concurrent use.
type World struct {
	mu    sync.RWMutex
	db    *gamedb.Database
	store *boltstore.Store // nil keeps everything in memory
	bus   *events.Bus

	Sessions *Sessions

	force ForceFunc
}

// New wraps db. store may be nil; bus may be nil to discard output.
func New(db *gamedb.Database, store *boltstore.Store, bus *events.Bus) *World {
	if db == nil {
		db = gamedb.NewDatabase()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &World{
		db:       db,
		store:    store,
		bus:      bus,
		Sessions: NewSessions(bus),
	}
}

// FromStore builds a world over a loaded bbolt store's cache.
func FromStore(store *boltstore.Store, bus *events.Bus) *World {
	return New(store.DB(), store, bus)
}

// Bus returns the event bus output is published on.
func (w *World) Bus() *events.Bus { return w.bus }

// Store returns the persistence layer, or nil.
func (w *World) Store() *boltstore.Store { return w.store }

// SetForceHandler installs the command executor used by FORCE.
func (w *World) SetForceHandler(fn ForceFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.force = fn
}

// View runs fn with the database read-locked.
func (w *World) View(fn func(db *gamedb.Database)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(w.db)
}

// Update runs fn with the database write-locked and persists the objects
// it returns.
func (w *World) Update(fn func(db *gamedb.Database) ([]*gamedb.Object, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed, err := fn(w.db)
	if err != nil {
		return err
	}
	return w.persist(changed...)
}

// persist writes objects through to bbolt. Caller holds w.mu.
func (w *World) persist(objs ...*gamedb.Object) error {
	if w.store == nil || len(objs) == 0 {
		return nil
	}
	if len(objs) == 1 {
		if err := w.store.PutObject(objs[0]); err != nil {
			log.Printf("world: persist #%d: %v", objs[0].DBRef, err)
			return err
		}
		return nil
	}
	if err := w.store.PutObjects(objs...); err != nil {
		log.Printf("world: persist %d objects: %v", len(objs), err)
		return err
	}
	return nil
}

// Get returns a copy of the object without its property tree.
func (w *World) Get(ref gamedb.DBRef) (gamedb.Object, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	obj, ok := w.db.Objects[ref]
	if !ok {
		return gamedb.Object{}, false
	}
	cp := *obj
	cp.Props = nil
	cp.Links = append([]gamedb.DBRef(nil), obj.Links...)
	return cp, true
}

// Contents lists the objects inside ref, head first.
func (w *World) Contents(ref gamedb.DBRef) []gamedb.DBRef {
	w.mu.RLock()
	defer w.mu.RUnlock()
	obj, ok := w.db.Objects[ref]
	if !ok {
		return nil
	}
	return w.db.Chain(obj.Contents)
}

// GetPropertyPath reads one property.
func (w *World) GetPropertyPath(ref gamedb.DBRef, path string) (gamedb.PropValue, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	obj, ok := w.db.Objects[ref]
	if !ok {
		return gamedb.PropValue{}, false
	}
	return obj.GetProp(path)
}

// SetPropertyPath stores a property and persists the object.
func (w *World) SetPropertyPath(ref gamedb.DBRef, path string, v gamedb.PropValue) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.db.Objects[ref]
	if !ok {
		return fmt.Errorf("world: set %s on %s: no such object", path, ref)
	}
	obj.SetProp(path, v)
	obj.LastMod = time.Now()
	return w.persist(obj)
}

// ClearPropertyPath removes a property and everything below it.
func (w *World) ClearPropertyPath(ref gamedb.DBRef, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.db.Objects[ref]
	if !ok {
		return fmt.Errorf("world: clear %s on %s: no such object", path, ref)
	}
	obj.ClearProp(path)
	obj.LastMod = time.Now()
	return w.persist(obj)
}

// PropDir lists the children of a property directory.
func (w *World) PropDir(ref gamedb.DBRef, path string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	obj, ok := w.db.Objects[ref]
	if !ok {
		return nil
	}
	return obj.PropDir(path)
}

// NextProp returns the property after path, or "".
func (w *World) NextProp(ref gamedb.DBRef, path string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	obj, ok := w.db.Objects[ref]
	if !ok {
		return ""
	}
	return obj.NextProp(path)
}

// Notify publishes text to target's subscribers.
func (w *World) Notify(target gamedb.DBRef, text string) {
	w.bus.EmitToPlayer(target, events.Event{
		Type:   events.EvNotify,
		Source: gamedb.Nothing,
		Room:   gamedb.Nothing,
		Text:   text,
	})
}

// NotifyExcluding publishes text to everything in room except exclude.
func (w *World) NotifyExcluding(room gamedb.DBRef, text string, exclude []gamedb.DBRef) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	w.bus.EmitToRoom(w.db, room, exclude, events.Event{
		Type:   events.EvNotify,
		Source: gamedb.Nothing,
		Text:   text,
	})
}

// Force announces the force and hands it to the installed handler.
func (w *World) Force(ctx context.Context, actor, target gamedb.DBRef, command string) error {
	w.mu.RLock()
	_, ok := w.db.Objects[target]
	fn := w.force
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("world: force %s: no such object", target)
	}
	if fn == nil {
		return fmt.Errorf("world: force %s: no command handler installed", target)
	}
	w.bus.EmitToPlayer(target, events.Event{
		Type:   events.EvForce,
		Source: actor,
		Room:   gamedb.Nothing,
		Text:   command,
		Data:   map[string]any{"command": command},
	})
	return fn(ctx, actor, target, command)
}

// AddPennies adjusts ref's pennies by amount.
func (w *World) AddPennies(ref gamedb.DBRef, amount int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.db.Objects[ref]
	if !ok {
		return fmt.Errorf("world: pennies %s: no such object", ref)
	}
	if obj.Pennies+amount < 0 {
		return fmt.Errorf("world: pennies %s: balance would go negative", ref)
	}
	obj.Pennies += amount
	return w.persist(obj)
}

// ConnectionCount is the number of sessions player has open.
func (w *World) ConnectionCount(player gamedb.DBRef) int {
	return len(w.Sessions.ByPlayer(player))
}

// Descriptors lists player's session IDs, oldest first.
func (w *World) Descriptors(player gamedb.DBRef) []int {
	sess := w.Sessions.ByPlayer(player)
	ids := make([]int, len(sess))
	for i, s := range sess {
		ids[i] = s.ID
	}
	return ids
}

// DescriptorIdle reports how long a session has been idle.
func (w *World) DescriptorIdle(desc int) (time.Duration, bool) {
	s, ok := w.Sessions.Get(desc)
	if !ok {
		return 0, false
	}
	return time.Since(s.LastCmd), true
}

// Add inserts obj and threads it onto its location's contents chain, or
// the exits chain for an exit.
func (w *World) Add(obj *gamedb.Object) error {
	return w.Update(func(db *gamedb.Database) ([]*gamedb.Object, error) {
		if _, exists := db.Objects[obj.DBRef]; exists {
			return nil, fmt.Errorf("world: add %s: already exists", obj.DBRef)
		}
		db.Add(obj)
		changed := []*gamedb.Object{obj}
		loc, ok := db.Objects[obj.Location]
		if !ok || loc == obj {
			return changed, nil
		}
		if obj.Type == gamedb.TypeExit {
			obj.Next = loc.Exits
			loc.Exits = obj.DBRef
		} else {
			obj.Next = loc.Contents
			loc.Contents = obj.DBRef
		}
		return append(changed, loc), nil
	})
}
