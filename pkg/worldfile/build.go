package worldfile

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/crystal-mush/gomuck/pkg/boltstore"
	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// Seed is a built world: the object database plus the source of every
// program that carried one.
type Seed struct {
	DB      *gamedb.Database
	Sources map[gamedb.DBRef]string
}

// Build checks the file and turns it into a database. Objects are threaded
// onto their location's contents (or exits) chain in file order.
func (f *File) Build() (*Seed, error) {
	seed := &Seed{
		DB:      gamedb.NewDatabase(),
		Sources: make(map[gamedb.DBRef]string),
	}
	db := seed.DB
	for i := range f.Objects {
		ent := &f.Objects[i]
		obj, err := ent.object()
		if err != nil {
			return nil, err
		}
		if _, dup := db.Objects[obj.DBRef]; dup {
			return nil, fmt.Errorf("worldfile: %s defined twice", obj.DBRef)
		}
		db.Add(obj)
		if ent.Source != "" {
			seed.Sources[obj.DBRef] = ent.Source
		}
	}

	tails := make(map[gamedb.DBRef]gamedb.DBRef)
	exitTails := make(map[gamedb.DBRef]gamedb.DBRef)
	for i := range f.Objects {
		obj := db.Objects[f.Objects[i].Ref.DBRef()]
		if err := checkRefs(db, obj); err != nil {
			return nil, err
		}
		if obj.Location == gamedb.Nothing {
			continue
		}
		loc := db.Objects[obj.Location]
		if obj.Type == gamedb.TypeExit {
			appendChain(db, &loc.Exits, exitTails, loc.DBRef, obj.DBRef)
		} else {
			appendChain(db, &loc.Contents, tails, loc.DBRef, obj.DBRef)
		}
	}
	return seed, nil
}

func appendChain(db *gamedb.Database, head *gamedb.DBRef, tails map[gamedb.DBRef]gamedb.DBRef, loc, ref gamedb.DBRef) {
	if tail, ok := tails[loc]; ok {
		db.Objects[tail].Next = ref
	} else {
		*head = ref
	}
	tails[loc] = ref
}

func (ent *Object) object() (*gamedb.Object, error) {
	ref := ent.Ref.DBRef()
	if ref < 0 {
		return nil, fmt.Errorf("worldfile: bad object reference %s", ref)
	}
	typ, ok := gamedb.ParseObjectType(strings.ToLower(ent.Type))
	if !ok || typ == gamedb.TypeGarbage {
		return nil, fmt.Errorf("worldfile: %s: unknown type %q", ref, ent.Type)
	}
	if ent.Name == "" {
		return nil, fmt.Errorf("worldfile: %s: missing name", ref)
	}

	owner := ref
	switch {
	case ent.Owner != nil:
		owner = ent.Owner.DBRef()
	case typ != gamedb.TypePlayer:
		return nil, fmt.Errorf("worldfile: %s: missing owner", ref)
	}

	obj := gamedb.NewObject(ref, ent.Name, typ, owner)
	if ent.Location != nil {
		obj.Location = ent.Location.DBRef()
	}
	for _, l := range ent.Links {
		obj.Links = append(obj.Links, l.DBRef())
	}
	obj.Pennies = ent.Pennies
	for _, name := range ent.Flags {
		bit, ok := gamedb.FlagByName(strings.ToLower(name))
		if !ok {
			return nil, fmt.Errorf("worldfile: %s: unknown flag %q", ref, name)
		}
		obj.Flags |= bit
	}
	for path, v := range ent.Props {
		obj.SetProp(path, v)
	}
	if ent.Source != "" && typ != gamedb.TypeProgram {
		return nil, fmt.Errorf("worldfile: %s: source on a %s", ref, typ)
	}
	return obj, nil
}

func checkRefs(db *gamedb.Database, obj *gamedb.Object) error {
	if _, ok := db.Objects[obj.Owner]; !ok {
		return fmt.Errorf("worldfile: %s: owner %s does not exist", obj.DBRef, obj.Owner)
	}
	if obj.Location != gamedb.Nothing {
		if obj.Location == obj.DBRef {
			return fmt.Errorf("worldfile: %s is inside itself", obj.DBRef)
		}
		if _, ok := db.Objects[obj.Location]; !ok {
			return fmt.Errorf("worldfile: %s: location %s does not exist", obj.DBRef, obj.Location)
		}
	}
	for _, l := range obj.Links {
		if l == gamedb.Home || l == gamedb.Nothing {
			continue
		}
		if _, ok := db.Objects[l]; !ok {
			return fmt.Errorf("worldfile: %s: link %s does not exist", obj.DBRef, l)
		}
	}
	return nil
}

// Import writes the seed into store, replacing its object cache, and
// stores every program source.
func (s *Seed) Import(store *boltstore.Store) error {
	if err := store.ImportFromDatabase(s.DB); err != nil {
		return err
	}
	refs := make([]gamedb.DBRef, 0, len(s.Sources))
	for ref := range s.Sources {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	for _, ref := range refs {
		if err := store.PutProgramSource(ref, s.Sources[ref]); err != nil {
			return fmt.Errorf("worldfile: store source %s: %w", ref, err)
		}
	}
	log.Printf("worldfile: imported %d objects, %d programs", len(s.DB.Objects), len(refs))
	return nil
}
