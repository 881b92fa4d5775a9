package gamedb

import (
	"sort"
	"strconv"
	"time"
)

// DBRef is the fundamental object reference type in the world database.
type DBRef int

const (
	Nothing   DBRef = -1 // NOT_FOUND
	Ambiguous DBRef = -2
	Home      DBRef = -3
)

// String formats a reference the way MUF prints it: #123.
func (r DBRef) String() string {
	return "#" + strconv.Itoa(int(r))
}

// ObjectType represents the type of a world object.
type ObjectType int

const (
	TypeRoom    ObjectType = 0
	TypeThing   ObjectType = 1
	TypeExit    ObjectType = 2
	TypePlayer  ObjectType = 3
	TypeProgram ObjectType = 4
	TypeGarbage ObjectType = 5
)

func (t ObjectType) String() string {
	switch t {
	case TypeRoom:
		return "ROOM"
	case TypeThing:
		return "THING"
	case TypeExit:
		return "EXIT"
	case TypePlayer:
		return "PLAYER"
	case TypeProgram:
		return "PROGRAM"
	case TypeGarbage:
		return "GARBAGE"
	default:
		return "UNKNOWN"
	}
}

// ParseObjectType maps a lowercase or uppercase type name to an ObjectType.
func ParseObjectType(s string) (ObjectType, bool) {
	switch s {
	case "room", "ROOM":
		return TypeRoom, true
	case "thing", "THING":
		return TypeThing, true
	case "exit", "EXIT", "action", "ACTION":
		return TypeExit, true
	case "player", "PLAYER":
		return TypePlayer, true
	case "program", "PROGRAM":
		return TypeProgram, true
	case "garbage", "GARBAGE":
		return TypeGarbage, true
	}
	return TypeGarbage, false
}

// Flag constants
const (
	FlagWizard   = 0x00000001
	FlagDark     = 0x00000002
	FlagSticky   = 0x00000004 // SETUID on programs
	FlagLinkOK   = 0x00000008
	FlagHaven    = 0x00000010
	FlagJumpOK   = 0x00000020
	FlagChownOK  = 0x00000040
	FlagBuilder  = 0x00000080
	FlagMucker   = 0x00000100 // M1
	FlagNucker   = 0x00000200 // M2
	FlagMaster   = 0x00000400 // M3
	FlagQuell    = 0x00000800
	FlagAbode    = 0x00001000
	FlagInterac  = 0x00002000
	FlagVehicle  = 0x00004000
	FlagZombie   = 0x00008000
	FlagListener = 0x00010000
)

var flagNames = map[string]int{
	"wizard":   FlagWizard,
	"dark":     FlagDark,
	"sticky":   FlagSticky,
	"setuid":   FlagSticky,
	"link_ok":  FlagLinkOK,
	"haven":    FlagHaven,
	"jump_ok":  FlagJumpOK,
	"chown_ok": FlagChownOK,
	"builder":  FlagBuilder,
	"mucker":   FlagMucker,
	"nucker":   FlagNucker,
	"master":   FlagMaster,
	"quell":    FlagQuell,
	"abode":    FlagAbode,
	"vehicle":  FlagVehicle,
	"zombie":   FlagZombie,
	"listener": FlagListener,
}

// FlagByName returns the bit for a lowercase flag name.
func FlagByName(name string) (int, bool) {
	f, ok := flagNames[name]
	return f, ok
}

// FlagNames lists the names of the bits set in flags, sorted, one name per bit.
func FlagNames(flags int) []string {
	names := make([]string, 0, len(flagNames))
	for name := range flagNames {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []string
	seen := 0
	for _, name := range names {
		bit := flagNames[name]
		if flags&bit != 0 && seen&bit == 0 {
			out = append(out, name)
			seen |= bit
		}
	}
	return out
}

// Object represents a world database object.
// Contents and Exits are the heads of singly linked chains threaded through Next.
type Object struct {
	DBRef      DBRef
	Name       string
	Type       ObjectType
	Location   DBRef
	Contents   DBRef
	Exits      DBRef
	Next       DBRef
	Owner      DBRef
	Links      []DBRef // home for players/things, destinations for exits, dropto for rooms
	Pennies    int
	Flags      int
	LastAccess time.Time
	LastMod    time.Time
	Props      map[string]PropValue // normalized path -> value
}

// NewObject returns an object with all references cleared.
func NewObject(ref DBRef, name string, t ObjectType, owner DBRef) *Object {
	return &Object{
		DBRef:    ref,
		Name:     name,
		Type:     t,
		Location: Nothing,
		Contents: Nothing,
		Exits:    Nothing,
		Next:     Nothing,
		Owner:    owner,
		Props:    make(map[string]PropValue),
	}
}

// HasFlag checks if a flag bit is set.
func (o *Object) HasFlag(flag int) bool {
	return o.Flags&flag != 0
}

// IsWizard returns true for unquelled wizard objects.
func (o *Object) IsWizard() bool {
	return o.HasFlag(FlagWizard) && !o.HasFlag(FlagQuell)
}

// IsGarbage returns true if the object has been recycled.
func (o *Object) IsGarbage() bool {
	return o.Type == TypeGarbage
}

// Database holds the complete in-memory game state.
type Database struct {
	Version int
	Size    int
	Objects map[DBRef]*Object
}

// NewDatabase creates an empty Database.
func NewDatabase() *Database {
	return &Database{
		Objects: make(map[DBRef]*Object),
	}
}

// Add inserts an object, growing Size to cover its reference.
func (db *Database) Add(obj *Object) {
	if obj.Props == nil {
		obj.Props = make(map[string]PropValue)
	}
	db.Objects[obj.DBRef] = obj
	if int(obj.DBRef) >= db.Size {
		db.Size = int(obj.DBRef) + 1
	}
}

// Valid returns true if ref names an existing, non-garbage object.
func (db *Database) Valid(ref DBRef) bool {
	obj, ok := db.Objects[ref]
	return ok && !obj.IsGarbage()
}

// MoveTo unlinks obj from its current location's contents chain and
// pushes it onto the head of dest's contents chain.
func (db *Database) MoveTo(ref, dest DBRef) {
	obj, ok := db.Objects[ref]
	if !ok {
		return
	}
	if old, ok := db.Objects[obj.Location]; ok {
		old.Contents = removeFromChain(db, old.Contents, ref)
	}
	obj.Location = dest
	obj.Next = Nothing
	if d, ok := db.Objects[dest]; ok {
		obj.Next = d.Contents
		d.Contents = ref
	}
}

// Chain returns the references on a Contents or Exits chain starting at head.
func (db *Database) Chain(head DBRef) []DBRef {
	var out []DBRef
	seen := make(map[DBRef]bool)
	for next := head; next != Nothing && !seen[next]; {
		seen[next] = true
		obj, ok := db.Objects[next]
		if !ok {
			break
		}
		out = append(out, next)
		next = obj.Next
	}
	return out
}

func removeFromChain(db *Database, head, ref DBRef) DBRef {
	if head == ref {
		if obj, ok := db.Objects[ref]; ok {
			return obj.Next
		}
		return Nothing
	}
	prev := head
	for prev != Nothing {
		p, ok := db.Objects[prev]
		if !ok {
			break
		}
		if p.Next == ref {
			if obj, ok := db.Objects[ref]; ok {
				p.Next = obj.Next
			}
			break
		}
		prev = p.Next
	}
	return head
}
