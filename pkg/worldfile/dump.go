package worldfile

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"gopkg.in/yaml.v3"
)

// SourceFunc looks up a program's stored source.
type SourceFunc func(ref gamedb.DBRef) (string, bool)

// FromDatabase converts db back into seed form, objects in reference order.
// Garbage is skipped. sources may be nil.
func FromDatabase(db *gamedb.Database, sources SourceFunc) *File {
	refs := make([]gamedb.DBRef, 0, len(db.Objects))
	for ref, obj := range db.Objects {
		if !obj.IsGarbage() {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })

	f := &File{Objects: make([]Object, 0, len(refs))}
	for _, ref := range refs {
		obj := db.Objects[ref]
		ent := Object{
			Ref:     Ref(ref),
			Name:    obj.Name,
			Type:    strings.ToLower(obj.Type.String()),
			Pennies: obj.Pennies,
			Flags:   gamedb.FlagNames(obj.Flags),
		}
		if obj.Type != gamedb.TypePlayer || obj.Owner != ref {
			owner := Ref(obj.Owner)
			ent.Owner = &owner
		}
		if obj.Location != gamedb.Nothing {
			loc := Ref(obj.Location)
			ent.Location = &loc
		}
		for _, l := range obj.Links {
			ent.Links = append(ent.Links, Ref(l))
		}
		if len(obj.Props) > 0 {
			ent.Props = make(Props, len(obj.Props))
			for path, v := range obj.Props {
				ent.Props[path] = v
			}
		}
		if sources != nil && obj.Type == gamedb.TypeProgram {
			if src, ok := sources(ref); ok {
				ent.Source = src
			}
		}
		f.Objects = append(f.Objects, ent)
	}
	return f
}

// Write encodes f as YAML.
func Write(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("worldfile: encode: %w", err)
	}
	return enc.Close()
}

func sortedKeys(p Props) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
