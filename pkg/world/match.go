package world

import (
	"strings"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

// Match resolves name from actor's point of view. It tries me, here, #n and
// *player, then actor's inventory, the room's contents and the exits of the
// room and of actor. Exit names may carry ;-separated aliases. Several
// equally good candidates yield Ambiguous; none yields Nothing.
func (w *World) Match(actor gamedb.DBRef, name string) gamedb.DBRef {
	name = strings.TrimSpace(name)
	if name == "" {
		return gamedb.Nothing
	}
	switch strings.ToLower(name) {
	case "me":
		return actor
	case "here":
		if obj, ok := w.Get(actor); ok {
			return obj.Location
		}
		return gamedb.Nothing
	}
	if d, ok := muf.InferLiteral(name); ok && d.Type == muf.TypeDbRef {
		if obj, found := w.Get(d.Ref); found && !obj.IsGarbage() {
			return d.Ref
		}
		return gamedb.Nothing
	}
	if name[0] == '*' {
		return w.MatchPlayer(name[1:])
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	me, ok := w.db.Objects[actor]
	if !ok {
		return gamedb.Nothing
	}
	var candidates []gamedb.DBRef
	candidates = append(candidates, w.db.Chain(me.Contents)...)
	candidates = append(candidates, w.db.Chain(me.Exits)...)
	if room, ok := w.db.Objects[me.Location]; ok {
		candidates = append(candidates, w.db.Chain(room.Contents)...)
		candidates = append(candidates, w.db.Chain(room.Exits)...)
	}

	exact, partial := gamedb.Nothing, gamedb.Nothing
	exactN, partialN := 0, 0
	lower := strings.ToLower(name)
	for _, ref := range candidates {
		obj := w.db.Objects[ref]
		if obj == nil || obj.IsGarbage() || ref == actor {
			continue
		}
		if obj.Type == gamedb.TypeExit {
			for _, alias := range strings.Split(obj.Name, ";") {
				if strings.EqualFold(strings.TrimSpace(alias), name) {
					if exact != ref {
						exactN++
					}
					exact = ref
					break
				}
			}
			continue
		}
		switch {
		case strings.EqualFold(obj.Name, name):
			exact = ref
			exactN++
		case strings.HasPrefix(strings.ToLower(obj.Name), lower):
			partial = ref
			partialN++
		}
	}
	switch {
	case exactN == 1:
		return exact
	case exactN > 1:
		return gamedb.Ambiguous
	case partialN == 1:
		return partial
	case partialN > 1:
		return gamedb.Ambiguous
	}
	return gamedb.Nothing
}

// MatchPlayer finds a player by full name, then by unique prefix.
func (w *World) MatchPlayer(name string) gamedb.DBRef {
	name = strings.TrimPrefix(strings.TrimSpace(name), "*")
	if name == "" {
		return gamedb.Nothing
	}
	if w.store != nil {
		if ref, ok := w.store.LookupPlayer(name); ok {
			if obj, found := w.Get(ref); found && obj.Type == gamedb.TypePlayer {
				return ref
			}
		}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, obj := range w.db.Objects {
		if obj.Type == gamedb.TypePlayer && strings.EqualFold(obj.Name, name) {
			return obj.DBRef
		}
	}
	lower := strings.ToLower(name)
	match := gamedb.Nothing
	count := 0
	for _, obj := range w.db.Objects {
		if obj.Type == gamedb.TypePlayer && strings.HasPrefix(strings.ToLower(obj.Name), lower) {
			match = obj.DBRef
			count++
		}
	}
	switch {
	case count == 1:
		return match
	case count > 1:
		return gamedb.Ambiguous
	}
	return gamedb.Nothing
}
