package validate

import (
	"fmt"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// maxChain bounds chain walks on corrupt databases.
const maxChain = 50000

// IntegrityChecker performs referential integrity checks on the database.
type IntegrityChecker struct{}

func (c *IntegrityChecker) Name() string { return "integrity" }

func (c *IntegrityChecker) Check(db *gamedb.Database) []Finding {
	var findings []Finding
	seq := 0

	mkID := func() string {
		id := fmt.Sprintf("integrity-%d", seq)
		seq++
		return id
	}
	broken := func(ref gamedb.DBRef, format string, args ...any) {
		findings = append(findings, Finding{
			ID:          mkID(),
			Category:    CatIntegrityError,
			Severity:    SevError,
			ObjectRef:   ref,
			Description: fmt.Sprintf(format, args...),
		})
	}
	exists := func(ref gamedb.DBRef) bool {
		_, ok := db.Objects[ref]
		return ok
	}

	refs := sortedRefs(db)
	for _, ref := range refs {
		obj := db.Objects[ref]
		if obj.IsGarbage() {
			continue
		}

		if obj.Location != gamedb.Nothing && !exists(obj.Location) {
			broken(ref, "%s location %s does not exist", ref, obj.Location)
		}
		if obj.Contents != gamedb.Nothing && !exists(obj.Contents) {
			broken(ref, "%s contents head %s does not exist", ref, obj.Contents)
		}
		if obj.Exits != gamedb.Nothing && !exists(obj.Exits) {
			broken(ref, "%s exits head %s does not exist", ref, obj.Exits)
		}
		if obj.Next != gamedb.Nothing && !exists(obj.Next) {
			broken(ref, "%s next %s does not exist", ref, obj.Next)
		}

		// Owner should exist and be a player
		if owner, ok := db.Objects[obj.Owner]; !ok {
			broken(ref, "%s owner %s does not exist", ref, obj.Owner)
		} else if owner.Type != gamedb.TypePlayer {
			findings = append(findings, Finding{
				ID:          mkID(),
				Category:    CatIntegrityWarn,
				Severity:    SevWarning,
				ObjectRef:   ref,
				OwnerRef:    obj.Owner,
				Description: fmt.Sprintf("%s owner %s is not a player (type=%s)", ref, obj.Owner, owner.Type),
			})
		}

		for _, link := range obj.Links {
			if link != gamedb.Home && link != gamedb.Nothing && !exists(link) {
				broken(ref, "%s link %s does not exist", ref, link)
			}
		}
		if obj.Type == gamedb.TypeExit && len(obj.Links) == 0 {
			findings = append(findings, Finding{
				ID:          mkID(),
				Category:    CatIntegrityWarn,
				Severity:    SevInfo,
				ObjectRef:   ref,
				OwnerRef:    obj.Owner,
				Description: fmt.Sprintf("exit %s (%s) is unlinked", ref, obj.Name),
			})
		}
	}

	// Walk chains: loops are errors, members that disagree about where
	// they are get a fix that trusts the chain.
	for _, ref := range refs {
		obj := db.Objects[ref]
		if obj.IsGarbage() {
			continue
		}
		for _, chain := range []struct {
			name string
			head gamedb.DBRef
		}{{"contents", obj.Contents}, {"exits", obj.Exits}} {
			visited := make(map[gamedb.DBRef]bool)
			for cur := chain.head; cur != gamedb.Nothing; {
				if visited[cur] {
					broken(ref, "%s %s chain has loop at %s", ref, chain.name, cur)
					break
				}
				visited[cur] = true
				member, ok := db.Objects[cur]
				if !ok {
					break
				}
				if member.Location != ref {
					findings = append(findings, misplaced(mkID(), ref, member, chain.name))
				}
				cur = member.Next
				if len(visited) > maxChain {
					broken(ref, "%s %s chain exceeds %d entries", ref, chain.name, maxChain)
					break
				}
			}
		}
	}

	return findings
}

func misplaced(id string, holder gamedb.DBRef, member *gamedb.Object, chain string) Finding {
	return Finding{
		ID:        id,
		Category:  CatIntegrityWarn,
		Severity:  SevWarning,
		ObjectRef: member.DBRef,
		OwnerRef:  member.Owner,
		Description: fmt.Sprintf("%s is on %s's %s chain but its location is %s",
			member.DBRef, holder, chain, member.Location),
		Fixable: true,
		fixFunc: func() { member.Location = holder },
	}
}
