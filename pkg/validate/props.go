package validate

import (
	"fmt"
	"sort"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// PropChecker reports dbref properties whose target does not exist.
// Home and Nothing are legitimate values.
type PropChecker struct{}

func (c *PropChecker) Name() string { return "props" }

func (c *PropChecker) Check(db *gamedb.Database) []Finding {
	var findings []Finding
	seq := 0
	for _, ref := range sortedRefs(db) {
		obj := db.Objects[ref]
		if obj.IsGarbage() {
			continue
		}
		paths := make([]string, 0, len(obj.Props))
		for path := range obj.Props {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			v := obj.Props[path]
			if v.Kind != gamedb.PropDBRef || v.Ref == gamedb.Home || v.Ref == gamedb.Nothing {
				continue
			}
			if _, ok := db.Objects[v.Ref]; ok {
				continue
			}
			path := path
			findings = append(findings, Finding{
				ID:          fmt.Sprintf("props-%d", seq),
				Category:    CatProps,
				Severity:    SevWarning,
				ObjectRef:   ref,
				PropPath:    path,
				OwnerRef:    obj.Owner,
				Description: fmt.Sprintf("%s property %s points at missing object %s", ref, path, v.Ref),
				Current:     v.Text(),
				Fixable:     true,
				fixFunc:     func() { obj.ClearProp(path) },
			})
			seq++
		}
	}
	return findings
}
