package validate

import (
	"fmt"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
	"github.com/crystal-mush/gomuck/pkg/muf/primitives"
	"github.com/crystal-mush/gomuck/pkg/world"
)

// SourceFunc looks up a program's stored source.
type SourceFunc func(ref gamedb.DBRef) (string, bool)

// ProgramChecker compiles every program against a scratch copy of the world
// and reports the ones that fail or have no source.
type ProgramChecker struct {
	Sources SourceFunc
}

func (c *ProgramChecker) Name() string { return "programs" }

func (c *ProgramChecker) Check(db *gamedb.Database) []Finding {
	if c.Sources == nil {
		return nil
	}
	var findings []Finding
	seq := 0
	mkID := func() string {
		id := fmt.Sprintf("program-%d", seq)
		seq++
		return id
	}

	// $def and $include read the world; the scratch world has no bus, so
	// preprocessor warnings are only logged.
	w := world.New(db, nil, nil)
	pp := muf.NewPreprocessor(w)
	pp.EchoWarnings = false
	tk := muf.NewTokenizer(primitives.NewRegistry())

	for _, ref := range sortedRefs(db) {
		obj := db.Objects[ref]
		if obj.Type != gamedb.TypeProgram {
			continue
		}
		src, ok := c.Sources(ref)
		if !ok {
			findings = append(findings, Finding{
				ID:          mkID(),
				Category:    CatProgram,
				Severity:    SevWarning,
				ObjectRef:   ref,
				OwnerRef:    obj.Owner,
				Description: fmt.Sprintf("program %s (%s) has no source", ref, obj.Name),
			})
			continue
		}
		if _, r := muf.Compile(pp, tk, obj.Owner, ref, src); !r.Successful() {
			f := Finding{
				ID:          mkID(),
				Category:    CatProgram,
				Severity:    SevError,
				ObjectRef:   ref,
				OwnerRef:    obj.Owner,
				Description: fmt.Sprintf("program %s (%s) does not compile: %s", ref, obj.Name, r.Reason),
			}
			if r.Pos != nil {
				f.Current = truncate(r.Pos.String(), 80)
			}
			findings = append(findings, f)
		}
	}
	return findings
}
