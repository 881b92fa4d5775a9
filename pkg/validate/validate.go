// Package validate checks a world database before it is imported or served:
// broken references and chains, dbref properties that point at nothing,
// and programs whose source no longer compiles. Some findings carry a fix.
package validate

import (
	"fmt"
	"sort"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// Category classifies the type of finding.
type Category int

const (
	CatIntegrityError Category = iota // Broken references
	CatIntegrityWarn                  // Suspicious references
	CatProps                          // Dangling dbref properties
	CatProgram                        // Programs that fail to compile
)

func (c Category) String() string {
	switch c {
	case CatIntegrityError:
		return "integrity-error"
	case CatIntegrityWarn:
		return "integrity-warning"
	case CatProps:
		return "props"
	case CatProgram:
		return "program"
	default:
		return "unknown"
	}
}

// Severity indicates how serious a finding is.
type Severity int

const (
	SevError   Severity = iota // Must be fixed for correct behavior
	SevWarning                 // Should be reviewed
	SevInfo                    // Informational only
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	case SevInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Finding represents a single validation issue detected in the database.
type Finding struct {
	ID          string       `json:"id"`
	Category    Category     `json:"category"`
	Severity    Severity     `json:"severity"`
	ObjectRef   gamedb.DBRef `json:"object_ref"`
	PropPath    string       `json:"prop_path,omitempty"`
	OwnerRef    gamedb.DBRef `json:"owner_ref,omitempty"`
	Description string       `json:"description"`
	Current     string       `json:"current,omitempty"`
	Fixable     bool         `json:"fixable"`
	Fixed       bool         `json:"fixed"`
	fixFunc     func() // called via ApplyFix
}

// Checker is the interface that each validation check implements.
type Checker interface {
	Name() string
	Check(db *gamedb.Database) []Finding
}

// Option adjusts a Validator.
type Option func(*Validator)

// WithPrograms adds a ProgramChecker that compiles every program whose
// source sources returns.
func WithPrograms(sources SourceFunc) Option {
	return func(v *Validator) {
		v.checkers = append(v.checkers, &ProgramChecker{Sources: sources})
	}
}

// Validator orchestrates running all checkers against a database.
type Validator struct {
	checkers []Checker
	db       *gamedb.Database
	findings []Finding
}

// New creates a Validator with the integrity and property checkers
// registered.
func New(db *gamedb.Database, opts ...Option) *Validator {
	v := &Validator{
		db: db,
		checkers: []Checker{
			&IntegrityChecker{},
			&PropChecker{},
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run executes all checkers and returns findings sorted by dbref.
func (v *Validator) Run() []Finding {
	v.findings = nil
	for _, c := range v.checkers {
		v.findings = append(v.findings, c.Check(v.db)...)
	}
	sort.SliceStable(v.findings, func(i, j int) bool {
		return v.findings[i].ObjectRef < v.findings[j].ObjectRef
	})
	return v.findings
}

// Findings returns the current findings (after Run has been called).
func (v *Validator) Findings() []Finding {
	return v.findings
}

// Errors counts unfixed error-severity findings.
func (v *Validator) Errors() int {
	n := 0
	for _, f := range v.findings {
		if f.Severity == SevError && !f.Fixed {
			n++
		}
	}
	return n
}

// ApplyFix applies a single fix by finding ID. Returns error if not found or not fixable.
func (v *Validator) ApplyFix(id string) error {
	for i := range v.findings {
		if v.findings[i].ID == id {
			if !v.findings[i].Fixable {
				return fmt.Errorf("finding %s is not fixable", id)
			}
			if v.findings[i].Fixed {
				return fmt.Errorf("finding %s is already fixed", id)
			}
			if v.findings[i].fixFunc != nil {
				v.findings[i].fixFunc()
				v.findings[i].Fixed = true
			}
			return nil
		}
	}
	return fmt.Errorf("finding %s not found", id)
}

// ApplyAll applies all fixable findings in the given category. Returns count of fixes applied.
func (v *Validator) ApplyAll(cat Category) int {
	count := 0
	for i := range v.findings {
		f := &v.findings[i]
		if f.Category == cat && f.Fixable && !f.Fixed && f.fixFunc != nil {
			f.fixFunc()
			f.Fixed = true
			count++
		}
	}
	return count
}

// Summary returns counts of findings per category.
func (v *Validator) Summary() map[Category]int {
	m := make(map[Category]int)
	for _, f := range v.findings {
		m[f.Category]++
	}
	return m
}

// SummaryByStatus returns counts of fixed vs unfixed findings per category.
func (v *Validator) SummaryByStatus() map[Category][2]int {
	m := make(map[Category][2]int) // [0]=unfixed, [1]=fixed
	for _, f := range v.findings {
		counts := m[f.Category]
		if f.Fixed {
			counts[1]++
		} else {
			counts[0]++
		}
		m[f.Category] = counts
	}
	return m
}

// sortedRefs returns the database's references in ascending order so
// finding IDs are stable from run to run.
func sortedRefs(db *gamedb.Database) []gamedb.DBRef {
	refs := make([]gamedb.DBRef, 0, len(db.Objects))
	for ref := range db.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// truncate returns at most max characters of s, adding "..." if truncated.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
