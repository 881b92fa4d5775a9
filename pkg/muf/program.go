package muf

import (
	"strings"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// Program is a compiled MUF program: its words in source order, the
// program-local variables it declares and the words it exports.
type Program struct {
	Ref      gamedb.DBRef
	Locals   []string
	Public   []string
	Warnings []string

	words  []*Word
	byName map[string]*Word
}

// NewProgram assembles a program from already tokenized words.
func NewProgram(ref gamedb.DBRef, words []*Word, locals, public []string) *Program {
	p := &Program{
		Ref:    ref,
		Locals: locals,
		Public: public,
		words:  words,
		byName: make(map[string]*Word, len(words)),
	}
	for _, w := range words {
		p.byName[strings.ToLower(w.name)] = w
	}
	return p
}

// Words returns the words in definition order.
func (p *Program) Words() []*Word {
	out := make([]*Word, len(p.words))
	copy(out, p.words)
	return out
}

// Word finds a word by name, case-insensitively.
func (p *Program) Word(name string) (*Word, bool) {
	w, ok := p.byName[strings.ToLower(name)]
	return w, ok
}

// Entry is the last word defined, which runs when the program is invoked.
func (p *Program) Entry() *Word {
	if len(p.words) == 0 {
		return nil
	}
	return p.words[len(p.words)-1]
}

// IsPublic reports whether name was exported with PUBLIC or $libdef.
func (p *Program) IsPublic(name string) bool {
	for _, n := range p.Public {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Compile preprocesses and tokenizes source for program ref, run on
// behalf of actor. Directive side effects land on ref.
func Compile(pp *Preprocessor, tk *Tokenizer, actor, ref gamedb.DBRef, source string) (*Program, Result) {
	pr := pp.Preprocess(actor, ref, source)
	if !pr.Success {
		return nil, Fail(SyntaxError, "preprocessor: %s", pr.Reason)
	}
	tr := tk.Tokenize(pr.Text, nil)
	if !tr.Success {
		r := Fail(tr.Kind, "%s", tr.Reason)
		r.Pos = tr.Pos
		return nil, r
	}
	prog := NewProgram(ref, tr.Words, tr.ProgramLocals, pr.PublicFunctions)
	prog.Warnings = pr.Warnings
	return prog, Success()
}
