package muf

import (
	"strings"
)

// Word is one compiled subroutine. It is never mutated after the tokenizer
// builds it.
type Word struct {
	name   string
	line   int
	datums []Datum
}

// NewWord builds a word from datums; used by hosts and tests that assemble
// programs without source.
func NewWord(name string, datums ...Datum) *Word {
	d := make([]Datum, len(datums))
	copy(d, datums)
	return &Word{name: name, datums: d}
}

// Name returns the word's name as written.
func (w *Word) Name() string { return w.name }

// Line is the source line of the word's ':'.
func (w *Word) Line() int { return w.line }

// Len is the number of datums in the body.
func (w *Word) Len() int { return len(w.datums) }

// Datums returns a copy of the body.
func (w *Word) Datums() []Datum {
	out := make([]Datum, len(w.datums))
	copy(out, w.datums)
	return out
}

// TokenizeResult is the outcome of compiling preprocessed text.
type TokenizeResult struct {
	Success       bool
	Words         []*Word
	ProgramLocals []string
	Kind          ErrorKind
	Reason        string
	Pos           *SourcePos
}

// ImplicitWord names the entry word created for sources with no definitions.
const ImplicitWord = "main"

type lexState int

const (
	lexSpace lexState = iota
	lexToken
	lexString
	lexWordName
	lexComment
)

// Tokenizer compiles preprocessed text into Words. It consults the
// registry to tell primitive names from user words and variables.
type Tokenizer struct {
	registry *Registry
}

// NewTokenizer returns a tokenizer that classifies against registry.
func NewTokenizer(registry *Registry) *Tokenizer {
	return &Tokenizer{registry: registry}
}

type tokenizer struct {
	*Tokenizer

	words    []*Word
	names    map[string]bool
	locals   []string
	localSet map[string]bool

	cur       *Word // nil outside a definition
	topLevel  []Datum
	wantLocal bool
	failed    *TokenizeResult
}

// Tokenize compiles text. knownLocals are program-local names declared
// elsewhere, such as by the host.
func (t *Tokenizer) Tokenize(text string, knownLocals []string) TokenizeResult {
	tk := &tokenizer{
		Tokenizer: t,
		names:     make(map[string]bool),
		localSet:  make(map[string]bool),
	}
	for _, n := range knownLocals {
		tk.addLocal(n)
	}

	state := lexSpace
	var buf strings.Builder
	line, col := 1, 0
	startLine, startCol := 1, 1
	escaped := false

	for i := 0; i < len(text) && tk.failed == nil; i++ {
		c := text[i]
		if c == '\n' {
			line++
			col = 0
		} else {
			col++
		}
		space := c == ' ' || c == '\t' || c == '\n' || c == '\r'

		switch state {
		case lexSpace:
			switch {
			case space:
			case c == '"':
				state, startLine, startCol = lexString, line, col
				buf.Reset()
			case c == '(':
				state = lexComment
			case c == ':' && tk.cur == nil:
				state, startLine, startCol = lexWordName, line, col
				buf.Reset()
			default:
				state, startLine, startCol = lexToken, line, col
				buf.Reset()
				buf.WriteByte(c)
			}
		case lexToken:
			if space {
				tk.token(buf.String(), startLine, startCol)
				state = lexSpace
			} else {
				buf.WriteByte(c)
			}
		case lexString:
			switch {
			case escaped:
				buf.WriteByte(unescape(c))
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				tk.emit(StringDatum(buf.String()), startLine, startCol)
				state = lexSpace
			default:
				buf.WriteByte(c)
			}
		case lexWordName:
			if space {
				if buf.Len() > 0 {
					tk.begin(buf.String(), startLine, startCol)
					state = lexSpace
				}
			} else {
				buf.WriteByte(c)
			}
		case lexComment:
			if c == ')' {
				state = lexSpace
			}
		}
	}
	if tk.failed != nil {
		return *tk.failed
	}

	switch state {
	case lexToken:
		tk.token(buf.String(), startLine, startCol)
	case lexString:
		return tk.fail(startLine, startCol, "unterminated string")
	case lexWordName:
		if buf.Len() == 0 {
			return tk.fail(startLine, startCol, "':' without a word name")
		}
		tk.begin(buf.String(), startLine, startCol)
	}
	if tk.failed != nil {
		return *tk.failed
	}
	if tk.cur != nil {
		return tk.fail(tk.cur.line, 1, "word %q is missing its ';'", tk.cur.name)
	}
	if tk.wantLocal {
		return tk.fail(line, col, "lvar without a name")
	}

	if len(tk.topLevel) > 0 {
		if len(tk.words) > 0 {
			return tk.failAt(tk.topLevel[0].Pos, "code outside of a word definition")
		}
		w := &Word{name: ImplicitWord, line: 1}
		for _, d := range tk.topLevel {
			d.Pos.Word = ImplicitWord
			d.Pos.WordLine = d.Pos.Line
			w.datums = append(w.datums, d)
		}
		tk.words = append(tk.words, w)
	}
	if len(tk.words) == 0 {
		return tk.fail(1, 1, "program defines no words")
	}
	return TokenizeResult{Success: true, Words: tk.words, ProgramLocals: tk.locals}
}


func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case '[':
		return 0x1b
	}
	return c
}

func (tk *tokenizer) fail(line, col int, format string, args ...any) TokenizeResult {
	return tk.failAt(&SourcePos{Line: line, Column: col}, format, args...)
}

func (tk *tokenizer) failAt(pos *SourcePos, format string, args ...any) TokenizeResult {
	r := Fail(SyntaxError, format, args...)
	res := TokenizeResult{Kind: r.Kind, Reason: r.Reason, Pos: pos}
	if pos != nil {
		res.Reason += " at " + pos.String()
	}
	tk.failed = &res
	return res
}

func (tk *tokenizer) addLocal(name string) bool {
	k := strings.ToLower(name)
	if tk.localSet[k] {
		return false
	}
	tk.localSet[k] = true
	tk.locals = append(tk.locals, name)
	return true
}

func (tk *tokenizer) begin(name string, line, col int) {
	k := strings.ToLower(name)
	if tk.names[k] {
		tk.fail(line, col, "word %q defined twice", name)
		return
	}
	if tk.registry != nil && tk.registry.Has(name) {
		tk.fail(line, col, "word %q shadows a primitive", name)
		return
	}
	tk.names[k] = true
	tk.cur = &Word{name: name, line: line}
}

// token handles one bare token.
func (tk *tokenizer) token(tok string, line, col int) {
	if tk.wantLocal {
		tk.wantLocal = false
		if !tk.addLocal(tok) {
			tk.fail(line, col, "lvar %q declared twice", tok)
		}
		return
	}
	if tok == ";" {
		if tk.cur == nil {
			tk.fail(line, col, "';' outside of a word definition")
			return
		}
		tk.words = append(tk.words, tk.cur)
		tk.cur = nil
		return
	}
	if tk.cur != nil && strings.HasPrefix(tok, ":") {
		tk.fail(line, col, "%q inside word %q; is its ';' missing?", tok, tk.cur.name)
		return
	}
	if tk.cur == nil && strings.EqualFold(tok, "lvar") {
		tk.wantLocal = true
		return
	}
	if strings.EqualFold(tok, "lvar") {
		tk.fail(line, col, "lvar inside word %q", tk.cur.name)
		return
	}

	if tok == "@" || tok == "!" {
		if prev := tk.last(); prev != nil && (prev.Type == TypeUnknown || prev.Type == TypePrimitive) {
			name := prev.Str
			if prev.Type == TypePrimitive {
				name = strings.ToLower(name)
			}
			*prev = Datum{Type: TypeVariable, Str: name, Pos: prev.Pos}
		}
	}

	switch {
	case tk.registry != nil && tk.registry.Has(tok):
		tk.emit(PrimDatum(tok), line, col)
	default:
		if d, ok := InferLiteral(tok); ok {
			tk.emit(d, line, col)
			return
		}
		tk.emit(UnknownDatum(tok), line, col)
	}
}

func (tk *tokenizer) last() *Datum {
	body := &tk.topLevel
	if tk.cur != nil {
		body = &tk.cur.datums
	}
	if len(*body) == 0 {
		return nil
	}
	return &(*body)[len(*body)-1]
}

func (tk *tokenizer) emit(d Datum, line, col int) {
	pos := &SourcePos{Line: line, Column: col}
	if tk.cur != nil {
		pos.Word = tk.cur.name
		pos.WordLine = line - tk.cur.line + 1
		d.Pos = pos
		tk.cur.datums = append(tk.cur.datums, d)
		return
	}
	d.Pos = pos
	tk.topLevel = append(tk.topLevel, d)
}
