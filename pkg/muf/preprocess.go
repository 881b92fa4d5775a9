package muf

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// builtinMacros are defined before every preprocessing pass.
var builtinMacros = map[string]string{
	"PREEMPT":    "0 setmode",
	"FOREGROUND": "1 setmode",
	"BACKGROUND": "2 setmode",
	"PR_MODE":    "0",
	"FG_MODE":    "1",
	"BG_MODE":    "2",
	"__VERSION":  "Muf1",
}

// PreprocessResult is the outcome of one preprocessing pass.
type PreprocessResult struct {
	Success         bool
	Text            string
	PublicFunctions []string
	Reason          string
	// Warnings are non-fatal problems, such as conditionals left open at
	// end of input.
	Warnings []string
}

// Preprocessor expands directives and macros in MUF source.
type Preprocessor struct {
	world World
	// EchoWarnings sends warnings to the actor as well as logging them.
	EchoWarnings bool
}

// NewPreprocessor returns a preprocessor whose side effects go to world.
func NewPreprocessor(world World) *Preprocessor {
	return &Preprocessor{world: world, EchoWarnings: true}
}

type region int

const (
	regionContinue region = iota
	regionSkip
	regionSkippedNested // opened inside a skip; its condition is never evaluated
)

type macro struct {
	value    string
	hasValue bool
}

type ppState struct {
	pp      *Preprocessor
	actor   gamedb.DBRef
	program gamedb.DBRef

	macros    map[string]macro
	regions   []region
	inComment bool
	out       []string
	public    []string
	warnings  []string
}

// Preprocess runs one pass over source on behalf of actor. program is the
// object that receives persisted pragmas such as $author and $pubdef.
func (pp *Preprocessor) Preprocess(actor, program gamedb.DBRef, source string) PreprocessResult {
	st := &ppState{pp: pp, actor: actor, program: program}
	st.resetMacros()

	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.ReplaceAll(source, "\r", "\n")
	lines := strings.Split(source, "\n")

	for i := 0; i < len(lines); i++ {
		line := st.stripComments(lines[i])
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "$") {
			start := i
			directive, rest := splitDirective(trimmed)
			// Multi-line $define bodies are swallowed whole, even inside skips.
			if directive == "$define" && !containsFold(rest, "$enddef") {
				body := []string{rest}
				j := i + 1
				for ; j < len(lines); j++ {
					next := st.stripComments(lines[j])
					if idx := indexFold(next, "$enddef"); idx >= 0 {
						body = append(body, next[:idx])
						break
					}
					body = append(body, next)
				}
				if j == len(lines) {
					return st.fail("unterminated $define starting on line %d", i+1)
				}
				i = j
				rest = strings.Join(body, " ")
			}
			if r, done := st.directive(directive, rest, start+1); done {
				return r
			}
			// Blank lines keep source line numbers stable for the tokenizer.
			for k := start; k <= i; k++ {
				st.out = append(st.out, "")
			}
			continue
		}

		if st.skipping() {
			st.out = append(st.out, "")
			continue
		}
		st.out = append(st.out, st.substitute(line))
	}

	if n := len(st.regions); n > 0 {
		w := strconv.Itoa(n) + " conditional region(s) left open at end of program"
		st.warn(w)
	}

	return PreprocessResult{
		Success:         true,
		Text:            strings.Join(st.out, "\n"),
		PublicFunctions: st.public,
		Warnings:        st.warnings,
	}
}

func (st *ppState) fail(format string, args ...any) PreprocessResult {
	return PreprocessResult{Reason: fmt.Sprintf(format, args...), Warnings: st.warnings}
}

func (st *ppState) warn(msg string) {
	st.warnings = append(st.warnings, msg)
	log.Printf("muf: preprocess %s: %s", st.program, msg)
	if st.pp.EchoWarnings && st.pp.world != nil {
		st.pp.world.Notify(st.actor, "Warning: "+msg)
	}
}

func (st *ppState) resetMacros() {
	st.macros = make(map[string]macro, len(builtinMacros))
	for k, v := range builtinMacros {
		st.macros[k] = macro{value: v, hasValue: true}
	}
}

func (st *ppState) skipping() bool {
	for _, r := range st.regions {
		if r != regionContinue {
			return true
		}
	}
	return false
}

// directive handles one $-line. done reports that preprocessing must stop
// with the returned result.
func (st *ppState) directive(name, rest string, lineNo int) (PreprocessResult, bool) {
	switch name {
	case "$ifdef", "$ifndef", "$iflib", "$ifnlib":
		if st.skipping() {
			st.regions = append(st.regions, regionSkippedNested)
			return PreprocessResult{}, false
		}
		var ok bool
		switch name {
		case "$ifdef":
			ok = st.isDefined(rest)
		case "$ifndef":
			ok = !st.isDefined(rest)
		case "$iflib":
			ok = st.isLibrary(rest)
		case "$ifnlib":
			ok = !st.isLibrary(rest)
		}
		if ok {
			st.regions = append(st.regions, regionContinue)
		} else {
			st.regions = append(st.regions, regionSkip)
		}
		return PreprocessResult{}, false
	case "$else":
		if len(st.regions) == 0 {
			return st.fail("$else without $ifdef on line %d", lineNo), true
		}
		top := len(st.regions) - 1
		switch st.regions[top] {
		case regionContinue:
			st.regions[top] = regionSkip
		case regionSkip:
			st.regions[top] = regionContinue
		}
		return PreprocessResult{}, false
	case "$endif":
		if len(st.regions) == 0 {
			return st.fail("$endif without $ifdef on line %d", lineNo), true
		}
		st.regions = st.regions[:len(st.regions)-1]
		return PreprocessResult{}, false
	case "$enddef":
		// A stray $enddef closes the innermost conditional, as older sources write it.
		if len(st.regions) == 0 {
			return st.fail("$enddef without $define on line %d", lineNo), true
		}
		st.regions = st.regions[:len(st.regions)-1]
		return PreprocessResult{}, false
	}

	if st.skipping() {
		return PreprocessResult{}, false
	}

	switch name {
	case "$def", "$define":
		mname, body := splitWord(rest)
		if mname == "" {
			return st.fail("%s without a name on line %d", name, lineNo), true
		}
		if idx := indexFold(body, "$enddef"); idx >= 0 {
			body = body[:idx]
		}
		body = strings.TrimSpace(body)
		if body == "" {
			st.macros[strings.ToUpper(mname)] = macro{}
		} else {
			st.macros[strings.ToUpper(mname)] = macro{value: st.substitute(body), hasValue: true}
		}
	case "$undef":
		delete(st.macros, strings.ToUpper(strings.TrimSpace(rest)))
	case "$cleardefs":
		st.resetMacros()
	case "$echo":
		if st.pp.world != nil {
			st.pp.world.Notify(st.actor, unquote(rest))
		}
	case "$abort":
		msg := unquote(rest)
		if msg == "" {
			msg = "$abort on line " + strconv.Itoa(lineNo)
		}
		return PreprocessResult{Reason: msg, Warnings: st.warnings}, true
	case "$include":
		st.include(rest)
	case "$author":
		st.setPragma("_author", rest)
	case "$note":
		st.setPragma("_note", rest)
	case "$version":
		st.setPragma("_version", rest)
	case "$lib-version":
		st.setPragma("_lib-version", rest)
	case "$pubdef":
		mname, body := splitWord(rest)
		if mname == ":" {
			st.clearPragma("_defs")
			break
		}
		if mname == "" {
			return st.fail("$pubdef without a name on line %d", lineNo), true
		}
		st.setPragma("_defs/"+mname, strings.TrimSpace(body))
	case "$libdef":
		mname, _ := splitWord(rest)
		if mname == "" {
			return st.fail("$libdef without a name on line %d", lineNo), true
		}
		st.setPragma("_defs/"+mname, st.program.String()+" "+strconv.Quote(mname)+" call")
		st.public = append(st.public, mname)
	default:
		st.warn("unknown directive " + name + " on line " + strconv.Itoa(lineNo))
	}
	return PreprocessResult{}, false
}

// isDefined evaluates a $ifdef argument: NAME or NAME=VALUE.
func (st *ppState) isDefined(arg string) bool {
	arg = strings.TrimSpace(arg)
	name, want, compare := strings.Cut(arg, "=")
	m, ok := st.macros[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return false
	}
	if !compare {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(m.value), strings.TrimSpace(want))
}

// resolveRef turns "#12", "$lib/name" or "$name" into an object reference.
// Registered names are looked up under #0's _reg/ directory.
func (st *ppState) resolveRef(arg string) (gamedb.DBRef, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" || st.pp.world == nil {
		return gamedb.Nothing, false
	}
	if d, ok := InferLiteral(arg); ok && d.Type == TypeDbRef {
		_, found := st.pp.world.Get(d.Ref)
		return d.Ref, found
	}
	if !strings.HasPrefix(arg, "$") {
		return gamedb.Nothing, false
	}
	v, ok := st.pp.world.GetPropertyPath(0, "_reg/"+arg[1:])
	if !ok {
		return gamedb.Nothing, false
	}
	var ref gamedb.DBRef
	switch v.Kind {
	case gamedb.PropDBRef:
		ref = v.Ref
	case gamedb.PropInteger:
		ref = gamedb.DBRef(v.Int)
	case gamedb.PropString:
		d, ok := InferLiteral(strings.TrimSpace(v.Str))
		if !ok || d.Type != TypeDbRef {
			return gamedb.Nothing, false
		}
		ref = d.Ref
	default:
		return gamedb.Nothing, false
	}
	_, found := st.pp.world.Get(ref)
	return ref, found
}

func (st *ppState) isLibrary(arg string) bool {
	ref, ok := st.resolveRef(arg)
	if !ok {
		return false
	}
	obj, _ := st.pp.world.Get(ref)
	return obj.Type == gamedb.TypeProgram
}

// include imports another object's _defs/ entries as macros.
func (st *ppState) include(arg string) {
	ref, ok := st.resolveRef(arg)
	if !ok {
		st.warn("$include: cannot find " + strings.TrimSpace(arg))
		return
	}
	for _, path := range st.pp.world.PropDir(ref, "_defs") {
		v, ok := st.pp.world.GetPropertyPath(ref, path)
		if !ok {
			continue
		}
		name := path[strings.LastIndexByte(path, '/')+1:]
		st.macros[strings.ToUpper(name)] = macro{value: v.Text(), hasValue: true}
	}
}

func (st *ppState) setPragma(path, value string) {
	if st.pp.world == nil || st.program == gamedb.Nothing {
		return
	}
	if err := st.pp.world.SetPropertyPath(st.program, path, gamedb.StringProp(strings.TrimSpace(value))); err != nil {
		st.warn("cannot set " + path + ": " + err.Error())
	}
}

func (st *ppState) clearPragma(path string) {
	if st.pp.world == nil || st.program == gamedb.Nothing {
		return
	}
	if err := st.pp.world.ClearPropertyPath(st.program, path); err != nil {
		st.warn("cannot clear " + path + ": " + err.Error())
	}
}

// stripComments removes ( ... ) comments outside strings, carrying an open
// comment across lines.
func (st *ppState) stripComments(line string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if st.inComment {
			if c == ')' {
				st.inComment = false
			}
			continue
		}
		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				i++
				b.WriteByte(line[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			b.WriteByte(c)
		case '(':
			st.inComment = true
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// substitute replaces whole-word macro names, leaving string literals alone.
// It also consumes PUBLIC declarations.
func (st *ppState) substitute(line string) string {
	protected, restore := protectStrings(line)

	var b strings.Builder
	words := splitKeepSpace(protected)
	for i := 0; i < len(words); i++ {
		w := words[i]
		if isSpace(w) {
			b.WriteString(w)
			continue
		}
		if strings.EqualFold(w, "public") && i+2 < len(words) {
			st.public = append(st.public, words[i+2])
			i += 2
			continue
		}
		if m, ok := st.macros[strings.ToUpper(w)]; ok {
			b.WriteString(m.value)
			continue
		}
		b.WriteString(w)
	}
	return restore(b.String())
}

// protectStrings swaps every quoted string for a unique placeholder token.
func protectStrings(line string) (string, func(string) string) {
	if !strings.Contains(line, "\"") {
		return line, func(s string) string { return s }
	}
	saved := make(map[string]string)
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		if line[i] != '"' {
			b.WriteByte(line[i])
			continue
		}
		j := i + 1
		for j < len(line) && line[j] != '"' {
			if line[j] == '\\' {
				j++
			}
			j++
		}
		if j >= len(line) {
			j = len(line) - 1
		}
		key := "__str" + strings.ReplaceAll(uuid.NewString(), "-", "") + "__"
		saved[key] = line[i : j+1]
		b.WriteString(key)
		i = j
	}
	return b.String(), func(s string) string {
		for k, v := range saved {
			s = strings.Replace(s, k, v, 1)
		}
		return s
	}
}

// splitKeepSpace splits s into alternating runs of spaces and non-spaces.
func splitKeepSpace(s string) []string {
	var out []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || isSpaceByte(s[i]) != isSpaceByte(s[start]) {
			out = append(out, s[start:i])
			start = i
		}
	}
	return out
}

func isSpaceByte(c byte) bool { return c == ' ' || c == '\t' }

func isSpace(s string) bool { return s != "" && isSpaceByte(s[0]) }

func splitDirective(line string) (string, string) {
	name, rest := splitWord(line)
	return strings.ToLower(name), rest
}

func splitWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func indexFold(s, sub string) int {
	return strings.Index(strings.ToLower(s), sub)
}

func containsFold(s, sub string) bool { return indexFold(s, sub) >= 0 }
