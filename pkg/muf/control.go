package muf

import "strings"

// element is one kind of control-flow marker.
type element int

const (
	elemIf              element = iota // running the IF branch
	elemElse                           // running the ELSE branch
	elemInIfAndSkip                    // skipping the IF branch; ELSE resumes
	elemInElseAndSkip                  // IF branch ran; skipping to THEN
	elemSkippedBranch                  // IF met while skipping
	elemLoop                           // BEGIN
	elemSkipToLoopEnd                  // WHILE failed or BREAK; skip to UNTIL/REPEAT
	elemSkippedLoop                    // BEGIN met while skipping
)

func (el element) opener() string {
	switch el {
	case elemLoop, elemSkipToLoopEnd, elemSkippedLoop:
		return "BEGIN"
	}
	return "IF"
}

func (el element) skips() bool {
	switch el {
	case elemInIfAndSkip, elemInElseAndSkip, elemSkippedBranch, elemSkipToLoopEnd, elemSkippedLoop:
		return true
	}
	return false
}

// marker is one entry on a word's control-flow stack. index is the
// position of the BEGIN for loop markers.
type marker struct {
	element element
	index   int
}

var keywords = map[string]bool{
	"IF": true, "ELSE": true, "THEN": true,
	"BEGIN": true, "WHILE": true, "UNTIL": true, "REPEAT": true,
	"BREAK": true, "CONTINUE": true, "EXIT": true,
	"VAR": true, "VAR!": true,
}

func isKeyword(kw string) bool { return keywords[kw] }

func (f *frame) push(el element, index int) {
	f.markers = append(f.markers, marker{element: el, index: index})
}

func (f *frame) top() (marker, bool) {
	if len(f.markers) == 0 {
		return marker{}, false
	}
	return f.markers[len(f.markers)-1], true
}

func (f *frame) pop() {
	f.markers = f.markers[:len(f.markers)-1]
}

func (f *frame) skipping() bool {
	m, ok := f.top()
	return ok && m.element.skips()
}

// innerLoop returns the index in f.markers of the nearest enclosing BEGIN.
func (f *frame) innerLoop() int {
	for i := len(f.markers) - 1; i >= 0; i-- {
		if f.markers[i].element == elemLoop {
			return i
		}
	}
	return -1
}

// endLoop pops markers down to and including the innermost BEGIN.
func (f *frame) endLoop() {
	if li := f.innerLoop(); li >= 0 {
		f.markers = f.markers[:li]
	}
}

// skip consumes d without evaluating it, keeping IF and BEGIN nesting balanced.
func (f *frame) skip(d Datum) Result {
	if d.Type != TypeUnknown {
		return Success()
	}
	m, _ := f.top()
	switch strings.ToUpper(d.Str) {
	case "IF":
		f.push(elemSkippedBranch, 0)
	case "BEGIN":
		f.push(elemSkippedLoop, 0)
	case "ELSE":
		if m.element == elemInIfAndSkip {
			f.markers[len(f.markers)-1].element = elemElse
		}
	case "THEN":
		switch m.element {
		case elemInIfAndSkip, elemInElseAndSkip, elemSkippedBranch:
			f.pop()
		}
	case "UNTIL", "REPEAT":
		switch m.element {
		case elemSkippedLoop:
			f.pop()
		case elemSkipToLoopEnd:
			f.pop()
			f.endLoop()
		default:
			return Fail(SyntaxError, "%s inside an unterminated IF", strings.ToUpper(d.Str))
		}
	}
	return Success()
}

// control executes a structural keyword at index i. It returns the index
// of the last datum consumed, and exit when the word must return.
func (e *Engine) control(f *frame, inv *Invocation, kw string, i int) (next int, exit bool, r Result) {
	st := inv.Stack
	popTruth := func() (bool, Result) {
		if st.Len() < 1 {
			return false, Fail(StackUnderflow, "%s needs a condition on the stack", kw)
		}
		return st.Pop().Truthy(), Success()
	}

	switch kw {
	case "IF":
		ok, r := popTruth()
		if !r.Successful() {
			return i, false, r
		}
		if ok {
			f.push(elemIf, i)
		} else {
			f.push(elemInIfAndSkip, i)
		}
	case "ELSE":
		m, ok := f.top()
		if !ok || m.element != elemIf {
			return i, false, Fail(SyntaxError, "ELSE without IF")
		}
		f.markers[len(f.markers)-1].element = elemInElseAndSkip
	case "THEN":
		m, ok := f.top()
		if !ok || (m.element != elemIf && m.element != elemElse) {
			return i, false, Fail(SyntaxError, "THEN without IF")
		}
		f.pop()
	case "BEGIN":
		f.push(elemLoop, i)
	case "WHILE":
		if f.innerLoop() < 0 {
			return i, false, Fail(SyntaxError, "WHILE outside of a loop")
		}
		ok, r := popTruth()
		if !r.Successful() {
			return i, false, r
		}
		if !ok {
			f.push(elemSkipToLoopEnd, i)
		}
	case "BREAK":
		if f.innerLoop() < 0 {
			return i, false, Fail(SyntaxError, "BREAK outside of a loop")
		}
		f.push(elemSkipToLoopEnd, i)
	case "CONTINUE":
		li := f.innerLoop()
		if li < 0 {
			return i, false, Fail(SyntaxError, "CONTINUE outside of a loop")
		}
		f.markers = f.markers[:li+1]
		return f.markers[li].index, false, Success()
	case "REPEAT":
		m, ok := f.top()
		if !ok || m.element != elemLoop {
			return i, false, Fail(SyntaxError, "REPEAT without BEGIN")
		}
		return m.index, false, Success()
	case "UNTIL":
		m, ok := f.top()
		if !ok || m.element != elemLoop {
			return i, false, Fail(SyntaxError, "UNTIL without BEGIN")
		}
		done, r := popTruth()
		if !r.Successful() {
			return i, false, r
		}
		if !done {
			return m.index, false, Success()
		}
		f.pop()
	case "EXIT":
		return i, true, Success()
	case "VAR", "VAR!":
		return f.declare(inv, kw, i)
	}
	return i, false, Success()
}

// declare handles VAR name and VAR! name, consuming the name datum.
func (f *frame) declare(inv *Invocation, kw string, i int) (int, bool, Result) {
	if i+1 >= len(f.word.datums) {
		return i, false, Fail(SyntaxError, "%s without a name", kw)
	}
	nd := f.word.datums[i+1]
	if nd.Type != TypeUnknown && nd.Type != TypeVariable {
		return i, false, Fail(SyntaxError, "%s: %s is not a valid variable name", kw, nd.Text())
	}
	if isPseudoVar(nd.Str) {
		return i, false, Fail(VariableAlreadyDefined, "variable %q is built in", nd.Str)
	}
	if _, ok := f.vars.Lookup(nd.Str); ok {
		return i, false, Fail(VariableAlreadyDefined, "variable %q already defined", nd.Str)
	}
	value := IntDatum(0)
	if kw == "VAR!" {
		if inv.Stack.Len() < 1 {
			return i, false, Fail(StackUnderflow, "VAR! needs an initial value")
		}
		value = inv.Stack.Pop()
	}
	if r := f.vars.Declare(nd.Str, value, false); !r.Successful() {
		return i, false, r
	}
	return i + 1, false, Success()
}
