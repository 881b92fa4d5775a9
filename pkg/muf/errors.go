package muf

import (
	"fmt"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// ErrorKind classifies a failed Result.
type ErrorKind int

const (
	OK ErrorKind = iota
	StackUnderflow
	TypeMismatch
	InvalidValue
	DivisionByZero
	VariableNotFound
	VariableAlreadyDefined
	VariableIsConstant
	UnknownType
	SyntaxError
	NoSuchObject
	InsufficientPermission
	InternalError
	Interrupted
)

var kindNames = [...]string{
	OK:                     "OK",
	StackUnderflow:         "STACK_UNDERFLOW",
	TypeMismatch:           "TYPE_MISMATCH",
	InvalidValue:           "INVALID_VALUE",
	DivisionByZero:         "DIVISION_BY_ZERO",
	VariableNotFound:       "VARIABLE_NOT_FOUND",
	VariableAlreadyDefined: "VARIABLE_ALREADY_DEFINED",
	VariableIsConstant:     "VARIABLE_IS_CONSTANT",
	UnknownType:            "UNKNOWN_TYPE",
	SyntaxError:            "SYNTAX_ERROR",
	NoSuchObject:           "NO_SUCH_OBJECT",
	InsufficientPermission: "INSUFFICIENT_PERMISSION",
	InternalError:          "INTERNAL_ERROR",
	Interrupted:            "INTERRUPTED",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Result is the uniform envelope returned by primitives and by the engine.
// Kind is OK on success.
type Result struct {
	Kind   ErrorKind
	Reason string
	Value  *Datum // top of stack when a run ends, if any

	// Dirty holds variable writes the engine must copy back to their scopes.
	Dirty map[string]Datum
	// LastListItem is set by primitives that walk Contents/Exits chains.
	LastListItem *gamedb.DBRef

	Pos   *SourcePos
	Steps int
}

// Success returns an empty successful Result.
func Success() Result { return Result{} }

// Fail returns a failed Result of the given kind.
func Fail(kind ErrorKind, format string, args ...any) Result {
	return Result{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Successful reports whether r carries no error.
func (r Result) Successful() bool { return r.Kind == OK }

// WithDirty records a variable write for the engine to apply.
func (r Result) WithDirty(name string, value Datum) Result {
	if r.Dirty == nil {
		r.Dirty = make(map[string]Datum)
	}
	r.Dirty[name] = value
	return r
}

// WithListItem records the last object visited by a chain walk.
func (r Result) WithListItem(ref gamedb.DBRef) Result {
	r.LastListItem = &ref
	return r
}

// Err converts a failed Result into an *Error, or nil on success.
func (r Result) Err() error {
	if r.Successful() {
		return nil
	}
	return &Error{Kind: r.Kind, Reason: r.Reason, Pos: r.Pos}
}

// Error is the error form of a failed Result.
type Error struct {
	Kind   ErrorKind
	Reason string
	Pos    *SourcePos
}

func (e *Error) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("%s: %s at %s", e.Kind, e.Reason, e.Pos)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: Interrupted}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
