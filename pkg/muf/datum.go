package muf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
)

// DatumType tags the runtime shape of a Datum.
type DatumType int

const (
	TypeString DatumType = iota
	TypeInteger
	TypeFloat
	TypeDbRef
	TypeArray
	TypeMarker
	TypeVariable
	TypeLock
	TypePrimitive
	TypeUnknown
)

// Pseudo-types accepted by Params.Expect; no Datum ever carries them.
const (
	TypeAny    DatumType = -1 // any kind
	TypeNumber DatumType = -2 // Integer or Float
)

func (t DatumType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeInteger:
		return "Integer"
	case TypeFloat:
		return "Float"
	case TypeDbRef:
		return "DbRef"
	case TypeArray:
		return "Array"
	case TypeMarker:
		return "Marker"
	case TypeVariable:
		return "Variable"
	case TypeLock:
		return "Lock"
	case TypePrimitive:
		return "Primitive"
	case TypeUnknown:
		return "Unknown"
	case TypeAny:
		return "Any"
	case TypeNumber:
		return "Number"
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// SourcePos records where a Datum came from, for diagnostics.
type SourcePos struct {
	Line     int    // 1-based line in the preprocessed text
	Column   int    // 1-based column
	Word     string // enclosing word name
	WordLine int    // 1-based line counted from the word's ':' line
}

func (p SourcePos) String() string {
	if p.Word == "" {
		return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
	}
	return fmt.Sprintf("line %d, column %d (word %s, line %d)", p.Line, p.Column, p.Word, p.WordLine)
}

// ArrayItem is one element of an Array. Keyed items behave like dictionary
// entries; unkeyed items are addressed by position.
type ArrayItem struct {
	Key   string
	Keyed bool
	Value Datum
}

// Datum is one stack or instruction-stream value. Only the fields matching
// Type are meaningful: Str for String, Lock, Variable, Primitive and Unknown
// (the name or raw token), Int, Float, Ref, and Items for Array.
type Datum struct {
	Type  DatumType
	Str   string
	Int   int64
	Float float64
	Ref   gamedb.DBRef
	Items []ArrayItem
	Pos   *SourcePos
}

func StringDatum(s string) Datum { return Datum{Type: TypeString, Str: s} }
func IntDatum(n int64) Datum { return Datum{Type: TypeInteger, Int: n} }
func FloatDatum(f float64) Datum { return Datum{Type: TypeFloat, Float: f} }
func RefDatum(r gamedb.DBRef) Datum { return Datum{Type: TypeDbRef, Ref: r} }
func ArrayDatum(items []ArrayItem) Datum { return Datum{Type: TypeArray, Items: items} }
func MarkerDatum() Datum { return Datum{Type: TypeMarker} }
func VarDatum(name string) Datum { return Datum{Type: TypeVariable, Str: name} }
func LockDatum(expr string) Datum { return Datum{Type: TypeLock, Str: expr} }
func PrimDatum(name string) Datum { return Datum{Type: TypePrimitive, Str: strings.ToUpper(name)} }
func UnknownDatum(token string) Datum { return Datum{Type: TypeUnknown, Str: token} }
func BoolDatum(b bool) Datum {
	if b {
		return IntDatum(1)
	}
	return IntDatum(0)
}

// ListDatum builds an unkeyed Array from values.
func ListDatum(values ...Datum) Datum {
	items := make([]ArrayItem, len(values))
	for i, v := range values {
		items[i] = ArrayItem{Value: v}
	}
	return ArrayDatum(items)
}

// Truthy applies the MUF truth table: Integer 0, Float 0.0, DbRef #-1 and
// the empty String are false; everything else is true.
func (d Datum) Truthy() bool {
	switch d.Type {
	case TypeInteger:
		return d.Int != 0
	case TypeFloat:
		return d.Float != 0
	case TypeDbRef:
		return d.Ref != gamedb.Nothing
	case TypeString:
		return d.Str != ""
	}
	return true
}

// IsNumber reports whether d is an Integer or a Float.
func (d Datum) IsNumber() bool {
	return d.Type == TypeInteger || d.Type == TypeFloat
}

// AsFloat widens an Integer or Float.
func (d Datum) AsFloat() float64 {
	if d.Type == TypeInteger {
		return float64(d.Int)
	}
	return d.Float
}

// WithPos returns a copy of d carrying pos.
func (d Datum) WithPos(pos *SourcePos) Datum {
	d.Pos = pos
	return d
}

// Equal compares kind and value, ignoring provenance.
func (d Datum) Equal(o Datum) bool {
	if d.Type != o.Type {
		return false
	}
	switch d.Type {
	case TypeInteger:
		return d.Int == o.Int
	case TypeFloat:
		return d.Float == o.Float
	case TypeDbRef:
		return d.Ref == o.Ref
	case TypeMarker:
		return true
	case TypeArray:
		if len(d.Items) != len(o.Items) {
			return false
		}
		for i := range d.Items {
			a, b := d.Items[i], o.Items[i]
			if a.Keyed != b.Keyed || a.Key != b.Key || !a.Value.Equal(b.Value) {
				return false
			}
		}
		return true
	}
	return d.Str == o.Str
}

// Text renders d the way INTOSTR and NOTIFY see it.
func (d Datum) Text() string {
	switch d.Type {
	case TypeString, TypeLock, TypeVariable, TypePrimitive, TypeUnknown:
		return d.Str
	case TypeInteger:
		return strconv.FormatInt(d.Int, 10)
	case TypeFloat:
		return FormatFloat(d.Float)
	case TypeDbRef:
		return d.Ref.String()
	case TypeMarker:
		return "{"
	case TypeArray:
		parts := make([]string, len(d.Items))
		for i, it := range d.Items {
			if it.Keyed {
				parts[i] = it.Key + ":" + it.Value.Text()
			} else {
				parts[i] = it.Value.Text()
			}
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// String is the debugging form: strings quoted, variables and primitives tagged.
func (d Datum) String() string {
	switch d.Type {
	case TypeString:
		return strconv.Quote(d.Str)
	case TypeVariable:
		return "V:" + d.Str
	case TypePrimitive:
		return "P:" + d.Str
	case TypeUnknown:
		return "?:" + d.Str
	case TypeLock:
		return "L:" + d.Str
	case TypeMarker:
		return "<mark>"
	}
	return d.Text()
}

// FormatFloat prints a float so that it always reads back as a Float.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// InferLiteral classifies a bare token as an Integer, Float or DbRef literal.
func InferLiteral(tok string) (Datum, bool) {
	if tok == "" {
		return Datum{}, false
	}
	if tok[0] == '#' {
		n, err := strconv.ParseInt(tok[1:], 10, 64)
		if err != nil {
			return Datum{}, false
		}
		return RefDatum(gamedb.DBRef(n)), true
	}
	if isIntToken(tok) {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return Datum{}, false
		}
		return IntDatum(n), true
	}
	if isFloatToken(tok) {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Datum{}, false
		}
		return FloatDatum(f), true
	}
	return Datum{}, false
}

func isIntToken(tok string) bool {
	i := 0
	if tok[0] == '-' || tok[0] == '+' {
		i = 1
	}
	if i == len(tok) {
		return false
	}
	for ; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}

// isFloatToken accepts decimal forms like 1.5, -.5, 2e10 and 3.0E-2 but not inf or nan.
func isFloatToken(tok string) bool {
	digits, dot, exp := false, false, false
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' && !dot && !exp:
			dot = true
		case (c == 'e' || c == 'E') && digits && !exp:
			exp = true
			if i+1 < len(tok) && (tok[i+1] == '-' || tok[i+1] == '+') {
				i++
			}
		case (c == '-' || c == '+') && i == 0:
		default:
			return false
		}
	}
	return digits && (dot || exp)
}
