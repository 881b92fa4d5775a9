package gamedb

import (
	"sort"
	"strconv"
	"strings"
)

// PropKind is the closed set of value kinds a property can hold.
type PropKind int

const (
	PropString PropKind = iota
	PropInteger
	PropFloat
	PropDBRef
	PropLock
)

func (k PropKind) String() string {
	switch k {
	case PropString:
		return "string"
	case PropInteger:
		return "integer"
	case PropFloat:
		return "float"
	case PropDBRef:
		return "dbref"
	case PropLock:
		return "lock"
	default:
		return "unknown"
	}
}

// PropValue is one typed property value. Only the field selected by Kind is meaningful;
// Str also carries the lock expression text for PropLock.
type PropValue struct {
	Kind  PropKind
	Str   string
	Int   int64
	Float float64
	Ref   DBRef
}

// StringProp, IntProp, FloatProp, RefProp and LockProp build typed values.
func StringProp(s string) PropValue { return PropValue{Kind: PropString, Str: s} }
func IntProp(n int64) PropValue { return PropValue{Kind: PropInteger, Int: n} }
func FloatProp(f float64) PropValue { return PropValue{Kind: PropFloat, Float: f} }
func RefProp(r DBRef) PropValue { return PropValue{Kind: PropDBRef, Ref: r} }
func LockProp(expr string) PropValue { return PropValue{Kind: PropLock, Str: expr} }

// Text renders the value the way GETPROPSTR shows it.
func (v PropValue) Text() string {
	switch v.Kind {
	case PropString, PropLock:
		return v.Str
	case PropInteger:
		return strconv.FormatInt(v.Int, 10)
	case PropFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case PropDBRef:
		return v.Ref.String()
	}
	return ""
}

// NormalizePath collapses repeated and surrounding slashes: "/a//b/" -> "a/b".
func NormalizePath(path string) string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// GetProp returns the value stored at path.
func (o *Object) GetProp(path string) (PropValue, bool) {
	v, ok := o.Props[NormalizePath(path)]
	return v, ok
}

// SetProp stores a value at path. An empty string value clears the path instead.
func (o *Object) SetProp(path string, v PropValue) {
	path = NormalizePath(path)
	if path == "" {
		return
	}
	if v.Kind == PropString && v.Str == "" {
		delete(o.Props, path)
		return
	}
	if o.Props == nil {
		o.Props = make(map[string]PropValue)
	}
	o.Props[path] = v
}

// ClearProp removes path and every property below it.
func (o *Object) ClearProp(path string) {
	path = NormalizePath(path)
	if path == "" {
		o.Props = make(map[string]PropValue)
		return
	}
	delete(o.Props, path)
	prefix := path + "/"
	for k := range o.Props {
		if strings.HasPrefix(k, prefix) {
			delete(o.Props, k)
		}
	}
}

// PropDir lists the immediate children of dir as full paths, sorted.
// A child that only exists as a directory (has descendants but no value) is included.
func (o *Object) PropDir(dir string) []string {
	dir = NormalizePath(dir)
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := make(map[string]bool)
	for k := range o.Props {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[prefix+rest] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsPropDir returns true if any property lives below path.
func (o *Object) IsPropDir(path string) bool {
	prefix := NormalizePath(path) + "/"
	for k := range o.Props {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// NextProp returns the sibling following path in sorted order, or "" at the end.
// A path ending in "/" names a directory and yields its first child.
func (o *Object) NextProp(path string) string {
	if path == "" || strings.HasSuffix(path, "/") {
		kids := o.PropDir(path)
		if len(kids) == 0 {
			return ""
		}
		return kids[0]
	}
	path = NormalizePath(path)
	parent := ""
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		parent = path[:i]
	}
	kids := o.PropDir(parent)
	i := sort.SearchStrings(kids, path)
	if i < len(kids) && kids[i] == path {
		i++
	}
	if i < len(kids) {
		return kids[i]
	}
	return ""
}
