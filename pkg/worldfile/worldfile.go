// Package worldfile reads and writes YAML world seeds: a list of objects
// with their typed properties and, for programs, their MUF source.
//
// References are written as integers or quoted "#n" strings. YAML treats an
// unquoted # as a comment, so property values that are references must be
// quoted: home: "#0". Property values are typed by their YAML scalar:
//
//	integers        -> integer
//	floats          -> float
//	"#n"            -> dbref
//	"lock:expr"     -> lock
//	"str:text"      -> string "text", used to escape the two forms above
//	anything else   -> string
//
// Nested mappings under props become propdirs: {stats: {str: 12}} sets
// "stats/str".
package worldfile

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"gopkg.in/yaml.v3"
)

// File is one parsed seed file.
type File struct {
	Name    string   `yaml:"name,omitempty"`
	Objects []Object `yaml:"objects"`
}

// Object is the seed form of one database object.
type Object struct {
	Ref        Ref      `yaml:"ref"`
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Owner      *Ref     `yaml:"owner,omitempty"`
	Location   *Ref     `yaml:"location,omitempty"`
	Links      []Ref    `yaml:"links,omitempty"`
	Pennies    int      `yaml:"pennies,omitempty"`
	Flags      []string `yaml:"flags,omitempty"`
	Props      Props    `yaml:"props,omitempty"`
	Source     string   `yaml:"source,omitempty"`
	SourceFile string   `yaml:"source_file,omitempty"`
}

// Ref is a database reference that decodes from 5 or "#5".
type Ref gamedb.DBRef

// DBRef converts r.
func (r Ref) DBRef() gamedb.DBRef { return gamedb.DBRef(r) }

// UnmarshalYAML accepts an integer or a "#n" string.
func (r *Ref) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: reference must be a scalar", node.Line)
	}
	ref, ok := parseRef(node.Value)
	if !ok {
		return fmt.Errorf("line %d: bad reference %q", node.Line, node.Value)
	}
	*r = Ref(ref)
	return nil
}

// MarshalYAML writes the "#n" form.
func (r Ref) MarshalYAML() (interface{}, error) {
	return gamedb.DBRef(r).String(), nil
}

func parseRef(s string) (gamedb.DBRef, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil {
		return gamedb.Nothing, false
	}
	return gamedb.DBRef(n), true
}

// Props maps normalized property paths to typed values.
type Props map[string]gamedb.PropValue

// UnmarshalYAML flattens nested mappings into slash paths and types each scalar.
func (p *Props) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: props must be a mapping", node.Line)
	}
	out := make(Props)
	if err := flattenProps(out, "", node); err != nil {
		return err
	}
	*p = out
	return nil
}

func flattenProps(out Props, prefix string, node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		path := gamedb.NormalizePath(prefix + "/" + key.Value)
		if path == "" {
			return fmt.Errorf("line %d: empty property path", key.Line)
		}
		switch val.Kind {
		case yaml.MappingNode:
			if err := flattenProps(out, path, val); err != nil {
				return err
			}
		case yaml.ScalarNode:
			v, ok, err := scalarProp(val)
			if err != nil {
				return fmt.Errorf("property %s: %w", path, err)
			}
			if ok {
				out[path] = v
			}
		default:
			return fmt.Errorf("line %d: property %s: lists are not property values", val.Line, path)
		}
	}
	return nil
}

// scalarProp types one scalar. Null values report ok=false.
func scalarProp(node *yaml.Node) (gamedb.PropValue, bool, error) {
	switch node.ShortTag() {
	case "!!null":
		return gamedb.PropValue{}, false, nil
	case "!!int":
		n, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return gamedb.PropValue{}, false, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return gamedb.IntProp(n), true, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return gamedb.PropValue{}, false, err
		}
		return gamedb.FloatProp(f), true, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return gamedb.PropValue{}, false, err
		}
		if b {
			return gamedb.IntProp(1), true, nil
		}
		return gamedb.IntProp(0), true, nil
	}
	return stringProp(node.Value), true, nil
}

func stringProp(s string) gamedb.PropValue {
	switch {
	case strings.HasPrefix(s, "str:"):
		return gamedb.StringProp(s[len("str:"):])
	case strings.HasPrefix(s, "lock:"):
		return gamedb.LockProp(s[len("lock:"):])
	case strings.HasPrefix(s, "#"):
		if ref, ok := parseRef(s); ok {
			return gamedb.RefProp(ref)
		}
	}
	return gamedb.StringProp(s)
}

// MarshalYAML writes a flat mapping in path order.
func (p Props) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, path := range sortedKeys(p) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: path},
			propNode(p[path]))
	}
	return node, nil
}

func propNode(v gamedb.PropValue) *yaml.Node {
	switch v.Kind {
	case gamedb.PropInteger:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v.Int, 10)}
	case gamedb.PropFloat:
		var s string
		switch {
		case math.IsNaN(v.Float):
			s = ".nan"
		case math.IsInf(v.Float, 1):
			s = ".inf"
		case math.IsInf(v.Float, -1):
			s = "-.inf"
		default:
			s = strconv.FormatFloat(v.Float, 'g', -1, 64)
			if !strings.ContainsAny(s, ".e") {
				s += ".0"
			}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s}
	case gamedb.PropDBRef:
		return strNode(v.Ref.String())
	case gamedb.PropLock:
		return strNode("lock:" + v.Str)
	}
	s := v.Str
	if stringProp(s) != gamedb.StringProp(s) {
		s = "str:" + s
	}
	return strNode(s)
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// Parse decodes a seed from r. Relative source_file entries are left unresolved.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("worldfile: %w", err)
	}
	return &f, nil
}

// Load reads a seed file and inlines every source_file, resolved against
// the seed's directory.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("worldfile: %w", err)
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range f.Objects {
		obj := &f.Objects[i]
		if obj.SourceFile == "" {
			continue
		}
		if obj.Source != "" {
			return nil, fmt.Errorf("worldfile: %s: %s has both source and source_file", path, obj.Ref.DBRef())
		}
		src := obj.SourceFile
		if !filepath.IsAbs(src) {
			src = filepath.Join(dir, src)
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("worldfile: %s: %w", obj.Ref.DBRef(), err)
		}
		obj.Source = string(data)
		obj.SourceFile = ""
	}
	return f, nil
}
