package primitives

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// globMatcher is a compiled SMATCH pattern. Negated word sets {^a|b}
// compile to capture groups whose text must not be one of the listed words.
type globMatcher struct {
	re       *regexp.Regexp
	excluded map[int][]string
}

const globCacheLimit = 1024

var (
	globMu    sync.Mutex
	globCache = make(map[string]*globMatcher)
)

// compileGlob turns a MUF smatch pattern into a case-insensitive, anchored
// regexp. ? matches one character, * any run, [..] and [^..] are
// character classes, and {a|b} matches one whole space-delimited word.
func compileGlob(pattern string) (*globMatcher, error) {
	globMu.Lock()
	m, found := globCache[pattern]
	globMu.Unlock()
	if found {
		return m, nil
	}

	var b strings.Builder
	b.WriteString(`(?is)^`)
	excluded := make(map[int][]string)
	group := 0

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			if i+1 < len(pattern) {
				i++
				b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
			} else {
				b.WriteString(`\\`)
			}
		case '?':
			b.WriteString(`.`)
		case '*':
			b.WriteString(`.*`)
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated [ in %q", pattern)
			}
			body := pattern[i+1 : i+1+end]
			b.WriteByte('[')
			if strings.HasPrefix(body, "^") {
				b.WriteByte('^')
				body = body[1:]
			}
			if body == "" {
				return nil, fmt.Errorf("empty character class in %q", pattern)
			}
			for j := 0; j < len(body); j++ {
				if body[j] == '-' && j > 0 && j < len(body)-1 {
					b.WriteByte('-')
				} else {
					b.WriteString(regexp.QuoteMeta(body[j : j+1]))
				}
			}
			b.WriteByte(']')
			i += end + 1
		case '{':
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated { in %q", pattern)
			}
			body := pattern[i+1 : i+1+end]
			negate := strings.HasPrefix(body, "^")
			if negate {
				body = body[1:]
			}
			words := strings.Split(body, "|")
			if i > 0 && pattern[i-1] != ' ' {
				b.WriteString(`(?:^|\s)`)
			}
			if negate {
				group++
				excluded[group] = words
				b.WriteString(`(\S+)`)
			} else {
				quoted := make([]string, len(words))
				for k, w := range words {
					quoted[k] = regexp.QuoteMeta(w)
				}
				b.WriteString(`(?:` + strings.Join(quoted, "|") + `)`)
			}
			i += end + 1
			if i+1 < len(pattern) && pattern[i+1] != ' ' {
				b.WriteString(`(?:\s|$)`)
			}
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
		}
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	m = &globMatcher{re: re, excluded: excluded}

	globMu.Lock()
	if len(globCache) < globCacheLimit {
		globCache[pattern] = m
	}
	globMu.Unlock()
	return m, nil
}

func (m *globMatcher) match(s string) bool {
	groups := m.re.FindStringSubmatch(s)
	if groups == nil {
		return false
	}
	for g, words := range m.excluded {
		for _, w := range words {
			if strings.EqualFold(groups[g], w) {
				return false
			}
		}
	}
	return true
}
