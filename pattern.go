package bundlecfg

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

var regexpLiteral = regexp.MustCompile(`^/(.+)/([dgimsuy]*)$`)

// Pattern is a module condition: either a regular expression written in
// JavaScript syntax or a literal path prefix.
type Pattern struct {
	Source string `json:"source"`
	Flags  string `json:"flags,omitempty"`
	Prefix bool   `json:"prefix,omitempty"`
}

// ParsePattern interprets a string condition. A "/source/flags" literal is a
// regular expression, anything else is a path prefix.
func ParsePattern(s string) Pattern {
	if m := regexpLiteral.FindStringSubmatch(s); m != nil {
		return Pattern{Source: m[1], Flags: m[2]}
	}
	return Pattern{Source: s, Prefix: true}
}

func (p Pattern) String() string {
	if p.Prefix {
		return p.Source
	}
	return "/" + p.Source + "/" + p.Flags
}

// patternMatchTimeout bounds backtracking on a single path.
const patternMatchTimeout = time.Second

// Compile builds a matcher with JavaScript regular expression semantics, so
// lookarounds and backreferences behave as they do in webpack. Flags other
// than i, m, s and u do not change matching of a single path and are ignored.
func (p Pattern) Compile() (*regexp2.Regexp, error) {
	if p.Prefix {
		re, err := regexp2.Compile("^"+regexp2.Escape(p.Source), regexp2.ECMAScript)
		if err != nil {
			return nil, fmt.Errorf("prefix %q: %w", p.Source, err)
		}
		return re, nil
	}
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	for _, f := range p.Flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'u':
			opts |= regexp2.Unicode
		}
	}
	re, err := regexp2.Compile(p.Source, opts)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", p, err)
	}
	re.MatchTimeout = patternMatchTimeout
	return re, nil
}

// MatchString reports whether name satisfies the condition. Patterns that do
// not compile, or time out, never match.
func (p Pattern) MatchString(name string) bool {
	if p.Prefix {
		return strings.HasPrefix(name, p.Source)
	}
	re, err := p.Compile()
	if err != nil {
		return false
	}
	ok, err := re.MatchString(name)
	return err == nil && ok
}

func (p Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p Pattern) MarshalYAML() (any, error) {
	return p.String(), nil
}

func parseCondition(path string, raw any) ([]Pattern, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case Pattern:
		return []Pattern{v}, nil
	case string:
		return []Pattern{ParsePattern(v)}, nil
	case []any:
		out := make([]Pattern, 0, len(v))
		for i, item := range v {
			p, err := parseCondition(indexPath(path, i), item)
			if err != nil {
				return nil, err
			}
			out = append(out, p...)
		}
		return out, nil
	default:
		return nil, configErrorf(path, "expected a regular expression, a string or an array, got %s", describe(raw))
	}
}
