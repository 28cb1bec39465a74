package bundlecfg

import (
	"net/url"
	"strings"
)

// Loader is one step of a rule's transformation chain.
type Loader struct {
	Name    string         `json:"loader" yaml:"loader"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	// Query holds an inline query that is not in key=value form, e.g. the
	// object literal in "image-webpack-loader?{progressive:true}".
	Query string `json:"query,omitempty" yaml:"query,omitempty"`
}

// Rule maps files matching Test (and Include, minus Exclude) to a loader
// chain. Loaders in Use are listed in the order they appear in the
// configuration; the bundler applies them right to left.
type Rule struct {
	Test    []Pattern `json:"test,omitempty" yaml:"test,omitempty"`
	Include []Pattern `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []Pattern `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Use     []Loader  `json:"use" yaml:"use"`
}

// Matches reports whether the rule applies to the given file name.
func (r Rule) Matches(name string) bool {
	if len(r.Test) > 0 && !anyMatch(r.Test, name) {
		return false
	}
	if len(r.Include) > 0 && !anyMatch(r.Include, name) {
		return false
	}
	if anyMatch(r.Exclude, name) {
		return false
	}
	return true
}

// HasLoader reports whether any step of the chain is the named loader.
func (r Rule) HasLoader(name string) bool {
	for _, l := range r.Use {
		if l.Name == name {
			return true
		}
	}
	return false
}

func anyMatch(patterns []Pattern, name string) bool {
	for _, p := range patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// ParseLoaderString parses "a!b?x=1" style loader requests into a chain.
func ParseLoaderString(s string) []Loader {
	var chain []Loader
	for _, part := range strings.Split(s, "!") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chain = append(chain, parseLoaderRequest(part))
	}
	return chain
}

func parseLoaderRequest(s string) Loader {
	name, query, found := strings.Cut(s, "?")
	l := Loader{Name: name}
	if !found || query == "" {
		return l
	}
	if strings.HasPrefix(query, "{") {
		l.Query = query
		return l
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		l.Query = query
		return l
	}
	l.Options = make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			l.Options[k] = v[0]
		} else {
			l.Options[k] = append([]string(nil), v...)
		}
	}
	return l
}

func parseLoaderChain(path string, raw any) ([]Loader, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseLoaderString(v), nil
	case map[string]any:
		name, ok := v["loader"].(string)
		if !ok {
			return nil, configErrorf(joinPath(path, "loader"), "expected a loader name, got %s", describe(v["loader"]))
		}
		chain := ParseLoaderString(name)
		if len(chain) == 0 {
			return nil, configErrorf(joinPath(path, "loader"), "loader name is empty")
		}
		last := &chain[len(chain)-1]
		opts := v["options"]
		if opts == nil {
			opts = v["query"]
		}
		switch o := opts.(type) {
		case nil:
		case map[string]any:
			last.Options = mergeOptions(last.Options, o)
		case string:
			last.Query = o
		default:
			return nil, configErrorf(joinPath(path, "options"), "expected an object, got %s", describe(opts))
		}
		return chain, nil
	case []any:
		var chain []Loader
		for i, item := range v {
			sub, err := parseLoaderChain(indexPath(path, i), item)
			if err != nil {
				return nil, err
			}
			chain = append(chain, sub...)
		}
		return chain, nil
	default:
		return nil, configErrorf(path, "expected a loader string, object or array, got %s", describe(raw))
	}
}

func mergeOptions(base, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func parseRule(path string, raw any) (Rule, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Rule{}, configErrorf(path, "expected an object, got %s", describe(raw))
	}

	var (
		r   Rule
		err error
	)
	if r.Test, err = parseCondition(joinPath(path, "test"), m["test"]); err != nil {
		return Rule{}, err
	}
	if r.Include, err = parseCondition(joinPath(path, "include"), m["include"]); err != nil {
		return Rule{}, err
	}
	if r.Exclude, err = parseCondition(joinPath(path, "exclude"), m["exclude"]); err != nil {
		return Rule{}, err
	}

	for _, key := range []string{"use", "loaders"} {
		chain, err := parseLoaderChain(joinPath(path, key), m[key])
		if err != nil {
			return Rule{}, err
		}
		r.Use = append(r.Use, chain...)
	}

	// options/query next to a bare "loader" key belong to its last loader
	var chain []Loader
	if name, ok := m["loader"].(string); ok && (m["options"] != nil || m["query"] != nil) {
		chain, err = parseLoaderChain(path, map[string]any{
			"loader":  name,
			"options": m["options"],
			"query":   m["query"],
		})
	} else {
		chain, err = parseLoaderChain(joinPath(path, "loader"), m["loader"])
	}
	if err != nil {
		return Rule{}, err
	}
	r.Use = append(r.Use, chain...)

	if len(r.Use) == 0 {
		return Rule{}, configErrorf(path, "rule has no loaders")
	}
	return r, nil
}
