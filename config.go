package bundlecfg

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const DefaultOutputFilename = "[name].js"

var (
	validModes      = map[string]bool{"": true, "production": true, "development": true, "none": true}
	perBundleNameRe = regexp.MustCompile(`\[(name|id|hash|chunkhash|contenthash)(:\d+)?\]`)
	topLevelKeys    = map[string]bool{
		"context": true, "mode": true, "entry": true, "output": true, "resolve": true,
		"module": true, "externals": true, "plugins": true, "devServer": true,
	}
)

// Config is the typed form of a bundler configuration object.
type Config struct {
	Context   string            `json:"context" yaml:"context"`
	Mode      string            `json:"mode,omitempty" yaml:"mode,omitempty"`
	Entry     EntryMap          `json:"entry" yaml:"entry"`
	Output    Output            `json:"output" yaml:"output"`
	Resolve   Resolve           `json:"resolve,omitempty" yaml:"resolve,omitempty"`
	Module    Module            `json:"module,omitempty" yaml:"module,omitempty"`
	Externals map[string]string `json:"externals,omitempty" yaml:"externals,omitempty"`
	Plugins   []Plugin          `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	DevServer map[string]any    `json:"devServer,omitempty" yaml:"devServer,omitempty"`
	// Extra holds top-level keys that are passed to the bundler untouched.
	Extra map[string]any `json:"-" yaml:"-"`
}

type Output struct {
	Path       string `json:"path" yaml:"path"`
	PublicPath string `json:"publicPath,omitempty" yaml:"publicPath,omitempty"`
	Filename   string `json:"filename" yaml:"filename"`
}

type Resolve struct {
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

type Module struct {
	Rules []Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// ValidMode reports whether mode is a recognized configuration mode. The
// empty mode leaves the bundler default in place.
func ValidMode(mode string) bool {
	return validModes[mode]
}

// Decode builds a Config from a generic value tree, as produced by the script
// runtime or by YAML, JSON and HCL decoders. dir is the directory the
// configuration was loaded from; relative paths are resolved against it
// unless the tree carries its own "context".
func Decode(raw map[string]any, dir string) (*Config, error) {
	if raw == nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: configuration is empty", ErrInvalidConfig)}
	}

	cfg := &Config{}

	ctxDir, err := optionalString("context", raw["context"])
	if err != nil {
		return nil, err
	}
	if ctxDir == "" {
		ctxDir = dir
	}
	if ctxDir != "" && !filepath.IsAbs(ctxDir) {
		if ctxDir, err = filepath.Abs(ctxDir); err != nil {
			return nil, fmt.Errorf("resolving context: %w", err)
		}
	}
	cfg.Context = ctxDir

	if cfg.Mode, err = optionalString("mode", raw["mode"]); err != nil {
		return nil, err
	}
	if !validModes[cfg.Mode] {
		return nil, configErrorf("mode", "unknown mode %q", cfg.Mode)
	}

	if cfg.Entry, err = ParseEntryMap(raw["entry"]); err != nil {
		return nil, err
	}
	if cfg.Output, err = decodeOutput(raw["output"], cfg.Context); err != nil {
		return nil, err
	}
	if cfg.Resolve, err = decodeResolve(raw["resolve"]); err != nil {
		return nil, err
	}
	if cfg.Module, err = decodeModule(raw["module"]); err != nil {
		return nil, err
	}
	if cfg.Externals, err = decodeExternals(raw["externals"]); err != nil {
		return nil, err
	}
	if cfg.Plugins, err = decodePlugins(raw["plugins"]); err != nil {
		return nil, err
	}
	if ds := raw["devServer"]; ds != nil {
		m, ok := ds.(map[string]any)
		if !ok {
			return nil, configErrorf("devServer", "expected an object, got %s", describe(ds))
		}
		cfg.DevServer = m
	}

	for k, v := range raw {
		if topLevelKeys[k] {
			continue
		}
		if cfg.Extra == nil {
			cfg.Extra = make(map[string]any)
		}
		cfg.Extra[k] = v
	}

	return cfg, nil
}

// WithBootstrap returns a copy of the configuration whose entries all start
// with the bootstrap module.
func (c *Config) WithBootstrap(bootstrap string) (*Config, error) {
	entries, err := c.Entry.WithBootstrap(bootstrap)
	if err != nil {
		return nil, err
	}
	out := *c
	out.Entry = entries
	return &out, nil
}

// Validate checks the invariants the bundler relies on.
func (c *Config) Validate() error {
	if len(c.Entry) == 0 {
		return &ConfigurationError{Path: "entry", Err: fmt.Errorf("%w: no entry bundles declared", ErrMissingEntry)}
	}
	for _, name := range c.Entry.Names() {
		if name == "" {
			return configErrorf("entry", "bundle name cannot be empty")
		}
		if len(c.Entry[name]) == 0 {
			return configErrorf(joinPath("entry", name), "bundle has no modules")
		}
		for i, module := range c.Entry[name] {
			if strings.TrimSpace(module) == "" {
				return configErrorf(indexPath(joinPath("entry", name), i), "module reference cannot be empty")
			}
		}
	}
	if c.Output.Path == "" || !filepath.IsAbs(c.Output.Path) {
		return configErrorf("output.path", "must be an absolute directory, got %q", c.Output.Path)
	}
	if len(c.Entry) > 1 && !perBundleNameRe.MatchString(c.Output.Filename) {
		return configErrorf("output.filename", "%q emits every bundle to the same file; use [name], [id] or a hash placeholder", c.Output.Filename)
	}
	for i, r := range c.Module.Rules {
		path := indexPath("module.rules", i)
		for field, patterns := range map[string][]Pattern{"test": r.Test, "include": r.Include, "exclude": r.Exclude} {
			for j, p := range patterns {
				if _, err := p.Compile(); err != nil {
					return &ConfigurationError{Path: indexPath(joinPath(path, field), j), Err: err}
				}
			}
		}
	}
	return nil
}

// ExternalNames returns the externals keys in sorted order.
func (c *Config) ExternalNames() []string {
	names := make([]string, 0, len(c.Externals))
	for name := range c.Externals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tree returns the configuration as a generic value tree, the inverse of
// Decode. Extra keys are merged back at the top level.
func (c *Config) Tree() map[string]any {
	out := make(map[string]any, len(c.Extra)+9)
	for k, v := range c.Extra {
		out[k] = v
	}
	out["context"] = c.Context
	if c.Mode != "" {
		out["mode"] = c.Mode
	}

	entry := make(map[string]any, len(c.Entry))
	for name, modules := range c.Entry {
		entry[name] = stringsToAny(modules)
	}
	out["entry"] = entry

	output := map[string]any{"path": c.Output.Path, "filename": c.Output.Filename}
	if c.Output.PublicPath != "" {
		output["publicPath"] = c.Output.PublicPath
	}
	out["output"] = output

	if len(c.Resolve.Extensions) > 0 {
		out["resolve"] = map[string]any{"extensions": stringsToAny(c.Resolve.Extensions)}
	}

	if len(c.Module.Rules) > 0 {
		rules := make([]any, 0, len(c.Module.Rules))
		for _, r := range c.Module.Rules {
			rules = append(rules, r.tree())
		}
		out["module"] = map[string]any{"rules": rules}
	}

	if len(c.Externals) > 0 {
		ext := make(map[string]any, len(c.Externals))
		for k, v := range c.Externals {
			ext[k] = v
		}
		out["externals"] = ext
	}

	if len(c.Plugins) > 0 {
		plugins := make([]any, 0, len(c.Plugins))
		for _, p := range c.Plugins {
			plugin := map[string]any{"name": p.Name}
			if len(p.Args) > 0 {
				plugin["args"] = p.Args
			}
			plugins = append(plugins, plugin)
		}
		out["plugins"] = plugins
	}

	if c.DevServer != nil {
		out["devServer"] = c.DevServer
	}
	return out
}

func (r Rule) tree() map[string]any {
	out := map[string]any{}
	for field, patterns := range map[string][]Pattern{"test": r.Test, "include": r.Include, "exclude": r.Exclude} {
		if len(patterns) == 0 {
			continue
		}
		list := make([]any, 0, len(patterns))
		for _, p := range patterns {
			list = append(list, p.String())
		}
		out[field] = list
	}
	use := make([]any, 0, len(r.Use))
	for _, l := range r.Use {
		loader := map[string]any{"loader": l.Name}
		if len(l.Options) > 0 {
			loader["options"] = l.Options
		}
		if l.Query != "" {
			loader["loader"] = l.Name + "?" + l.Query
		}
		use = append(use, loader)
	}
	out["use"] = use
	return out
}

func decodeOutput(raw any, dir string) (Output, error) {
	out := Output{Filename: DefaultOutputFilename}
	if raw == nil {
		out.Path = filepath.Join(dir, "dist")
		return out, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Output{}, configErrorf("output", "expected an object, got %s", describe(raw))
	}

	var err error
	if out.Path, err = optionalString("output.path", m["path"]); err != nil {
		return Output{}, err
	}
	if out.Path == "" {
		out.Path = filepath.Join(dir, "dist")
	} else if !filepath.IsAbs(out.Path) {
		out.Path = filepath.Join(dir, out.Path)
	}
	if out.PublicPath, err = optionalString("output.publicPath", m["publicPath"]); err != nil {
		return Output{}, err
	}
	filename, err := optionalString("output.filename", m["filename"])
	if err != nil {
		return Output{}, err
	}
	if filename != "" {
		out.Filename = filename
	}
	return out, nil
}

func decodeResolve(raw any) (Resolve, error) {
	if raw == nil {
		return Resolve{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Resolve{}, configErrorf("resolve", "expected an object, got %s", describe(raw))
	}
	exts, err := optionalStrings("resolve.extensions", m["extensions"])
	if err != nil {
		return Resolve{}, err
	}
	return Resolve{Extensions: exts}, nil
}

func decodeModule(raw any) (Module, error) {
	if raw == nil {
		return Module{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Module{}, configErrorf("module", "expected an object, got %s", describe(raw))
	}

	var mod Module
	for _, key := range []string{"rules", "loaders"} {
		path := joinPath("module", key)
		v := m[key]
		if v == nil {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return Module{}, configErrorf(path, "expected an array, got %s", describe(v))
		}
		for i, item := range list {
			r, err := parseRule(indexPath(path, i), item)
			if err != nil {
				return Module{}, err
			}
			mod.Rules = append(mod.Rules, r)
		}
	}
	return mod, nil
}

func decodeExternals(raw any) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, configErrorf("externals", "expected an object, got %s", describe(raw))
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch g := v.(type) {
		case string:
			out[k] = g
		case bool:
			// `name: true` keeps the import name as the global name
			if g {
				out[k] = k
			}
		default:
			return nil, configErrorf(joinPath("externals", k), "expected a global name, got %s", describe(v))
		}
	}
	return out, nil
}

func decodePlugins(raw any) ([]Plugin, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, configErrorf("plugins", "expected an array, got %s", describe(raw))
	}
	out := make([]Plugin, 0, len(list))
	for i, item := range list {
		p, err := parsePlugin(indexPath("plugins", i), item)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func optionalString(path string, raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", configErrorf(path, "expected a string, got %s", describe(raw))
	}
}

func optionalStrings(path string, raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, configErrorf(indexPath(path, i), "expected a string, got %s", describe(item))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, configErrorf(path, "expected an array of strings, got %s", describe(raw))
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
