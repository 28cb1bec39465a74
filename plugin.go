package bundlecfg

// Plugin records a plugin instantiation from the configuration. Arguments are
// opaque; only the bundle package interprets a few well known plugins.
type Plugin struct {
	Name string `json:"name" yaml:"name"`
	Args []any  `json:"args,omitempty" yaml:"args,omitempty"`
}

// Well known plugin module names.
const (
	PluginExtractText    = "extract-text-webpack-plugin"
	PluginMiniCSSExtract = "mini-css-extract-plugin"
	PluginHTML           = "html-webpack-plugin"
)

// FindPlugin returns the first plugin with the given name.
func (c *Config) FindPlugin(name string) (Plugin, bool) {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}

// StylesFilename returns the filename template used for extracted
// stylesheets, if a style extraction plugin is configured.
func (c *Config) StylesFilename() (string, bool) {
	if p, ok := c.FindPlugin(PluginExtractText); ok && len(p.Args) > 0 {
		switch a := p.Args[0].(type) {
		case string:
			return a, true
		case map[string]any:
			if s, ok := a["filename"].(string); ok {
				return s, true
			}
		}
	}
	if p, ok := c.FindPlugin(PluginMiniCSSExtract); ok && len(p.Args) > 0 {
		if a, ok := p.Args[0].(map[string]any); ok {
			if s, ok := a["filename"].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func parsePlugin(path string, raw any) (Plugin, error) {
	switch v := raw.(type) {
	case Plugin:
		return v, nil
	case string:
		return Plugin{Name: v}, nil
	case map[string]any:
		name, ok := v["name"].(string)
		if !ok || name == "" {
			return Plugin{}, configErrorf(joinPath(path, "name"), "expected a plugin name, got %s", describe(v["name"]))
		}
		p := Plugin{Name: name}
		switch args := v["args"].(type) {
		case nil:
		case []any:
			p.Args = args
		default:
			p.Args = []any{args}
		}
		return p, nil
	default:
		return Plugin{}, configErrorf(path, "expected a plugin, got %s", describe(raw))
	}
}

// Loader requests inserted by the style extraction plugins.
const (
	ExtractLoaderName = "extract-text-webpack-plugin/loader"
	MiniCSSLoaderName = "mini-css-extract-plugin/loader"
)
