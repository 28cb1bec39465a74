package bundlecfg

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testTree() map[string]any {
	return map[string]any{
		"entry": map[string]any{
			"index": []any{"/project/src/index.js"},
			"edit":  []any{"/project/src/edit.js"},
		},
		"output": map[string]any{
			"path":       "dist/build",
			"publicPath": "./build/",
			"filename":   "[name].[id].[hash].js",
		},
		"resolve": map[string]any{
			"extensions": []any{"", ".webpack.js", ".web.js", ".js", ".jsx"},
		},
		"module": map[string]any{
			"loaders": []any{
				map[string]any{
					"test": Pattern{Source: `\.css$`},
					"loader": []any{
						map[string]any{"loader": "extract-text-webpack-plugin/loader", "options": map[string]any{"fallback": "style-loader", "publicPath": "./"}},
						"css-loader",
					},
				},
				map[string]any{
					"test": Pattern{Source: `\.(jpe?g|png|gif|svg)$`, Flags: "i"},
					"loaders": []any{
						"url-loader?limit=8192&name=img/[name].[hash].[ext]",
						"image-webpack-loader?{progressive:true}",
					},
				},
				map[string]any{
					"test":    Pattern{Source: `\.jsx?$`},
					"exclude": Pattern{Source: `(node_modules|lib)`},
					"loader":  "babel-loader",
					"query": map[string]any{
						"presets": []any{"es2015", "react"},
					},
				},
			},
		},
		"externals": map[string]any{
			"react":     "React",
			"baidu-hmt": "window._hmt",
			"lodash":    true,
		},
		"plugins": []any{
			Plugin{Name: PluginExtractText, Args: []any{"[name].[id].[hash].css"}},
			Plugin{Name: "webpack.optimize.CommonsChunkPlugin", Args: []any{map[string]any{"name": "commons"}}},
		},
		"devtool": "source-map",
	}
}

func TestDecode(t *testing.T) {
	as := require.New(t)

	cfg, err := Decode(testTree(), "/project")
	as.NoError(err)

	as.Equal("/project", cfg.Context)
	as.Equal(EntryMap{
		"index": {"/project/src/index.js"},
		"edit":  {"/project/src/edit.js"},
	}, cfg.Entry)
	as.Equal(Output{
		Path:       filepath.Join("/project", "dist", "build"),
		PublicPath: "./build/",
		Filename:   "[name].[id].[hash].js",
	}, cfg.Output)
	as.Equal([]string{"", ".webpack.js", ".web.js", ".js", ".jsx"}, cfg.Resolve.Extensions)

	as.Len(cfg.Module.Rules, 3)

	css := cfg.Module.Rules[0]
	as.Equal([]Loader{
		{Name: ExtractLoaderName, Options: map[string]any{"fallback": "style-loader", "publicPath": "./"}},
		{Name: "css-loader"},
	}, css.Use)
	as.True(css.Matches("src/app.css"))
	as.False(css.Matches("src/app.scss"))

	images := cfg.Module.Rules[1]
	as.Equal("url-loader", images.Use[0].Name)
	as.Equal(map[string]any{"limit": "8192", "name": "img/[name].[hash].[ext]"}, images.Use[0].Options)
	as.Equal("{progressive:true}", images.Use[1].Query)
	as.True(images.Matches("LOGO.PNG"))

	babel := cfg.Module.Rules[2]
	as.Equal(map[string]any{"presets": []any{"es2015", "react"}}, babel.Use[0].Options)
	as.True(babel.Matches("/project/src/index.jsx"))
	as.False(babel.Matches("/project/node_modules/react/index.js"))
	as.True(babel.HasLoader("babel-loader"))

	as.Equal(map[string]string{"react": "React", "baidu-hmt": "window._hmt", "lodash": "lodash"}, cfg.Externals)
	as.Equal([]string{"baidu-hmt", "lodash", "react"}, cfg.ExternalNames())

	styles, ok := cfg.StylesFilename()
	as.True(ok)
	as.Equal("[name].[id].[hash].css", styles)

	as.Equal(map[string]any{"devtool": "source-map"}, cfg.Extra)
	as.NoError(cfg.Validate())
}

func TestDecodeErrors(t *testing.T) {
	as := require.New(t)

	cases := map[string]struct {
		tree map[string]any
		path string
	}{
		"missing entry":   {map[string]any{}, "entry"},
		"bad mode":        {map[string]any{"entry": "a.js", "mode": "fast"}, "mode"},
		"bad output":      {map[string]any{"entry": "a.js", "output": "dist"}, "output"},
		"bad filename":    {map[string]any{"entry": "a.js", "output": map[string]any{"filename": 1.5}}, "output.filename"},
		"bad extensions":  {map[string]any{"entry": "a.js", "resolve": map[string]any{"extensions": []any{".js", 3.0}}}, "resolve.extensions[1]"},
		"bad rules":       {map[string]any{"entry": "a.js", "module": map[string]any{"rules": "css"}}, "module.rules"},
		"rule no loaders": {map[string]any{"entry": "a.js", "module": map[string]any{"rules": []any{map[string]any{"test": ".css"}}}}, "module.rules[0]"},
		"bad test":        {map[string]any{"entry": "a.js", "module": map[string]any{"rules": []any{map[string]any{"test": 1.0, "use": "css-loader"}}}}, "module.rules[0].test"},
		"bad external":    {map[string]any{"entry": "a.js", "externals": map[string]any{"react": 1.0}}, "externals.react"},
		"bad plugin":      {map[string]any{"entry": "a.js", "plugins": []any{1.0}}, "plugins[0]"},
		"bad devServer":   {map[string]any{"entry": "a.js", "devServer": true}, "devServer"},
	}

	for name, c := range cases {
		_, err := Decode(c.tree, "/project")
		var cfgErr *ConfigurationError
		as.True(errors.As(err, &cfgErr), name)
		as.Equal(c.path, cfgErr.Path, name)
	}

	_, err := Decode(nil, "/project")
	as.ErrorIs(err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	as := require.New(t)

	cfg, err := Decode(map[string]any{
		"entry":  map[string]any{"a": "a.js", "b": "b.js"},
		"output": map[string]any{"filename": "bundle.js"},
	}, "/project")
	as.NoError(err)

	err = cfg.Validate()
	var cfgErr *ConfigurationError
	as.True(errors.As(err, &cfgErr))
	as.Equal("output.filename", cfgErr.Path)

	cfg.Output.Filename = "[name].[chunkhash:8].js"
	as.NoError(cfg.Validate())

	cfg.Entry["a"] = []string{"babel-polyfill", " "}
	err = cfg.Validate()
	as.True(errors.As(err, &cfgErr))
	as.Equal("entry.a[1]", cfgErr.Path)

	cfg.Entry["a"] = []string{"a.js"}
	cfg.Module.Rules = []Rule{{Test: []Pattern{{Source: "(unclosed"}}, Use: []Loader{{Name: "css-loader"}}}}
	err = cfg.Validate()
	as.True(errors.As(err, &cfgErr))
	as.Equal("module.rules[0].test[0]", cfgErr.Path)

	cfg.Module.Rules = []Rule{{Test: []Pattern{{Source: `^(?!.*\.spec\.js$).*\.js$`}}, Use: []Loader{{Name: "babel-loader"}}}}
	as.NoError(cfg.Validate())

	cfg.Module.Rules = nil
	cfg.Output.Path = "relative"
	err = cfg.Validate()
	as.True(errors.As(err, &cfgErr))
	as.Equal("output.path", cfgErr.Path)
}

func TestWithBootstrap(t *testing.T) {
	as := require.New(t)

	cfg, err := Decode(testTree(), "/project")
	as.NoError(err)

	normalized, err := cfg.WithBootstrap("babel-polyfill")
	as.NoError(err)
	as.Equal([]string{"babel-polyfill", "/project/src/index.js"}, normalized.Entry["index"])
	as.Equal([]string{"/project/src/index.js"}, cfg.Entry["index"])

	_, err = cfg.WithBootstrap("")
	as.ErrorIs(err, ErrEmptyBootstrap)
}

func TestTreeRoundTrip(t *testing.T) {
	as := require.New(t)

	cfg, err := Decode(testTree(), "/project")
	as.NoError(err)

	tree := cfg.Tree()
	as.Equal("source-map", tree["devtool"])
	as.Equal(map[string]any{
		"index": []any{"/project/src/index.js"},
		"edit":  []any{"/project/src/edit.js"},
	}, tree["entry"])

	again, err := Decode(tree, "/elsewhere")
	as.NoError(err)
	as.Equal(cfg.Context, again.Context)
	as.Equal(cfg.Entry, again.Entry)
	as.Equal(cfg.Output, again.Output)
	as.Equal(cfg.Externals, again.Externals)
	as.Equal(cfg.Plugins, again.Plugins)
	as.Len(again.Module.Rules, len(cfg.Module.Rules))
	for i := range cfg.Module.Rules {
		as.Equal(cfg.Module.Rules[i].Use, again.Module.Rules[i].Use)
		as.Equal(cfg.Module.Rules[i].Test, again.Module.Rules[i].Test)
	}
}

func TestParsePattern(t *testing.T) {
	as := require.New(t)

	p := ParsePattern(`/\.scss$/i`)
	as.Equal(Pattern{Source: `\.scss$`, Flags: "i"}, p)
	as.True(p.MatchString("THEME.SCSS"))
	as.Equal(`/\.scss$/i`, p.String())

	p = ParsePattern("/project/src")
	as.True(p.Prefix)
	as.True(p.MatchString("/project/src/index.js"))
	as.False(p.MatchString("/other/project/src/index.js"))

	p = ParsePattern("/project/(src)")
	as.True(p.MatchString("/project/(src)/a.js"))
}

func TestPatternJavaScriptSyntax(t *testing.T) {
	as := require.New(t)

	lookahead := ParsePattern(`/^(?!.*\.spec\.js$).*\.js$/`)
	_, err := lookahead.Compile()
	as.NoError(err)
	as.True(lookahead.MatchString("src/index.js"))
	as.False(lookahead.MatchString("src/index.spec.js"))

	lookbehind := Pattern{Source: `(?<!\.min)\.js$`}
	as.True(lookbehind.MatchString("app.js"))
	as.False(lookbehind.MatchString("app.min.js"))

	backref := Pattern{Source: `(['"])x\1`}
	as.True(backref.MatchString(`'x'`))
	as.False(backref.MatchString(`'x"`))

	dotAll := Pattern{Source: `a.b`, Flags: "s"}
	as.True(dotAll.MatchString("a\nb"))
	as.False(Pattern{Source: `a.b`}.MatchString("a\nb"))
}

func TestParseLoaderString(t *testing.T) {
	as := require.New(t)

	as.Equal([]Loader{
		{Name: "style-loader"},
		{Name: "css-loader", Options: map[string]any{"modules": "true"}},
	}, ParseLoaderString("style-loader!css-loader?modules=true"))
}

func TestRuleLoaderOptions(t *testing.T) {
	as := require.New(t)

	r, err := parseRule("module.rules[0]", map[string]any{
		"test":    Pattern{Source: `\.css$`},
		"loader":  "style-loader!css-loader",
		"options": map[string]any{"modules": true},
	})
	as.NoError(err)
	as.Equal([]Loader{
		{Name: "style-loader"},
		{Name: "css-loader", Options: map[string]any{"modules": true}},
	}, r.Use)

	r, err = parseRule("module.rules[0]", map[string]any{
		"test":   Pattern{Source: `\.png$`},
		"loader": "url-loader?name=[name].[ext]",
		"query":  map[string]any{"limit": int64(8192)},
	})
	as.NoError(err)
	as.Equal([]Loader{
		{Name: "url-loader", Options: map[string]any{"name": "[name].[ext]", "limit": int64(8192)}},
	}, r.Use)

	_, err = parseRule("module.rules[0]", map[string]any{
		"loader":  "babel-loader",
		"options": []any{"presets"},
	})
	var cfgErr *ConfigurationError
	as.True(errors.As(err, &cfgErr))
	as.Equal("module.rules[0].options", cfgErr.Path)
}
