package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.miragespace.co/bundlecfg"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testYAML = `
entry:
  index: ./src/index.js
  edit:
    - ./src/edit.js
output:
  path: dist/build
  filename: "[name].[id].[hash].js"
externals:
  react: React
module:
  rules:
    - test: /\.css$/
      use: [style-loader, css-loader]
devServer:
  port: 9010
`

const testJSON = `{
  "entry": {
    "index": "./src/index.js",
    "edit": ["./src/edit.js"]
  },
  "output": {"path": "dist/build", "filename": "[name].[id].[hash].js"},
  "externals": {"react": "React"},
  "module": {"rules": [{"test": "/\\.css$/", "use": ["style-loader", "css-loader"]}]},
  "devServer": {"port": 9010}
}`

const testHCL = `
entry = {
  index = "./src/index.js"
  edit  = ["./src/edit.js"]
}
output = {
  path     = resolve(dirname, "dist", "build")
  filename = "[name].[id].[hash].js"
}
externals = {
  react = "React"
}
module = {
  rules = [
    { test = "/\\.css$/", use = ["style-loader", "css-loader"] },
  ]
}
devServer = {
  port = 9010
}
`

const testScript = `
const path = require('path');
module.exports = {
  entry: {
    index: './src/index.js',
    edit: ['./src/edit.js'],
  },
  output: {
    path: path.resolve(__dirname, 'dist/build'),
    filename: '[name].[id].[hash].js',
  },
  externals: { react: 'React' },
  module: { rules: [{ test: /\.css$/, use: ['style-loader', 'css-loader'] }] },
  devServer: { port: 9010 },
};
`

func writeConfig(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDetectFormat(t *testing.T) {
	as := require.New(t)

	cases := map[string]Format{
		"webpack.config.js":  FormatScript,
		"webpack.config.cjs": FormatScript,
		"webpack.config.ts":  FormatTypeScript,
		"bundle.YAML":        FormatYAML,
		"bundle.yml":         FormatYAML,
		"bundle.json":        FormatJSON,
		"bundle.hcl":         FormatHCL,
	}
	for name, expected := range cases {
		f, err := DetectFormat(name)
		as.NoError(err, name)
		as.Equal(expected, f, name)
	}

	_, err := DetectFormat("webpack.config.toml")
	as.ErrorIs(err, ErrUnknownFormat)
}

func TestLoadFormatsAgree(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	l, err := New(logger)
	as.NoError(err)

	paths := []string{
		writeConfig(t, dir, "webpack.config.js", testScript),
		writeConfig(t, dir, "bundle.yaml", testYAML),
		writeConfig(t, dir, "bundle.json", testJSON),
		writeConfig(t, dir, "bundle.hcl", testHCL),
	}

	configs, err := l.LoadAll(context.Background(), paths)
	as.NoError(err)
	as.Len(configs, len(paths))

	for i, cfg := range configs {
		as.Equal(bundlecfg.EntryMap{
			"index": {DefaultBootstrap, "./src/index.js"},
			"edit":  {DefaultBootstrap, "./src/edit.js"},
		}, cfg.Entry, paths[i])
		as.Equal(filepath.Join(dir, "dist", "build"), cfg.Output.Path, paths[i])
		as.Equal("[name].[id].[hash].js", cfg.Output.Filename, paths[i])
		as.Equal(map[string]string{"react": "React"}, cfg.Externals, paths[i])
		as.Equal(int64(9010), cfg.DevServer["port"], paths[i])
		as.Len(cfg.Module.Rules, 1, paths[i])
		as.Equal([]bundlecfg.Pattern{{Source: `\.css$`}}, cfg.Module.Rules[0].Test, paths[i])
		as.Equal(dir, cfg.Context, paths[i])
	}
}

func TestLoadOptions(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "bundle.yaml", "entry: ./src/index.js\nmode: development\n")

	l, err := New(logger, WithBootstrap("core-js/stable"), WithMode("production"))
	as.NoError(err)
	cfg, err := l.Load(context.Background(), path)
	as.NoError(err)
	as.Equal("production", cfg.Mode)
	as.Equal([]string{"core-js/stable", "./src/index.js"}, cfg.Entry[bundlecfg.DefaultEntryName])

	l, err = New(logger, WithBootstrap(""))
	as.NoError(err)
	cfg, err = l.Load(context.Background(), path)
	as.NoError(err)
	as.Equal([]string{"./src/index.js"}, cfg.Entry[bundlecfg.DefaultEntryName])

	_, err = New(logger, WithMode("fast"))
	as.ErrorIs(err, bundlecfg.ErrInvalidConfig)

	_, err = New(nil)
	as.Error(err)
}

func TestLoadTypeScript(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	path := writeConfig(t, dir, "webpack.config.ts", `
import * as path from 'path';

type Entries = Record<string, string[]>;

const entry: Entries = { app: ['./src/index.ts'] };

export default {
	entry,
	output: { path: path.resolve(__dirname, 'public') },
	resolve: { extensions: ['.ts', '.js'] },
};
`)

	l, err := New(logger)
	as.NoError(err)
	cfg, err := l.Load(context.Background(), path)
	as.NoError(err)
	as.Equal([]string{DefaultBootstrap, "./src/index.ts"}, cfg.Entry["app"])
	as.Equal(filepath.Join(dir, "public"), cfg.Output.Path)
}

func TestLoadScriptNormalizesOnce(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	path := writeConfig(t, dir, "webpack.config.js", `
const config = { entry: { app: ['./src/index.js'] } };
for (let prop in config.entry) {
	config.entry[prop].unshift('babel-polyfill');
}
module.exports = config;
`)

	l, err := New(logger)
	as.NoError(err)
	cfg, err := l.Load(context.Background(), path)
	as.NoError(err)
	as.Equal([]string{"babel-polyfill", "./src/index.js"}, cfg.Entry["app"])
}

func TestLoadErrors(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	l, err := New(logger)
	as.NoError(err)

	bad := writeConfig(t, dir, "bad.yaml", "entry:\n  app: 42\n")
	_, err = l.Load(context.Background(), bad)
	var cfgErr *bundlecfg.ConfigurationError
	as.True(errors.As(err, &cfgErr))
	as.Equal("entry.app", cfgErr.Path)

	list := writeConfig(t, dir, "list.yaml", "- a\n- b\n")
	_, err = l.Load(context.Background(), list)
	as.ErrorIs(err, bundlecfg.ErrInvalidConfig)

	broken := writeConfig(t, dir, "broken.hcl", "entry = {\n")
	_, err = l.Load(context.Background(), broken)
	as.ErrorContains(err, "parsing configuration")

	_, err = l.Load(context.Background(), filepath.Join(dir, "missing.yaml"))
	as.Error(err)

	good := writeConfig(t, dir, "good.yaml", "entry: ./a.js\n")
	_, err = l.LoadAll(context.Background(), []string{good, bad})
	as.ErrorContains(err, bad)
}

func TestHCLFunctions(t *testing.T) {
	as := require.New(t)

	tree, err := decodeHCL("/project/bundle.hcl", []byte(`
entry = {
  (lower(env.BUNDLE_TARGET)) = join("/", ["./src", "index.js"])
}
mode = mode
flags = [true, 1.5, 3]
`), "development", map[string]string{"BUNDLE_TARGET": "Mobile"})
	as.NoError(err)
	as.Equal(map[string]any{"mobile": "./src/index.js"}, tree["entry"])
	as.Equal("development", tree["mode"])
	as.Equal([]any{true, 1.5, int64(3)}, tree["flags"])
}

func TestLoadSharesEnvironment(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	env := map[string]string{"BUNDLE_TARGET": "mobile"}
	script := writeConfig(t, dir, "webpack.config.js", `
module.exports = { entry: { [process.env.BUNDLE_TARGET + '-' + process.env.NODE_ENV]: './src/index.js' } };
`)
	hclConfig := writeConfig(t, dir, "bundle.hcl", `
entry = {
  "${env.BUNDLE_TARGET}-${env.NODE_ENV}" = "./src/index.js"
}
`)

	l, err := New(logger, WithMode("production"), WithRuntimeOptions(bundlecfg.RuntimeOptions{Cwd: dir, Env: env}))
	as.NoError(err)
	configs, err := l.LoadAll(context.Background(), []string{script, hclConfig})
	as.NoError(err)
	for _, cfg := range configs {
		as.Equal([]string{"mobile-production"}, cfg.Entry.Names())
	}
	as.Equal(map[string]string{"BUNDLE_TARGET": "mobile"}, env)
}
