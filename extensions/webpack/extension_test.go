package webpack

import (
	"strconv"
	"testing"

	"github.com/dop251/goja"
	nodejs "github.com/dop251/goja_nodejs/require"
	"github.com/stretchr/testify/require"
)

func newVM(t *testing.T, extra ...string) *goja.Runtime {
	vm := goja.New()
	registry := nodejs.NewRegistry()
	Register(registry, extra...)
	registry.Enable(vm)
	return vm
}

func TestPluginInstances(t *testing.T) {
	as := require.New(t)
	vm := newVM(t, "my-plugin")

	v, err := vm.RunString(`
const webpack = require('webpack');
const Html = require('html-webpack-plugin');
const Mine = require('my-plugin');
[
	new webpack.HotModuleReplacementPlugin(),
	new webpack.optimize.CommonsChunkPlugin({ name: 'commons' }),
	new Html({ filename: 'index.html' }),
	new Mine(1, 'two'),
]
`)
	as.NoError(err)

	list := v.ToObject(vm)
	names := []string{
		"webpack.HotModuleReplacementPlugin",
		"webpack.optimize.CommonsChunkPlugin",
		"html-webpack-plugin",
		"my-plugin",
	}
	for i, name := range names {
		obj := list.Get(strconv.Itoa(i)).ToObject(vm)
		as.Equal(name, obj.Get(PluginNameKey).String())
		// hidden from enumeration
		as.NotContains(obj.Keys(), PluginNameKey)
	}

	args := list.Get("3").ToObject(vm).Get(PluginArgsKey).Export()
	as.Equal([]any{int64(1), "two"}, args)
}

func TestExtractObjectForm(t *testing.T) {
	as := require.New(t)
	vm := newVM(t)

	v, err := vm.RunString(`
const ExtractTextPlugin = require('extract-text-webpack-plugin');
ExtractTextPlugin.extract({
	fallback: 'style-loader',
	use: ['css-loader', 'sass-loader'],
	publicPath: '../',
})
`)
	as.NoError(err)
	as.Equal([]any{
		map[string]any{
			"loader":  ExtractTextLoader,
			"options": map[string]any{"fallback": "style-loader", "publicPath": "../"},
		},
		"css-loader",
		"sass-loader",
	}, v.Export())
}

func TestExtractPositionalForm(t *testing.T) {
	as := require.New(t)
	vm := newVM(t)

	v, err := vm.RunString(`
const ExtractTextPlugin = require('extract-text-webpack-plugin');
ExtractTextPlugin.extract('style-loader', 'css-loader', { publicPath: './' })
`)
	as.NoError(err)
	as.Equal([]any{
		map[string]any{
			"loader":  ExtractTextLoader,
			"options": map[string]any{"publicPath": "./", "fallback": "style-loader"},
		},
		"css-loader",
	}, v.Export())

	v, err = vm.RunString(`require('extract-text-webpack-plugin').extract('css-loader')`)
	as.NoError(err)
	as.Equal([]any{
		map[string]any{"loader": ExtractTextLoader, "options": map[string]any{}},
		"css-loader",
	}, v.Export())
}

func TestMiniCSSLoader(t *testing.T) {
	as := require.New(t)
	vm := newVM(t)

	v, err := vm.RunString(`require('mini-css-extract-plugin').loader`)
	as.NoError(err)
	as.Equal(MiniCSSExtractLoader, v.String())
}
