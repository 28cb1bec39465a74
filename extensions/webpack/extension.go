// Package webpack registers stand-ins for the "webpack" module and common
// plugin packages so configuration files can be evaluated without Node.js.
// Constructed plugins only record their name and arguments.
package webpack

import (
	"strconv"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

const (
	ModuleName = "webpack"

	// Hidden properties set on every constructed plugin instance.
	PluginNameKey = "__bundlecfgPluginName"
	PluginArgsKey = "__bundlecfgPluginArgs"

	ExtractTextModule    = "extract-text-webpack-plugin"
	MiniCSSModule        = "mini-css-extract-plugin"
	ExtractTextLoader    = "extract-text-webpack-plugin/loader"
	MiniCSSExtractLoader = "mini-css-extract-plugin/loader"
)

var builtinPlugins = []string{
	"HotModuleReplacementPlugin",
	"DefinePlugin",
	"ProvidePlugin",
	"EnvironmentPlugin",
	"NamedModulesPlugin",
	"NoEmitOnErrorsPlugin",
	"LoaderOptionsPlugin",
	"BannerPlugin",
	"IgnorePlugin",
	"SourceMapDevToolPlugin",
}

var optimizePlugins = []string{
	"CommonsChunkPlugin",
	"UglifyJsPlugin",
	"OccurrenceOrderPlugin",
	"DedupePlugin",
	"ModuleConcatenationPlugin",
	"AggressiveMergingPlugin",
}

// PluginModules are packages whose default export is a plugin constructor.
var PluginModules = []string{
	"html-webpack-plugin",
	"copy-webpack-plugin",
	"clean-webpack-plugin",
	"friendly-errors-webpack-plugin",
	"uglifyjs-webpack-plugin",
	"terser-webpack-plugin",
	"optimize-css-assets-webpack-plugin",
	"webpack-bundle-analyzer",
}

// Register adds the webpack module, the extract plugins and every name in
// PluginModules plus extra to the registry.
func Register(registry *require.Registry, extra ...string) {
	registry.RegisterNativeModule(ModuleName, requireWebpack)
	registry.RegisterNativeModule(ExtractTextModule, requireExtractText)
	registry.RegisterNativeModule(MiniCSSModule, requireMiniCSS)

	for _, name := range append(append([]string(nil), PluginModules...), extra...) {
		registry.RegisterNativeModule(name, requirePluginModule(name))
	}
}

func requireWebpack(runtime *goja.Runtime, module *goja.Object) {
	o := module.Get("exports").(*goja.Object)
	for _, name := range builtinPlugins {
		o.Set(name, Constructor(runtime, "webpack."+name))
	}
	optimize := runtime.NewObject()
	for _, name := range optimizePlugins {
		optimize.Set(name, Constructor(runtime, "webpack.optimize."+name))
	}
	o.Set("optimize", optimize)
}

func requirePluginModule(name string) require.ModuleLoader {
	return func(runtime *goja.Runtime, module *goja.Object) {
		ctor := Constructor(runtime, name)
		module.Set("exports", ctor)
	}
}

func requireExtractText(runtime *goja.Runtime, module *goja.Object) {
	ctor := Constructor(runtime, ExtractTextModule)
	ctor.Set("extract", func(call goja.FunctionCall) goja.Value {
		return extract(runtime, call)
	})
	module.Set("exports", ctor)
}

func requireMiniCSS(runtime *goja.Runtime, module *goja.Object) {
	ctor := Constructor(runtime, MiniCSSModule)
	ctor.Set("loader", MiniCSSExtractLoader)
	module.Set("exports", ctor)
}

// Constructor returns a JavaScript constructor whose instances remember the
// plugin name and the arguments they were created with.
func Constructor(runtime *goja.Runtime, name string) *goja.Object {
	ctor := runtime.ToValue(func(call goja.ConstructorCall) *goja.Object {
		args := make([]any, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg
		}
		_ = call.This.DefineDataProperty(PluginNameKey, runtime.ToValue(name), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
		_ = call.This.DefineDataProperty(PluginArgsKey, runtime.NewArray(args...), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
		return nil
	}).ToObject(runtime)
	return ctor
}

// extract implements both ExtractTextPlugin.extract({fallback, use, ...}) and
// the older ExtractTextPlugin.extract(fallback, use, options) form. The result
// is a loader chain led by the extract loader.
func extract(runtime *goja.Runtime, call goja.FunctionCall) goja.Value {
	var (
		fallback goja.Value = goja.Undefined()
		use      goja.Value = goja.Undefined()
		options  *goja.Object
	)

	first := call.Argument(0)
	switch {
	case len(call.Arguments) == 1 && isPlainObject(first):
		opts := first.ToObject(runtime)
		fallback = opts.Get("fallback")
		use = opts.Get("use")
		options = runtime.NewObject()
		for _, key := range opts.Keys() {
			if key == "fallback" || key == "use" {
				continue
			}
			options.Set(key, opts.Get(key))
		}
	case len(call.Arguments) == 1:
		use = first
	default:
		fallback = first
		use = call.Argument(1)
		if opt := call.Argument(2); isPlainObject(opt) {
			options = opt.ToObject(runtime)
		}
	}

	loaderOptions := runtime.NewObject()
	if options != nil {
		for _, key := range options.Keys() {
			loaderOptions.Set(key, options.Get(key))
		}
	}
	if fallback != nil && !goja.IsUndefined(fallback) {
		loaderOptions.Set("fallback", fallback)
	}

	head := runtime.NewObject()
	head.Set("loader", ExtractTextLoader)
	head.Set("options", loaderOptions)

	chain := []any{head}
	if use != nil && !goja.IsUndefined(use) {
		if obj, ok := use.(*goja.Object); ok && obj.ClassName() == "Array" {
			length := int(obj.Get("length").ToInteger())
			for i := 0; i < length; i++ {
				chain = append(chain, obj.Get(strconv.Itoa(i)))
			}
		} else {
			chain = append(chain, use)
		}
	}
	return runtime.NewArray(chain...)
}

func isPlainObject(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	return ok && obj.ClassName() == "Object"
}
