// Package nodepath provides the subset of the Node.js "path" module that
// bundler configuration files use, backed by path/filepath.
package nodepath

import (
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

const ModuleName = "path"

// Require returns the module loader. cwd is used by resolve() when none of
// its arguments is absolute.
func Require(cwd string) require.ModuleLoader {
	return func(runtime *goja.Runtime, module *goja.Object) {
		o := module.Get("exports").(*goja.Object)
		o.Set("sep", string(filepath.Separator))
		o.Set("delimiter", string(filepath.ListSeparator))
		o.Set("join", stringsFunc(runtime, Join))
		o.Set("resolve", stringsFunc(runtime, func(parts ...string) string {
			return Resolve(cwd, parts...)
		}))
		o.Set("normalize", stringsFunc(runtime, func(parts ...string) string {
			return Join(first(parts))
		}))
		o.Set("dirname", stringsFunc(runtime, func(parts ...string) string {
			return filepath.Dir(first(parts))
		}))
		o.Set("extname", stringsFunc(runtime, func(parts ...string) string {
			return filepath.Ext(first(parts))
		}))
		o.Set("basename", stringsFunc(runtime, func(parts ...string) string {
			base := filepath.Base(first(parts))
			if len(parts) > 1 && parts[1] != "" && base != parts[1] {
				base = strings.TrimSuffix(base, parts[1])
			}
			return base
		}))
		o.Set("relative", stringsFunc(runtime, func(parts ...string) string {
			from := Resolve(cwd, first(parts))
			to := Resolve(cwd, second(parts))
			rel, err := filepath.Rel(from, to)
			if err != nil {
				return to
			}
			if rel == "." {
				return ""
			}
			return rel
		}))
		o.Set("isAbsolute", func(call goja.FunctionCall) goja.Value {
			return runtime.ToValue(filepath.IsAbs(call.Argument(0).String()))
		})
	}
}

// Join behaves like path.join: empty segments are skipped and an empty result
// is ".".
func Join(parts ...string) string {
	joined := filepath.Join(parts...)
	if joined == "" {
		return "."
	}
	return joined
}

// Resolve behaves like path.resolve: segments are joined right to left until
// an absolute path is formed, falling back to cwd.
func Resolve(cwd string, parts ...string) string {
	resolved := ""
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			continue
		}
		resolved = filepath.Join(parts[i], resolved)
		if filepath.IsAbs(parts[i]) {
			return filepath.Clean(resolved)
		}
	}
	return filepath.Join(cwd, resolved)
}

func stringsFunc(runtime *goja.Runtime, fn func(parts ...string) string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			s, ok := arg.Export().(string)
			if !ok {
				panic(runtime.NewTypeError("The \"path\" argument must be of type string. Received %s", arg.String()))
			}
			parts[i] = s
		}
		return runtime.ToValue(fn(parts...))
	}
}

func first(parts []string) string {
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

func second(parts []string) string {
	if len(parts) > 1 {
		return parts[1]
	}
	return ""
}
