package bundlecfg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.miragespace.co/bundlecfg/extensions/nodepath"
	"go.miragespace.co/bundlecfg/extensions/webpack"
	"go.miragespace.co/bundlecfg/extensions/zap_console"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"
)

var ErrExportsNotObject = errors.New("module.exports must be a configuration object")

// RuntimeOptions control the environment configuration scripts run in.
type RuntimeOptions struct {
	// Cwd is returned by process.cwd() and used by path.resolve(). Defaults
	// to the working directory of the process.
	Cwd string
	// Env populates process.env. Defaults to the process environment.
	Env map[string]string
	// Mode is passed as argv.mode to exported config functions and becomes
	// NODE_ENV when the environment does not set it.
	Mode string
	// EnvArgs is the first argument to exported config functions.
	EnvArgs map[string]any
	// PluginModules are extra package names that resolve to plugin
	// constructors.
	PluginModules []string
}

// Runtime evaluates CommonJS configuration scripts. Every evaluation gets a
// fresh VM, so a Runtime can be used from multiple goroutines.
type Runtime struct {
	logger *zap.Logger
	opts   RuntimeOptions
}

func NewRuntime(logger *zap.Logger, opts RuntimeOptions) (*Runtime, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if opts.Cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		opts.Cwd = wd
	}
	if opts.Env == nil {
		opts.Env = environ()
	} else {
		opts.Env = maps.Clone(opts.Env)
	}
	if _, ok := opts.Env["NODE_ENV"]; !ok && opts.Mode != "" {
		opts.Env["NODE_ENV"] = opts.Mode
	}

	return &Runtime{
		logger: logger.With(zap.String("component", "runtime")),
		opts:   opts,
	}, nil
}

// Env returns a copy of the environment scripts see as process.env.
func (rt *Runtime) Env() map[string]string {
	return maps.Clone(rt.opts.Env)
}

type evalResult struct {
	tree map[string]any
	err  error
}

// Evaluate runs a configuration script and returns module.exports as a
// generic value tree. Exports may be an object, a function called with
// (env, argv), or a Promise of either.
func (rt *Runtime) Evaluate(ctx context.Context, filename string, src []byte) (map[string]any, error) {
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(rt.opts.Cwd, filename)
	}

	prog, err := compileModule(filename, src)
	if err != nil {
		return nil, fmt.Errorf("error compiling script: %w", err)
	}

	registry := require.NewRegistryWithLoader(sourceLoader)
	registry.RegisterNativeModule(zap_console.ModuleName, zap_console.RequireWithLogger(rt.logger.With(zap.String("script", filename))))
	registry.RegisterNativeModule(nodepath.ModuleName, nodepath.Require(rt.opts.Cwd))
	webpack.Register(registry, rt.opts.PluginModules...)

	eventLoop := eventloop.NewEventLoop(
		eventloop.EnableConsole(false),
		eventloop.WithRegistry(registry),
	)
	eventLoop.Start()
	defer eventLoop.StopNoWait()

	var vmRef atomic.Pointer[goja.Runtime]
	done := make(chan evalResult, 1)
	start := time.Now()

	eventLoop.RunOnLoop(func(vm *goja.Runtime) {
		vmRef.Store(vm)
		zap_console.Enable(vm)
		vm.Set("process", newProcess(vm, filename, rt.opts))

		fnValue, err := vm.RunProgram(prog)
		if err != nil {
			done <- evalResult{err: fmt.Errorf("error evaluating %s: %w", filename, err)}
			return
		}
		fn, ok := goja.AssertFunction(fnValue)
		if !ok {
			done <- evalResult{err: fmt.Errorf("internal error: module wrapper is not a function")}
			return
		}

		exports := vm.NewObject()
		module := vm.NewObject()
		module.Set("exports", exports)
		module.Set("filename", filename)

		_, err = fn(goja.Undefined(),
			exports,
			vm.Get("require"),
			module,
			vm.ToValue(filename),
			vm.ToValue(filepath.Dir(filename)),
		)
		if err != nil {
			done <- evalResult{err: fmt.Errorf("error evaluating %s: %w", filename, err)}
			return
		}

		rt.settle(vm, module.Get("exports"), done)
	})

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		rt.logger.Debug("Configuration script evaluated",
			zap.String("script", filename),
			zap.Duration("duration", time.Since(start)),
		)
		return res.tree, nil
	case <-ctx.Done():
		if vm := vmRef.Load(); vm != nil {
			vm.Interrupt(ctx.Err())
		}
		return nil, fmt.Errorf("error evaluating %s: %w", filename, ctx.Err())
	}
}

// settle resolves functions and promises until a plain value is reached, then
// exports it. Must run on the loop.
func (rt *Runtime) settle(vm *goja.Runtime, value goja.Value, done chan<- evalResult) {
	if fn, ok := goja.AssertFunction(value); ok {
		argv := vm.NewObject()
		argv.Set("mode", rt.opts.Mode)
		env := vm.ToValue(rt.opts.EnvArgs)
		if rt.opts.EnvArgs == nil {
			env = vm.NewObject()
		}
		ret, err := fn(goja.Undefined(), env, argv)
		if err != nil {
			done <- evalResult{err: fmt.Errorf("error calling exported config function: %w", err)}
			return
		}
		rt.settle(vm, ret, done)
		return
	}

	if obj, ok := value.(*goja.Object); ok {
		if p, ok := obj.Export().(*goja.Promise); ok {
			rt.settlePromise(vm, obj, p, done)
			return
		}
		// transpiled ES modules export the configuration as "default"
		if esm := obj.Get("__esModule"); esm != nil && esm.ToBoolean() {
			if def := obj.Get("default"); def != nil && !goja.IsUndefined(def) {
				rt.settle(vm, def, done)
				return
			}
		}
	}

	exported, err := exportValue(rt.logger, value, "")
	if err != nil {
		done <- evalResult{err: err}
		return
	}
	tree, ok := exported.(map[string]any)
	if !ok {
		done <- evalResult{err: &ConfigurationError{Err: fmt.Errorf("%w, got %s", ErrExportsNotObject, describe(exported))}}
		return
	}
	done <- evalResult{tree: tree}
}

func (rt *Runtime) settlePromise(vm *goja.Runtime, obj *goja.Object, p *goja.Promise, done chan<- evalResult) {
	switch p.State() {
	case goja.PromiseStateFulfilled:
		rt.settle(vm, p.Result(), done)
		return
	case goja.PromiseStateRejected:
		done <- evalResult{err: fmt.Errorf("exported config promise rejected: %s", p.Result().String())}
		return
	}

	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		done <- evalResult{err: fmt.Errorf("internal error: promise has no then()")}
		return
	}
	onFulfilled := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		rt.settle(vm, call.Argument(0), done)
		return goja.Undefined()
	})
	onRejected := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		done <- evalResult{err: fmt.Errorf("exported config promise rejected: %s", call.Argument(0).String())}
		return goja.Undefined()
	})
	if _, err := then(obj, onFulfilled, onRejected); err != nil {
		done <- evalResult{err: err}
	}
}

// sourceLoader reads modules for require() from disk. Directories report as
// missing so the resolver goes on to try index files.
func sourceLoader(path string) ([]byte, error) {
	path = filepath.FromSlash(path)
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, require.ModuleFileDoesNotExistError
		}
		return nil, err
	}
	if st.IsDir() {
		return nil, require.ModuleFileDoesNotExistError
	}
	return os.ReadFile(path)
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
