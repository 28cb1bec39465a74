package zap_console

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/dop251/goja_nodejs/util"
	"go.uber.org/zap"
)

const ModuleName = "node:console"

type Console struct {
	runtime *goja.Runtime
	util    *goja.Object
}

func (c *Console) log(log func(msg string, fields ...zap.Field)) func(goja.FunctionCall, *goja.Runtime) goja.Value {
	return func(call goja.FunctionCall, vm *goja.Runtime) goja.Value {
		fields := make([]zap.Field, 0, 2)
		// frame 0 is this native function
		if stacks := vm.CaptureCallStack(2, nil); len(stacks) > 1 {
			caller := stacks[1]
			fields = append(fields,
				zap.String("position", caller.Position().String()),
				zap.String("script", caller.SrcName()),
			)
		}

		format, ok := goja.AssertFunction(c.util.Get("format"))
		if !ok {
			panic(c.runtime.NewTypeError("util.format is not a function"))
		}
		ret, err := format(c.util, call.Arguments...)
		if err != nil {
			panic(err)
		}

		log(ret.String(), fields...)
		return goja.Undefined()
	}
}

// RequireWithLogger returns a console module whose methods write to logger.
// console.log and console.info log at info level, console.debug at debug
// level.
func RequireWithLogger(logger *zap.Logger) require.ModuleLoader {
	logger = logger.With(zap.String("component", "console"))
	return func(runtime *goja.Runtime, module *goja.Object) {
		c := &Console{
			runtime: runtime,
		}

		c.util = require.Require(runtime, util.ModuleName).(*goja.Object)

		o := module.Get("exports").(*goja.Object)
		o.Set("log", c.log(logger.Info))
		o.Set("info", c.log(logger.Info))
		o.Set("debug", c.log(logger.Debug))
		o.Set("warn", c.log(logger.Warn))
		o.Set("error", c.log(logger.Error))
	}
}

func Enable(runtime *goja.Runtime) {
	runtime.Set("console", require.Require(runtime, ModuleName))
}
