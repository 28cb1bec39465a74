package bundlecfg

import (
	"fmt"
	"strconv"

	"go.miragespace.co/bundlecfg/extensions/webpack"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

const maxExportDepth = 64

// exportValue converts a JavaScript value into the generic tree understood by
// Decode. RegExp objects become Pattern and plugin instances become Plugin.
// Functions and symbols have no configuration meaning and are dropped; the
// second return value of exportNode reports whether anything was produced.
func exportValue(logger *zap.Logger, v goja.Value, path string) (any, error) {
	out, _, err := exportNode(logger, v, path, 0)
	return out, err
}

func exportNode(logger *zap.Logger, v goja.Value, path string, depth int) (any, bool, error) {
	if depth > maxExportDepth {
		return nil, false, configErrorf(path, "value is nested too deeply or contains a cycle")
	}
	if v == nil || goja.IsUndefined(v) {
		return nil, false, nil
	}
	if goja.IsNull(v) {
		return nil, true, nil
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		switch e := v.Export().(type) {
		case string, bool, int64, float64:
			return e, true, nil
		default:
			logger.Debug("Dropping unsupported value", zap.String("path", path), zap.String("type", fmt.Sprintf("%T", e)))
			return nil, false, nil
		}
	}

	if name := obj.Get(webpack.PluginNameKey); name != nil && !goja.IsUndefined(name) {
		p := Plugin{Name: name.String()}
		if args, ok := obj.Get(webpack.PluginArgsKey).(*goja.Object); ok {
			exported, _, err := exportArray(logger, args, joinPath(path, "args"), depth+1)
			if err != nil {
				return nil, false, err
			}
			p.Args = exported
		}
		return p, true, nil
	}

	switch obj.ClassName() {
	case "Function":
		logger.Debug("Dropping function value", zap.String("path", path))
		return nil, false, nil
	case "RegExp":
		return Pattern{Source: obj.Get("source").String(), Flags: regexpFlags(obj)}, true, nil
	case "Array":
		return exportArray(logger, obj, path, depth+1)
	case "Date", "String", "Number", "Boolean":
		return obj.Export(), true, nil
	}

	keys := obj.Keys()
	m := make(map[string]any, len(keys))
	for _, key := range keys {
		val, ok, err := exportNode(logger, obj.Get(key), joinPath(path, key), depth+1)
		if err != nil {
			return nil, false, err
		}
		if ok {
			m[key] = val
		}
	}
	return m, true, nil
}

func exportArray(logger *zap.Logger, obj *goja.Object, path string, depth int) ([]any, bool, error) {
	length := int(obj.Get("length").ToInteger())
	out := make([]any, 0, length)
	for i := 0; i < length; i++ {
		val, ok, err := exportNode(logger, obj.Get(strconv.Itoa(i)), indexPath(path, i), depth)
		if err != nil {
			return nil, false, err
		}
		// dropped elements are skipped so functions in plugin lists vanish
		if ok {
			out = append(out, val)
		}
	}
	return out, true, nil
}

func regexpFlags(obj *goja.Object) string {
	if flags := obj.Get("flags"); flags != nil && !goja.IsUndefined(flags) {
		return flags.String()
	}
	var flags string
	for _, f := range [...]struct{ flag, prop string }{{"g", "global"}, {"i", "ignoreCase"}, {"m", "multiline"}} {
		if v := obj.Get(f.prop); v != nil && v.ToBoolean() {
			flags += f.flag
		}
	}
	return flags
}
