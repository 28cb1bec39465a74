package loader

import (
	"fmt"
	"path/filepath"

	"go.miragespace.co/bundlecfg/extensions/nodepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// decodeHCL evaluates every top-level attribute of an HCL file. Expressions
// can use the variables dirname, filename, mode and env, and the functions
// resolve, join, lower and upper.
func decodeHCL(filename string, src []byte, mode string, environ map[string]string) (map[string]any, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing configuration: %w", diags)
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing configuration: %w", diags)
	}

	evalCtx := hclEvalContext(filename, mode, environ)
	tree := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating %s: %w", name, diags)
		}
		v, err := ctyToGo(val, name)
		if err != nil {
			return nil, err
		}
		tree[name] = v
	}
	return tree, nil
}

func hclEvalContext(filename, mode string, environ map[string]string) *hcl.EvalContext {
	dir := filepath.Dir(filename)

	env := make(map[string]cty.Value)
	for k, v := range environ {
		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"dirname":  cty.StringVal(dir),
			"filename": cty.StringVal(filename),
			"mode":     cty.StringVal(mode),
			"env":      cty.ObjectVal(env),
		},
		Functions: map[string]function.Function{
			"resolve": resolveFunc(dir),
			"join":    stdlib.JoinFunc,
			"lower":   stdlib.LowerFunc,
			"upper":   stdlib.UpperFunc,
		},
	}
}

func resolveFunc(dir string) function.Function {
	return function.New(&function.Spec{
		VarParam: &function.Parameter{
			Name: "parts",
			Type: cty.String,
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = a.AsString()
			}
			return cty.StringVal(nodepath.Resolve(dir, parts...)), nil
		},
	})
}

func ctyToGo(v cty.Value, path string) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("%s: value is not known", path)
	}

	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString(), nil
	case t == cty.Bool:
		return v.True(), nil
	case t == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == 0 {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case t.IsObjectType() || t.IsMapType():
		m := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			key := k.AsString()
			item, err := ctyToGo(ev, path+"."+key)
			if err != nil {
				return nil, err
			}
			m[key] = item
		}
		return m, nil
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		list := make([]any, 0, v.LengthInt())
		i := 0
		for it := v.ElementIterator(); it.Next(); i++ {
			_, ev := it.Element()
			item, err := ctyToGo(ev, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("%s: unsupported value of type %s", path, t.FriendlyName())
	}
}
