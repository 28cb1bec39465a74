package bundlecfg

import (
	"bytes"
	goruntime "runtime"
	"text/template"

	"github.com/dop251/goja"
	pool "github.com/libp2p/go-buffer-pool"
)

// The opening brace shares the first line with the script so reported line
// numbers match the file.
const moduleWrapper = `(function (exports, require, module, __filename, __dirname) {[[.Source]]
})`

var moduleTemplate = template.Must(template.New("module").Delims("[[", "]]").Parse(moduleWrapper))

// compileModule wraps a CommonJS source in the function Node.js would call it
// with.
func compileModule(filename string, src []byte) (*goja.Program, error) {
	b := pool.NewBuffer(nil)
	defer b.Reset()

	if err := moduleTemplate.Execute(b, struct {
		Source string
	}{
		Source: string(stripShebang(src)),
	}); err != nil {
		return nil, err
	}

	return goja.Compile(filename, b.String(), false)
}

func stripShebang(src []byte) []byte {
	if !bytes.HasPrefix(src, []byte("#!")) {
		return src
	}
	out := append([]byte(nil), src...)
	out[0], out[1] = '/', '/'
	return out
}

func newProcess(vm *goja.Runtime, filename string, opts RuntimeOptions) *goja.Object {
	env := vm.NewObject()
	for k, v := range opts.Env {
		env.Set(k, v)
	}

	process := vm.NewObject()
	process.Set("env", env)
	process.Set("argv", []any{"node", filename})
	process.Set("platform", goruntime.GOOS)
	process.Set("cwd", func() string {
		return opts.Cwd
	})
	return process
}
