package bundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"go.miragespace.co/bundlecfg"

	"github.com/evanw/esbuild/pkg/api"
	pool "github.com/libp2p/go-buffer-pool"
)

const (
	entryNamespace    = "bundlecfg-entry"
	externalNamespace = "bundlecfg-external"
	entryPrefix       = entryNamespace + ":"
)

// Every entry bundle is a virtual module importing its modules in order, so
// the bootstrap module is evaluated before anything else.
const entrySource = `{{range .}}import {{js .}};
{{end}}`

var entryTemplate = template.Must(template.New("entry").Funcs(template.FuncMap{
	"js": quoteJS,
}).Parse(entrySource))

func quoteJS(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func entryPlugin(cfg *bundlecfg.Config) api.Plugin {
	return api.Plugin{
		Name: entryNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + regexp.QuoteMeta(entryPrefix)},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryPrefix),
						Namespace: entryNamespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					modules := cfg.Entry[args.Path]
					specifiers := make([]string, len(modules))
					for i, m := range modules {
						specifiers[i] = entrySpecifier(cfg.Context, m, cfg.Resolve.Extensions)
					}

					b := pool.NewBuffer(nil)
					defer b.Reset()
					if err := entryTemplate.Execute(b, specifiers); err != nil {
						return api.OnLoadResult{}, err
					}
					contents := b.String()

					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: cfg.Context,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

// entrySpecifier turns a context-relative path written without "./" into a
// relative import when such a file exists; other references are left for the
// bundler to resolve as packages.
func entrySpecifier(dir, module string, extensions []string) string {
	if filepath.IsAbs(module) || strings.HasPrefix(module, ".") {
		return module
	}
	candidate := filepath.Join(dir, module)
	if isFile(candidate) {
		return "./" + filepath.ToSlash(module)
	}
	for _, ext := range extensions {
		if ext != "" && isFile(candidate+ext) {
			return "./" + filepath.ToSlash(module)
		}
	}
	return module
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// externalsPlugin resolves every external module to the global expression it
// maps to, the way a "var" external works.
func externalsPlugin(externals map[string]string, names []string) api.Plugin {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = regexp.QuoteMeta(name)
	}
	filter := "^(" + strings.Join(quoted, "|") + ")$"

	return api.Plugin{
		Name: externalNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: filter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      args.Path,
						Namespace: externalNamespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: externalNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					contents := "module.exports = " + externals[args.Path] + ";\n"
					return api.OnLoadResult{
						Contents: &contents,
						Loader:   api.LoaderJS,
					}, nil
				})
		},
	}
}
