// Package bundle hands a normalized configuration to esbuild. Every entry
// bundle becomes one output script that evaluates its modules in declared
// order, bootstrap module first.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.miragespace.co/bundlecfg"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

var ErrNilConfig = fmt.Errorf("nil configuration")

type Options struct {
	// DryRun computes outputs without writing them to disk.
	DryRun bool
	// Sourcemap emits linked source maps next to scripts.
	Sourcemap bool
}

type Asset struct {
	Entry string `json:"entry,omitempty"`
	Path  string `json:"path"`
	Size  int    `json:"size"`
	Hash  string `json:"hash"`

	contents []byte
}

type Result struct {
	Hash     string   `json:"hash"`
	Assets   []Asset  `json:"assets"`
	Warnings []string `json:"warnings,omitempty"`
}

// BuildError carries every error message esbuild reported.
type BuildError struct {
	Errs []error
}

func (e *BuildError) Error() string {
	return "build failed: " + errors.Join(e.Errs...).Error()
}

func (e *BuildError) Unwrap() []error {
	return e.Errs
}

func Build(ctx context.Context, logger *zap.Logger, cfg *bundlecfg.Config, opts Options) (*Result, error) {
	if logger == nil {
		return nil, fmt.Errorf("nil logger is invalid")
	}
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("component", "bundle"))

	names := cfg.Entry.Names()
	entryPoints := make([]api.EntryPoint, len(names))
	for i, name := range names {
		entryPoints[i] = api.EntryPoint{
			InputPath:  entryPrefix + name,
			OutputPath: name,
		}
	}

	plugins := []api.Plugin{entryPlugin(cfg)}
	if externals := cfg.ExternalNames(); len(externals) > 0 {
		plugins = append(plugins, externalsPlugin(cfg.Externals, externals))
	}

	loaders, warnings := translateLoaders(cfg)
	for _, w := range warnings {
		logger.Warn("Module rule ignored", zap.String("reason", w))
	}

	minify := cfg.Mode == "production"
	sourcemap := api.SourceMapNone
	if opts.Sourcemap {
		sourcemap = api.SourceMapLinked
	}

	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       cfg.Context,
		Outdir:              cfg.Output.Path,
		PublicPath:          cfg.Output.PublicPath,
		Bundle:              true,
		Write:               false,
		Plugins:             plugins,
		Loader:              loaders,
		ResolveExtensions:   resolveExtensions(cfg.Resolve.Extensions),
		MinifyWhitespace:    minify,
		MinifyIdentifiers:   minify,
		MinifySyntax:        minify,
		Sourcemap:           sourcemap,
		Target:              api.ES2015,
		Platform:            api.PlatformBrowser,
		Format:              api.FormatIIFE,
		LogLevel:            api.LogLevelSilent,
		Define: map[string]string{
			"process.env.NODE_ENV": quoteJS(nodeEnv(cfg.Mode)),
		},
	})

	for _, w := range result.Warnings {
		warnings = append(warnings, formatMessage(w))
	}
	if len(result.Errors) > 0 {
		errs := make([]error, len(result.Errors))
		for i, m := range result.Errors {
			errs[i] = errors.New(formatMessage(m))
		}
		return nil, &BuildError{Errs: errs}
	}

	res, err := renameOutputs(cfg, names, result.OutputFiles)
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings

	if !opts.DryRun {
		for _, a := range res.Assets {
			if err := writeAsset(a); err != nil {
				return nil, err
			}
		}
	}

	logger.Info("Bundle built",
		zap.String("hash", res.Hash),
		zap.Int("assets", len(res.Assets)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Bool("dryRun", opts.DryRun),
	)

	return res, nil
}

// renameOutputs maps esbuild's "<entry>.js" and "<entry>.css" outputs to the
// configured filename templates. Other outputs (file assets) keep the names
// esbuild gave them.
func renameOutputs(cfg *bundlecfg.Config, names []string, files []api.OutputFile) (*Result, error) {
	sorted := make([]api.OutputFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	contents := make([][]byte, len(sorted))
	for i, f := range sorted {
		contents[i] = f.Contents
	}
	compilation := contentHash(contents...)

	ids := make(map[string]int, len(names))
	for i, name := range names {
		ids[name] = i
	}

	styles, ok := cfg.StylesFilename()
	if !ok {
		styles = stylesTemplate(cfg.Output.Filename)
	}

	res := &Result{Hash: compilation}
	seen := make(map[string]string)
	for _, f := range sorted {
		rel, err := filepath.Rel(cfg.Output.Path, f.Path)
		if err != nil {
			return nil, fmt.Errorf("error locating output %s: %w", f.Path, err)
		}
		rel = filepath.ToSlash(rel)

		hash := contentHash(f.Contents)
		asset := Asset{
			Path:     f.Path,
			Size:     len(f.Contents),
			Hash:     hash,
			contents: f.Contents,
		}

		ext := filepath.Ext(rel)
		name := strings.TrimSuffix(rel, ext)
		if id, isEntry := ids[name]; isEntry && (ext == ".js" || ext == ".css") {
			template := cfg.Output.Filename
			if ext == ".css" {
				template = styles
			}
			rendered := renderFilename(template, nameParams{
				Name:        name,
				ID:          id,
				Ext:         ext,
				Hash:        compilation,
				ContentHash: hash,
			})
			asset.Entry = name
			asset.Path = filepath.Join(cfg.Output.Path, filepath.FromSlash(rendered))
		}

		if prev, dup := seen[asset.Path]; dup {
			return nil, fmt.Errorf("outputs %s and %s both render to %s", prev, rel, asset.Path)
		}
		seen[asset.Path] = rel
		res.Assets = append(res.Assets, asset)
	}
	return res, nil
}

func writeAsset(a Asset) error {
	if err := os.MkdirAll(filepath.Dir(a.Path), 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	if err := os.WriteFile(a.Path, a.contents, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", a.Path, err)
	}
	return nil
}

// Contents returns the bytes of a built asset.
func (a Asset) Contents() []byte {
	return a.contents
}

func resolveExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

func nodeEnv(mode string) string {
	if mode == "" || mode == "none" {
		return "production"
	}
	return mode
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}
