// Package loader reads bundler configuration files in any supported format,
// normalizes their entries and validates the result.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.miragespace.co/bundlecfg"
	"go.miragespace.co/bundlecfg/transpile"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBootstrap is the polyfill injected ahead of every entry bundle.
const DefaultBootstrap = "babel-polyfill"

type Format string

const (
	FormatScript     Format = "script"
	FormatTypeScript Format = "typescript"
	FormatYAML       Format = "yaml"
	FormatJSON       Format = "json"
	FormatHCL        Format = "hcl"
)

var ErrUnknownFormat = errors.New("loader: unknown configuration format")

// DetectFormat picks a format from the file extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".js", ".cjs":
		return FormatScript, nil
	case ".ts", ".cts":
		return FormatTypeScript, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filename)
	}
}

type Loader struct {
	logger      *zap.Logger
	runtime     *bundlecfg.Runtime
	runtimeOpts bundlecfg.RuntimeOptions
	bootstrap   string
	mode        string
	concurrency int
}

type Option func(*Loader)

// WithBootstrap sets the module prepended to every entry bundle. An empty
// module disables entry normalization.
func WithBootstrap(module string) Option {
	return func(l *Loader) {
		l.bootstrap = module
	}
}

// WithMode overrides the configuration's mode.
func WithMode(mode string) Option {
	return func(l *Loader) {
		l.mode = mode
	}
}

func WithRuntimeOptions(opts bundlecfg.RuntimeOptions) Option {
	return func(l *Loader) {
		l.runtimeOpts = opts
	}
}

// WithConcurrency bounds the number of files LoadAll evaluates at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		l.concurrency = n
	}
}

func New(logger *zap.Logger, opts ...Option) (*Loader, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	l := &Loader{
		logger:      logger.With(zap.String("component", "loader")),
		bootstrap:   DefaultBootstrap,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.concurrency < 1 {
		l.concurrency = 1
	}
	if !bundlecfg.ValidMode(l.mode) {
		return nil, &bundlecfg.ConfigurationError{
			Path: "mode",
			Err:  fmt.Errorf("%w: unknown mode %q", bundlecfg.ErrInvalidConfig, l.mode),
		}
	}
	if l.mode != "" {
		l.runtimeOpts.Mode = l.mode
	}

	rt, err := bundlecfg.NewRuntime(logger, l.runtimeOpts)
	if err != nil {
		return nil, err
	}
	l.runtime = rt

	return l, nil
}

// Load reads and prepares the configuration file at path.
func (l *Loader) Load(ctx context.Context, path string) (*bundlecfg.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return l.LoadSource(ctx, abs, src)
}

// LoadSource prepares a configuration whose contents are already in memory.
// filename selects the format and anchors relative paths.
func (l *Loader) LoadSource(ctx context.Context, filename string, src []byte) (*bundlecfg.Config, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	var tree map[string]any
	switch format {
	case FormatScript:
		tree, err = l.runtime.Evaluate(ctx, filename, src)
	case FormatTypeScript:
		var code string
		if code, err = transpile.TranspileTypescript(ctx, filename, bytes.NewReader(src)); err == nil {
			tree, err = l.runtime.Evaluate(ctx, filename, []byte(code))
		}
	case FormatYAML, FormatJSON:
		tree, err = decodeYAML(src)
	case FormatHCL:
		tree, err = decodeHCL(filename, src, l.mode, l.runtime.Env())
	}
	if err != nil {
		return nil, err
	}

	cfg, err := bundlecfg.Decode(tree, filepath.Dir(filename))
	if err != nil {
		return nil, err
	}
	if l.mode != "" {
		cfg.Mode = l.mode
	}
	if l.bootstrap != "" {
		if cfg, err = cfg.WithBootstrap(l.bootstrap); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.logger.Info("Configuration loaded",
		zap.String("file", filename),
		zap.String("format", string(format)),
		zap.Strings("entries", cfg.Entry.Names()),
	)
	return cfg, nil
}

// LoadAll loads every path concurrently. Results are in the order of paths;
// the first error cancels the remaining loads.
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]*bundlecfg.Config, error) {
	configs := make([]*bundlecfg.Config, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			cfg, err := l.Load(gctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			configs[i] = cfg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return configs, nil
}
