package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.miragespace.co/bundlecfg/bundle"
	"go.miragespace.co/bundlecfg/loader"
	"go.miragespace.co/bundlecfg/watch"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
)

type BuildCmd struct {
	File      string `help:"Configuration file." arg:"" type:"existingfile"`
	DryRun    bool   `help:"Compute outputs without writing them."`
	Sourcemap bool   `help:"Emit linked source maps."`
	Watch     bool   `help:"Rebuild when the configuration file changes." short:"w"`
}

func (cmd *BuildCmd) Run(kctx *kong.Context, globals *Globals, ctx context.Context) error {
	logger, err := globals.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	l, err := globals.loader(logger)
	if err != nil {
		return err
	}

	build := func(ctx context.Context) error {
		return cmd.build(ctx, kctx, globals, logger, l)
	}

	if err := build(ctx); err != nil {
		if !cmd.Watch {
			return reportConfigError(kctx.Stderr, err)
		}
		printError(kctx.Stderr, err.Error())
	}
	if !cmd.Watch {
		return nil
	}

	printInfof(kctx.Stderr, "Watching %s", pathStyle.Render(cmd.File))
	return watch.Run(ctx, logger, []string{cmd.File}, watch.DefaultDebounce, func(ctx context.Context, changed []string) error {
		err := build(ctx)
		if err != nil {
			printError(kctx.Stderr, err.Error())
		}
		return err
	})
}

func (cmd *BuildCmd) build(ctx context.Context, kctx *kong.Context, globals *Globals, logger *zap.Logger, l *loader.Loader) error {
	loadCtx, cancel := globals.withTimeout(ctx)
	defer cancel()

	cfg, err := l.Load(loadCtx, cmd.File)
	if err != nil {
		return err
	}

	res, err := bundle.Build(ctx, logger, cfg, bundle.Options{
		DryRun:    cmd.DryRun,
		Sourcemap: cmd.Sourcemap,
	})
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		printInfof(kctx.Stderr, "warning: %s", w)
	}
	for _, a := range res.Assets {
		rel, err := filepath.Rel(cfg.Context, a.Path)
		if err != nil {
			rel = a.Path
		}
		_, _ = fmt.Fprintf(kctx.Stdout, "    %s %d bytes\n", pathStyle.Render(rel), a.Size)
	}
	printSuccess(kctx.Stdout, fmt.Sprintf("Built %d asset(s), hash %s", len(res.Assets), res.Hash[:20]))
	return nil
}
